package workspace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/magnecruit/backend/internal/agent"
	"github.com/magnecruit/backend/internal/store"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	st, err := store.Open(store.Config{Driver: "sqlite", DSN: ":memory:"}, nil)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	return st.DB()
}

func strPtr(s string) *string { return &s }

func listPtr(s ...string) *[]string { return &s }

func intPtr(i int) *int { return &i }

func TestJobsApplyCreatesOrderedSections(t *testing.T) {
	jobs := NewJobs(openTestDB(t), nil)
	ctx := context.Background()

	args := &agent.JobSectionArgs{
		TargetRole:             strPtr("Senior Software Engineer"),
		TargetRoleDescription:  strPtr("Remote, platform team"),
		CompanyContext:         strPtr("We build developer tools."),
		Responsibilities:       listPtr("Design services", "Review code"),
		RequiredQualifications: listPtr("5y Go experience"),
	}

	snapshot, err := jobs.Apply(ctx, 1, 10, args)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	if snapshot.JobRole != "Senior Software Engineer" {
		t.Fatalf("unexpected job role: %q", snapshot.JobRole)
	}
	if len(snapshot.Sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(snapshot.Sections))
	}

	wantHeadings := []string{"About the Company", "Responsibilities", "Required Qualifications"}
	for i, section := range snapshot.Sections {
		if section.SectionNumber != i+1 {
			t.Fatalf("section %d has position %d; positions must be contiguous from 1", i, section.SectionNumber)
		}
		if section.Heading != wantHeadings[i] {
			t.Fatalf("section %d heading = %q, want %q", i, section.Heading, wantHeadings[i])
		}
	}

	if got := snapshot.Sections[1].Body; got != "- Design services\n- Review code" {
		t.Fatalf("unexpected responsibilities body: %q", got)
	}
}

func TestJobsApplyScalarOnlyKeepsSections(t *testing.T) {
	jobs := NewJobs(openTestDB(t), nil)
	ctx := context.Background()

	if _, err := jobs.Apply(ctx, 1, 10, &agent.JobSectionArgs{
		TargetRole:     strPtr("Data Analyst"),
		CompanyContext: strPtr("Analytics startup."),
	}); err != nil {
		t.Fatalf("seed apply: %v", err)
	}

	snapshot, err := jobs.Apply(ctx, 1, 10, &agent.JobSectionArgs{
		TargetRoleDescription: strPtr("Hybrid, Berlin office"),
	})
	if err != nil {
		t.Fatalf("scalar apply: %v", err)
	}

	if snapshot.Description != "Hybrid, Berlin office" {
		t.Fatalf("unexpected description: %q", snapshot.Description)
	}
	if snapshot.JobRole != "Data Analyst" {
		t.Fatal("scalar update must not clear an untouched scalar")
	}
	if len(snapshot.Sections) != 1 || snapshot.Sections[0].Heading != "About the Company" {
		t.Fatalf("sections must survive a scalar-only update, got %+v", snapshot.Sections)
	}
}

func TestJobsApplyReplacesAndRenumbers(t *testing.T) {
	jobs := NewJobs(openTestDB(t), nil)
	ctx := context.Background()

	if _, err := jobs.Apply(ctx, 1, 10, &agent.JobSectionArgs{
		CompanyContext:   strPtr("Old company text."),
		Responsibilities: listPtr("Old duty"),
		Benefits:         listPtr("Old perk"),
	}); err != nil {
		t.Fatalf("seed apply: %v", err)
	}

	// A later call without company_context must drop that section entirely
	// and renumber the survivors.
	snapshot, err := jobs.Apply(ctx, 1, 10, &agent.JobSectionArgs{
		Responsibilities: listPtr("New duty"),
		Benefits:         listPtr("New perk"),
	})
	if err != nil {
		t.Fatalf("replace apply: %v", err)
	}

	if len(snapshot.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(snapshot.Sections))
	}
	if snapshot.Sections[0].Heading != "Responsibilities" || snapshot.Sections[0].SectionNumber != 1 {
		t.Fatalf("unexpected first section: %+v", snapshot.Sections[0])
	}
	if snapshot.Sections[1].Heading != "Benefits and Offers" || snapshot.Sections[1].SectionNumber != 2 {
		t.Fatalf("unexpected second section: %+v", snapshot.Sections[1])
	}
	if snapshot.Sections[0].Body != "- New duty" {
		t.Fatalf("old content leaked through: %q", snapshot.Sections[0].Body)
	}
}

func TestJobsApplyEmptyListClearsSectionContent(t *testing.T) {
	jobs := NewJobs(openTestDB(t), nil)
	ctx := context.Background()

	snapshot, err := jobs.Apply(ctx, 1, 10, &agent.JobSectionArgs{
		Responsibilities: listPtr(),
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(snapshot.Sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(snapshot.Sections))
	}
	if snapshot.Sections[0].Body != "" {
		t.Fatalf("explicitly empty list must produce an empty body, got %q", snapshot.Sections[0].Body)
	}
}

func TestJobsApplyIsIdempotent(t *testing.T) {
	jobs := NewJobs(openTestDB(t), nil)
	ctx := context.Background()

	args := &agent.JobSectionArgs{
		TargetRole:       strPtr("SRE"),
		CompanyContext:   strPtr("Infra team."),
		Responsibilities: listPtr("Keep the lights on"),
	}

	first, err := jobs.Apply(ctx, 1, 10, args)
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}
	second, err := jobs.Apply(ctx, 1, 10, args)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}

	if first.ID != second.ID {
		t.Fatal("apply must reuse the conversation's job row")
	}
	if len(second.Sections) != len(first.Sections) {
		t.Fatalf("section count changed: %d -> %d", len(first.Sections), len(second.Sections))
	}
	for i := range second.Sections {
		if second.Sections[i].Heading != first.Sections[i].Heading ||
			second.Sections[i].Body != first.Sections[i].Body ||
			second.Sections[i].SectionNumber != first.Sections[i].SectionNumber {
			t.Fatalf("section %d diverged after identical apply", i)
		}
	}
}

func TestJobsGetHonorsOwnership(t *testing.T) {
	jobs := NewJobs(openTestDB(t), nil)
	ctx := context.Background()

	if _, err := jobs.Apply(ctx, 1, 10, &agent.JobSectionArgs{TargetRole: strPtr("PM")}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if _, err := jobs.Get(ctx, 10, 1); err != nil {
		t.Fatalf("owner get: %v", err)
	}
	if _, err := jobs.Get(ctx, 10, 2); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a foreign user, got %v", err)
	}
	if _, err := jobs.Get(ctx, 99, 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for an unknown conversation, got %v", err)
	}
}

func TestJobsSaveRoundTrip(t *testing.T) {
	jobs := NewJobs(openTestDB(t), nil)
	ctx := context.Background()

	input := SaveJobInput{
		JobRole:     "Recruiter",
		Description: "Full time",
		Sections: []SectionInput{
			{Heading: "About the Company", Body: "We hire."},
			{Heading: "Responsibilities", Body: "- Source candidates"},
		},
	}
	saved, err := jobs.Save(ctx, 1, 10, input)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := jobs.Get(ctx, 10, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.ID != saved.ID || len(loaded.Sections) != 2 {
		t.Fatalf("unexpected loaded job: %+v", loaded)
	}
	if loaded.Sections[1].SectionNumber != 2 {
		t.Fatal("submission order must become position order")
	}
}

func TestJobsStateJSON(t *testing.T) {
	jobs := NewJobs(openTestDB(t), nil)
	ctx := context.Background()

	state, err := jobs.StateJSON(ctx, 10)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state != "" {
		t.Fatalf("expected empty state before any job exists, got %q", state)
	}

	if _, err := jobs.Apply(ctx, 1, 10, &agent.JobSectionArgs{
		TargetRole:     strPtr("Designer"),
		CompanyContext: strPtr("Brand studio."),
	}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	state, err = jobs.StateJSON(ctx, 10)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if !strings.Contains(state, `"jobrole": "Designer"`) {
		t.Fatalf("state missing job role: %s", state)
	}
	if !strings.Contains(state, "About the Company") {
		t.Fatalf("state missing sections: %s", state)
	}
}

func TestSequencesApplySortsAndRenumbers(t *testing.T) {
	sequences := NewSequences(openTestDB(t), nil)
	ctx := context.Background()

	payload := &agent.SequencePayload{
		Name:        "SDR Outreach",
		Description: "Cold outreach",
		Steps: []agent.SequenceStepPayload{
			{StepNumber: 7, Heading: "Follow up", Channel: "email", DelayDays: intPtr(3), Subject: strPtr("Ping"), Body: "Checking in."},
			{StepNumber: 2, Heading: "Intro", Channel: "email", DelayDays: intPtr(0), Subject: strPtr("Hello"), Body: "Hi."},
		},
	}

	snapshot, err := sequences.Apply(ctx, 1, 20, payload)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	if snapshot.JobRole != "SDR Outreach" {
		t.Fatalf("unexpected title: %q", snapshot.JobRole)
	}
	if len(snapshot.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(snapshot.Steps))
	}
	if snapshot.Steps[0].Heading != "Intro" || snapshot.Steps[0].StepNumber != 1 {
		t.Fatalf("steps must be reordered and renumbered, got %+v", snapshot.Steps[0])
	}
	if snapshot.Steps[1].Heading != "Follow up" || snapshot.Steps[1].StepNumber != 2 {
		t.Fatalf("unexpected second step: %+v", snapshot.Steps[1])
	}
	if snapshot.Steps[1].DelayDays == nil || *snapshot.Steps[1].DelayDays != 3 {
		t.Fatalf("delay lost: %+v", snapshot.Steps[1])
	}
}

func TestSequencesApplyReplacesSteps(t *testing.T) {
	sequences := NewSequences(openTestDB(t), nil)
	ctx := context.Background()

	if _, err := sequences.Apply(ctx, 1, 20, &agent.SequencePayload{
		Name:  "V1",
		Steps: []agent.SequenceStepPayload{{StepNumber: 1, Heading: "A", Body: "old"}, {StepNumber: 2, Heading: "B", Body: "old"}},
	}); err != nil {
		t.Fatalf("seed apply: %v", err)
	}

	snapshot, err := sequences.Apply(ctx, 1, 20, &agent.SequencePayload{
		Name:  "V2",
		Steps: []agent.SequenceStepPayload{{StepNumber: 1, Heading: "Only step", Body: "new"}},
	})
	if err != nil {
		t.Fatalf("replace apply: %v", err)
	}

	if snapshot.JobRole != "V2" {
		t.Fatalf("unexpected title: %q", snapshot.JobRole)
	}
	if len(snapshot.Steps) != 1 || snapshot.Steps[0].Body != "new" {
		t.Fatalf("old steps leaked through: %+v", snapshot.Steps)
	}
}

func TestSequencesApplySkipsEmptyStepsAndFallsBackToChannel(t *testing.T) {
	sequences := NewSequences(openTestDB(t), nil)
	ctx := context.Background()

	snapshot, err := sequences.Apply(ctx, 1, 20, &agent.SequencePayload{
		JobRole: "Backend Engineer",
		Steps: []agent.SequenceStepPayload{
			{StepNumber: 1},
			{StepNumber: 2, Channel: "linkedin", Body: "Connect with the candidate."},
			{StepNumber: 3, Heading: "Close", Body: "Final note."},
		},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	if len(snapshot.Steps) != 2 {
		t.Fatalf("empty step must be skipped, got %d steps", len(snapshot.Steps))
	}
	if snapshot.Steps[0].Heading != "linkedin" {
		t.Fatalf("heading must fall back to channel, got %q", snapshot.Steps[0].Heading)
	}
	if snapshot.Steps[0].StepNumber != 1 || snapshot.Steps[1].StepNumber != 2 {
		t.Fatal("positions must stay contiguous after a skip")
	}
}

func TestSequencesSaveAndStateJSON(t *testing.T) {
	sequences := NewSequences(openTestDB(t), nil)
	ctx := context.Background()

	if _, err := sequences.Save(ctx, 1, 20, SaveSequenceInput{
		JobRole: "Outreach",
		Steps: []StepInput{
			{Heading: "Intro", Channel: "email", Body: "Hi."},
		},
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := sequences.Get(ctx, 20, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(loaded.Steps) != 1 || loaded.Steps[0].StepNumber != 1 {
		t.Fatalf("unexpected steps: %+v", loaded.Steps)
	}

	state, err := sequences.StateJSON(ctx, 20)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if !strings.Contains(state, `"name": "Outreach"`) {
		t.Fatalf("state missing name: %s", state)
	}

	if _, err := sequences.Get(ctx, 20, 2); !errors.Is(err, store.ErrNotFound) {
		t.Fatal("foreign user must not see the sequence")
	}
}

func TestAggregatesAreIsolatedPerConversation(t *testing.T) {
	db := openTestDB(t)
	jobs := NewJobs(db, nil)
	ctx := context.Background()

	for conv := uint(1); conv <= 3; conv++ {
		role := fmt.Sprintf("Role %d", conv)
		if _, err := jobs.Apply(ctx, 1, conv, &agent.JobSectionArgs{TargetRole: &role}); err != nil {
			t.Fatalf("apply conv %d: %v", conv, err)
		}
	}

	for conv := uint(1); conv <= 3; conv++ {
		snapshot, err := jobs.Get(ctx, conv, 1)
		if err != nil {
			t.Fatalf("get conv %d: %v", conv, err)
		}
		if want := fmt.Sprintf("Role %d", conv); snapshot.JobRole != want {
			t.Fatalf("conversation %d sees %q, want %q", conv, snapshot.JobRole, want)
		}
	}
}
