package agent

import (
	"strings"
	"testing"

	"github.com/magnecruit/backend/internal/ai"
)

func TestDecodeJobSectionArgsDistinguishesMissingFromEmpty(t *testing.T) {
	call := &ai.ToolCall{
		Name: ToolGenerateJobSections,
		Args: map[string]any{
			"target_role":      "Sales Manager",
			"responsibilities": []any{"Own the pipeline", "Coach the team"},
			"benefits":         []any{},
		},
	}

	args, err := DecodeJobSectionArgs(call)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if args.TargetRole == nil || *args.TargetRole != "Sales Manager" {
		t.Fatalf("unexpected target role: %v", args.TargetRole)
	}
	if args.Responsibilities == nil || len(*args.Responsibilities) != 2 {
		t.Fatalf("unexpected responsibilities: %v", args.Responsibilities)
	}
	if args.Benefits == nil || len(*args.Benefits) != 0 {
		t.Fatalf("expected benefits to be present and empty, got %v", args.Benefits)
	}
	if args.CompanyContext != nil {
		t.Fatal("expected company_context to be absent")
	}
	if !args.HasSectionArgs() {
		t.Fatal("expected section args to be detected")
	}
}

func TestDecodeJobSectionArgsScalarsOnly(t *testing.T) {
	call := &ai.ToolCall{
		Name: ToolGenerateJobSections,
		Args: map[string]any{"target_role": "QA Engineer"},
	}

	args, err := DecodeJobSectionArgs(call)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args.HasSectionArgs() {
		t.Fatal("scalar-only call must not trigger a section rebuild")
	}
}

func TestDecodeJobSectionArgsRejectsWrongTool(t *testing.T) {
	call := &ai.ToolCall{Name: "modify_job_sections", Args: map[string]any{}}
	if _, err := DecodeJobSectionArgs(call); err == nil {
		t.Fatal("expected an error for a mismatched tool name")
	}
}

func TestParseSequenceJSONExtractsFencedBlock(t *testing.T) {
	reply := "Here is the updated sequence:\n" +
		"```json\n" +
		`{
  "name": "SDR Outreach",
  "description": "Three touch cold outreach",
  "steps": [
    {"step_number": 2, "heading": "Follow up", "channel": "email", "delay_days": 3, "subject": "Quick follow up", "body": "Just checking in."},
    {"step_number": 1, "heading": "Intro email", "channel": "email", "delay_days": 0, "subject": "Hello", "body": "Hi there."}
  ]
}` + "\n```\nLet me know if you want changes."

	payload, ok := ParseSequenceJSON(reply)
	if !ok {
		t.Fatal("expected a sequence payload")
	}

	if payload.ResolveTitle() != "SDR Outreach" {
		t.Fatalf("unexpected title: %q", payload.ResolveTitle())
	}
	if len(payload.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(payload.Steps))
	}
	if payload.Steps[0].StepNumber != 2 {
		t.Fatal("parser must preserve the emitted order; sorting happens later")
	}
	if payload.Steps[0].Subject == nil || *payload.Steps[0].Subject != "Quick follow up" {
		t.Fatalf("unexpected subject: %v", payload.Steps[0].Subject)
	}
}

func TestParseSequenceJSONJobRoleTitleKey(t *testing.T) {
	reply := "```json\n" +
		`{"jobrole": "Backend Engineer", "description": "Platform team", "steps": [{"step_number": 1, "heading": "About the company", "body": "We build infra."}]}` +
		"\n```"

	payload, ok := ParseSequenceJSON(reply)
	if !ok {
		t.Fatal("expected a sequence payload")
	}
	if payload.ResolveTitle() != "Backend Engineer" {
		t.Fatalf("unexpected title: %q", payload.ResolveTitle())
	}
	if payload.Steps[0].DelayDays != nil {
		t.Fatal("expected delay_days to be absent")
	}
}

func TestParseSequenceJSONTotal(t *testing.T) {
	cases := []struct {
		name  string
		reply string
	}{
		{"plain text", "Sure, what channels should the sequence use?"},
		{"no fence", `{"name": "x", "steps": []}`},
		{"invalid json", "```json\n{broken\n```"},
		{"missing steps", "```json\n{\"name\": \"x\"}\n```"},
		{"steps not a list", "```json\n{\"steps\": \"two\"}\n```"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if payload, ok := ParseSequenceJSON(tc.reply); ok {
				t.Fatalf("expected no payload, got %+v", payload)
			}
		})
	}
}

func TestPlanTurnRouting(t *testing.T) {
	jobPlan := PlanTurn(ViewJobSections, "generate it", `{"jobrole": "SRE"}`)
	if jobPlan.Mode != ModeJobTool {
		t.Fatalf("unexpected mode: %s", jobPlan.Mode)
	}
	if len(jobPlan.Tools) != 1 || jobPlan.Tools[0].Name != ToolGenerateJobSections {
		t.Fatalf("expected the job sections tool, got %+v", jobPlan.Tools)
	}
	if !strings.Contains(jobPlan.Prompt, `{"jobrole": "SRE"}`) {
		t.Fatal("expected current state in the prompt")
	}
	if !strings.Contains(jobPlan.Prompt, "generate it") {
		t.Fatal("expected the user message in the prompt")
	}

	seqPlan := PlanTurn(ViewJobSequence, "make a sequence", "")
	if seqPlan.Mode != ModeSequenceJSON {
		t.Fatalf("unexpected mode: %s", seqPlan.Mode)
	}
	if len(seqPlan.Tools) != 0 {
		t.Fatal("sequence mode must not declare tools")
	}
	if !strings.Contains(seqPlan.Prompt, "null") {
		t.Fatal("empty state must be rendered as null")
	}

	chatPlan := PlanTurn("", "hello", "")
	if chatPlan.Mode != ModeChat {
		t.Fatalf("unexpected mode: %s", chatPlan.Mode)
	}
	if chatPlan.System != "" {
		t.Fatal("general chat carries no system instruction")
	}
}
