package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/magnecruit/backend/internal/agent"
	"github.com/magnecruit/backend/internal/store"
)

// Canonical section headings, in render order. A tool call that carries any
// section argument rebuilds the whole list in this order.
const (
	headingAboutCompany  = "About the Company"
	headingResponsible   = "Responsibilities"
	headingRequiredQuals = "Required Qualifications"
	headingPreferred     = "Preferred Qualifications"
	headingBenefits      = "Benefits and Offers"
	headingAdditional    = "Additional Information"
)

// SectionSnapshot is the client-facing shape of one job section.
type SectionSnapshot struct {
	ID            uint   `json:"id"`
	SectionNumber int    `json:"section_number"`
	Heading       string `json:"heading"`
	Body          string `json:"body"`
}

// JobSnapshot is the client-facing shape of a job description, sections in
// position order.
type JobSnapshot struct {
	ID             uint              `json:"id"`
	ConversationID uint              `json:"conversation_id"`
	UserID         uint              `json:"user_id"`
	JobRole        string            `json:"jobrole"`
	Description    string            `json:"description"`
	CreatedAt      time.Time         `json:"created_at"`
	Sections       []SectionSnapshot `json:"sections"`
}

// SectionInput is one section as submitted by the client when saving directly.
type SectionInput struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// SaveJobInput is a full job description submitted by the client. Section
// order in the slice becomes position order.
type SaveJobInput struct {
	JobRole     string         `json:"jobrole"`
	Description string         `json:"description"`
	Sections    []SectionInput `json:"sections"`
}

// Jobs synchronizes job-description aggregates with structured model output
// and client edits.
type Jobs struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewJobs(db *gorm.DB, logger *zap.Logger) *Jobs {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Jobs{db: db, logger: logger.With(zap.String("component", "workspace.jobs"))}
}

// Get loads the job description owned by the user's conversation. Returns
// store.ErrNotFound when the conversation has no job yet.
func (j *Jobs) Get(ctx context.Context, conversationID, userID uint) (*JobSnapshot, error) {
	var job store.Job
	err := j.db.WithContext(ctx).
		Preload("Sections", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job for conversation %d: %w", conversationID, err)
	}
	return jobSnapshot(&job), nil
}

// Apply merges a decoded generate_job_sections call into the conversation's
// job description in one transaction. Scalars update only when present in the
// call; any present section argument replaces the whole section list, with
// positions renumbered from 1.
func (j *Jobs) Apply(ctx context.Context, userID, conversationID uint, args *agent.JobSectionArgs) (*JobSnapshot, error) {
	if args == nil {
		return nil, fmt.Errorf("no job section args to apply")
	}

	var job store.Job
	err := j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("conversation_id = ?", conversationID).First(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			job = store.Job{
				ConversationID: conversationID,
				UserID:         userID,
				CreatedAt:      time.Now().UTC(),
			}
			if err := tx.Create(&job).Error; err != nil {
				return fmt.Errorf("create job: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("load job: %w", err)
		}

		if args.TargetRole != nil {
			job.JobRole = *args.TargetRole
		}
		if args.TargetRoleDescription != nil {
			job.Description = *args.TargetRoleDescription
		}
		if err := tx.Save(&job).Error; err != nil {
			return fmt.Errorf("update job: %w", err)
		}

		if args.HasSectionArgs() {
			if err := tx.Where("job_id = ?", job.ID).Delete(&store.JobSection{}).Error; err != nil {
				return fmt.Errorf("clear sections: %w", err)
			}
			sections := buildSections(job.ID, args)
			if len(sections) > 0 {
				if err := tx.Create(&sections).Error; err != nil {
					return fmt.Errorf("insert sections: %w", err)
				}
			}
			job.Sections = sections
		} else {
			return tx.Order("position ASC").Where("job_id = ?", job.ID).Find(&job.Sections).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	j.logger.Info("job description synchronized",
		zap.Uint("conversation_id", conversationID),
		zap.Int("sections", len(job.Sections)),
	)
	return jobSnapshot(&job), nil
}

// Save replaces the job description with client-submitted content. Sections
// are stored in submission order with positions renumbered from 1.
func (j *Jobs) Save(ctx context.Context, userID, conversationID uint, input SaveJobInput) (*JobSnapshot, error) {
	var job store.Job
	err := j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("conversation_id = ? AND user_id = ?", conversationID, userID).First(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			job = store.Job{
				ConversationID: conversationID,
				UserID:         userID,
				CreatedAt:      time.Now().UTC(),
			}
			if err := tx.Create(&job).Error; err != nil {
				return fmt.Errorf("create job: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("load job: %w", err)
		}

		job.JobRole = input.JobRole
		job.Description = input.Description
		if err := tx.Save(&job).Error; err != nil {
			return fmt.Errorf("update job: %w", err)
		}

		if err := tx.Where("job_id = ?", job.ID).Delete(&store.JobSection{}).Error; err != nil {
			return fmt.Errorf("clear sections: %w", err)
		}

		sections := make([]store.JobSection, 0, len(input.Sections))
		for i, section := range input.Sections {
			sections = append(sections, store.JobSection{
				JobID:    job.ID,
				Position: i + 1,
				Heading:  section.Heading,
				Body:     section.Body,
			})
		}
		if len(sections) > 0 {
			if err := tx.Create(&sections).Error; err != nil {
				return fmt.Errorf("insert sections: %w", err)
			}
		}
		job.Sections = sections
		return nil
	})
	if err != nil {
		return nil, err
	}
	return jobSnapshot(&job), nil
}

// StateJSON serializes the current job description for prompt context.
// Returns an empty string when the conversation has no job yet.
func (j *Jobs) StateJSON(ctx context.Context, conversationID uint) (string, error) {
	var job store.Job
	err := j.db.WithContext(ctx).
		Preload("Sections", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("conversation_id = ?", conversationID).
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load job state: %w", err)
	}

	state := map[string]any{
		"jobrole":     job.JobRole,
		"description": job.Description,
		"sections":    jobSnapshot(&job).Sections,
	}
	encoded, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode job state: %w", err)
	}
	return string(encoded), nil
}

func buildSections(jobID uint, args *agent.JobSectionArgs) []store.JobSection {
	var sections []store.JobSection
	position := 0

	add := func(heading, body string) {
		position++
		sections = append(sections, store.JobSection{
			JobID:    jobID,
			Position: position,
			Heading:  heading,
			Body:     body,
		})
	}

	if args.CompanyContext != nil {
		add(headingAboutCompany, *args.CompanyContext)
	}
	if args.Responsibilities != nil {
		add(headingResponsible, bulletList(*args.Responsibilities))
	}
	if args.RequiredQualifications != nil {
		add(headingRequiredQuals, bulletList(*args.RequiredQualifications))
	}
	if args.PreferredQualifications != nil {
		add(headingPreferred, bulletList(*args.PreferredQualifications))
	}
	if args.Benefits != nil {
		add(headingBenefits, bulletList(*args.Benefits))
	}
	if args.AdditionalInformation != nil {
		add(headingAdditional, *args.AdditionalInformation)
	}
	return sections
}

func bulletList(items []string) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, "- "+item)
	}
	return strings.Join(lines, "\n")
}

func jobSnapshot(job *store.Job) *JobSnapshot {
	snapshot := &JobSnapshot{
		ID:             job.ID,
		ConversationID: job.ConversationID,
		UserID:         job.UserID,
		JobRole:        job.JobRole,
		Description:    job.Description,
		CreatedAt:      job.CreatedAt,
		Sections:       make([]SectionSnapshot, 0, len(job.Sections)),
	}

	sections := make([]store.JobSection, len(job.Sections))
	copy(sections, job.Sections)
	sort.Slice(sections, func(i, k int) bool { return sections[i].Position < sections[k].Position })

	for _, section := range sections {
		snapshot.Sections = append(snapshot.Sections, SectionSnapshot{
			ID:            section.ID,
			SectionNumber: section.Position,
			Heading:       section.Heading,
			Body:          section.Body,
		})
	}
	return snapshot
}
