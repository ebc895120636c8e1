package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/magnecruit/backend/internal/agent"
	"github.com/magnecruit/backend/internal/store"
)

// StepSnapshot is the client-facing shape of one sequence step.
type StepSnapshot struct {
	ID         uint    `json:"id"`
	StepNumber int     `json:"step_number"`
	Heading    string  `json:"heading"`
	Channel    string  `json:"channel,omitempty"`
	Subject    *string `json:"subject,omitempty"`
	DelayDays  *int    `json:"delay_days,omitempty"`
	Body       string  `json:"body"`
}

// SequenceSnapshot is the client-facing shape of a sequence, steps in
// position order.
type SequenceSnapshot struct {
	ID             uint           `json:"id"`
	ConversationID uint           `json:"conversation_id"`
	UserID         uint           `json:"user_id"`
	JobRole        string         `json:"jobrole"`
	Description    string         `json:"description"`
	CreatedAt      time.Time      `json:"created_at"`
	Steps          []StepSnapshot `json:"steps"`
}

// StepInput is one step as submitted by the client when saving directly.
type StepInput struct {
	Heading   string  `json:"heading"`
	Channel   string  `json:"channel"`
	Subject   *string `json:"subject"`
	DelayDays *int    `json:"delay_days"`
	Body      string  `json:"body"`
}

// SaveSequenceInput is a full sequence submitted by the client. Step order in
// the slice becomes position order.
type SaveSequenceInput struct {
	JobRole     string      `json:"jobrole"`
	Description string      `json:"description"`
	Steps       []StepInput `json:"steps"`
}

// Sequences synchronizes outreach-sequence aggregates with structured model
// output and client edits.
type Sequences struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewSequences(db *gorm.DB, logger *zap.Logger) *Sequences {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sequences{db: db, logger: logger.With(zap.String("component", "workspace.sequences"))}
}

// Get loads the sequence owned by the user's conversation. Returns
// store.ErrNotFound when the conversation has no sequence yet.
func (s *Sequences) Get(ctx context.Context, conversationID, userID uint) (*SequenceSnapshot, error) {
	var seq store.Sequence
	err := s.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&seq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sequence for conversation %d: %w", conversationID, err)
	}
	return sequenceSnapshot(&seq), nil
}

// Apply replaces the conversation's sequence with a parsed model payload in
// one transaction. Emitted steps are ordered by their step_number and then
// renumbered contiguously from 1; steps with no content are skipped.
func (s *Sequences) Apply(ctx context.Context, userID, conversationID uint, payload *agent.SequencePayload) (*SequenceSnapshot, error) {
	if payload == nil {
		return nil, fmt.Errorf("no sequence payload to apply")
	}

	var seq store.Sequence
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("conversation_id = ?", conversationID).First(&seq).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			seq = store.Sequence{
				ConversationID: conversationID,
				UserID:         userID,
				CreatedAt:      time.Now().UTC(),
			}
			if err := tx.Create(&seq).Error; err != nil {
				return fmt.Errorf("create sequence: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("load sequence: %w", err)
		}

		seq.JobRole = payload.ResolveTitle()
		seq.Description = payload.Description
		if err := tx.Save(&seq).Error; err != nil {
			return fmt.Errorf("update sequence: %w", err)
		}

		if err := tx.Where("sequence_id = ?", seq.ID).Delete(&store.SequenceStep{}).Error; err != nil {
			return fmt.Errorf("clear steps: %w", err)
		}

		steps := s.buildSteps(seq.ID, payload.Steps)
		if len(steps) > 0 {
			if err := tx.Create(&steps).Error; err != nil {
				return fmt.Errorf("insert steps: %w", err)
			}
		}
		seq.Steps = steps
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("sequence synchronized",
		zap.Uint("conversation_id", conversationID),
		zap.Int("steps", len(seq.Steps)),
	)
	return sequenceSnapshot(&seq), nil
}

// Save replaces the sequence with client-submitted content.
func (s *Sequences) Save(ctx context.Context, userID, conversationID uint, input SaveSequenceInput) (*SequenceSnapshot, error) {
	var seq store.Sequence
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("conversation_id = ? AND user_id = ?", conversationID, userID).First(&seq).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			seq = store.Sequence{
				ConversationID: conversationID,
				UserID:         userID,
				CreatedAt:      time.Now().UTC(),
			}
			if err := tx.Create(&seq).Error; err != nil {
				return fmt.Errorf("create sequence: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("load sequence: %w", err)
		}

		seq.JobRole = input.JobRole
		seq.Description = input.Description
		if err := tx.Save(&seq).Error; err != nil {
			return fmt.Errorf("update sequence: %w", err)
		}

		if err := tx.Where("sequence_id = ?", seq.ID).Delete(&store.SequenceStep{}).Error; err != nil {
			return fmt.Errorf("clear steps: %w", err)
		}

		steps := make([]store.SequenceStep, 0, len(input.Steps))
		for i, step := range input.Steps {
			steps = append(steps, store.SequenceStep{
				SequenceID: seq.ID,
				Position:   i + 1,
				Heading:    step.Heading,
				Channel:    step.Channel,
				Subject:    step.Subject,
				DelayDays:  step.DelayDays,
				Body:       step.Body,
			})
		}
		if len(steps) > 0 {
			if err := tx.Create(&steps).Error; err != nil {
				return fmt.Errorf("insert steps: %w", err)
			}
		}
		seq.Steps = steps
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sequenceSnapshot(&seq), nil
}

// StateJSON serializes the current sequence for prompt context. Returns an
// empty string when the conversation has no sequence yet.
func (s *Sequences) StateJSON(ctx context.Context, conversationID uint) (string, error) {
	var seq store.Sequence
	err := s.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("conversation_id = ?", conversationID).
		First(&seq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load sequence state: %w", err)
	}

	state := map[string]any{
		"name":        seq.JobRole,
		"description": seq.Description,
		"steps":       sequenceSnapshot(&seq).Steps,
	}
	encoded, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode sequence state: %w", err)
	}
	return string(encoded), nil
}

// buildSteps orders the payload steps and renumbers them from 1. The model's
// step_number only determines relative order; persisted positions are always
// contiguous.
func (s *Sequences) buildSteps(sequenceID uint, payload []agent.SequenceStepPayload) []store.SequenceStep {
	ordered := make([]agent.SequenceStepPayload, len(payload))
	copy(ordered, payload)
	sort.SliceStable(ordered, func(i, k int) bool { return ordered[i].StepNumber < ordered[k].StepNumber })

	steps := make([]store.SequenceStep, 0, len(ordered))
	for _, step := range ordered {
		if step.Heading == "" && step.Channel == "" && step.Body == "" {
			s.logger.Warn("skipping empty sequence step", zap.Int("step_number", step.StepNumber))
			continue
		}

		heading := step.Heading
		if heading == "" {
			heading = step.Channel
		}

		steps = append(steps, store.SequenceStep{
			SequenceID: sequenceID,
			Position:   len(steps) + 1,
			Heading:    heading,
			Channel:    step.Channel,
			Subject:    step.Subject,
			DelayDays:  step.DelayDays,
			Body:       step.Body,
		})
	}
	return steps
}

func sequenceSnapshot(seq *store.Sequence) *SequenceSnapshot {
	snapshot := &SequenceSnapshot{
		ID:             seq.ID,
		ConversationID: seq.ConversationID,
		UserID:         seq.UserID,
		JobRole:        seq.JobRole,
		Description:    seq.Description,
		CreatedAt:      seq.CreatedAt,
		Steps:          make([]StepSnapshot, 0, len(seq.Steps)),
	}

	steps := make([]store.SequenceStep, len(seq.Steps))
	copy(steps, seq.Steps)
	sort.Slice(steps, func(i, k int) bool { return steps[i].Position < steps[k].Position })

	for _, step := range steps {
		snapshot.Steps = append(snapshot.Steps, StepSnapshot{
			ID:         step.ID,
			StepNumber: step.Position,
			Heading:    step.Heading,
			Channel:    step.Channel,
			Subject:    step.Subject,
			DelayDays:  step.DelayDays,
			Body:       step.Body,
		})
	}
	return snapshot
}
