package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/magnecruit/backend/internal/agent"
	"github.com/magnecruit/backend/internal/ai"
	"github.com/magnecruit/backend/internal/logger"
	"github.com/magnecruit/backend/internal/store"
	"github.com/magnecruit/backend/internal/utils"
	"github.com/magnecruit/backend/internal/workspace"
)

const (
	jobConfirmationFallback      = "OK, job description and its sections updated."
	sequenceConfirmationFallback = "Okay, I've updated the sequence."

	// structuredPlaceholder is rendered in place of messages whose body is a
	// raw workspace payload.
	structuredPlaceholder = "The workspace was updated based on this conversation."
)

// Incoming is one user chat message as received from the realtime channel.
type Incoming struct {
	UserID         uint
	ConversationID uint
	Content        string
	ActiveView     string
}

// Turn is the complete outcome of processing one incoming message. When
// ProcessMessage returns an error alongside a non-nil Turn, the user message
// in it has already been committed.
type Turn struct {
	Conversation    *store.Conversation
	NewConversation bool
	UserMessage     *store.Message
	AIMessage       *store.Message
	// DisplayText is what the client renders for this turn. It differs from
	// AIMessage.Content when the stored body is a structured payload.
	DisplayText string
	Job         *workspace.JobSnapshot
	Sequence    *workspace.SequenceSnapshot
}

// Orchestrator runs the chat turn pipeline: persist the user message, consult
// the model with view-specific prompting, synchronize workspace aggregates
// from structured output, and persist the assistant reply.
type Orchestrator struct {
	store     *store.Store
	gateway   ai.Gateway
	jobs      *workspace.Jobs
	sequences *workspace.Sequences
	locks     *conversationLocks
	maxLogLen int
	logger    *zap.Logger
}

func New(st *store.Store, gateway ai.Gateway, jobs *workspace.Jobs, sequences *workspace.Sequences, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		store:     st,
		gateway:   gateway,
		jobs:      jobs,
		sequences: sequences,
		locks:     newConversationLocks(),
		maxLogLen: 200,
		logger:    log.With(zap.String("component", "chat")),
	}
}

// ProcessMessage handles one user message end to end. The user message is
// committed before the model is consulted, so a model failure never loses it.
func (o *Orchestrator) ProcessMessage(ctx context.Context, in Incoming) (*Turn, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, fmt.Errorf("empty message content")
	}

	if in.ConversationID != 0 {
		unlock := o.locks.Lock(in.ConversationID)
		defer unlock()
	}

	conv, userMsg, created, err := o.store.BeginTurn(ctx, in.UserID, in.ConversationID, content)
	if err != nil {
		return nil, fmt.Errorf("begin turn: %w", err)
	}
	if created {
		unlock := o.locks.Lock(conv.ID)
		defer unlock()
	}

	turn := &Turn{
		Conversation:    conv,
		NewConversation: created,
		UserMessage:     userMsg,
	}

	log := o.logger.With(zap.Uint("conversation_id", conv.ID))
	log = logger.WithFields(log, logger.StringFields(
		logger.StringField{Key: logger.FieldView, Value: in.ActiveView},
	)...)
	log.Debug("processing chat turn",
		zap.String("content_preview", utils.TruncateForLog(content, o.maxLogLen)),
	)

	history, err := o.history(ctx, conv.ID, userMsg.ID)
	if err != nil {
		return turn, err
	}

	state, err := o.workspaceState(ctx, in.ActiveView, conv.ID)
	if err != nil {
		return turn, err
	}

	plan := agent.PlanTurn(in.ActiveView, content, state)
	reply, err := o.gateway.Complete(ctx, ai.Request{
		Prompt:  plan.Prompt,
		System:  plan.System,
		History: history,
		Tools:   plan.Tools,
	})
	if err != nil {
		log.Warn("model call failed", zap.Error(err))
		return turn, err
	}

	var saveContent string
	switch plan.Mode {
	case agent.ModeJobTool:
		saveContent, err = o.applyJobReply(ctx, in.UserID, conv.ID, reply, turn, log)
	case agent.ModeSequenceJSON:
		saveContent, err = o.applySequenceReply(ctx, in.UserID, conv.ID, reply, turn, log)
	default:
		saveContent = reply.Text
		turn.DisplayText = reply.Text
	}
	if err != nil {
		return turn, err
	}

	if saveContent == "" {
		log.Warn("model produced no content to persist")
		return turn, &ai.TransportError{Err: errors.New("model reply had no usable content")}
	}

	aiMsg, err := o.store.AppendMessage(ctx, conv.ID, store.SenderAI, saveContent)
	if err != nil {
		return turn, fmt.Errorf("persist assistant message: %w", err)
	}
	turn.AIMessage = aiMsg
	return turn, nil
}

// applyJobReply resolves a job-sections turn: a generate_job_sections call
// updates the aggregate and stores its payload; a plain text reply passes
// through.
func (o *Orchestrator) applyJobReply(ctx context.Context, userID, conversationID uint, reply *ai.Reply, turn *Turn, log *zap.Logger) (string, error) {
	if reply.Call == nil {
		turn.DisplayText = reply.Text
		return reply.Text, nil
	}

	args, err := agent.DecodeJobSectionArgs(reply.Call)
	if err != nil {
		log.Warn("rejecting malformed tool call", zap.Error(err))
		return "", &ai.TransportError{Err: err}
	}

	job, err := o.jobs.Apply(ctx, userID, conversationID, args)
	if err != nil {
		return "", fmt.Errorf("apply job sections: %w", err)
	}
	turn.Job = job

	payload, err := encodeToolPayload(reply.Call)
	if err != nil {
		return "", err
	}
	turn.DisplayText = o.confirmation(ctx, jobConfirmationFallback)
	return payload, nil
}

// applySequenceReply resolves a sequence turn: a fenced JSON block updates
// the aggregate and is stored verbatim; anything else is a conversational
// reply.
func (o *Orchestrator) applySequenceReply(ctx context.Context, userID, conversationID uint, reply *ai.Reply, turn *Turn, log *zap.Logger) (string, error) {
	payload, ok := agent.ParseSequenceJSON(reply.Text)
	if !ok {
		log.Debug("no sequence payload in reply")
		turn.DisplayText = reply.Text
		return reply.Text, nil
	}

	seq, err := o.sequences.Apply(ctx, userID, conversationID, payload)
	if err != nil {
		return "", fmt.Errorf("apply sequence: %w", err)
	}
	turn.Sequence = seq

	turn.DisplayText = o.confirmation(ctx, sequenceConfirmationFallback)
	return reply.Text, nil
}

// confirmation asks the model for a short acknowledgement after a workspace
// update. Failures fall back to a canned message; the update itself already
// succeeded.
func (o *Orchestrator) confirmation(ctx context.Context, fallback string) string {
	plan := agent.ConfirmationPlan()
	reply, err := o.gateway.Complete(ctx, ai.Request{Prompt: plan.Prompt})
	if err != nil || reply.Text == "" {
		o.logger.Debug("confirmation call failed; using fallback", zap.Error(err))
		return fallback
	}
	return strings.TrimSpace(reply.Text)
}

// history loads the conversation transcript as model turns, excluding the
// message that started the current turn (it travels in the prompt).
func (o *Orchestrator) history(ctx context.Context, conversationID, currentMessageID uint) ([]ai.Turn, error) {
	messages, err := o.store.History(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	turns := make([]ai.Turn, 0, len(messages))
	for _, msg := range messages {
		if msg.ID == currentMessageID {
			continue
		}
		role := ai.RoleUser
		if msg.Sender == store.SenderAI {
			role = ai.RoleModel
		}
		turns = append(turns, ai.Turn{Role: role, Text: msg.Content})
	}
	return turns, nil
}

func (o *Orchestrator) workspaceState(ctx context.Context, view string, conversationID uint) (string, error) {
	switch view {
	case agent.ViewJobSections:
		return o.jobs.StateJSON(ctx, conversationID)
	case agent.ViewJobSequence:
		return o.sequences.StateJSON(ctx, conversationID)
	default:
		return "", nil
	}
}

// ConversationMessages returns the transcript for display, with structured
// payload bodies replaced by a placeholder.
func (o *Orchestrator) ConversationMessages(ctx context.Context, userID, conversationID uint) ([]store.Message, error) {
	if _, err := o.store.GetConversation(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	messages, err := o.store.History(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	for i := range messages {
		messages[i].Content = DisplayContent(messages[i])
	}
	return messages, nil
}

// DisplayContent returns what the client should render for a stored message.
func DisplayContent(msg store.Message) string {
	if msg.Sender == store.SenderAI && agent.HasStructuredPayload(msg.Content) {
		return structuredPlaceholder
	}
	return msg.Content
}

// UserMessage maps a turn-processing error onto the text shown in the chat.
func UserMessage(err error) string {
	var blocked *ai.BlockedError
	switch {
	case errors.Is(err, ai.ErrNotConfigured):
		return "AI service is not configured. Please check the API key."
	case errors.As(err, &blocked):
		return fmt.Sprintf("The request was blocked by the AI for safety reasons: %s", blocked.Reason)
	case isTransport(err):
		return "Sorry, I encountered an error while getting a response from the AI."
	default:
		return "Sorry, an internal error occurred while processing your message."
	}
}

func isTransport(err error) bool {
	var transport *ai.TransportError
	return errors.As(err, &transport)
}

func encodeToolPayload(call *ai.ToolCall) (string, error) {
	encoded, err := json.MarshalIndent(call.Args, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode tool payload: %w", err)
	}
	return fmt.Sprintf("```json\n%s\n```", encoded), nil
}
