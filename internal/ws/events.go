package ws

import (
	"encoding/json"
	"time"

	"github.com/magnecruit/backend/internal/store"
)

// Inbound event names.
const (
	EventSendUserMessage     = "send_user_message"
	EventRequestConvMessages = "request_conversation_messages"
)

// Outbound event names.
const (
	EventStatus              = "status"
	EventError               = "error"
	EventAIResponse          = "ai_response"
	EventConversationCreated = "conversation_created"
	EventConversationMsgs    = "conversation_messages"
	EventJobUpdated          = "job_updated"
	EventSequenceUpdated     = "sequence_updated"
)

// Envelope is the wire frame for both directions: a name plus a payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Message is an outbound frame before encoding.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type sendUserMessagePayload struct {
	Content        string `json:"content"`
	ConversationID uint   `json:"conversationId"`
	ActiveView     string `json:"activeView"`
}

type requestConvMessagesPayload struct {
	ConversationID uint `json:"conversationId"`
}

type statusPayload struct {
	Msg string `json:"msg"`
}

type errorPayload struct {
	Msg string `json:"msg"`
}

type conversationCreatedPayload struct {
	ConversationID uint    `json:"conversationId"`
	Title          *string `json:"title"`
}

type aiResponsePayload struct {
	ID             uint      `json:"id"`
	ConversationID uint      `json:"conversationId"`
	Sender         string    `json:"sender"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
}

type messagePayload struct {
	ID        uint      `json:"id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type conversationMessagesPayload struct {
	ConversationID uint             `json:"conversationId"`
	Messages       []messagePayload `json:"messages"`
}

func messagePayloads(messages []store.Message) []messagePayload {
	payloads := make([]messagePayload, 0, len(messages))
	for _, msg := range messages {
		payloads = append(payloads, messagePayload{
			ID:        msg.ID,
			Sender:    msg.Sender,
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
		})
	}
	return payloads
}
