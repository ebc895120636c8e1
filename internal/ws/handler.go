package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/magnecruit/backend/internal/auth"
	"github.com/magnecruit/backend/internal/chat"
)

// Handler upgrades authenticated requests to websocket connections and
// bridges inbound events to the chat orchestrator.
type Handler struct {
	hub          *Hub
	orchestrator *chat.Orchestrator
	upgrader     websocket.Upgrader
	logger       *zap.Logger
}

func NewHandler(hub *Hub, orchestrator *chat.Orchestrator, checkOrigin func(*http.Request) bool, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		hub:          hub,
		orchestrator: orchestrator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		logger: logger.With(zap.String("component", "ws")),
	}
}

// Serve is the gin endpoint for /ws. It requires a user set by the auth
// middleware.
func (h *Handler) Serve(c *gin.Context) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", zap.Error(err))
		return
	}

	client := newClient(h.hub, conn, user.ID, user.Username, h.logger)
	h.hub.register(client)

	go client.writePump()
	client.send(Message{Event: EventStatus, Data: statusPayload{
		Msg: fmt.Sprintf("Connected as %s", user.Username),
	}})
	client.readPump(h.dispatch)
}

func (h *Handler) dispatch(client *Client, envelope Envelope) {
	switch envelope.Event {
	case EventSendUserMessage:
		h.handleUserMessage(client, envelope.Data)
	case EventRequestConvMessages:
		h.handleRequestMessages(client, envelope.Data)
	default:
		client.sendError(fmt.Sprintf("Unknown event: %s", envelope.Event))
	}
}

// handleUserMessage runs one chat turn and publishes the results. Events go
// out only after the turn's writes are committed, in a fixed order: the
// assistant reply first, then conversation creation, then workspace updates.
func (h *Handler) handleUserMessage(client *Client, data json.RawMessage) {
	var payload sendUserMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Content == "" {
		client.sendError("Invalid message data.")
		return
	}

	turn, err := h.orchestrator.ProcessMessage(context.Background(), chat.Incoming{
		UserID:         client.userID,
		ConversationID: payload.ConversationID,
		Content:        payload.Content,
		ActiveView:     payload.ActiveView,
	})
	if err != nil {
		h.logger.Warn("chat turn failed", zap.Uint("user_id", client.userID), zap.Error(err))
		client.sendError(chat.UserMessage(err))
		// A conversation created during the failed turn still exists; tell
		// the client so the sidebar stays consistent.
		if turn != nil && turn.NewConversation {
			h.hub.Publish(client.userID, Message{Event: EventConversationCreated, Data: conversationCreatedPayload{
				ConversationID: turn.Conversation.ID,
				Title:          turn.Conversation.Title,
			}})
		}
		return
	}

	h.hub.Publish(client.userID, Message{Event: EventAIResponse, Data: aiResponsePayload{
		ID:             turn.AIMessage.ID,
		ConversationID: turn.Conversation.ID,
		Sender:         turn.AIMessage.Sender,
		Content:        turn.DisplayText,
		Timestamp:      turn.AIMessage.Timestamp,
	}})

	if turn.NewConversation {
		h.hub.Publish(client.userID, Message{Event: EventConversationCreated, Data: conversationCreatedPayload{
			ConversationID: turn.Conversation.ID,
			Title:          turn.Conversation.Title,
		}})
	}

	if turn.Job != nil {
		h.hub.Publish(client.userID, Message{Event: EventJobUpdated, Data: turn.Job})
	}
	if turn.Sequence != nil {
		h.hub.Publish(client.userID, Message{Event: EventSequenceUpdated, Data: turn.Sequence})
	}
}

func (h *Handler) handleRequestMessages(client *Client, data json.RawMessage) {
	var payload requestConvMessagesPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ConversationID == 0 {
		client.sendError("Invalid request for conversation messages.")
		return
	}

	messages, err := h.orchestrator.ConversationMessages(context.Background(), client.userID, payload.ConversationID)
	if err != nil {
		client.sendError("Conversation not found or access denied.")
		return
	}

	h.hub.Publish(client.userID, Message{Event: EventConversationMsgs, Data: conversationMessagesPayload{
		ConversationID: payload.ConversationID,
		Messages:       messagePayloads(messages),
	}})
}
