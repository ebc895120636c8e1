package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a record does not exist or is not visible to
// the requesting user.
var ErrNotFound = errors.New("record not found")

// ConversationSummary is the sidebar listing shape.
type ConversationSummary struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateConversation inserts a new conversation for the user and returns it
// with its assigned id.
func (s *Store) CreateConversation(ctx context.Context, userID uint) (*Conversation, error) {
	conv := &Conversation{UserID: userID, CreatedAt: time.Now().UTC()}
	if err := s.db.WithContext(ctx).Create(conv).Error; err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// GetConversation fetches a conversation owned by the given user.
func (s *Store) GetConversation(ctx context.Context, id, userID uint) (*Conversation, error) {
	var conv Conversation
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation %d: %w", id, err)
	}
	return &conv, nil
}

// ListConversations returns the user's conversations, newest first. Untitled
// conversations get a fallback title for display.
func (s *Store) ListConversations(ctx context.Context, userID uint) ([]ConversationSummary, error) {
	var conversations []Conversation
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	summaries := make([]ConversationSummary, 0, len(conversations))
	for _, conv := range conversations {
		title := fmt.Sprintf("Chat %d", conv.ID)
		if conv.Title != nil && *conv.Title != "" {
			title = *conv.Title
		}
		summaries = append(summaries, ConversationSummary{
			ID:        conv.ID,
			Title:     title,
			CreatedAt: conv.CreatedAt,
		})
	}
	return summaries, nil
}

// AppendMessage persists one immutable message row.
func (s *Store) AppendMessage(ctx context.Context, conversationID uint, sender, content string) (*Message, error) {
	msg := &Message{
		ConversationID: conversationID,
		Sender:         sender,
		Content:        content,
		Timestamp:      time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, fmt.Errorf("append %s message: %w", sender, err)
	}
	return msg, nil
}

// BeginTurn resolves the conversation for an incoming chat turn and persists
// the user message in one transaction. When conversationID is zero a new
// conversation is created; its id is flushed before the message insert so the
// message can reference it.
func (s *Store) BeginTurn(ctx context.Context, userID, conversationID uint, content string) (*Conversation, *Message, bool, error) {
	var (
		conv    *Conversation
		msg     *Message
		created bool
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if conversationID == 0 {
			conv = &Conversation{UserID: userID, CreatedAt: time.Now().UTC()}
			if err := tx.Create(conv).Error; err != nil {
				return fmt.Errorf("create conversation: %w", err)
			}
			created = true
		} else {
			conv = &Conversation{}
			err := tx.Where("id = ? AND user_id = ?", conversationID, userID).First(conv).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("get conversation %d: %w", conversationID, err)
			}
		}

		msg = &Message{
			ConversationID: conv.ID,
			Sender:         SenderUser,
			Content:        content,
			Timestamp:      time.Now().UTC(),
		}
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("append user message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, false, err
	}
	return conv, msg, created, nil
}

// History returns all messages of a conversation in chronological order.
func (s *Store) History(ctx context.Context, conversationID uint) ([]Message, error) {
	var messages []Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("timestamp ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return messages, nil
}

// UserByEmail fetches a user by email address.
func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &user, nil
}

// UserByID fetches a user by primary key.
func (s *Store) UserByID(ctx context.Context, id uint) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &user, nil
}

// EnsureUser creates the user when no row with the given email exists.
// Used at startup to seed the demo account.
func (s *Store) EnsureUser(ctx context.Context, username, email, passwordHash string) (*User, error) {
	existing, err := s.UserByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	user := &User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("seed user: %w", err)
	}
	return user, nil
}
