package store

import (
	"time"
)

// Message sender tags as persisted in the messages table.
const (
	SenderUser = "user"
	SenderAI   = "ai"
)

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:80;uniqueIndex" json:"username"`
	Email        string    `gorm:"size:120;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"size:128" json:"-"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
}

func (User) TableName() string { return "users" }

type Conversation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Title     *string   `gorm:"size:255" json:"title"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`

	Messages []Message `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

func (Conversation) TableName() string { return "conversations" }

// Message is immutable once created; history is reconstructed by ordering on
// Timestamp (ID breaks ties for rows created in the same instant).
type Message struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID uint      `gorm:"not null;index" json:"conversation_id"`
	Sender         string    `gorm:"size:10;not null" json:"sender"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	Timestamp      time.Time `gorm:"not null;index" json:"timestamp"`
}

func (Message) TableName() string { return "messages" }

// Job is the job-description aggregate. A conversation owns at most one.
type Job struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID uint      `gorm:"not null;uniqueIndex" json:"conversation_id"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	JobRole        string    `gorm:"size:255" json:"jobrole"`
	Description    string    `gorm:"type:text" json:"description"`
	CreatedAt      time.Time `gorm:"not null" json:"created_at"`

	Sections []JobSection `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE" json:"sections,omitempty"`
}

func (Job) TableName() string { return "jobs" }

type JobSection struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	JobID    uint   `gorm:"not null;index:idx_job_section_position,unique" json:"job_id"`
	Position int    `gorm:"not null;index:idx_job_section_position,unique" json:"section_number"`
	Heading  string `gorm:"size:255" json:"heading"`
	Body     string `gorm:"type:text;not null" json:"body"`
}

func (JobSection) TableName() string { return "job_sections" }

// Sequence is the outreach-sequence aggregate. A conversation owns at most one.
type Sequence struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID uint      `gorm:"not null;uniqueIndex" json:"conversation_id"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	JobRole        string    `gorm:"size:255" json:"jobrole"`
	Description    string    `gorm:"type:text" json:"description"`
	CreatedAt      time.Time `gorm:"not null" json:"created_at"`

	Steps []SequenceStep `gorm:"foreignKey:SequenceID;constraint:OnDelete:CASCADE" json:"steps,omitempty"`
}

func (Sequence) TableName() string { return "sequences" }

// SequenceStep is an ordered labeled section of a sequence. Channel, Subject
// and DelayDays are outreach metadata not present on job sections.
type SequenceStep struct {
	ID         uint    `gorm:"primaryKey" json:"id"`
	SequenceID uint    `gorm:"not null;index:idx_sequence_step_position,unique" json:"sequence_id"`
	Position   int     `gorm:"not null;index:idx_sequence_step_position,unique" json:"step_number"`
	Heading    string  `gorm:"size:255" json:"heading"`
	Channel    string  `gorm:"size:50" json:"channel"`
	Subject    *string `gorm:"size:255" json:"subject"`
	DelayDays  *int    `json:"delay_days"`
	Body       string  `gorm:"type:text;not null" json:"body"`
}

func (SequenceStep) TableName() string { return "sequence_steps" }
