package contact

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is a note submitted through the public contact form.
type Message struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:254;not null;index" json:"email"`
	Subject   string    `gorm:"size:200" json:"subject"`
	Body      string    `gorm:"column:message;type:text;not null" json:"message"`
	IPHash    string    `gorm:"size:64;index" json:"-"`
	UserAgent string    `gorm:"size:500" json:"user_agent"`
	IsRead    bool      `gorm:"not null;default:false;index" json:"is_read"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName defines the table name for contact messages.
func (Message) TableName() string {
	return "contacts"
}

// BeforeCreate assigns a UUID when none is set.
func (m *Message) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// Input is the public contact form schema.
type Input struct {
	Name    string `json:"name" validate:"notblank,max=100"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Subject string `json:"subject,omitempty" validate:"max=200"`
	Message string `json:"message" validate:"notblank,min=10,max=5000"`
}

// Meta describes the submitter; IPHash must already be hashed.
type Meta struct {
	IPHash    string
	UserAgent string
}

// ListOptions filters the admin inbox.
type ListOptions struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}
