package analytics

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VisitorSession groups page views from one browser within an idle window.
type VisitorSession struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	IPHash    string    `gorm:"size:64;index" json:"-"`
	UserAgent string    `gorm:"size:500" json:"user_agent"`
	FirstSeen time.Time `gorm:"not null" json:"first_seen"`
	LastSeen  time.Time `gorm:"not null;index" json:"last_seen"`
	PageViews int       `gorm:"not null;default:0" json:"page_views"`
}

// PageView is a single recorded page hit.
type PageView struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	SessionID string    `gorm:"size:36;not null;index" json:"session_id"`
	Path      string    `gorm:"size:500;not null;index" json:"path"`
	Referrer  string    `gorm:"size:500" json:"referrer,omitempty"`
	IPHash    string    `gorm:"size:64" json:"-"`
	UserAgent string    `gorm:"size:500" json:"user_agent"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	Session *VisitorSession `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"-"`
}

func (s *VisitorSession) BeforeCreate(_ *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

func (v *PageView) BeforeCreate(_ *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}

// PageViewInput is the public tracking payload.
type PageViewInput struct {
	Path      string `json:"path" validate:"notblank,abspath,max=500"`
	Referrer  string `json:"referrer,omitempty" validate:"max=500"`
	SessionID string `json:"session_id,omitempty" validate:"max=36"`
}

// Meta describes the visitor; IPHash must already be hashed.
type Meta struct {
	IPHash    string
	UserAgent string
}

// PathCount is a path with its number of views.
type PathCount struct {
	Path  string `json:"path"`
	Views int64  `json:"views"`
}

// DayCount is the number of views on a calendar day (UTC, YYYY-MM-DD).
type DayCount struct {
	Day   string `json:"day"`
	Views int64  `json:"views"`
}

// Summary aggregates traffic since a point in time.
type Summary struct {
	Since          time.Time   `json:"since"`
	TotalViews     int64       `json:"total_views"`
	UniqueSessions int64       `json:"unique_sessions"`
	TopPaths       []PathCount `json:"top_paths"`
	ViewsPerDay    []DayCount  `json:"views_per_day"`
}
