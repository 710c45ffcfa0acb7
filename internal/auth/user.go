package auth

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an administrator who signed in through GitHub.
type User struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	GitHubID    int64      `gorm:"column:github_id;uniqueIndex;not null" json:"github_id"`
	Login       string     `gorm:"size:100;uniqueIndex;not null" json:"login"`
	Name        string     `gorm:"size:200" json:"name,omitempty"`
	Email       string     `gorm:"size:254" json:"email,omitempty"`
	AvatarURL   string     `gorm:"size:500" json:"avatar_url,omitempty"`
	IsAdmin     bool       `gorm:"not null;default:false" json:"is_admin"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
