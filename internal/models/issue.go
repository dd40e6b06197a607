package models

import (
	"time"

	"gorm.io/datatypes"
)

// Issue records a certificate granted to a user. The Code is the public
// handle used for verification and must stay unique across all issues.
type Issue struct {
	BaseModel

	TemplateID string    `gorm:"not null;index;type:uuid" json:"template_id"`
	Template   *Template `json:"template,omitempty"`

	UserID    string         `gorm:"not null;index;type:uuid" json:"user_id"`
	Code      string         `gorm:"uniqueIndex;not null;size:40" json:"code"`
	ExpiresAt *time.Time     `gorm:"index" json:"expires_at"`
	Data      datatypes.JSON `json:"data"`
}

// Expired reports whether the issue has an expiry in the past.
func (i *Issue) Expired(now time.Time) bool {
	return i != nil && i.ExpiresAt != nil && i.ExpiresAt.Before(now)
}
