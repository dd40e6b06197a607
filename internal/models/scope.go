package models

import (
	"strings"

	"gorm.io/gorm"
)

// Scope levels recognised by the permission hierarchy.
const (
	ScopeSystem   = "system"
	ScopeCategory = "category"
	ScopeCourse   = "course"
)

// Scope is a node in the permission hierarchy. Capability grants attach to a
// scope and apply to every descendant scope.
type Scope struct {
	BaseModel

	Level      string  `gorm:"not null;index" json:"level"`
	InstanceID string  `gorm:"index" json:"instance_id"`
	ParentID   *string `gorm:"type:uuid;index" json:"parent_id"`

	// Path lists the scope ids from the root to this scope, slash separated
	// with a leading slash, e.g. "/sys/cat1/course7".
	Path  string `gorm:"index" json:"path"`
	Depth int    `json:"depth"`
}

// BeforeCreate derives Path and Depth from the parent when they are unset.
func (s *Scope) BeforeCreate(tx *gorm.DB) error {
	if err := s.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	if s.Path != "" {
		return nil
	}

	if s.ParentID == nil {
		s.Path = "/" + s.ID
		s.Depth = 1
		return nil
	}

	var parent Scope
	if err := tx.First(&parent, "id = ?", *s.ParentID).Error; err != nil {
		return err
	}
	s.Path = parent.Path + "/" + s.ID
	s.Depth = parent.Depth + 1
	return nil
}

// AncestorIDs returns every scope id on the path, own id included.
func (s *Scope) AncestorIDs() []string {
	if s == nil || s.Path == "" {
		return nil
	}

	parts := strings.Split(strings.Trim(s.Path, "/"), "/")
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}

// IsSystem reports whether the scope is the system root.
func (s *Scope) IsSystem() bool {
	return s != nil && s.Level == ScopeSystem
}
