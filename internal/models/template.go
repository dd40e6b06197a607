package models

import (
	"errors"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Template is a certificate layout owned by a scope. Templates at the system
// scope are available everywhere; category templates only within the category.
type Template struct {
	BaseModel

	Name    string `gorm:"not null" json:"name"`
	ScopeID string `gorm:"not null;index;type:uuid" json:"scope_id"`
	Scope   *Scope `json:"scope,omitempty"`

	Pages []Page `gorm:"foreignKey:TemplateID" json:"pages,omitempty"`
}

// BeforeSave validates template invariants.
func (t *Template) BeforeSave(tx *gorm.DB) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return errors.New("template: name is required")
	}
	if strings.TrimSpace(t.ScopeID) == "" {
		return errors.New("template: scope_id is required")
	}
	return nil
}

// Page is a single sheet of a template, sized in millimetres.
type Page struct {
	BaseModel

	TemplateID   string `gorm:"not null;index;type:uuid" json:"template_id"`
	Width        int    `gorm:"default:297" json:"width"`
	Height       int    `gorm:"default:210" json:"height"`
	MarginLeft   int    `json:"margin_left"`
	MarginRight  int    `json:"margin_right"`
	SortOrder    int    `gorm:"index" json:"sort_order"`

	Elements []Element `gorm:"foreignKey:PageID" json:"elements,omitempty"`
}

// Element types supported by the renderer.
const (
	ElementTypeText    = "text"
	ElementTypeProgram = "program"
	ElementTypeImage   = "image"
	ElementTypeQRCode  = "qrcode"
)

// Element is a positioned item on a template page. Type-specific settings are
// stored as JSON in Data and interpreted by the element implementation.
type Element struct {
	BaseModel

	PageID    string         `gorm:"not null;index;type:uuid" json:"page_id"`
	Name      string         `json:"name"`
	Type      string         `gorm:"not null;index" json:"type"`
	Data      datatypes.JSON `json:"data"`
	PosX      int            `json:"posx"`
	PosY      int            `json:"posy"`
	Width     int            `json:"width"`
	FontSize  float64        `json:"font_size"`
	SortOrder int            `gorm:"index" json:"sort_order"`
}
