package models

// CapabilityDefinition is the persisted form of a registered capability. The
// rows are reconciled with the in-process registry at start-up.
type CapabilityDefinition struct {
	BaseModel

	Component   string `gorm:"index" json:"component"`
	Description string `json:"description"`
	DependsOn   string `gorm:"type:text" json:"depends_on"`
}
