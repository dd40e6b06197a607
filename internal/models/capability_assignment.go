package models

// CapabilityAssignment grants a named capability to a user at a scope. The
// grant applies to the scope itself and every descendant.
type CapabilityAssignment struct {
	BaseModel

	UserID     string `gorm:"not null;uniqueIndex:idx_capability_grant,priority:1;type:uuid" json:"user_id"`
	Capability string `gorm:"not null;uniqueIndex:idx_capability_grant,priority:2" json:"capability"`
	ScopeID    string `gorm:"not null;uniqueIndex:idx_capability_grant,priority:3;type:uuid" json:"scope_id"`
}
