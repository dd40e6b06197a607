package models

// Category groups courses and certificate templates. Hidden categories are
// invisible to users without management rights.
type Category struct {
	BaseModel

	Name string `gorm:"not null" json:"name"`

	// Visible carries no column default: gorm would skip a false value on
	// insert and the database default would resurrect the category.
	Visible bool `gorm:"not null" json:"visible"`
}
