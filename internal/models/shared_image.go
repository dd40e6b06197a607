package models

// SharedImage is an image asset available to image elements on any template.
// Managing shared images requires the certificate.image.manage capability.
type SharedImage struct {
	BaseModel

	Name     string `gorm:"uniqueIndex;not null" json:"name"`
	MimeType string `gorm:"not null" json:"mime_type"`
	Content  []byte `gorm:"type:blob" json:"-"`
}
