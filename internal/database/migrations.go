package database

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/kruetob/moodle-tool-certificate/internal/capability"
	"github.com/kruetob/moodle-tool-certificate/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Scope{},
		&models.Category{},
		&models.Template{},
		&models.Page{},
		&models.Element{},
		&models.Issue{},
		&models.SharedImage{},
		&models.CapabilityAssignment{},
		&models.CapabilityDefinition{},
		&models.CacheEntry{},
	)
}

// SeedData ensures the permission hierarchy has a system root scope and that
// the capability registry is persisted.
func SeedData(db *gorm.DB) error {
	if _, err := EnsureSystemScope(db); err != nil {
		return err
	}
	return capability.Sync(context.Background(), db)
}

// EnsureSystemScope returns the system root scope, creating it when missing.
func EnsureSystemScope(db *gorm.DB) (*models.Scope, error) {
	if db == nil {
		return nil, errors.New("nil database handle")
	}

	var scope models.Scope
	err := db.Where(models.Scope{Level: models.ScopeSystem}).
		FirstOrCreate(&scope).Error
	if err != nil {
		return nil, err
	}

	return &scope, nil
}
