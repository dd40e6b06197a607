package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kruetob/moodle-tool-certificate/internal/models"
)

// Sync persists the registered capability definitions to the backing database.
func Sync(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("capability: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	tx := db.WithContext(ctx)
	for _, id := range All() {
		def, ok := Get(id)
		if !ok {
			continue
		}

		dependsJSON, err := json.Marshal(def.DependsOn)
		if err != nil {
			return fmt.Errorf("capability: marshal depends_on for %s: %w", id, err)
		}

		record := models.CapabilityDefinition{
			BaseModel:   models.BaseModel{ID: def.ID},
			Component:   def.Component,
			Description: def.Description,
			DependsOn:   string(dependsJSON),
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"component", "description", "depends_on"}),
		}).Create(&record).Error; err != nil {
			return fmt.Errorf("capability: sync %s: %w", id, err)
		}
	}

	return nil
}
