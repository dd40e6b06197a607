package services

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kruetob/moodle-tool-certificate/internal/cache"
	"github.com/kruetob/moodle-tool-certificate/internal/capability"
	"github.com/kruetob/moodle-tool-certificate/internal/models"
	"github.com/kruetob/moodle-tool-certificate/internal/permissions"
)

type serviceFixture struct {
	db        *gorm.DB
	gate      *permissions.Gate
	caps      *capability.Service
	system    *models.Scope
	templates *TemplateService
	issues    *IssueService
	verify    *VerifyService
}

func setupServices(t *testing.T) *serviceFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Scope{},
		&models.Category{},
		&models.Template{},
		&models.Page{},
		&models.Element{},
		&models.Issue{},
		&models.SharedImage{},
		&models.CapabilityAssignment{},
		&models.CacheEntry{},
	))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	system := &models.Scope{Level: models.ScopeSystem}
	require.NoError(t, db.Where(models.Scope{Level: models.ScopeSystem}).FirstOrCreate(system).Error)

	caps, err := capability.NewService(db)
	require.NoError(t, err)

	gate, err := permissions.NewGate(db, caps, cache.NewDatabaseStore(db))
	require.NoError(t, err)

	templates, err := NewTemplateService(db, gate)
	require.NoError(t, err)
	issues, err := NewIssueService(db, gate)
	require.NoError(t, err)
	verify, err := NewVerifyService(db, gate)
	require.NoError(t, err)

	return &serviceFixture{
		db:        db,
		gate:      gate,
		caps:      caps,
		system:    system,
		templates: templates,
		issues:    issues,
		verify:    verify,
	}
}

func (f *serviceFixture) user(t *testing.T, username string) *models.User {
	t.Helper()

	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "hashed",
		IsActive: true,
	}
	require.NoError(t, f.db.Create(user).Error)
	return user
}

func (f *serviceFixture) categoryScope(t *testing.T, name string) *models.Scope {
	t.Helper()

	category := &models.Category{Name: name, Visible: true}
	require.NoError(t, f.db.Create(category).Error)

	scope := &models.Scope{
		Level:      models.ScopeCategory,
		InstanceID: category.ID,
		ParentID:   &f.system.ID,
	}
	require.NoError(t, f.db.Create(scope).Error)
	return scope
}
