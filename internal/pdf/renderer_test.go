package pdf

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kruetob/moodle-tool-certificate/internal/models"
)

const (
	minPDFSize = 30000
	maxPDFSize = 70000
)

func setupRendererTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Scope{},
		&models.Template{},
		&models.Page{},
		&models.Element{},
		&models.Issue{},
		&models.SharedImage{},
	))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

// noiseJPEG produces an incompressible background image whose encoded size
// keeps the rendered document inside the expected size window.
func noiseJPEG(t *testing.T) []byte {
	t.Helper()

	rng := rand.New(rand.NewSource(42))
	for dim := 120; dim <= 480; dim += 20 {
		img := image.NewRGBA(image.Rect(0, 0, dim, dim))
		for i := range img.Pix {
			img.Pix[i] = uint8(rng.Intn(256))
		}

		var buf bytes.Buffer
		require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
		if buf.Len() >= 35000 && buf.Len() <= 55000 {
			return buf.Bytes()
		}
	}

	t.Fatal("could not produce a background image in the target size range")
	return nil
}

func buildFixtureTemplate(t *testing.T, db *gorm.DB) *models.Template {
	t.Helper()

	scope := &models.Scope{Level: models.ScopeSystem}
	require.NoError(t, db.Create(scope).Error)

	require.NoError(t, db.Create(&models.SharedImage{
		Name:     "fixture-background",
		MimeType: "image/jpeg",
		Content:  noiseJPEG(t),
	}).Error)

	tpl := &models.Template{Name: "Fixture", ScopeID: scope.ID}
	require.NoError(t, db.Create(tpl).Error)

	page := &models.Page{TemplateID: tpl.ID, Width: 297, Height: 210, MarginRight: 10}
	require.NoError(t, db.Create(page).Error)

	elements := []models.Element{
		{
			PageID: page.ID, Type: models.ElementTypeImage, SortOrder: 1,
			Data: []byte(`{"image":"fixture-background"}`),
		},
		{
			PageID: page.ID, Type: models.ElementTypeText, SortOrder: 2,
			PosX: 30, PosY: 40, FontSize: 28,
			Data: []byte(`{"text":"Certificate of completion"}`),
		},
		{
			PageID: page.ID, Type: models.ElementTypeProgram, SortOrder: 3,
			PosX: 30, PosY: 80, FontSize: 18,
			Data: []byte(`{"display":"programname"}`),
		},
		{
			PageID: page.ID, Type: models.ElementTypeProgram, SortOrder: 4,
			PosX: 30, PosY: 110, FontSize: 14,
			Data: []byte(`{"display":"completedcourses"}`),
		},
		{
			PageID: page.ID, Type: models.ElementTypeQRCode, SortOrder: 5,
			PosX: 250, PosY: 160, Width: 35,
		},
	}
	for i := range elements {
		require.NoError(t, db.Create(&elements[i]).Error)
	}

	return tpl
}

func TestRenderPreviewSizeWindow(t *testing.T) {
	db := setupRendererTestDB(t)
	tpl := buildFixtureTemplate(t, db)

	renderer, err := NewRenderer(db, "https://certs.example.com/verify")
	require.NoError(t, err)

	out, err := renderer.RenderPreview(context.Background(), tpl)
	require.NoError(t, err)

	require.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	require.Greater(t, len(out), minPDFSize)
	require.Less(t, len(out), maxPDFSize)
}

func TestRenderIssueSizeWindow(t *testing.T) {
	db := setupRendererTestDB(t)
	tpl := buildFixtureTemplate(t, db)

	issue := &models.Issue{
		TemplateID: tpl.ID,
		UserID:     "recipient",
		Code:       "RENDER0001",
		Data:       []byte(`{"programname":"Induction Program","completedcourses":"Course 1<br>Course 2"}`),
	}
	require.NoError(t, db.Create(issue).Error)

	renderer, err := NewRenderer(db, "https://certs.example.com/verify")
	require.NoError(t, err)

	out, err := renderer.Render(context.Background(), tpl, issue)
	require.NoError(t, err)

	require.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	require.Greater(t, len(out), minPDFSize)
	require.Less(t, len(out), maxPDFSize)
}

func TestRenderRequiresPages(t *testing.T) {
	db := setupRendererTestDB(t)

	scope := &models.Scope{Level: models.ScopeSystem}
	require.NoError(t, db.Create(scope).Error)
	tpl := &models.Template{Name: "Empty", ScopeID: scope.ID}
	require.NoError(t, db.Create(tpl).Error)

	renderer, err := NewRenderer(db, "https://certs.example.com/verify")
	require.NoError(t, err)

	_, err = renderer.RenderPreview(context.Background(), tpl)
	require.Error(t, err)
}

func TestRenderSkipsUnknownElementTypes(t *testing.T) {
	db := setupRendererTestDB(t)

	scope := &models.Scope{Level: models.ScopeSystem}
	require.NoError(t, db.Create(scope).Error)
	tpl := &models.Template{Name: "Odd", ScopeID: scope.ID}
	require.NoError(t, db.Create(tpl).Error)
	page := &models.Page{TemplateID: tpl.ID, Width: 210, Height: 297}
	require.NoError(t, db.Create(page).Error)
	require.NoError(t, db.Create(&models.Element{
		PageID: page.ID, Type: "hologram", Data: []byte(`{}`),
	}).Error)

	renderer, err := NewRenderer(db, "https://certs.example.com/verify")
	require.NoError(t, err)

	out, err := renderer.RenderPreview(context.Background(), tpl)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
