package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/kruetob/moodle-tool-certificate/internal/capability"
	"github.com/kruetob/moodle-tool-certificate/internal/elements/program"
	"github.com/kruetob/moodle-tool-certificate/internal/models"
	"github.com/kruetob/moodle-tool-certificate/internal/permissions"
	apperrors "github.com/kruetob/moodle-tool-certificate/pkg/errors"
)

var (
	// ErrTemplateNotFound indicates the requested template does not exist.
	ErrTemplateNotFound = apperrors.New("TEMPLATE_NOT_FOUND", "Template not found", http.StatusNotFound)
	// ErrPageNotFound indicates the requested template page does not exist.
	ErrPageNotFound = apperrors.New("PAGE_NOT_FOUND", "Template page not found", http.StatusNotFound)
	// ErrTemplateHasIssues prevents deleting templates with issued certificates.
	ErrTemplateHasIssues = apperrors.New("TEMPLATE_HAS_ISSUES", "Template has issued certificates", http.StatusBadRequest)
)

// TemplateService manages certificate templates, their pages and elements.
// Every mutation is authorised through the permission gate.
type TemplateService struct {
	db   *gorm.DB
	gate *permissions.Gate
}

// NewTemplateService constructs a TemplateService.
func NewTemplateService(db *gorm.DB, gate *permissions.Gate) (*TemplateService, error) {
	if db == nil {
		return nil, errors.New("template service: db is required")
	}
	if gate == nil {
		return nil, errors.New("template service: permission gate is required")
	}
	return &TemplateService{db: db, gate: gate}, nil
}

// CreateTemplateInput describes the payload accepted by CreateTemplate.
type CreateTemplateInput struct {
	Name    string `json:"name" validate:"required"`
	ScopeID string `json:"scope_id" validate:"required"`
}

// CreateTemplate registers a new template in the given scope, with a single
// default page so the editor has something to place elements on.
func (s *TemplateService) CreateTemplate(ctx context.Context, actorID string, input CreateTemplateInput) (*models.Template, error) {
	ctx = ensureContext(ctx)

	if err := s.gate.RequireCanManage(ctx, actorID, input.ScopeID); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("template name is required")
	}

	template := &models.Template{Name: name, ScopeID: input.ScopeID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(template).Error; err != nil {
			return fmt.Errorf("template service: create template: %w", err)
		}
		page := &models.Page{TemplateID: template.ID, Width: 297, Height: 210}
		if err := tx.Create(page).Error; err != nil {
			return fmt.Errorf("template service: create default page: %w", err)
		}
		template.Pages = []models.Page{*page}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return template, nil
}

// GetTemplate loads a template with pages and elements in render order.
func (s *TemplateService) GetTemplate(ctx context.Context, templateID string) (*models.Template, error) {
	ctx = ensureContext(ctx)

	var template models.Template
	err := s.db.WithContext(ctx).
		Preload("Pages", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Preload("Pages.Elements", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		First(&template, "id = ?", templateID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("template service: load template: %w", err)
	}
	return &template, nil
}

// GetTemplateForViewer loads a template on behalf of a user. Users who cannot
// see templates in the owning scope are denied, so hidden categories stay
// hidden on direct reads too. Scope managers keep access either way.
func (s *TemplateService) GetTemplateForViewer(ctx context.Context, viewerID, templateID string) (*models.Template, error) {
	ctx = ensureContext(ctx)

	template, err := s.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}

	if !s.gate.CanViewTemplatesInScope(ctx, viewerID, template.ScopeID) &&
		!s.gate.CanManage(ctx, viewerID, template.ScopeID) {
		return nil, &permissions.AccessError{Capability: capability.ViewAll, ScopeID: template.ScopeID}
	}
	return template, nil
}

// ListVisibleTemplates returns the templates in every scope the user can see.
func (s *TemplateService) ListVisibleTemplates(ctx context.Context, userID string) ([]models.Template, error) {
	ctx = ensureContext(ctx)

	scopes, err := s.gate.VisibleCategoryScopes(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	if len(scopes) == 0 {
		return []models.Template{}, nil
	}

	var templates []models.Template
	err = s.db.WithContext(ctx).
		Where("scope_id IN ?", scopes).
		Order("name ASC").
		Find(&templates).Error
	if err != nil {
		return nil, fmt.Errorf("template service: list templates: %w", err)
	}
	return templates, nil
}

// PageInput describes a template page.
type PageInput struct {
	Width       int `json:"width" validate:"gte=0"`
	Height      int `json:"height" validate:"gte=0"`
	MarginLeft  int `json:"margin_left" validate:"gte=0"`
	MarginRight int `json:"margin_right" validate:"gte=0"`
}

// AddPage appends a page to the template.
func (s *TemplateService) AddPage(ctx context.Context, actorID, templateID string, input PageInput) (*models.Page, error) {
	ctx = ensureContext(ctx)

	template, err := s.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.RequireCanManage(ctx, actorID, template.ScopeID); err != nil {
		return nil, err
	}

	page := &models.Page{
		TemplateID:  template.ID,
		Width:       input.Width,
		Height:      input.Height,
		MarginLeft:  input.MarginLeft,
		MarginRight: input.MarginRight,
		SortOrder:   len(template.Pages) + 1,
	}
	if err := s.db.WithContext(ctx).Create(page).Error; err != nil {
		return nil, fmt.Errorf("template service: create page: %w", err)
	}
	return page, nil
}

// ElementInput describes an element placed on a page.
type ElementInput struct {
	Name     string  `json:"name"`
	Type     string  `json:"type" validate:"required"`
	Data     []byte  `json:"data"`
	PosX     int     `json:"posx" validate:"gte=0"`
	PosY     int     `json:"posy" validate:"gte=0"`
	Width    int     `json:"width" validate:"gte=0"`
	FontSize float64 `json:"font_size" validate:"gte=0"`
}

// AddElement appends an element to a page. Program element configurations are
// validated before they are persisted so a bad display mode fails here rather
// than at render time.
func (s *TemplateService) AddElement(ctx context.Context, actorID, pageID string, input ElementInput) (*models.Element, error) {
	ctx = ensureContext(ctx)

	var page models.Page
	err := s.db.WithContext(ctx).First(&page, "id = ?", pageID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("template service: load page: %w", err)
	}

	template, err := s.GetTemplate(ctx, page.TemplateID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.RequireCanManage(ctx, actorID, template.ScopeID); err != nil {
		return nil, err
	}

	data := input.Data
	if input.Type == models.ElementTypeProgram {
		formatter, err := program.NewFromJSON(input.Data)
		if err != nil {
			return nil, apperrors.NewBadRequest(err.Error())
		}
		// Persist the canonical form so legacy aliases do not survive saving.
		data, err = formatter.Config()
		if err != nil {
			return nil, fmt.Errorf("template service: encode element config: %w", err)
		}
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Element{}).Where("page_id = ?", pageID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("template service: count elements: %w", err)
	}

	element := &models.Element{
		PageID:    page.ID,
		Name:      strings.TrimSpace(input.Name),
		Type:      input.Type,
		Data:      data,
		PosX:      input.PosX,
		PosY:      input.PosY,
		Width:     input.Width,
		FontSize:  input.FontSize,
		SortOrder: int(count) + 1,
	}
	if err := s.db.WithContext(ctx).Create(element).Error; err != nil {
		return nil, fmt.Errorf("template service: create element: %w", err)
	}
	return element, nil
}

// DuplicateTemplate copies a template with all pages and elements into the
// same scope.
func (s *TemplateService) DuplicateTemplate(ctx context.Context, actorID, templateID string) (*models.Template, error) {
	ctx = ensureContext(ctx)

	source, err := s.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.RequireCanManage(ctx, actorID, source.ScopeID); err != nil {
		return nil, err
	}

	dup := &models.Template{
		Name:    source.Name + " (copy)",
		ScopeID: source.ScopeID,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(dup).Error; err != nil {
			return fmt.Errorf("template service: duplicate template: %w", err)
		}
		for _, page := range source.Pages {
			newPage := models.Page{
				TemplateID:  dup.ID,
				Width:       page.Width,
				Height:      page.Height,
				MarginLeft:  page.MarginLeft,
				MarginRight: page.MarginRight,
				SortOrder:   page.SortOrder,
			}
			if err := tx.Create(&newPage).Error; err != nil {
				return fmt.Errorf("template service: duplicate page: %w", err)
			}
			for _, element := range page.Elements {
				newElement := models.Element{
					PageID:    newPage.ID,
					Name:      element.Name,
					Type:      element.Type,
					Data:      element.Data,
					PosX:      element.PosX,
					PosY:      element.PosY,
					Width:     element.Width,
					FontSize:  element.FontSize,
					SortOrder: element.SortOrder,
				}
				if err := tx.Create(&newElement).Error; err != nil {
					return fmt.Errorf("template service: duplicate element: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetTemplate(ctx, dup.ID)
}

// DeleteTemplate removes a template with its pages and elements. Templates
// with issued certificates cannot be deleted; revoke the issues first.
func (s *TemplateService) DeleteTemplate(ctx context.Context, actorID, templateID string) error {
	ctx = ensureContext(ctx)

	template, err := s.GetTemplate(ctx, templateID)
	if err != nil {
		return err
	}
	if err := s.gate.RequireCanManage(ctx, actorID, template.ScopeID); err != nil {
		return err
	}

	var issued int64
	if err := s.db.WithContext(ctx).Model(&models.Issue{}).Where("template_id = ?", templateID).Count(&issued).Error; err != nil {
		return fmt.Errorf("template service: count issues: %w", err)
	}
	if issued > 0 {
		return ErrTemplateHasIssues
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pageIDs := make([]string, 0, len(template.Pages))
		for _, page := range template.Pages {
			pageIDs = append(pageIDs, page.ID)
		}
		if len(pageIDs) > 0 {
			if err := tx.Where("page_id IN ?", pageIDs).Delete(&models.Element{}).Error; err != nil {
				return fmt.Errorf("template service: delete elements: %w", err)
			}
			if err := tx.Where("id IN ?", pageIDs).Delete(&models.Page{}).Error; err != nil {
				return fmt.Errorf("template service: delete pages: %w", err)
			}
		}
		if err := tx.Delete(&models.Template{}, "id = ?", templateID).Error; err != nil {
			return fmt.Errorf("template service: delete template: %w", err)
		}
		return nil
	})
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
