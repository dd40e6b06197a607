package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/kruetob/moodle-tool-certificate/internal/middleware"
	"github.com/kruetob/moodle-tool-certificate/internal/models"
	"github.com/kruetob/moodle-tool-certificate/internal/permissions"
	apperrors "github.com/kruetob/moodle-tool-certificate/pkg/errors"
	"github.com/kruetob/moodle-tool-certificate/pkg/response"
)

// ScopeHandler administers the scope tree and its categories.
type ScopeHandler struct {
	db   *gorm.DB
	gate *permissions.Gate
}

func NewScopeHandler(db *gorm.DB, gate *permissions.Gate) *ScopeHandler {
	return &ScopeHandler{db: db, gate: gate}
}

// GET /api/scopes
func (h *ScopeHandler) List(c *gin.Context) {
	var scopes []models.Scope
	err := h.db.WithContext(c.Request.Context()).Order("depth, path").Find(&scopes).Error
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, scopes)
}

type createCategoryRequest struct {
	Name     string  `json:"name" validate:"required"`
	Visible  *bool   `json:"visible"`
	ParentID *string `json:"parent_id"`
}

// POST /api/scopes/categories
func (h *ScopeHandler) CreateCategory(c *gin.Context) {
	var req createCategoryRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := c.Request.Context()

	var parent models.Scope
	if req.ParentID != nil {
		err := h.db.WithContext(ctx).First(&parent, "id = ?", *req.ParentID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Error(c, apperrors.NewBadRequest("parent scope does not exist"))
			return
		}
		if err != nil {
			response.Error(c, err)
			return
		}
	} else {
		err := h.db.WithContext(ctx).First(&parent, "level = ?", models.ScopeSystem).Error
		if err != nil {
			response.Error(c, err)
			return
		}
	}

	if err := h.gate.RequireCanManage(ctx, middleware.UserID(c), parent.ID); err != nil {
		response.Error(c, err)
		return
	}

	visible := true
	if req.Visible != nil {
		visible = *req.Visible
	}

	var scope models.Scope
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		category := models.Category{Name: req.Name, Visible: visible}
		if err := tx.Create(&category).Error; err != nil {
			return err
		}

		scope = models.Scope{
			Level:      models.ScopeCategory,
			InstanceID: category.ID,
			ParentID:   &parent.ID,
		}
		return tx.Create(&scope).Error
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, scope)
}
