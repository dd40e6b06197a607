package handlers

import (
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/kruetob/moodle-tool-certificate/internal/models"
	apperrors "github.com/kruetob/moodle-tool-certificate/pkg/errors"
	"github.com/kruetob/moodle-tool-certificate/pkg/response"
)

// ImageHandler manages the shared image library used by image elements.
// Mutations are guarded by the image-management capability middleware on the
// route group.
type ImageHandler struct {
	db *gorm.DB
}

func NewImageHandler(db *gorm.DB) *ImageHandler {
	return &ImageHandler{db: db}
}

type uploadImageRequest struct {
	Name     string `json:"name" validate:"required"`
	MimeType string `json:"mime_type" validate:"required"`
	Content  string `json:"content" validate:"required"` // base64
}

// GET /api/images
func (h *ImageHandler) List(c *gin.Context) {
	var images []models.SharedImage
	err := h.db.WithContext(c.Request.Context()).Order("name").Find(&images).Error
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, images)
}

// POST /api/images
func (h *ImageHandler) Upload(c *gin.Context) {
	ctx := c.Request.Context()

	var req uploadImageRequest
	if !bindAndValidate(c, &req) {
		return
	}

	content, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		response.Error(c, apperrors.NewBadRequest("content must be base64 encoded"))
		return
	}

	image := &models.SharedImage{
		Name:     req.Name,
		MimeType: req.MimeType,
		Content:  content,
	}
	if err := h.db.WithContext(ctx).Create(image).Error; err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, image)
}

// DELETE /api/images/:id
func (h *ImageHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	result := h.db.WithContext(ctx).Delete(&models.SharedImage{}, "id = ?", c.Param("id"))
	if result.Error != nil {
		response.Error(c, result.Error)
		return
	}
	if result.RowsAffected == 0 {
		response.Error(c, apperrors.ErrNotFound)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
