package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kruetob/moodle-tool-certificate/internal/middleware"
	"github.com/kruetob/moodle-tool-certificate/internal/pdf"
	"github.com/kruetob/moodle-tool-certificate/internal/services"
	"github.com/kruetob/moodle-tool-certificate/pkg/response"
)

// TemplateHandler exposes template management over HTTP.
type TemplateHandler struct {
	templates *services.TemplateService
	renderer  *pdf.Renderer
}

func NewTemplateHandler(templates *services.TemplateService, renderer *pdf.Renderer) *TemplateHandler {
	return &TemplateHandler{templates: templates, renderer: renderer}
}

// GET /api/templates
func (h *TemplateHandler) List(c *gin.Context) {
	templates, err := h.templates.ListVisibleTemplates(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, templates)
}

// GET /api/templates/:id
func (h *TemplateHandler) Get(c *gin.Context) {
	template, err := h.templates.GetTemplateForViewer(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, template)
}

// POST /api/templates
func (h *TemplateHandler) Create(c *gin.Context) {
	var req services.CreateTemplateInput
	if !bindAndValidate(c, &req) {
		return
	}

	template, err := h.templates.CreateTemplate(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, template)
}

// POST /api/templates/:id/pages
func (h *TemplateHandler) AddPage(c *gin.Context) {
	var req services.PageInput
	if !bindAndValidate(c, &req) {
		return
	}

	page, err := h.templates.AddPage(c.Request.Context(), middleware.UserID(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, page)
}

// POST /api/pages/:id/elements
func (h *TemplateHandler) AddElement(c *gin.Context) {
	var req services.ElementInput
	if !bindAndValidate(c, &req) {
		return
	}

	element, err := h.templates.AddElement(c.Request.Context(), middleware.UserID(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, element)
}

// POST /api/templates/:id/duplicate
func (h *TemplateHandler) Duplicate(c *gin.Context) {
	template, err := h.templates.DuplicateTemplate(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, template)
}

// GET /api/templates/:id/preview.pdf
func (h *TemplateHandler) PreviewPDF(c *gin.Context) {
	ctx := c.Request.Context()

	template, err := h.templates.GetTemplateForViewer(ctx, middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	document, err := h.renderer.RenderPreview(ctx, template)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `inline; filename="preview.pdf"`)
	c.Data(http.StatusOK, "application/pdf", document)
}

// DELETE /api/templates/:id
func (h *TemplateHandler) Delete(c *gin.Context) {
	err := h.templates.DeleteTemplate(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true, "at": time.Now().UTC()})
}
