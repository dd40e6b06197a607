package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kruetob/moodle-tool-certificate/internal/middleware"
	"github.com/kruetob/moodle-tool-certificate/internal/pdf"
	"github.com/kruetob/moodle-tool-certificate/internal/services"
	"github.com/kruetob/moodle-tool-certificate/pkg/metrics"
	"github.com/kruetob/moodle-tool-certificate/pkg/response"
)

// IssueHandler exposes certificate issuing, listing and PDF download.
type IssueHandler struct {
	issues   *services.IssueService
	renderer *pdf.Renderer
}

func NewIssueHandler(issues *services.IssueService, renderer *pdf.Renderer) *IssueHandler {
	return &IssueHandler{issues: issues, renderer: renderer}
}

// POST /api/templates/:id/issues
func (h *IssueHandler) Issue(c *gin.Context) {
	var req services.IssueInput
	if !bindAndValidate(c, &req) {
		return
	}
	req.TemplateID = c.Param("id")

	issue, err := h.issues.IssueCertificate(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	metrics.CertificatesIssued.WithLabelValues(req.TemplateID).Inc()
	response.Success(c, http.StatusCreated, issue)
}

// GET /api/issues?user_id=...
func (h *IssueHandler) List(c *gin.Context) {
	viewerID := middleware.UserID(c)
	targetID := c.Query("user_id")
	if targetID == "" {
		targetID = viewerID
	}

	issues, err := h.issues.ListIssuesForUser(c.Request.Context(), viewerID, targetID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, issues)
}

// DELETE /api/issues/:id
func (h *IssueHandler) Revoke(c *gin.Context) {
	if err := h.issues.RevokeIssue(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

// GET /api/issues/:code/pdf
func (h *IssueHandler) DownloadPDF(c *gin.Context) {
	ctx := c.Request.Context()

	issue, err := h.issues.GetIssueForViewer(ctx, middleware.UserID(c), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}

	document, err := h.renderer.Render(ctx, issue.Template, issue)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="certificate-`+issue.Code+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", document)
}
