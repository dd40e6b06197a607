package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kruetob/moodle-tool-certificate/internal/middleware"
	"github.com/kruetob/moodle-tool-certificate/internal/permissions"
	"github.com/kruetob/moodle-tool-certificate/pkg/response"
)

// PermissionHandler answers capability queries for the current user so the
// frontend can decide which parts of the admin UI to offer.
type PermissionHandler struct {
	gate *permissions.Gate
}

func NewPermissionHandler(gate *permissions.Gate) *PermissionHandler {
	return &PermissionHandler{gate: gate}
}

// GET /api/permissions/overview
func (h *PermissionHandler) Overview(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.UserID(c)

	visible, err := h.gate.VisibleCategoryScopes(ctx, userID, true)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"can_manage_anywhere": h.gate.CanManageAnywhere(ctx, userID),
		"can_create":          h.gate.CanCreate(ctx, userID),
		"can_view_admin_tree": h.gate.CanViewAdminTree(ctx, userID),
		"can_verify":          h.gate.CanVerify(ctx, userID),
		"can_manage_images":   h.gate.CanManageImages(ctx, userID),
		"visible_scope_ids":   visible,
	})
}

// GET /api/permissions/scopes/:id
func (h *PermissionHandler) ScopeOverview(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.UserID(c)
	scopeID := c.Param("id")

	response.Success(c, http.StatusOK, gin.H{
		"can_manage":         h.gate.CanManage(ctx, userID, scopeID),
		"can_issue":          h.gate.CanIssueToAnybody(ctx, userID, scopeID),
		"can_view_templates": h.gate.CanViewTemplatesInScope(ctx, userID, scopeID),
	})
}
