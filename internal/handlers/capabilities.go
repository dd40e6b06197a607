package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kruetob/moodle-tool-certificate/internal/capability"
	"github.com/kruetob/moodle-tool-certificate/internal/middleware"
	"github.com/kruetob/moodle-tool-certificate/internal/permissions"
	apperrors "github.com/kruetob/moodle-tool-certificate/pkg/errors"
	"github.com/kruetob/moodle-tool-certificate/pkg/response"
)

// CapabilityHandler administers capability grants. Only users who can manage
// the target scope may change grants there.
type CapabilityHandler struct {
	caps *capability.Service
	gate *permissions.Gate
}

func NewCapabilityHandler(caps *capability.Service, gate *permissions.Gate) *CapabilityHandler {
	return &CapabilityHandler{caps: caps, gate: gate}
}

// GET /api/capabilities
func (h *CapabilityHandler) Registry(c *gin.Context) {
	ids := capability.All()
	defs := make([]gin.H, 0, len(ids))
	for _, id := range ids {
		def, ok := capability.Get(id)
		if !ok {
			continue
		}
		defs = append(defs, gin.H{
			"id":          def.ID,
			"component":   def.Component,
			"description": def.Description,
			"depends_on":  def.DependsOn,
		})
	}
	response.Success(c, http.StatusOK, defs)
}

type grantRequest struct {
	UserID       string `json:"user_id" validate:"required"`
	CapabilityID string `json:"capability_id" validate:"required"`
	ScopeID      string `json:"scope_id" validate:"required"`
}

// POST /api/capabilities/grant
func (h *CapabilityHandler) Grant(c *gin.Context) {
	var req grantRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := c.Request.Context()
	if err := h.gate.RequireCanManage(ctx, middleware.UserID(c), req.ScopeID); err != nil {
		response.Error(c, err)
		return
	}

	if err := h.caps.Grant(ctx, req.UserID, req.CapabilityID, req.ScopeID); err != nil {
		if errors.Is(err, capability.ErrUnknown) {
			response.Error(c, apperrors.NewBadRequest(err.Error()))
			return
		}
		response.Error(c, err)
		return
	}

	// Grants change what the user can see, so their cached scope list is stale.
	if err := h.gate.InvalidateVisibleScopes(ctx, req.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"granted": true})
}

// POST /api/capabilities/revoke
func (h *CapabilityHandler) Revoke(c *gin.Context) {
	var req grantRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := c.Request.Context()
	if err := h.gate.RequireCanManage(ctx, middleware.UserID(c), req.ScopeID); err != nil {
		response.Error(c, err)
		return
	}

	if err := h.caps.Revoke(ctx, req.UserID, req.CapabilityID, req.ScopeID); err != nil {
		response.Error(c, err)
		return
	}

	if err := h.gate.InvalidateVisibleScopes(ctx, req.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}
