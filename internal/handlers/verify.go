package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kruetob/moodle-tool-certificate/internal/middleware"
	"github.com/kruetob/moodle-tool-certificate/internal/services"
	"github.com/kruetob/moodle-tool-certificate/pkg/metrics"
	"github.com/kruetob/moodle-tool-certificate/pkg/response"
)

// VerifyHandler resolves public certificate codes.
type VerifyHandler struct {
	verify *services.VerifyService
}

func NewVerifyHandler(verify *services.VerifyService) *VerifyHandler {
	return &VerifyHandler{verify: verify}
}

// GET /api/verify/:code
func (h *VerifyHandler) Verify(c *gin.Context) {
	result, err := h.verify.Verify(c.Request.Context(), middleware.UserID(c), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}

	outcome := "not_found"
	if result.Issue != nil {
		outcome = "found"
	}
	metrics.Verifications.WithLabelValues(outcome).Inc()

	response.Success(c, http.StatusOK, result)
}
