package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kruetob/moodle-tool-certificate/internal/capability"
	"github.com/kruetob/moodle-tool-certificate/pkg/errors"
	"github.com/kruetob/moodle-tool-certificate/pkg/metrics"
	"github.com/kruetob/moodle-tool-certificate/pkg/response"
)

// ScopeResolver maps a request to the scope the capability must hold in.
type ScopeResolver func(c *gin.Context) (string, error)

// RequireCapability checks that the authenticated user holds the capability
// at the scope the resolver yields for the request.
func RequireCapability(checker capability.Checker, capabilityID string, resolve ScopeResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := UserID(c)
		if userID == "" {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		scopeID, err := resolve(c)
		if err != nil {
			metrics.CapabilityChecks.WithLabelValues(capabilityID, "error").Inc()
			response.Error(c, err)
			c.Abort()
			return
		}

		allowed, err := checker.HasCapability(c.Request.Context(), userID, capabilityID, scopeID)
		if err != nil {
			metrics.CapabilityChecks.WithLabelValues(capabilityID, "error").Inc()
			response.Error(c, errors.ErrInternalServer)
			c.Abort()
			return
		}
		if !allowed {
			metrics.CapabilityChecks.WithLabelValues(capabilityID, "deny").Inc()
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}

		metrics.CapabilityChecks.WithLabelValues(capabilityID, "allow").Inc()
		c.Next()
	}
}
