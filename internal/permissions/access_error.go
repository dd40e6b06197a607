package permissions

import (
	"fmt"

	apperrors "github.com/kruetob/moodle-tool-certificate/pkg/errors"
)

// AccessError reports a denied enforcement check. It carries the capability
// and scope that were required so the failure can be diagnosed at the request
// boundary, and unwraps to the shared forbidden error for HTTP rendering.
type AccessError struct {
	Capability string
	ScopeID    string
}

func (e *AccessError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("permission denied: %s required at scope %s", e.Capability, e.ScopeID)
}

// Unwrap ties AccessError into the application error chain.
func (e *AccessError) Unwrap() error {
	return apperrors.ErrForbidden
}

func denied(capabilityID, scopeID string) *AccessError {
	return &AccessError{Capability: capabilityID, ScopeID: scopeID}
}
