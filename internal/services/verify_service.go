package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/kruetob/moodle-tool-certificate/internal/capability"
	"github.com/kruetob/moodle-tool-certificate/internal/models"
	"github.com/kruetob/moodle-tool-certificate/internal/permissions"
)

// VerificationResult is the outcome of checking a public certificate code.
type VerificationResult struct {
	Success bool          `json:"success"`
	Expired bool          `json:"expired"`
	Issue   *models.Issue `json:"issue,omitempty"`
}

// VerifyService answers whether a public certificate code is genuine.
type VerifyService struct {
	db   *gorm.DB
	gate *permissions.Gate
	now  func() time.Time
}

// NewVerifyService constructs a VerifyService.
func NewVerifyService(db *gorm.DB, gate *permissions.Gate) (*VerifyService, error) {
	if db == nil {
		return nil, errors.New("verify service: db is required")
	}
	if gate == nil {
		return nil, errors.New("verify service: permission gate is required")
	}
	return &VerifyService{db: db, gate: gate, now: time.Now}, nil
}

// Verify resolves a public code to its issue. An unknown code yields a
// failed result rather than an error; an expired issue is reported as found
// but not successful.
func (s *VerifyService) Verify(ctx context.Context, viewerID, code string) (*VerificationResult, error) {
	ctx = ensureContext(ctx)

	if !s.gate.CanVerify(ctx, viewerID) {
		return nil, &permissions.AccessError{Capability: capability.Verify}
	}

	issue, err := s.gate.IssueFromCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if issue == nil {
		return &VerificationResult{}, nil
	}

	expired := issue.Expired(s.now())
	return &VerificationResult{
		Success: !expired,
		Expired: expired,
		Issue:   issue,
	}, nil
}
