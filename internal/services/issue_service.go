package services

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/kruetob/moodle-tool-certificate/internal/capability"
	"github.com/kruetob/moodle-tool-certificate/internal/models"
	"github.com/kruetob/moodle-tool-certificate/internal/permissions"
	apperrors "github.com/kruetob/moodle-tool-certificate/pkg/errors"
)

// ErrIssueNotFound indicates the requested issue does not exist.
var ErrIssueNotFound = apperrors.New("ISSUE_NOT_FOUND", "Issued certificate not found", http.StatusNotFound)

const (
	codeLength   = 10
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// A collision on a fresh random code is close to impossible; the retry
	// bound exists so a corrupt RNG cannot loop forever.
	codeAttempts = 10
)

// IssueService creates and manages issued certificates.
type IssueService struct {
	db   *gorm.DB
	gate *permissions.Gate
}

// NewIssueService constructs an IssueService.
func NewIssueService(db *gorm.DB, gate *permissions.Gate) (*IssueService, error) {
	if db == nil {
		return nil, errors.New("issue service: db is required")
	}
	if gate == nil {
		return nil, errors.New("issue service: permission gate is required")
	}
	return &IssueService{db: db, gate: gate}, nil
}

// IssueInput describes the payload accepted by IssueCertificate.
type IssueInput struct {
	TemplateID string            `json:"template_id" validate:"required"`
	UserID     string            `json:"user_id" validate:"required"`
	Data       map[string]string `json:"data"`
	ExpiresAt  *time.Time        `json:"expires_at"`
}

// IssueCertificate grants a certificate from a template to a user, assigning
// a unique public code.
func (s *IssueService) IssueCertificate(ctx context.Context, actorID string, input IssueInput) (*models.Issue, error) {
	ctx = ensureContext(ctx)

	var template models.Template
	err := s.db.WithContext(ctx).First(&template, "id = ?", input.TemplateID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("issue service: load template: %w", err)
	}

	if !s.gate.CanIssueToAnybody(ctx, actorID, template.ScopeID) {
		return nil, &permissions.AccessError{Capability: capability.Issue, ScopeID: template.ScopeID}
	}

	data, err := json.Marshal(input.Data)
	if err != nil {
		return nil, fmt.Errorf("issue service: encode custom data: %w", err)
	}

	issue := &models.Issue{
		TemplateID: template.ID,
		UserID:     input.UserID,
		ExpiresAt:  input.ExpiresAt,
		Data:       data,
	}

	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := generateCode()
		if err != nil {
			return nil, err
		}

		var exists int64
		if err := s.db.WithContext(ctx).Model(&models.Issue{}).Where("code = ?", code).Count(&exists).Error; err != nil {
			return nil, fmt.Errorf("issue service: check code: %w", err)
		}
		if exists > 0 {
			continue
		}

		issue.Code = code
		if err := s.db.WithContext(ctx).Create(issue).Error; err != nil {
			return nil, fmt.Errorf("issue service: create issue: %w", err)
		}
		return issue, nil
	}

	return nil, errors.New("issue service: could not allocate a unique code")
}

// ListIssuesForUser returns the certificates issued to the target user,
// newest first. The viewer must be allowed to see the target's list.
func (s *IssueService) ListIssuesForUser(ctx context.Context, viewerID, targetUserID string) ([]models.Issue, error) {
	ctx = ensureContext(ctx)

	if !s.gate.CanViewList(ctx, viewerID, targetUserID) {
		return nil, &permissions.AccessError{Capability: capability.ViewAll}
	}

	var issues []models.Issue
	err := s.db.WithContext(ctx).
		Preload("Template").
		Where("user_id = ?", targetUserID).
		Order("created_at DESC").
		Find(&issues).Error
	if err != nil {
		return nil, fmt.Errorf("issue service: list issues: %w", err)
	}
	return issues, nil
}

// GetIssueForViewer loads an issue by code and enforces view access.
func (s *IssueService) GetIssueForViewer(ctx context.Context, viewerID, code string) (*models.Issue, error) {
	ctx = ensureContext(ctx)

	issue, err := s.gate.IssueFromCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if issue == nil {
		return nil, ErrIssueNotFound
	}

	if !s.gate.CanViewIssue(ctx, viewerID, issue.Template, issue) {
		return nil, &permissions.AccessError{Capability: capability.ViewAll, ScopeID: issue.Template.ScopeID}
	}
	return issue, nil
}

// RevokeIssue deletes an issued certificate, invalidating its public code.
func (s *IssueService) RevokeIssue(ctx context.Context, actorID, issueID string) error {
	ctx = ensureContext(ctx)

	var issue models.Issue
	err := s.db.WithContext(ctx).Preload("Template").First(&issue, "id = ?", issueID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrIssueNotFound
	}
	if err != nil {
		return fmt.Errorf("issue service: load issue: %w", err)
	}

	if issue.Template == nil {
		return ErrTemplateNotFound
	}
	if err := s.gate.RequireCanManage(ctx, actorID, issue.Template.ScopeID); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Delete(&models.Issue{}, "id = ?", issueID).Error
}

func generateCode() (string, error) {
	// Rejection sampling keeps the alphabet uniform; a plain modulo would skew
	// towards its first characters.
	limit := byte(256 - 256%len(codeAlphabet))

	code := make([]byte, 0, codeLength)
	buf := make([]byte, codeLength)
	for len(code) < codeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("issue service: generate code: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			code = append(code, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(code) == codeLength {
				break
			}
		}
	}
	return string(code), nil
}
