package capability

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/kruetob/moodle-tool-certificate/internal/models"
)

// Checker answers whether a user holds a capability at a scope. The permission
// gate depends on this interface so tests can substitute their own engine.
type Checker interface {
	HasCapability(ctx context.Context, userID, capabilityID, scopeID string) (bool, error)
	HasAnyCapability(ctx context.Context, userID string, capabilityIDs []string, scopeID string) (bool, error)
}

// Service evaluates capability grants against the database. A grant on a scope
// covers the scope itself and every descendant; root users hold everything.
type Service struct {
	db *gorm.DB
}

// NewService constructs a capability service backed by the provided database.
func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, errors.New("capability service: db is required")
	}
	return &Service{db: db}, nil
}

// HasCapability determines whether the user holds the capability at the scope
// or at any of its ancestors.
func (s *Service) HasCapability(ctx context.Context, userID, capabilityID, scopeID string) (bool, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, errors.New("capability service: user id is required")
	}
	capabilityID = strings.TrimSpace(capabilityID)
	if _, ok := Get(capabilityID); !ok {
		return false, fmt.Errorf("%w %q", ErrUnknown, capabilityID)
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return false, fmt.Errorf("capability service: load user: %w", err)
	}
	if user.IsRoot {
		return true, nil
	}

	scopeIDs, err := s.scopeAncestry(ctx, scopeID)
	if err != nil {
		return false, err
	}

	var count int64
	err = s.db.WithContext(ctx).
		Model(&models.CapabilityAssignment{}).
		Where("user_id = ? AND capability = ? AND scope_id IN ?", userID, capabilityID, scopeIDs).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("capability service: count grants: %w", err)
	}

	return count > 0, nil
}

// HasAnyCapability reports whether the user holds at least one of the listed
// capabilities at the scope.
func (s *Service) HasAnyCapability(ctx context.Context, userID string, capabilityIDs []string, scopeID string) (bool, error) {
	for _, id := range capabilityIDs {
		ok, err := s.HasCapability(ctx, userID, id, scopeID)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Grant assigns a capability to a user at a scope. Granting twice is a no-op.
func (s *Service) Grant(ctx context.Context, userID, capabilityID, scopeID string) error {
	ctx = ensureContext(ctx)

	if _, ok := Get(capabilityID); !ok {
		return fmt.Errorf("%w %q", ErrUnknown, capabilityID)
	}

	assignment := models.CapabilityAssignment{
		UserID:     userID,
		Capability: capabilityID,
		ScopeID:    scopeID,
	}
	return s.db.WithContext(ctx).
		Where(models.CapabilityAssignment{UserID: userID, Capability: capabilityID, ScopeID: scopeID}).
		FirstOrCreate(&assignment).Error
}

// Revoke removes a capability grant; absent grants are not an error.
func (s *Service) Revoke(ctx context.Context, userID, capabilityID, scopeID string) error {
	ctx = ensureContext(ctx)

	return s.db.WithContext(ctx).
		Where("user_id = ? AND capability = ? AND scope_id = ?", userID, capabilityID, scopeID).
		Delete(&models.CapabilityAssignment{}).Error
}

func (s *Service) scopeAncestry(ctx context.Context, scopeID string) ([]string, error) {
	scopeID = strings.TrimSpace(scopeID)
	if scopeID == "" {
		return nil, errors.New("capability service: scope id is required")
	}

	var scope models.Scope
	if err := s.db.WithContext(ctx).First(&scope, "id = ?", scopeID).Error; err != nil {
		return nil, fmt.Errorf("capability service: load scope: %w", err)
	}

	ids := scope.AncestorIDs()
	if len(ids) == 0 {
		ids = []string{scope.ID}
	}
	return ids, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
