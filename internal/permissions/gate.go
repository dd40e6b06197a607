package permissions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kruetob/moodle-tool-certificate/internal/cache"
	"github.com/kruetob/moodle-tool-certificate/internal/capability"
	"github.com/kruetob/moodle-tool-certificate/internal/models"
	"github.com/kruetob/moodle-tool-certificate/pkg/logger"
)

const (
	visibleScopesKeyPrefix = "certificate:visible_scopes:"
	visibleScopesTTL       = 10 * time.Minute
)

// Gate answers authorization queries for the certificate tool by composing
// capability checks, template lookups and the shared cache. Can* methods never
// fail: unresolvable input degrades to false. Require* methods return an
// AccessError carrying the denied capability and scope.
type Gate struct {
	db      *gorm.DB
	caps    capability.Checker
	store   cache.Store
	orgs    OrganisationDirectory
	tenancy TenancyFilter
	log     *zap.Logger
}

// Option customises the Gate.
type Option func(*Gate)

// WithOrganisationDirectory plugs in an organisation integration.
func WithOrganisationDirectory(dir OrganisationDirectory) Option {
	return func(g *Gate) {
		if dir != nil {
			g.orgs = dir
		}
	}
}

// WithTenancyFilter plugs in a multi-tenancy integration.
func WithTenancyFilter(filter TenancyFilter) Option {
	return func(g *Gate) {
		if filter != nil {
			g.tenancy = filter
		}
	}
}

// NewGate constructs a permission gate. The cache store is optional; without
// it visible-scope queries are recomputed on every call.
func NewGate(db *gorm.DB, caps capability.Checker, store cache.Store, opts ...Option) (*Gate, error) {
	if db == nil {
		return nil, errors.New("permission gate: db is required")
	}
	if caps == nil {
		return nil, errors.New("permission gate: capability checker is required")
	}

	g := &Gate{
		db:      db,
		caps:    caps,
		store:   store,
		orgs:    noopOrganisationDirectory{},
		tenancy: noopTenancyFilter{},
		log:     logger.WithComponent("permissions"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// CanManage reports whether the user holds the manage capability at the scope.
func (g *Gate) CanManage(ctx context.Context, userID, scopeID string) bool {
	return g.has(ctx, userID, capability.Manage, scopeID)
}

// RequireCanManage fails with an AccessError when CanManage is false.
func (g *Gate) RequireCanManage(ctx context.Context, userID, scopeID string) error {
	if !g.CanManage(ctx, userID, scopeID) {
		return denied(capability.Manage, scopeID)
	}
	return nil
}

// CanIssueToAnybody reports whether the user may bulk-issue certificates at
// the scope.
func (g *Gate) CanIssueToAnybody(ctx context.Context, userID, scopeID string) bool {
	return g.has(ctx, userID, capability.Issue, scopeID)
}

// CanVerify reports whether the user may verify certificates. Verification is
// a system-scope capability only.
func (g *Gate) CanVerify(ctx context.Context, userID string) bool {
	system, err := g.systemScope(ctx)
	if err != nil {
		g.log.Debug("system scope lookup failed", zap.Error(err))
		return false
	}
	return g.has(ctx, userID, capability.Verify, system.ID)
}

// CanManageImages reports whether the user may manage shared images.
func (g *Gate) CanManageImages(ctx context.Context, userID string) bool {
	system, err := g.systemScope(ctx)
	if err != nil {
		g.log.Debug("system scope lookup failed", zap.Error(err))
		return false
	}
	return g.has(ctx, userID, capability.ManageImages, system.ID)
}

// CanManageAnywhere reports whether the user manages at system scope or in at
// least one category scope.
func (g *Gate) CanManageAnywhere(ctx context.Context, userID string) bool {
	system, err := g.systemScope(ctx)
	if err != nil {
		g.log.Debug("system scope lookup failed", zap.Error(err))
		return false
	}
	if g.has(ctx, userID, capability.Manage, system.ID) {
		return true
	}

	var scopeIDs []string
	err = g.db.WithContext(ctx).
		Model(&models.Scope{}).
		Where("level = ?", models.ScopeCategory).
		Pluck("id", &scopeIDs).Error
	if err != nil {
		g.log.Debug("category scope listing failed", zap.Error(err))
		return false
	}

	for _, id := range scopeIDs {
		if g.has(ctx, userID, capability.Manage, id) {
			return true
		}
	}
	return false
}

// CanCreate reports whether the user may create templates anywhere.
func (g *Gate) CanCreate(ctx context.Context, userID string) bool {
	return g.CanManageAnywhere(ctx, userID)
}

// RequireCanCreate fails with an AccessError when CanCreate is false.
func (g *Gate) RequireCanCreate(ctx context.Context, userID string) error {
	if !g.CanCreate(ctx, userID) {
		return denied(capability.Manage, "")
	}
	return nil
}

// CanViewAdminTree reports whether the certificate administration UI should be
// offered to the user at all.
func (g *Gate) CanViewAdminTree(ctx context.Context, userID string) bool {
	if g.CanManageAnywhere(ctx, userID) {
		return true
	}

	scopes, err := g.VisibleCategoryScopes(ctx, userID, true)
	if err != nil {
		g.log.Debug("visible scope computation failed", zap.Error(err))
		return false
	}
	return len(scopes) > 0
}

// VisibleCategoryScopes computes, for every system or category scope owning at
// least one template, whether the user may view templates there, and returns
// the sorted ids of the qualifying scopes. Results are cached per user;
// useCache=false forces recomputation and rewrites the cache entry. Concurrent
// writers compute the same value, so a populate race is benign.
func (g *Gate) VisibleCategoryScopes(ctx context.Context, userID string, useCache bool) ([]string, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("permission gate: user id is required")
	}

	key := visibleScopesKeyPrefix + userID
	if useCache && g.store != nil {
		if raw, found, err := g.store.Get(ctx, key); err == nil && found {
			var ids []string
			if err := json.Unmarshal(raw, &ids); err == nil {
				return ids, nil
			}
			// Malformed entry: fall through and recompute.
		}
	}

	var scopeIDs []string
	err := g.db.WithContext(ctx).
		Model(&models.Template{}).
		Distinct("scope_id").
		Pluck("scope_id", &scopeIDs).Error
	if err != nil {
		return nil, fmt.Errorf("permission gate: list template scopes: %w", err)
	}

	visible := make([]string, 0, len(scopeIDs))
	for _, id := range scopeIDs {
		if g.CanViewTemplatesInScope(ctx, userID, id) {
			visible = append(visible, id)
		}
	}
	sort.Strings(visible)

	if g.store != nil {
		raw, err := json.Marshal(visible)
		if err == nil {
			if err := g.store.Set(ctx, key, raw, visibleScopesTTL); err != nil {
				g.log.Debug("visible scope cache write failed", zap.Error(err))
			}
		}
	}

	return visible, nil
}

// CanViewTemplatesInScope reports whether templates owned by the scope are
// visible to the user. Category scopes whose category is missing or hidden are
// never visible.
func (g *Gate) CanViewTemplatesInScope(ctx context.Context, userID, scopeID string) bool {
	ctx = ensureContext(ctx)

	var scope models.Scope
	if err := g.db.WithContext(ctx).First(&scope, "id = ?", scopeID).Error; err != nil {
		g.log.Debug("scope lookup failed", zap.String("scope_id", scopeID), zap.Error(err))
		return false
	}

	switch scope.Level {
	case models.ScopeSystem:
		// Always a candidate.
	case models.ScopeCategory:
		var category models.Category
		err := g.db.WithContext(ctx).First(&category, "id = ?", scope.InstanceID).Error
		if err != nil || !category.Visible {
			return false
		}
	default:
		// Course-scoped templates are not supported yet.
		return false
	}

	ok, err := g.caps.HasAnyCapability(ctx, userID,
		[]string{capability.Issue, capability.Manage, capability.ViewAll}, scope.ID)
	if err != nil {
		g.log.Debug("capability check failed", zap.String("scope_id", scope.ID), zap.Error(err))
		return false
	}
	return ok
}

// IssueFromCode looks up an issue by its public code, template attached.
// A missing code yields nil without an error.
func (g *Gate) IssueFromCode(ctx context.Context, code string) (*models.Issue, error) {
	ctx = ensureContext(ctx)

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}

	var issue models.Issue
	err := g.db.WithContext(ctx).
		Preload("Template").
		First(&issue, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("permission gate: load issue: %w", err)
	}
	return &issue, nil
}

// CanViewList reports whether the viewer may list certificates issued to the
// target user.
func (g *Gate) CanViewList(ctx context.Context, viewerID, targetUserID string) bool {
	ctx = ensureContext(ctx)

	if viewerID != "" && viewerID == targetUserID {
		return true
	}

	if ok, err := g.orgs.IsManagerOverUser(ctx, viewerID, targetUserID); err == nil && ok {
		return true
	}

	system, err := g.systemScope(ctx)
	if err != nil {
		g.log.Debug("system scope lookup failed", zap.Error(err))
		return false
	}

	ok, err := g.caps.HasAnyCapability(ctx, viewerID,
		[]string{capability.ViewAll, capability.Issue}, system.ID)
	if err != nil || !ok {
		return false
	}

	hidden, err := g.tenancy.IsUserHidden(ctx, viewerID, targetUserID)
	if err != nil {
		g.log.Debug("tenancy check failed", zap.Error(err))
		return false
	}
	return !hidden
}

// CanViewIssue reports whether the viewer may see a single issued certificate.
// Templates without an identifier never expose their issues.
func (g *Gate) CanViewIssue(ctx context.Context, viewerID string, template *models.Template, issue *models.Issue) bool {
	ctx = ensureContext(ctx)

	if template == nil || template.ID == "" || issue == nil {
		return false
	}

	if viewerID != "" && issue.UserID == viewerID {
		return true
	}

	if ok, err := g.orgs.IsManagerOverUser(ctx, viewerID, issue.UserID); err == nil && ok {
		return true
	}

	ok, err := g.caps.HasAnyCapability(ctx, viewerID,
		[]string{capability.Issue, capability.ViewAll, capability.Manage}, template.ScopeID)
	if err != nil || !ok {
		return false
	}

	hidden, err := g.tenancy.IsUserHidden(ctx, viewerID, issue.UserID)
	if err != nil {
		g.log.Debug("tenancy check failed", zap.Error(err))
		return false
	}
	return !hidden
}

// InvalidateVisibleScopes drops the cached visible-scope entry for a user.
func (g *Gate) InvalidateVisibleScopes(ctx context.Context, userID string) error {
	if g.store == nil {
		return nil
	}
	return g.store.Delete(ensureContext(ctx), visibleScopesKeyPrefix+userID)
}

func (g *Gate) has(ctx context.Context, userID, capabilityID, scopeID string) bool {
	ok, err := g.caps.HasCapability(ensureContext(ctx), userID, capabilityID, scopeID)
	if err != nil {
		g.log.Debug("capability check failed",
			zap.String("capability", capabilityID),
			zap.String("scope_id", scopeID),
			zap.Error(err))
		return false
	}
	return ok
}

func (g *Gate) systemScope(ctx context.Context) (*models.Scope, error) {
	var scope models.Scope
	err := g.db.WithContext(ensureContext(ctx)).
		First(&scope, "level = ?", models.ScopeSystem).Error
	if err != nil {
		return nil, fmt.Errorf("permission gate: load system scope: %w", err)
	}
	return &scope, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
