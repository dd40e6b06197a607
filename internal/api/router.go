package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/kruetob/moodle-tool-certificate/internal/app"
	iauth "github.com/kruetob/moodle-tool-certificate/internal/auth"
	"github.com/kruetob/moodle-tool-certificate/internal/cache"
	"github.com/kruetob/moodle-tool-certificate/internal/capability"
	"github.com/kruetob/moodle-tool-certificate/internal/database"
	"github.com/kruetob/moodle-tool-certificate/internal/handlers"
	"github.com/kruetob/moodle-tool-certificate/internal/middleware"
	"github.com/kruetob/moodle-tool-certificate/internal/pdf"
	"github.com/kruetob/moodle-tool-certificate/internal/permissions"
	"github.com/kruetob/moodle-tool-certificate/internal/services"
	apperrors "github.com/kruetob/moodle-tool-certificate/pkg/errors"
	"github.com/kruetob/moodle-tool-certificate/pkg/response"
)

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	caps, err := capability.NewService(db)
	if err != nil {
		return nil, err
	}

	store := cache.NewDatabaseStore(db)
	gate, err := permissions.NewGate(db, caps, store)
	if err != nil {
		return nil, err
	}

	templateService, err := services.NewTemplateService(db, gate)
	if err != nil {
		return nil, err
	}
	issueService, err := services.NewIssueService(db, gate)
	if err != nil {
		return nil, err
	}
	verifyService, err := services.NewVerifyService(db, gate)
	if err != nil {
		return nil, err
	}
	authService, err := iauth.NewAuthService(db, jwt)
	if err != nil {
		return nil, err
	}

	renderer, err := pdf.NewRenderer(db, cfg.Verification.BaseURL)
	if err != nil {
		return nil, err
	}

	system, err := database.EnsureSystemScope(db)
	if err != nil {
		return nil, err
	}
	systemScope := func(*gin.Context) (string, error) {
		return system.ID, nil
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	// Health endpoint (public)
	if cfg.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health())
	}

	authHandler := handlers.NewAuthHandler(authService)

	// Public auth routes
	auth := r.Group("/api/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/register", authHandler.Register)
	}

	requireAuth := middleware.Auth(jwt)

	api := r.Group("/api")
	api.Use(requireAuth)

	// Templates
	templateHandler := handlers.NewTemplateHandler(templateService, renderer)
	templates := api.Group("/templates")
	{
		templates.GET("", templateHandler.List)
		templates.GET("/:id", templateHandler.Get)
		templates.POST("", templateHandler.Create)
		templates.POST("/:id/pages", templateHandler.AddPage)
		templates.POST("/:id/duplicate", templateHandler.Duplicate)
		templates.GET("/:id/preview.pdf", templateHandler.PreviewPDF)
		templates.DELETE("/:id", templateHandler.Delete)
	}

	// Elements live under their page
	api.POST("/pages/:id/elements", templateHandler.AddElement)

	// Issues
	issueHandler := handlers.NewIssueHandler(issueService, renderer)
	templates.POST("/:id/issues", issueHandler.Issue)
	issues := api.Group("/issues")
	{
		issues.GET("", issueHandler.List)
		issues.DELETE("/:id", issueHandler.Revoke)
		issues.GET("/:code/pdf", issueHandler.DownloadPDF)
	}

	// Verification
	verifyHandler := handlers.NewVerifyHandler(verifyService)
	api.GET("/verify/:code", verifyHandler.Verify)

	// Capability overview for the admin UI
	permissionHandler := handlers.NewPermissionHandler(gate)
	perms := api.Group("/permissions")
	{
		perms.GET("/overview", permissionHandler.Overview)
		perms.GET("/scopes/:id", permissionHandler.ScopeOverview)
	}

	// Capability administration
	capabilityHandler := handlers.NewCapabilityHandler(caps, gate)
	capabilities := api.Group("/capabilities")
	{
		capabilities.GET("", capabilityHandler.Registry)
		capabilities.POST("/grant", capabilityHandler.Grant)
		capabilities.POST("/revoke", capabilityHandler.Revoke)
	}

	// Scope tree
	scopeHandler := handlers.NewScopeHandler(db, gate)
	scopes := api.Group("/scopes")
	{
		scopes.GET("", scopeHandler.List)
		scopes.POST("/categories", scopeHandler.CreateCategory)
	}

	// Shared image library. Mutations need the image-management capability at
	// system scope.
	imageHandler := handlers.NewImageHandler(db)
	manageImages := middleware.RequireCapability(caps, capability.ManageImages, systemScope)
	images := api.Group("/images")
	{
		images.GET("", imageHandler.List)
		images.POST("", manageImages, imageHandler.Upload)
		images.DELETE("/:id", manageImages, imageHandler.Delete)
	}

	// Metrics endpoint
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// NotFound fallback
	r.NoRoute(func(c *gin.Context) {
		response.Error(c, apperrors.ErrNotFound)
	})

	return r, nil
}
