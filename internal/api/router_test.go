package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kruetob/moodle-tool-certificate/internal/app"
	iauth "github.com/kruetob/moodle-tool-certificate/internal/auth"
	"github.com/kruetob/moodle-tool-certificate/internal/database"
	"github.com/kruetob/moodle-tool-certificate/internal/models"
)

func setupRouter(t *testing.T) (*gin.Engine, *gorm.DB, *iauth.AuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrateAndSeed(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "test-secret",
		Issuer:         "test",
		AccessTokenTTL: 15 * time.Minute,
	})
	require.NoError(t, err)

	cfg := &app.Config{}
	cfg.Monitoring.Health.Enabled = true
	cfg.Monitoring.Prometheus.Enabled = true
	cfg.Verification.BaseURL = "http://localhost/verify"

	router, err := NewRouter(db, jwtSvc, cfg)
	require.NoError(t, err)

	authService, err := iauth.NewAuthService(db, jwtSvc)
	require.NoError(t, err)

	return router, db, authService
}

func TestRouterPublicAndProtectedRoutes(t *testing.T) {
	router, _, _ := setupRouter(t)

	// Health should be public
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	// Protected endpoints without auth should be 401
	for _, path := range []string{"/api/templates", "/api/issues", "/api/permissions/overview"} {
		w = httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusUnauthorized, w.Code, path)
	}

	// Unknown routes return a JSON 404
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouterLoginAndAuthenticatedFlow(t *testing.T) {
	router, _, authService := setupRouter(t)

	_, err := authService.Register(context.Background(), iauth.RegisterInput{
		Username: "router-root",
		Email:    "router-root@example.com",
		Password: "opensesame123",
	})
	require.NoError(t, err)

	body, err := json.Marshal(map[string]string{
		"username": "router-root",
		"password": "opensesame123",
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.True(t, envelope.Success)
	require.NotEmpty(t, envelope.Data.Token)

	// The first registered account is root, so the overview reports full access.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/permissions/overview", nil)
	req.Header.Set("Authorization", "Bearer "+envelope.Data.Token)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"can_manage_anywhere":true`)

	// Wrong password is rejected uniformly.
	body, err = json.Marshal(map[string]string{
		"username": "router-root",
		"password": "wrong",
	})
	require.NoError(t, err)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouterCertificateLifecycle(t *testing.T) {
	router, db, authService := setupRouter(t)
	ctx := context.Background()

	root, err := authService.Register(ctx, iauth.RegisterInput{
		Username: "lifecycle-root",
		Email:    "lifecycle-root@example.com",
		Password: "opensesame123",
	})
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", root.ID).Update("is_root", true).Error)

	student, err := authService.Register(ctx, iauth.RegisterInput{
		Username: "lifecycle-student",
		Email:    "lifecycle-student@example.com",
		Password: "opensesame123",
	})
	require.NoError(t, err)

	token := login(t, router, "lifecycle-root", "opensesame123")

	// Create a category under the system scope.
	scope := postJSON(t, router, token, "/api/scopes/categories", map[string]any{
		"name": "Lifecycle",
	}, http.StatusCreated)

	// Create a template in that category.
	template := postJSON(t, router, token, "/api/templates", map[string]any{
		"name":     "Lifecycle certificate",
		"scope_id": scope["id"],
	}, http.StatusCreated)

	// Issue it to the student.
	issue := postJSON(t, router, token, "/api/templates/"+template["id"].(string)+"/issues", map[string]any{
		"user_id": student.ID,
		"data":    map[string]string{"certificationname": "Lifecycle"},
	}, http.StatusCreated)
	code, _ := issue["code"].(string)
	require.Len(t, code, 10)

	// Verify the public code.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/verify/"+code, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"success":true`)

	// The student sees their own certificate list.
	studentToken := login(t, router, "lifecycle-student", "opensesame123")
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/issues", nil)
	req.Header.Set("Authorization", "Bearer "+studentToken)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), code)

	// But reading the template directly needs viewing rights in its scope.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/templates/"+template["id"].(string), nil)
	req.Header.Set("Authorization", "Bearer "+studentToken)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func login(t *testing.T, router *gin.Engine, username, password string) string {
	t.Helper()

	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotEmpty(t, envelope.Data.Token)
	return envelope.Data.Token
}

func postJSON(t *testing.T, router *gin.Engine, token, path string, payload any, wantStatus int) map[string]any {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	require.Equal(t, wantStatus, w.Code, w.Body.String())

	var envelope struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Data
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router, _, _ := setupRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	metricsRec := httptest.NewRecorder()
	router.ServeHTTP(metricsRec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, metricsRec.Code)
	require.True(t, strings.Contains(metricsRec.Body.String(), "certificate_api_latency_seconds"))
}

func TestRouterImageManagement(t *testing.T) {
	router, db, authService := setupRouter(t)
	ctx := context.Background()

	admin, err := authService.Register(ctx, iauth.RegisterInput{
		Username: "image-admin",
		Email:    "image-admin@example.com",
		Password: "opensesame123",
	})
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", admin.ID).Update("is_root", true).Error)

	_, err = authService.Register(ctx, iauth.RegisterInput{
		Username: "image-student",
		Email:    "image-student@example.com",
		Password: "opensesame123",
	})
	require.NoError(t, err)

	adminToken := login(t, router, "image-admin", "opensesame123")
	studentToken := login(t, router, "image-student", "opensesame123")

	payload := map[string]any{
		"name":      "Seal",
		"mime_type": "image/png",
		"content":   base64.StdEncoding.EncodeToString([]byte("png-bytes")),
	}
	image := postJSON(t, router, adminToken, "/api/images", payload, http.StatusCreated)
	require.Equal(t, "Seal", image["name"])

	// Uploading needs the image-management capability.
	postJSON(t, router, studentToken, "/api/images", payload, http.StatusForbidden)

	// The library itself is readable by any signed-in user.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/images", nil)
	req.Header.Set("Authorization", "Bearer "+studentToken)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Seal")
}
