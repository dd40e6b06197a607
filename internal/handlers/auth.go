package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	iauth "github.com/kruetob/moodle-tool-certificate/internal/auth"
	apperrors "github.com/kruetob/moodle-tool-certificate/pkg/errors"
	"github.com/kruetob/moodle-tool-certificate/pkg/metrics"
	"github.com/kruetob/moodle-tool-certificate/pkg/response"
)

// AuthHandler manages the login flow.
type AuthHandler struct {
	auth *iauth.AuthService
}

func NewAuthHandler(auth *iauth.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		if errors.Is(err, apperrors.ErrInvalidCredentials) {
			response.Error(c, apperrors.ErrInvalidCredentials)
			return
		}
		response.Error(c, apperrors.ErrInternalServer)
		return
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	response.Success(c, http.StatusOK, gin.H{
		"token": result.Token,
		"user": gin.H{
			"id":         result.User.ID,
			"username":   result.User.Username,
			"email":      result.User.Email,
			"full_name":  result.User.FullName(),
			"is_root":    result.User.IsRoot,
			"first_name": result.User.FirstName,
			"last_name":  result.User.LastName,
		},
	})
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req iauth.RegisterInput
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, user)
}
