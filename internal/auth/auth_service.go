package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/kruetob/moodle-tool-certificate/internal/models"
	"github.com/kruetob/moodle-tool-certificate/pkg/crypto"
	apperrors "github.com/kruetob/moodle-tool-certificate/pkg/errors"
)

// AuthService authenticates users against the local account store.
type AuthService struct {
	db  *gorm.DB
	jwt *JWTService
}

// NewAuthService constructs an AuthService.
func NewAuthService(db *gorm.DB, jwt *JWTService) (*AuthService, error) {
	if db == nil {
		return nil, errors.New("auth: db is required")
	}
	if jwt == nil {
		return nil, errors.New("auth: jwt service is required")
	}
	return &AuthService{db: db, jwt: jwt}, nil
}

// LoginResult is returned on a successful authentication.
type LoginResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Login verifies the credentials and issues an access token. Failures are
// reported uniformly so callers cannot probe for valid usernames.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperrors.ErrInvalidCredentials
	}

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "username = ?", username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("auth: load user: %w", err)
	}

	if !user.IsActive || !crypto.VerifyPassword(user.Password, password) {
		return nil, apperrors.ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("auth: issue token: %w", err)
	}

	return &LoginResult{Token: token, User: &user}, nil
}

// RegisterInput describes a new local account.
type RegisterInput struct {
	Username  string `json:"username" validate:"required,min=3"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Register creates a local account with a hashed password. The first account
// created becomes root so a fresh install can be administered.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("auth: count users: %w", err)
	}

	user := &models.User{
		Username:  strings.TrimSpace(input.Username),
		Email:     strings.TrimSpace(input.Email),
		Password:  hash,
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		IsRoot:    count == 0,
		IsActive:  true,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("auth: create user: %w", err)
	}
	return user, nil
}
