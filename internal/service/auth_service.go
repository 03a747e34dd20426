package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/GTDGit/fabric_api/internal/models"
	"github.com/GTDGit/fabric_api/internal/repository"
	"github.com/GTDGit/fabric_api/internal/utils"
)

const resetTokenTTL = time.Hour

// AuthService registers and authenticates store users.
type AuthService struct {
	users       UserStore
	notifier    *NotificationService
	accessTTL   time.Duration
	refreshTTL  time.Duration
	frontendURL string
}

// NewAuthService constructs a new AuthService.
func NewAuthService(users UserStore, notifier *NotificationService, accessTTL, refreshTTL time.Duration, frontendURL string) *AuthService {
	return &AuthService{
		users:       users,
		notifier:    notifier,
		accessTTL:   accessTTL,
		refreshTTL:  refreshTTL,
		frontendURL: strings.TrimSuffix(frontendURL, "/"),
	}
}

type RegisterRequest struct {
	Name     string  `json:"name" binding:"required,max=100"`
	Email    string  `json:"email" binding:"required,email"`
	Password string  `json:"password" binding:"required,min=8,max=72"`
	Phone    *string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResult is returned after register, login and refresh.
type AuthResult struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresIn    int64        `json:"expiresIn"`
}

// Register creates a customer account and signs them in.
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, utils.ErrEmailExists
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(req.Name),
		Phone:        req.Phone,
		Role:         models.RoleCustomer,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if repository.IsUniqueViolation(err, "email") {
			return nil, utils.ErrEmailExists
		}
		return nil, err
	}

	log.Info().Str("user_id", user.ID).Msg("User registered")
	return s.issueTokens(user)
}

// Login verifies credentials and returns a token pair.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		log.Warn().Str("user_id", user.ID).Msg("Password verification failed")
		return nil, utils.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, utils.ErrAccountInactive
	}

	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to record last login")
	}
	return s.issueTokens(user)
}

// Refresh exchanges a valid refresh token for a new token pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := utils.ValidateJWT(refreshToken)
	if err != nil || claims.TokenType != utils.TokenTypeRefresh {
		return nil, utils.ErrInvalidToken
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrInvalidToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, utils.ErrAccountInactive
	}
	return s.issueTokens(user)
}

// Me returns the authenticated user's profile.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.NotFound("User not found")
	}
	return user, err
}

// ForgotPassword emails a reset link when the account exists. Callers always
// answer success so the endpoint cannot be used to discover which emails have accounts.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	if !user.IsActive {
		return nil
	}

	raw, err := utils.GenerateToken()
	if err != nil {
		return err
	}
	if err := s.users.SetResetToken(ctx, user.ID, utils.HashToken(raw), time.Now().Add(resetTokenTTL)); err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.PasswordReset(user.Email, user.Name, s.frontendURL+"/reset-password/"+raw)
	}
	return nil
}

// ResetPassword sets a new password using an unexpired reset token.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	if len(password) < 8 {
		return utils.Validation([]utils.FieldError{{Field: "password", Message: "must be at least 8"}})
	}
	user, err := s.users.GetByResetToken(ctx, utils.HashToken(token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return utils.BadRequest("Reset token is invalid or has expired")
		}
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.users.ResetPassword(ctx, user.ID, string(hash)); err != nil {
		return err
	}
	log.Info().Str("user_id", user.ID).Msg("Password reset")
	return nil
}

// BootstrapAdmin creates the configured admin account when it does not exist.
func (s *AuthService) BootstrapAdmin(ctx context.Context, email, password, name string) error {
	if email == "" || password == "" {
		log.Warn().Msg("Admin bootstrap skipped: ADMIN_EMAIL or ADMIN_PASSWORD not set")
		return nil
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := &models.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(email),
		PasswordHash: string(hash),
		Name:         name,
		Role:         models.RoleAdmin,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		if repository.IsUniqueViolation(err, "email") {
			return nil
		}
		return err
	}
	log.Info().Str("email", admin.Email).Msg("Admin user created")
	return nil
}

func (s *AuthService) issueTokens(user *models.User) (*AuthResult, error) {
	access, err := utils.GenerateJWT(user.ID, user.Email, string(user.Role), utils.TokenTypeAccess, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := utils.GenerateJWT(user.ID, user.Email, string(user.Role), utils.TokenTypeRefresh, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		User:         user,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}
