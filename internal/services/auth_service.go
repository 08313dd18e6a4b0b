package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/greenvalley/society-portal-backend/internal/database"
	"github.com/greenvalley/society-portal-backend/internal/models"
	"github.com/greenvalley/society-portal-backend/pkg/jwt"
	"github.com/greenvalley/society-portal-backend/pkg/validator"
	"golang.org/x/crypto/bcrypt"
)

// UserStore persists accounts
type UserStore interface {
	CreateUser(user *models.User) error
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id uuid.UUID) (*models.User, error)
}

// TokenIssuer signs access tokens
type TokenIssuer interface {
	GenerateAccessToken(userID uuid.UUID, email, role string) (string, time.Time, error)
}

// RegisterRequest is the self-registration payload for residents
type RegisterRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8,max=72"`
	Phone       string `json:"phone" binding:"omitempty,phone"`
	TowerNumber string `json:"tower_number" binding:"max=20"`
	FlatNumber  string `json:"flat_number" binding:"max=20"`
}

// LoginRequest is the email/password login payload
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResult is returned on successful login
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// AuthService handles resident and admin authentication
type AuthService struct {
	users      UserStore
	tokens     TokenIssuer
	bcryptCost int
	phones     *validator.PhoneValidator
}

// NewAuthService creates a new auth service
func NewAuthService(users UserStore, tokens TokenIssuer, bcryptCost int) *AuthService {
	if bcryptCost < bcrypt.MinCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		users:      users,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		phones:     validator.NewPhoneValidator(),
	}
}

// Register creates a resident account. Admin accounts are provisioned out of band.
func (s *AuthService) Register(req RegisterRequest) (*models.User, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, newValidationError("name", "is required")
	}

	phone := ""
	if strings.TrimSpace(req.Phone) != "" {
		normalized, err := s.phones.Validate(req.Phone)
		if err != nil {
			return nil, newValidationError("phone", err.Error())
		}
		phone = normalized
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Name:         name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Phone:        models.NewNullString(phone),
		TowerNumber:  models.NewNullString(strings.TrimSpace(req.TowerNumber)),
		FlatNumber:   models.NewNullString(strings.TrimSpace(req.FlatNumber)),
		Role:         models.RoleResident,
		Status:       models.UserStatusActive,
	}

	if err := s.users.CreateUser(user); err != nil {
		if errors.Is(err, database.ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	return user, nil
}

// Login verifies credentials and issues an access token. The returned user is
// non-nil whenever the account exists, so callers can audit failed attempts.
func (s *AuthService) Login(req LoginRequest) (*LoginResult, *models.User, error) {
	user, err := s.users.GetUserByEmail(req.Email)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, user, ErrInvalidCredentials
	}

	if !user.IsActive() {
		return nil, user, ErrAccountInactive
	}

	token, expiresAt, err := s.tokens.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, user, fmt.Errorf("failed to generate access token: %w", err)
	}

	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
	}, user, nil
}

// CurrentUser loads the account behind a verified token
func (s *AuthService) CurrentUser(id uuid.UUID) (*models.User, error) {
	user, err := s.users.GetUserByID(id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrForbidden
	}
	return user, nil
}

var _ TokenIssuer = (*jwt.Service)(nil)
