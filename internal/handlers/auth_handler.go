package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/greenvalley/society-portal-backend/internal/middleware"
	"github.com/greenvalley/society-portal-backend/internal/models"
	"github.com/greenvalley/society-portal-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// Authenticator registers and signs in accounts
type Authenticator interface {
	Register(req services.RegisterRequest) (*models.User, error)
	Login(req services.LoginRequest) (*services.LoginResult, *models.User, error)
	CurrentUser(id uuid.UUID) (*models.User, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	auth   Authenticator
	audit  AuditLogger
	logger *logrus.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth Authenticator, audit AuditLogger, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		audit:  audit,
		logger: logger,
	}
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := h.auth.Register(req)
	if err != nil {
		respondError(c, h.logger, err, "register")
		return
	}

	safeLogRegistration(h.audit, h.logger, c, user.ID, user.Email)

	h.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"email":   user.Email,
	}).Info("Resident registered")

	c.JSON(http.StatusCreated, gin.H{
		"message": "Registration successful",
		"user":    user,
	})
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, user, err := h.auth.Login(req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) || errors.Is(err, services.ErrAccountInactive) {
			var userID *uuid.UUID
			if user != nil {
				userID = &user.ID
			}
			safeLogLogin(h.audit, h.logger, c, userID, req.Email, false, err.Error())
		}
		respondError(c, h.logger, err, "login")
		return
	}

	safeLogLogin(h.audit, h.logger, c, &result.User.ID, result.User.Email, true, "")

	c.JSON(http.StatusOK, result)
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userCtx, ok := middleware.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "User not authenticated"})
		return
	}

	user, err := h.auth.CurrentUser(userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err, "current_user")
		return
	}
	c.JSON(http.StatusOK, user)
}
