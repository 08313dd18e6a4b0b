package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/greenvalley/society-portal-backend/pkg/jwt"
	"github.com/sirupsen/logrus"
)

// UserContextKey is the key used to store user information in Gin context
const UserContextKey = "user"

// UserContext represents the authenticated user's information
type UserContext struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Role   string    `json:"role"`
}

// TokenValidator verifies access tokens
type TokenValidator interface {
	ValidateAccessToken(tokenString string) (*jwt.Claims, error)
}

// AuthMiddleware creates a middleware that validates bearer tokens
func AuthMiddleware(tokens TokenValidator, logger *logrus.Logger) gin.HandlerFunc {
	return authenticate(tokens, logger, false)
}

// QueryTokenAuthMiddleware also accepts ?token= for clients that cannot set
// headers (browser WebSocket)
func QueryTokenAuthMiddleware(tokens TokenValidator, logger *logrus.Logger) gin.HandlerFunc {
	return authenticate(tokens, logger, true)
}

func authenticate(tokens TokenValidator, logger *logrus.Logger, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		fields := logrus.Fields{"path": c.Request.URL.Path, "ip": c.ClientIP()}

		tokenString := ""
		authHeader := c.GetHeader("Authorization")
		switch {
		case authHeader != "":
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				logger.WithFields(fields).Warn("AUTH FAILED: Invalid auth format")
				abortAuth(c, http.StatusUnauthorized, "unauthorized", "Invalid authorization header format. Expected: Bearer <token>", "INVALID_AUTH_FORMAT")
				return
			}
			tokenString = strings.TrimSpace(parts[1])
		case allowQuery:
			tokenString = strings.TrimSpace(c.Query("token"))
		default:
			logger.WithFields(fields).Warn("AUTH FAILED: Missing authorization header")
			abortAuth(c, http.StatusUnauthorized, "unauthorized", "Authorization header is required", "MISSING_AUTH_HEADER")
			return
		}

		if tokenString == "" {
			logger.WithFields(fields).Warn("AUTH FAILED: Empty token")
			abortAuth(c, http.StatusUnauthorized, "unauthorized", "Token cannot be empty", "INVALID_AUTH_FORMAT")
			return
		}

		claims, err := tokens.ValidateAccessToken(tokenString)
		if err != nil {
			if jwt.IsTokenExpired(err) {
				logger.WithFields(fields).WithError(err).Info("AUTH FAILED: Token expired")
				abortAuth(c, http.StatusUnauthorized, "token_expired", "Access token has expired. Please sign in again.", "TOKEN_EXPIRED")
			} else {
				logger.WithFields(fields).WithError(err).Warn("AUTH FAILED: Invalid token")
				abortAuth(c, http.StatusUnauthorized, "invalid_token", "Invalid access token", "INVALID_TOKEN")
			}
			return
		}

		c.Set(UserContextKey, UserContext{
			UserID: claims.UserID,
			Email:  claims.Email,
			Role:   claims.Role,
		})

		c.Next()
	}
}

// RequireRole creates a middleware that checks if user has one of the roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userCtx, exists := GetUserContext(c)
		if !exists {
			abortAuth(c, http.StatusUnauthorized, "unauthorized", "User context not found. Auth middleware may not be applied.", "MISSING_USER_CONTEXT")
			return
		}

		for _, role := range roles {
			if userCtx.Role == role {
				c.Next()
				return
			}
		}

		abortAuth(c, http.StatusForbidden, "forbidden", "You don't have permission to access this resource", "INSUFFICIENT_PERMISSIONS")
	}
}

// GetUserContext retrieves the user context from Gin context
func GetUserContext(c *gin.Context) (UserContext, bool) {
	value, exists := c.Get(UserContextKey)
	if !exists {
		return UserContext{}, false
	}

	userCtx, ok := value.(UserContext)
	if !ok {
		return UserContext{}, false
	}

	return userCtx, true
}

// MustGetUserContext retrieves the user context or panics (use only after AuthMiddleware)
func MustGetUserContext(c *gin.Context) UserContext {
	userCtx, exists := GetUserContext(c)
	if !exists {
		panic("user context not found - ensure AuthMiddleware is applied")
	}
	return userCtx
}

func abortAuth(c *gin.Context, status int, errCode, message, code string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":   errCode,
		"message": message,
		"code":    code,
	})
}
