// api/middleware/auth_middleware.go
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Annany2002/nebula-insights/config"
	"github.com/Annany2002/nebula-insights/internal/auth" // Import internal auth logic and errors
	"github.com/Annany2002/nebula-insights/internal/domain"
	"github.com/Annany2002/nebula-insights/internal/logger"
	"github.com/Annany2002/nebula-insights/internal/storage"
)

// Context keys set by AuthMiddleware.
const (
	ContextUserID = "userId"
	ContextUser   = "user"
)

var (
	customLog = logger.NewLogger()
)

// UserLookup loads the account behind a session token.
type UserLookup interface {
	GetUserByID(ctx context.Context, userID int64) (*domain.User, error)
}

// AuthMiddleware creates a gin middleware for checking session token authentication.
// The token must name an existing, active user.
func AuthMiddleware(cfg *config.Config, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, errors.New("authorization header required"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortUnauthorized(c, errors.New("authorization header format must be Bearer {token}"))
			return
		}
		tokenString := strings.TrimSpace(parts[1])

		userID, err := auth.ValidateJWT(tokenString, cfg.JWTSecret)
		if err != nil {
			customLog.Printf("AuthMiddleware: Token validation failed: %v", err)
			msg := "Invalid token"
			if errors.Is(err, auth.ErrTokenMalformed) || errors.Is(err, auth.ErrTokenExpired) {
				msg = err.Error()
			}
			abortUnauthorized(c, errors.New(msg))
			return
		}

		user, err := users.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, storage.ErrUserNotFound) {
				abortUnauthorized(c, errors.New("user no longer exists"))
				return
			}
			customLog.Errorf("AuthMiddleware: Failed to load user %d: %v", userID, err)
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Authentication error", "code": CodeAuthError})
			return
		}
		if !user.IsActive {
			_ = c.Error(ErrAccountInactive)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "User account is inactive", "code": CodeAccountInactive})
			return
		}

		c.Set(ContextUserID, userID)
		c.Set(ContextUser, user)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "code": CodeUnauthorized})
}

// CurrentUserID returns the id of the authenticated user.
func CurrentUserID(c *gin.Context) (int64, bool) {
	value, exists := c.Get(ContextUserID)
	if !exists {
		return 0, false
	}
	id, ok := value.(int64)
	return id, ok
}

// CurrentUser returns the account loaded by AuthMiddleware.
func CurrentUser(c *gin.Context) (*domain.User, bool) {
	value, exists := c.Get(ContextUser)
	if !exists {
		return nil, false
	}
	user, ok := value.(*domain.User)
	return user, ok
}
