// api/handlers/auth_handler.go
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Annany2002/nebula-insights/api/middleware"
	"github.com/Annany2002/nebula-insights/api/models"
	"github.com/Annany2002/nebula-insights/config"
	"github.com/Annany2002/nebula-insights/internal/auth" // Import internal auth logic
	"github.com/Annany2002/nebula-insights/internal/logger"
	"github.com/Annany2002/nebula-insights/internal/rbac"
)

var (
	customLog = logger.NewLogger()
)

// AuthHandler holds dependencies for authentication handlers.
type AuthHandler struct {
	Cfg      *config.Config // Application configuration
	Resolver *rbac.Resolver
}

// NewAuthHandler creates a new AuthHandler with dependencies.
func NewAuthHandler(cfg *config.Config, resolver *rbac.Resolver) *AuthHandler {
	return &AuthHandler{
		Cfg:      cfg,
		Resolver: resolver,
	}
}

// Login exchanges an identity provider token for a session token, creating the user on first login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest

	if !bindJSON(c, &req) {
		return
	}

	principal, err := auth.VerifyIdentityToken(req.IDToken, h.Cfg.IDPSharedSecret, h.Cfg.IDPIssuer)
	if err != nil {
		customLog.Warnf("Login failed: identity token rejected: %v", err)
		_ = c.Error(fmt.Errorf("%w: %v", middleware.ErrUnauthorized, err))
		return
	}

	user, err := h.Resolver.FindOrCreateUser(c.Request.Context(), *principal)
	if err != nil {
		customLog.Warnf("Login failed for %s: %v", principal.Email, err)
		_ = c.Error(err)
		return
	}
	if !user.IsActive {
		customLog.Warnf("Login refused for inactive user %s", user.Email)
		_ = c.Error(middleware.ErrAccountInactive)
		return
	}

	tokenString, err := auth.GenerateJWT(user.ID, h.Cfg.JWTSecret, h.Cfg.JWTExpiration)
	if err != nil {
		_ = c.Error(err)
		return
	}

	profile, err := h.Resolver.Profile(c.Request.Context(), user.ID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	customLog.Printf("User %s logged in (role: %s)", user.Email, user.RoleName)
	c.JSON(http.StatusOK, models.LoginResponse{Message: "Logged in successfully", Token: tokenString, User: profile})
}

// Me returns the authenticated user with its role and permissions.
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		_ = c.Error(middleware.ErrUnauthorized)
		return
	}
	user, err := h.Resolver.Profile(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
