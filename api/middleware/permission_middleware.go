// api/middleware/permission_middleware.go
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Annany2002/nebula-insights/internal/metrics"
)

// Authorizer answers capability checks for a user.
type Authorizer interface {
	HasCapability(ctx context.Context, userID int64, name string) (bool, error)
	HasResourceCapability(ctx context.Context, userID int64, resource, action string) (bool, error)
}

// Permissions builds gin guards backed by an Authorizer. Every check reads the store, so role
// changes apply on the next request.
type Permissions struct {
	authz   Authorizer
	metrics *metrics.Collector
}

// NewPermissions returns the guard factory. collector may be nil.
func NewPermissions(authz Authorizer, collector *metrics.Collector) *Permissions {
	return &Permissions{authz: authz, metrics: collector}
}

// Require admits users holding the named permission.
func (p *Permissions) Require(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUser(c)
		if !ok {
			return
		}
		allowed, err := p.authz.HasCapability(c.Request.Context(), userID, name)
		if err != nil {
			abortAuthError(c, err)
			return
		}
		if !allowed {
			p.deny(c, name, gin.H{
				"error":               fmt.Sprintf("Permission '%s' required", name),
				"required_permission": name,
			})
			return
		}
		c.Next()
	}
}

// RequireResource admits users holding the permission for resource and action.
func (p *Permissions) RequireResource(resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUser(c)
		if !ok {
			return
		}
		allowed, err := p.authz.HasResourceCapability(c.Request.Context(), userID, resource, action)
		if err != nil {
			abortAuthError(c, err)
			return
		}
		if !allowed {
			p.deny(c, resource+"."+action, gin.H{
				"error":             fmt.Sprintf("Permission for '%s.%s' required", resource, action),
				"required_resource": resource,
				"required_action":   action,
			})
			return
		}
		c.Next()
	}
}

// RequireAny admits users holding at least one of names.
func (p *Permissions) RequireAny(names ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUser(c)
		if !ok {
			return
		}
		for _, name := range names {
			allowed, err := p.authz.HasCapability(c.Request.Context(), userID, name)
			if err != nil {
				abortAuthError(c, err)
				return
			}
			if allowed {
				c.Next()
				return
			}
		}
		p.deny(c, strings.Join(names, "|"), gin.H{
			"error":                fmt.Sprintf("One of these permissions required: %s", strings.Join(names, ", ")),
			"required_permissions": names,
		})
	}
}

// RequireAll admits users holding every one of names.
func (p *Permissions) RequireAll(names ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUser(c)
		if !ok {
			return
		}
		for _, name := range names {
			allowed, err := p.authz.HasCapability(c.Request.Context(), userID, name)
			if err != nil {
				abortAuthError(c, err)
				return
			}
			if !allowed {
				p.deny(c, name, gin.H{
					"error":                fmt.Sprintf("All permissions required: %s", strings.Join(names, ", ")),
					"required_permissions": names,
					"missing_permission":   name,
				})
				return
			}
		}
		c.Next()
	}
}

// RequireRole admits users whose active role has the given name.
func (p *Permissions) RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			abortUnauthorized(c, ErrUnauthorized)
			return
		}
		if user.RoleName != role {
			current := user.RoleName
			if current == "" {
				current = "none"
			}
			_ = c.Error(ErrForbidden)
			p.metrics.PermissionDenied("role:" + role)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":         fmt.Sprintf("Role '%s' required", role),
				"code":          CodeInsufficientRole,
				"required_role": role,
				"current_role":  current,
			})
			return
		}
		c.Next()
	}
}

func (p *Permissions) deny(c *gin.Context, permission string, body gin.H) {
	userID, _ := CurrentUserID(c)
	customLog.Warnf("Permission denied: user %d lacks %s on %s %s", userID, permission, c.Request.Method, c.FullPath())
	p.metrics.PermissionDenied(permission)
	body["code"] = CodeInsufficientPermissions
	_ = c.Error(ErrForbidden)
	c.AbortWithStatusJSON(http.StatusForbidden, body)
}

func requireUser(c *gin.Context) (int64, bool) {
	userID, ok := CurrentUserID(c)
	if !ok {
		abortUnauthorized(c, ErrUnauthorized)
		return 0, false
	}
	return userID, true
}

func abortAuthError(c *gin.Context, err error) {
	customLog.Errorf("Permission check failed: %v", err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Authorization error", "code": CodeAuthError})
}
