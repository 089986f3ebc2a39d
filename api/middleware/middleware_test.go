package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Annany2002/nebula-insights/internal/domain"
	"github.com/Annany2002/nebula-insights/internal/query"
	"github.com/Annany2002/nebula-insights/internal/storage"
	"github.com/Annany2002/nebula-insights/internal/upload"
)

type fakeAuthorizer struct {
	granted map[string]bool
	err     error
}

func (f *fakeAuthorizer) HasCapability(_ context.Context, _ int64, name string) (bool, error) {
	return f.granted[name], f.err
}

func (f *fakeAuthorizer) HasResourceCapability(_ context.Context, _ int64, resource, action string) (bool, error) {
	return f.granted[resource+"."+action], f.err
}

func newEngine(withUser bool, guard gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler())
	if withUser {
		r.Use(func(c *gin.Context) {
			c.Set(ContextUserID, int64(7))
			c.Set(ContextUser, &domain.User{ID: 7, RoleName: "do", IsActive: true})
		})
	}
	r.GET("/guarded", guard, func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func serve(t *testing.T, r http.Handler) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/guarded", nil))
	body := map[string]any{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestRequire(t *testing.T) {
	perms := NewPermissions(&fakeAuthorizer{granted: map[string]bool{"data.read": true}}, nil)

	w, _ := serve(t, newEngine(true, perms.Require("data.read")))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, body := serve(t, newEngine(true, perms.Require("data.upload")))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, CodeInsufficientPermissions, body["code"])
	assert.Equal(t, "data.upload", body["required_permission"])

	w, body = serve(t, newEngine(false, perms.Require("data.read")))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, CodeUnauthorized, body["code"])
}

func TestRequireResource(t *testing.T) {
	perms := NewPermissions(&fakeAuthorizer{granted: map[string]bool{"role.read": true}}, nil)

	w, _ := serve(t, newEngine(true, perms.RequireResource("role", "read")))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, body := serve(t, newEngine(true, perms.RequireResource("role", "delete")))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "role", body["required_resource"])
	assert.Equal(t, "delete", body["required_action"])
}

func TestRequireAnyAndAll(t *testing.T) {
	perms := NewPermissions(&fakeAuthorizer{granted: map[string]bool{"role.manage_permissions": true}}, nil)

	w, _ := serve(t, newEngine(true, perms.RequireAny("role.read", "role.manage_permissions")))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, body := serve(t, newEngine(true, perms.RequireAll("role.read", "role.manage_permissions")))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "role.read", body["missing_permission"])
	assert.Len(t, body["required_permissions"], 2)

	w, _ = serve(t, newEngine(true, perms.RequireAny("user.read")))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireRole(t *testing.T) {
	perms := NewPermissions(&fakeAuthorizer{}, nil)

	w, _ := serve(t, newEngine(true, perms.RequireRole("do")))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, body := serve(t, newEngine(true, perms.RequireRole("superadmin")))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, CodeInsufficientRole, body["code"])
	assert.Equal(t, "do", body["current_role"])
}

func TestPermissionCheckFailure(t *testing.T) {
	perms := NewPermissions(&fakeAuthorizer{err: errors.New("db down")}, nil)
	w, body := serve(t, newEngine(true, perms.Require("data.read")))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, CodeAuthError, body["code"])
}

func TestErrorHandlerMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{upload.ErrHeaderMismatch, http.StatusBadRequest, "HEADER_MISMATCH"},
		{fmt.Errorf("%w: \"x\"", query.ErrUnknownColumn), http.StatusBadRequest, "UNKNOWN_COLUMN"},
		{query.ErrNoAggregation, http.StatusBadRequest, "NO_AGGREGATION"},
		{storage.ErrRoleNotFound, http.StatusNotFound, "ROLE_NOT_FOUND"},
		{fmt.Errorf("%w: 2 active users", storage.ErrRoleInUse), http.StatusConflict, "ROLE_IN_USE"},
		{ErrAccountInactive, http.StatusForbidden, CodeAccountInactive},
		{errors.New("boom"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			r := newEngine(false, func(c *gin.Context) {
				_ = c.Error(tc.err)
				c.Abort()
			})
			w, body := serve(t, r)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, body["code"])
		})
	}
}

func TestErrorHandlerHidesInternalDetails(t *testing.T) {
	r := newEngine(false, func(c *gin.Context) {
		_ = c.Error(errors.New("pq: password authentication failed"))
		c.Abort()
	})
	_, body := serve(t, r)
	assert.NotContains(t, body["error"], "password")
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("1.2.3.4"))
	assert.False(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("5.6.7.8"))

	now = now.Add(time.Minute + time.Second)
	assert.True(t, rl.Allow("1.2.3.4"))
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimitMiddleware(NewRateLimiter(1, time.Minute)))
	r.GET("/guarded", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w, _ := serve(t, r)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w, body := serve(t, r)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, CodeRateLimited, body["code"])
}
