// api/handlers/user_handler.go
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Annany2002/nebula-insights/api/middleware"
	"github.com/Annany2002/nebula-insights/api/models"
	"github.com/Annany2002/nebula-insights/internal/core"
	"github.com/Annany2002/nebula-insights/internal/rbac"
	"github.com/Annany2002/nebula-insights/internal/storage"
)

const defaultUserPageSize = 20

// UserHandler administers user accounts.
type UserHandler struct {
	Store    *storage.Store
	Resolver *rbac.Resolver
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(store *storage.Store, resolver *rbac.Resolver) *UserHandler {
	return &UserHandler{Store: store, Resolver: resolver}
}

// ListUsers returns a filtered page of users.
func (h *UserHandler) ListUsers(c *gin.Context) {
	opts, err := core.ParseListQueryOptions(c.Request.URL.Query(), defaultUserPageSize)
	if err != nil {
		_ = c.Error(badRequest(err))
		return
	}
	users, total, err := h.Store.ListUsers(c.Request.Context(), opts)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, models.UserList{
		Users:      users,
		Pagination: models.NewPagination(opts.Page, opts.Limit, total),
	})
}

// GetStats returns aggregate user counts.
func (h *UserHandler) GetStats(c *gin.Context) {
	stats, err := h.Store.UserStats(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// AvailableRoles lists the roles that can be assigned.
func (h *UserHandler) AvailableRoles(c *gin.Context) {
	roles, err := h.Store.ListActiveRoles(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roles": roles})
}

// GetUser returns one user with its permissions.
func (h *UserHandler) GetUser(c *gin.Context) {
	userID, err := pathID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}
	user, err := h.Resolver.Profile(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateUserRole assigns an active role to a user.
func (h *UserHandler) UpdateUserRole(c *gin.Context) {
	userID, err := pathID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}
	var req models.UpdateUserRoleRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.Store.UpdateUserRole(c.Request.Context(), userID, req.RoleID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	actor, _ := middleware.CurrentUserID(c)
	customLog.Printf("User %d assigned role %s by user %d", userID, user.RoleName, actor)
	c.JSON(http.StatusOK, gin.H{"message": "User role updated successfully", "user": user})
}

// UpdateUserStatus activates or deactivates a user. Users cannot deactivate themselves.
func (h *UserHandler) UpdateUserStatus(c *gin.Context) {
	userID, err := pathID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}
	var req models.UpdateUserStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	if actor, _ := middleware.CurrentUserID(c); actor == userID && !*req.IsActive {
		_ = c.Error(fmt.Errorf("%w: cannot deactivate your own account", middleware.ErrBadRequest))
		return
	}
	user, err := h.Store.UpdateUserStatus(c.Request.Context(), userID, *req.IsActive)
	if err != nil {
		_ = c.Error(err)
		return
	}
	verb := "deactivated"
	if user.IsActive {
		verb = "activated"
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("User %s successfully", verb), "user": user})
}

// BulkUpdateRoles applies each role assignment independently.
func (h *UserHandler) BulkUpdateRoles(c *gin.Context) {
	var req models.BulkRoleUpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	resp := models.BulkRoleResponse{
		Message: "Bulk update completed",
		Results: make([]models.BulkRoleResult, 0, len(req.Updates)),
		Errors:  make([]models.BulkRoleResult, 0),
	}
	for _, update := range req.Updates {
		if update.UserID <= 0 || update.RoleID <= 0 {
			resp.Errors = append(resp.Errors, models.BulkRoleResult{UserID: update.UserID, Error: "Both user_id and role_id are required"})
			continue
		}
		user, err := h.Store.UpdateUserRole(c.Request.Context(), update.UserID, update.RoleID)
		if err != nil {
			resp.Errors = append(resp.Errors, models.BulkRoleResult{UserID: update.UserID, Error: err.Error()})
			continue
		}
		resp.Results = append(resp.Results, models.BulkRoleResult{UserID: update.UserID, Success: true, User: user})
	}
	resp.SuccessfulUpdates = len(resp.Results)
	resp.FailedUpdates = len(resp.Errors)
	c.JSON(http.StatusOK, resp)
}
