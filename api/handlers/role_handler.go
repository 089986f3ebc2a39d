// api/handlers/role_handler.go
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Annany2002/nebula-insights/api/models"
	"github.com/Annany2002/nebula-insights/internal/domain"
	"github.com/Annany2002/nebula-insights/internal/storage"
)

// RoleHandler administers roles and their grants.
type RoleHandler struct {
	Store *storage.Store
}

// NewRoleHandler creates a RoleHandler.
func NewRoleHandler(store *storage.Store) *RoleHandler {
	return &RoleHandler{Store: store}
}

// ListRoles returns every role with its user count and permissions.
func (h *RoleHandler) ListRoles(c *gin.Context) {
	roles, err := h.Store.ListRoles(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roles": roles})
}

// GetRole returns one role.
func (h *RoleHandler) GetRole(c *gin.Context) {
	roleID, err := pathID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}
	role, err := h.Store.GetRole(c.Request.Context(), roleID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": role})
}

// CreateRole adds a role with the given permission ids.
func (h *RoleHandler) CreateRole(c *gin.Context) {
	var req models.CreateRoleRequest
	if !bindJSON(c, &req) {
		return
	}
	role, err := h.Store.CreateRole(c.Request.Context(), strings.TrimSpace(req.Name), req.Description, req.PermissionIDs)
	if err != nil {
		_ = c.Error(err)
		return
	}
	customLog.Printf("Role %s created with %d permissions", role.Name, len(role.Permissions))
	c.JSON(http.StatusCreated, gin.H{"message": "Role created successfully", "role": role})
}

// UpdateRole applies a partial update. permission_ids, when present, replaces the grants.
func (h *RoleHandler) UpdateRole(c *gin.Context) {
	roleID, err := pathID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}
	var req models.UpdateRoleRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
	}
	role, err := h.Store.UpdateRole(c.Request.Context(), roleID, storage.RoleUpdate{
		Name:          req.Name,
		Description:   req.Description,
		IsActive:      req.IsActive,
		PermissionIDs: req.PermissionIDs,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Role updated successfully", "role": role})
}

// DeleteRole removes a role no active user holds.
func (h *RoleHandler) DeleteRole(c *gin.Context) {
	roleID, err := pathID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.Store.DeleteRole(c.Request.Context(), roleID); err != nil {
		_ = c.Error(err)
		return
	}
	customLog.Printf("Role %d deleted", roleID)
	c.JSON(http.StatusOK, gin.H{"message": "Role deleted successfully"})
}

// ListPermissions returns the permission catalog, flat and grouped by resource.
func (h *RoleHandler) ListPermissions(c *gin.Context) {
	perms, err := h.Store.ListPermissions(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	grouped := make(map[string][]domain.Permission)
	for _, p := range perms {
		grouped[p.Resource] = append(grouped[p.Resource], p)
	}
	c.JSON(http.StatusOK, models.PermissionCatalog{Permissions: perms, Grouped: grouped})
}
