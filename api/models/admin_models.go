// api/models/admin_models.go
package models

import "github.com/Annany2002/nebula-insights/internal/domain"

// CreateRoleRequest is the body of POST /roles.
type CreateRoleRequest struct {
	Name          string  `json:"name" binding:"required,min=2,max=50"`
	Description   string  `json:"description" binding:"max=255"`
	PermissionIDs []int64 `json:"permission_ids"`
}

// UpdateRoleRequest is the body of PUT /roles/:id. Absent fields are left unchanged.
type UpdateRoleRequest struct {
	Name          *string  `json:"name" binding:"omitempty,min=2,max=50"`
	Description   *string  `json:"description" binding:"omitempty,max=255"`
	IsActive      *bool    `json:"is_active"`
	PermissionIDs *[]int64 `json:"permission_ids"`
}

// UpdateUserRoleRequest is the body of PUT /users/:id/role.
type UpdateUserRoleRequest struct {
	RoleID int64 `json:"role_id" binding:"required,gt=0"`
}

// UpdateUserStatusRequest is the body of PUT /users/:id/status.
type UpdateUserStatusRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// BulkRoleUpdate assigns one role to one user.
// Entries are checked one by one so a bad entry fails alone.
type BulkRoleUpdate struct {
	UserID int64 `json:"user_id"`
	RoleID int64 `json:"role_id"`
}

// BulkRoleUpdateRequest is the body of POST /users/bulk/roles.
type BulkRoleUpdateRequest struct {
	Updates []BulkRoleUpdate `json:"updates" binding:"required,min=1"`
}

// BulkRoleResult reports the outcome for one entry of a bulk update.
type BulkRoleResult struct {
	UserID  int64        `json:"user_id"`
	Success bool         `json:"success"`
	User    *domain.User `json:"user,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// BulkRoleResponse summarizes a bulk role update.
type BulkRoleResponse struct {
	Message           string           `json:"message"`
	SuccessfulUpdates int              `json:"successful_updates"`
	FailedUpdates     int              `json:"failed_updates"`
	Results           []BulkRoleResult `json:"results"`
	Errors            []BulkRoleResult `json:"errors"`
}

// UserList is a page of users.
type UserList struct {
	Users      []domain.User `json:"users"`
	Pagination Pagination    `json:"pagination"`
}

// PermissionCatalog lists every permission, flat and grouped by resource.
type PermissionCatalog struct {
	Permissions []domain.Permission            `json:"permissions"`
	Grouped     map[string][]domain.Permission `json:"grouped_permissions"`
}
