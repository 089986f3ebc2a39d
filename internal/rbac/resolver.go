// Package rbac resolves what a user may do from the role assigned to them.
package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Annany2002/nebula-insights/internal/domain"
	"github.com/Annany2002/nebula-insights/internal/logger"
	"github.com/Annany2002/nebula-insights/internal/storage"
)

var (
	ErrInvalidPrincipal = errors.New("identity is missing an external id or email")

	customLog = logger.NewLogger()
)

// Store is the access-control surface of the relational store.
type Store interface {
	EnsurePermission(ctx context.Context, p domain.Permission) error
	EnsureRole(ctx context.Context, name, description string) error
	EnsureGrant(ctx context.Context, roleName, permissionName string) error

	EffectivePermissionNames(ctx context.Context, userID int64) ([]string, error)
	UserHasPermission(ctx context.Context, userID int64, permissionName string) (bool, error)
	UserHasResourcePermission(ctx context.Context, userID int64, resource, action string) (bool, error)

	GetRole(ctx context.Context, roleID int64) (*domain.Role, error)
	GetRoleByName(ctx context.Context, name string) (*domain.Role, error)
	FirstActiveRole(ctx context.Context) (*domain.Role, error)

	InsertUserIfAbsent(ctx context.Context, p domain.Principal, roleID *int64) error
	GetUserByID(ctx context.Context, userID int64) (*domain.User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateDisplayName(ctx context.Context, userID int64, displayName string) error
	UpdateExternalID(ctx context.Context, userID int64, externalID string) error
	UpdateUserRole(ctx context.Context, userID, roleID int64) (*domain.User, error)
}

// Resolver answers capability questions against the store. Nothing is cached.
type Resolver struct {
	store          Store
	defaultRole    string
	bootstrapEmail string
}

// NewResolver returns a resolver. New users receive defaultRole; bootstrapEmail, when set, is
// promoted to superadmin on login.
func NewResolver(store Store, defaultRole, bootstrapEmail string) *Resolver {
	return &Resolver{store: store, defaultRole: defaultRole, bootstrapEmail: strings.TrimSpace(bootstrapEmail)}
}

// HasCapability reports whether the user currently holds the named permission.
func (r *Resolver) HasCapability(ctx context.Context, userID int64, name string) (bool, error) {
	return r.store.UserHasPermission(ctx, userID, name)
}

// HasResourceCapability is HasCapability for a resource and action pair.
func (r *Resolver) HasResourceCapability(ctx context.Context, userID int64, resource, action string) (bool, error) {
	return r.store.UserHasResourcePermission(ctx, userID, resource, action)
}

// EffectivePermissions lists the permission names the user currently holds. A user without an
// active role, or an inactive user, holds none.
func (r *Resolver) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	return r.store.EffectivePermissionNames(ctx, userID)
}

// Profile returns the user with the permissions of its role filled in when both are active.
func (r *Resolver) Profile(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := r.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Permissions = make([]domain.Permission, 0)
	if !user.IsActive || user.RoleID == nil {
		return user, nil
	}
	role, err := r.store.GetRole(ctx, *user.RoleID)
	if err != nil {
		if errors.Is(err, storage.ErrRoleNotFound) {
			return user, nil
		}
		return nil, err
	}
	if role.IsActive {
		user.Permissions = role.Permissions
	}
	return user, nil
}

// FindOrCreateUser returns the user for an authenticated principal, creating it on first login.
// Creation is an insert that ignores uniqueness conflicts followed by a re-fetch keyed on the
// external id and then the email, so concurrent first logins converge on one row.
func (r *Resolver) FindOrCreateUser(ctx context.Context, p domain.Principal) (*domain.User, error) {
	p.ExternalID = strings.TrimSpace(p.ExternalID)
	p.Email = strings.TrimSpace(p.Email)
	if p.ExternalID == "" || p.Email == "" {
		return nil, ErrInvalidPrincipal
	}
	if strings.TrimSpace(p.DisplayName) == "" {
		p.DisplayName = p.Email
	}

	roleID, err := r.defaultRoleID(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.store.InsertUserIfAbsent(ctx, p, roleID); err != nil {
		return nil, err
	}

	user, err := r.store.GetUserByExternalID(ctx, p.ExternalID)
	if errors.Is(err, storage.ErrUserNotFound) {
		user, err = r.store.GetUserByEmail(ctx, p.Email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user after login: %w", err)
	}

	// Matched by email: the identity provider issued a new subject for a known account.
	if user.ExternalID != p.ExternalID {
		customLog.Warnf("RBAC: Rebinding user %d from external id %q to %q", user.ID, user.ExternalID, p.ExternalID)
		if err := r.store.UpdateExternalID(ctx, user.ID, p.ExternalID); err != nil {
			return nil, err
		}
		user.ExternalID = p.ExternalID
	}

	if user.DisplayName != p.DisplayName {
		if err := r.store.UpdateDisplayName(ctx, user.ID, p.DisplayName); err != nil {
			return nil, err
		}
		user.DisplayName = p.DisplayName
	}

	if r.bootstrapEmail != "" && strings.EqualFold(user.Email, r.bootstrapEmail) && user.RoleName != RoleSuperAdmin {
		role, err := r.store.GetRoleByName(ctx, RoleSuperAdmin)
		if err != nil {
			return nil, fmt.Errorf("failed to find bootstrap role: %w", err)
		}
		if user, err = r.store.UpdateUserRole(ctx, user.ID, role.ID); err != nil {
			return nil, err
		}
		customLog.Infof("RBAC: Promoted bootstrap administrator %s", user.Email)
	}
	return user, nil
}

// defaultRoleID picks the configured default role when it exists and is active, otherwise the
// active role with the lowest id. nil when no active role exists.
func (r *Resolver) defaultRoleID(ctx context.Context) (*int64, error) {
	if r.defaultRole != "" {
		role, err := r.store.GetRoleByName(ctx, r.defaultRole)
		switch {
		case err == nil && role.IsActive:
			return &role.ID, nil
		case err != nil && !errors.Is(err, storage.ErrRoleNotFound):
			return nil, err
		}
	}
	role, err := r.store.FirstActiveRole(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrRoleNotFound) {
			customLog.Warnln("RBAC: No active role available for new users")
			return nil, nil
		}
		return nil, err
	}
	return &role.ID, nil
}
