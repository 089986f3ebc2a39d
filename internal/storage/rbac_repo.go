// internal/storage/rbac_repo.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Annany2002/nebula-insights/internal/core"
	"github.com/Annany2002/nebula-insights/internal/domain"
)

// Specific errors for access-control operations
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrRoleNotFound       = errors.New("role not found")
	ErrRoleExists         = errors.New("role name already exists")
	ErrRoleInUse          = errors.New("role is assigned to active users")
	ErrRoleInactive       = errors.New("role is not active")
	ErrPermissionNotFound = errors.New("permission not found")
)

// RoleUpdate carries the fields of a partial role update. Nil fields are left unchanged.
// PermissionIDs, when set, replaces the role's grants.
type RoleUpdate struct {
	Name          *string
	Description   *string
	IsActive      *bool
	PermissionIDs *[]int64
}

const userSelectSQL = `
	SELECT u.id, u.external_id, u.email, u.display_name, u.role_id,
		COALESCE(r.name, ''), COALESCE(r.description, ''), u.is_active, u.created_at, u.updated_at
	FROM users u
	LEFT JOIN roles r ON r.id = u.role_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		user   domain.User
		roleID sql.NullInt64
	)
	err := row.Scan(&user.ID, &user.ExternalID, &user.Email, &user.DisplayName, &roleID,
		&user.RoleName, &user.RoleDescription, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if roleID.Valid {
		id := roleID.Int64
		user.RoleID = &id
	}
	return &user, nil
}

func (s *Store) txExec(ctx context.Context, tx *sql.Tx, query string, args ...any) (sql.Result, error) {
	return tx.ExecContext(ctx, s.Dialect.Rebind(query), args...)
}

// --- Seeding ---

// EnsurePermission inserts a permission unless one with the same name exists.
func (s *Store) EnsurePermission(ctx context.Context, p domain.Permission) error {
	_, err := s.exec(ctx,
		`INSERT INTO permissions (name, description, resource, action) VALUES (?, ?, ?, ?) ON CONFLICT (name) DO NOTHING`,
		p.Name, p.Description, p.Resource, p.Action)
	if err != nil {
		customLog.Errorf("Storage: Failed to seed permission %s: %v", p.Name, err)
		return fmt.Errorf("database error seeding permission: %w", err)
	}
	return nil
}

// EnsureRole inserts a role unless one with the same name exists.
func (s *Store) EnsureRole(ctx context.Context, name, description string) error {
	_, err := s.exec(ctx, `INSERT INTO roles (name, description) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`, name, description)
	if err != nil {
		customLog.Errorf("Storage: Failed to seed role %s: %v", name, err)
		return fmt.Errorf("database error seeding role: %w", err)
	}
	return nil
}

// EnsureGrant grants a permission to a role by name unless the grant exists. Unknown names are a no-op.
func (s *Store) EnsureGrant(ctx context.Context, roleName, permissionName string) error {
	_, err := s.exec(ctx, `
	INSERT INTO role_permissions (role_id, permission_id)
	SELECT r.id, p.id FROM roles r, permissions p WHERE r.name = ? AND p.name = ?
	ON CONFLICT (role_id, permission_id) DO NOTHING`, roleName, permissionName)
	if err != nil {
		customLog.Errorf("Storage: Failed to grant %s to %s: %v", permissionName, roleName, err)
		return fmt.Errorf("database error seeding grant: %w", err)
	}
	return nil
}

// --- Permission queries ---

// EffectivePermissionNames lists the permission names held through the user's role.
// Inactive users, users without a role and users whose role is inactive hold none.
func (s *Store) EffectivePermissionNames(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.query(ctx, `
	SELECT p.name
	FROM users u
	JOIN roles r ON r.id = u.role_id
	JOIN role_permissions rp ON rp.role_id = r.id
	JOIN permissions p ON p.id = rp.permission_id
	WHERE u.id = ? AND u.is_active = TRUE AND r.is_active = TRUE
	ORDER BY p.name`, userID)
	if err != nil {
		customLog.Errorf("Storage: Failed to load permissions of user %d: %v", userID, err)
		return nil, fmt.Errorf("database error loading permissions: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed reading permission: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading permissions: %w", err)
	}
	return names, nil
}

// UserHasPermission reports whether an active user holds a permission through an active role.
func (s *Store) UserHasPermission(ctx context.Context, userID int64, permissionName string) (bool, error) {
	return s.countGrant(ctx, "p.name = ?", userID, permissionName)
}

// UserHasResourcePermission is UserHasPermission keyed by resource and action.
func (s *Store) UserHasResourcePermission(ctx context.Context, userID int64, resource, action string) (bool, error) {
	return s.countGrant(ctx, "p.resource = ? AND p.action = ?", userID, resource, action)
}

func (s *Store) countGrant(ctx context.Context, predicate string, userID int64, args ...any) (bool, error) {
	var count int64
	err := s.queryRow(ctx, `
	SELECT COUNT(*)
	FROM users u
	JOIN roles r ON r.id = u.role_id
	JOIN role_permissions rp ON rp.role_id = r.id
	JOIN permissions p ON p.id = rp.permission_id
	WHERE u.id = ? AND u.is_active = TRUE AND r.is_active = TRUE AND `+predicate,
		append([]any{userID}, args...)...).Scan(&count)
	if err != nil {
		customLog.Errorf("Storage: Failed permission check for user %d: %v", userID, err)
		return false, fmt.Errorf("database error checking permission: %w", err)
	}
	return count > 0, nil
}

// ListPermissions returns every permission ordered by resource and action.
func (s *Store) ListPermissions(ctx context.Context) ([]domain.Permission, error) {
	rows, err := s.query(ctx, `SELECT id, name, description, resource, action FROM permissions ORDER BY resource, action`)
	if err != nil {
		customLog.Errorf("Storage: Failed to list permissions: %v", err)
		return nil, fmt.Errorf("database error listing permissions: %w", err)
	}
	defer rows.Close()

	perms := make([]domain.Permission, 0)
	for rows.Next() {
		var p domain.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Resource, &p.Action); err != nil {
			return nil, fmt.Errorf("failed reading permission: %w", err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading permissions: %w", err)
	}
	return perms, nil
}

// grantsByRole loads the permissions of the given roles, or of every role when roleIDs is empty.
func (s *Store) grantsByRole(ctx context.Context, roleIDs ...int64) (map[int64][]domain.Permission, error) {
	query := `
	SELECT rp.role_id, p.id, p.name, p.description, p.resource, p.action
	FROM role_permissions rp
	JOIN permissions p ON p.id = rp.permission_id`
	args := make([]any, 0, len(roleIDs))
	if len(roleIDs) > 0 {
		query += " WHERE rp.role_id IN (" + strings.TrimSuffix(strings.Repeat("?,", len(roleIDs)), ",") + ")"
		for _, id := range roleIDs {
			args = append(args, id)
		}
	}
	query += " ORDER BY p.resource, p.action"

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		customLog.Errorf("Storage: Failed to load role grants: %v", err)
		return nil, fmt.Errorf("database error loading role permissions: %w", err)
	}
	defer rows.Close()

	grants := make(map[int64][]domain.Permission)
	for rows.Next() {
		var (
			roleID int64
			p      domain.Permission
		)
		if err := rows.Scan(&roleID, &p.ID, &p.Name, &p.Description, &p.Resource, &p.Action); err != nil {
			return nil, fmt.Errorf("failed reading role permission: %w", err)
		}
		grants[roleID] = append(grants[roleID], p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading role permissions: %w", err)
	}
	return grants, nil
}

// --- Role operations ---

const roleSelectSQL = `
	SELECT r.id, r.name, r.description, r.is_active, r.created_at, r.updated_at,
		(SELECT COUNT(*) FROM users u WHERE u.role_id = r.id)
	FROM roles r`

func scanRole(row rowScanner) (*domain.Role, error) {
	var role domain.Role
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &role.IsActive, &role.CreatedAt, &role.UpdatedAt, &role.UserCount); err != nil {
		return nil, err
	}
	return &role, nil
}

// ListRoles returns every role with its user count and permissions.
func (s *Store) ListRoles(ctx context.Context) ([]domain.Role, error) {
	rows, err := s.query(ctx, roleSelectSQL+` ORDER BY r.id`)
	if err != nil {
		customLog.Errorf("Storage: Failed to list roles: %v", err)
		return nil, fmt.Errorf("database error listing roles: %w", err)
	}
	defer rows.Close()

	roles := make([]domain.Role, 0)
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed reading role: %w", err)
		}
		roles = append(roles, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading roles: %w", err)
	}
	rows.Close()

	grants, err := s.grantsByRole(ctx)
	if err != nil {
		return nil, err
	}
	for i := range roles {
		roles[i].Permissions = grants[roles[i].ID]
		if roles[i].Permissions == nil {
			roles[i].Permissions = make([]domain.Permission, 0)
		}
	}
	return roles, nil
}

// ListActiveRoles returns the roles a user may be assigned, without permissions.
func (s *Store) ListActiveRoles(ctx context.Context) ([]domain.Role, error) {
	rows, err := s.query(ctx, roleSelectSQL+` WHERE r.is_active = TRUE ORDER BY r.name`)
	if err != nil {
		customLog.Errorf("Storage: Failed to list active roles: %v", err)
		return nil, fmt.Errorf("database error listing roles: %w", err)
	}
	defer rows.Close()

	roles := make([]domain.Role, 0)
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed reading role: %w", err)
		}
		roles = append(roles, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading roles: %w", err)
	}
	return roles, nil
}

// GetRole returns a role with its permissions.
func (s *Store) GetRole(ctx context.Context, roleID int64) (*domain.Role, error) {
	role, err := scanRole(s.queryRow(ctx, roleSelectSQL+` WHERE r.id = ?`, roleID))
	return s.withGrants(ctx, role, err, fmt.Sprintf("id %d", roleID))
}

// GetRoleByName returns a role with its permissions.
func (s *Store) GetRoleByName(ctx context.Context, name string) (*domain.Role, error) {
	role, err := scanRole(s.queryRow(ctx, roleSelectSQL+` WHERE r.name = ?`, name))
	return s.withGrants(ctx, role, err, "name "+name)
}

// FirstActiveRole returns the active role with the lowest id.
func (s *Store) FirstActiveRole(ctx context.Context) (*domain.Role, error) {
	role, err := scanRole(s.queryRow(ctx, roleSelectSQL+` WHERE r.is_active = TRUE ORDER BY r.id LIMIT 1`))
	return s.withGrants(ctx, role, err, "first active")
}

func (s *Store) withGrants(ctx context.Context, role *domain.Role, err error, key string) (*domain.Role, error) {
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoleNotFound
		}
		customLog.Errorf("Storage: Failed to find role (%s): %v", key, err)
		return nil, fmt.Errorf("database error finding role: %w", err)
	}
	grants, err := s.grantsByRole(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	role.Permissions = grants[role.ID]
	if role.Permissions == nil {
		role.Permissions = make([]domain.Permission, 0)
	}
	return role, nil
}

// CreateRole inserts a role and its grants in one transaction.
func (s *Store) CreateRole(ctx context.Context, name, description string, permissionIDs []int64) (*domain.Role, error) {
	var roleID int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, s.Dialect.Rebind(`INSERT INTO roles (name, description) VALUES (?, ?) RETURNING id`),
			name, description).Scan(&roleID)
		if err != nil {
			if s.Dialect.IsUniqueViolation(err) {
				return ErrRoleExists
			}
			return fmt.Errorf("database error creating role: %w", err)
		}
		return s.replaceGrants(ctx, tx, roleID, permissionIDs)
	})
	if err != nil {
		customLog.Warnf("Storage: Failed to create role %s: %v", name, err)
		return nil, err
	}
	return s.GetRole(ctx, roleID)
}

// UpdateRole applies a partial update and, when requested, replaces the role's grants.
func (s *Store) UpdateRole(ctx context.Context, roleID int64, update RoleUpdate) (*domain.Role, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, s.Dialect.Rebind(`SELECT 1 FROM roles WHERE id = ?`), roleID).Scan(&exists)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrRoleNotFound
			}
			return fmt.Errorf("database error finding role: %w", err)
		}

		sets := []string{}
		args := []any{}
		if update.Name != nil {
			sets = append(sets, "name = ?")
			args = append(args, *update.Name)
		}
		if update.Description != nil {
			sets = append(sets, "description = ?")
			args = append(args, *update.Description)
		}
		if update.IsActive != nil {
			sets = append(sets, "is_active = ?")
			args = append(args, *update.IsActive)
		}
		sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
		args = append(args, roleID)

		if _, err := s.txExec(ctx, tx, "UPDATE roles SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...); err != nil {
			if s.Dialect.IsUniqueViolation(err) {
				return ErrRoleExists
			}
			return fmt.Errorf("database error updating role: %w", err)
		}

		if update.PermissionIDs == nil {
			return nil
		}
		if _, err := s.txExec(ctx, tx, `DELETE FROM role_permissions WHERE role_id = ?`, roleID); err != nil {
			return fmt.Errorf("database error clearing role permissions: %w", err)
		}
		return s.replaceGrants(ctx, tx, roleID, *update.PermissionIDs)
	})
	if err != nil {
		customLog.Warnf("Storage: Failed to update role %d: %v", roleID, err)
		return nil, err
	}
	return s.GetRole(ctx, roleID)
}

func (s *Store) replaceGrants(ctx context.Context, tx *sql.Tx, roleID int64, permissionIDs []int64) error {
	for _, permID := range permissionIDs {
		var exists int
		err := tx.QueryRowContext(ctx, s.Dialect.Rebind(`SELECT 1 FROM permissions WHERE id = ?`), permID).Scan(&exists)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: id %d", ErrPermissionNotFound, permID)
			}
			return fmt.Errorf("database error finding permission: %w", err)
		}
		_, err = s.txExec(ctx, tx,
			`INSERT INTO role_permissions (role_id, permission_id) VALUES (?, ?) ON CONFLICT (role_id, permission_id) DO NOTHING`,
			roleID, permID)
		if err != nil {
			return fmt.Errorf("database error granting permission: %w", err)
		}
	}
	return nil
}

// DeleteRole removes a role that no active user holds. Its grants cascade.
func (s *Store) DeleteRole(ctx context.Context, roleID int64) error {
	var exists int
	err := s.queryRow(ctx, `SELECT 1 FROM roles WHERE id = ?`, roleID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRoleNotFound
		}
		return fmt.Errorf("database error finding role: %w", err)
	}

	var assigned int64
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM users WHERE role_id = ? AND is_active = TRUE`, roleID).Scan(&assigned); err != nil {
		return fmt.Errorf("database error counting role users: %w", err)
	}
	if assigned > 0 {
		return fmt.Errorf("%w: %d active users", ErrRoleInUse, assigned)
	}

	if _, err := s.exec(ctx, `DELETE FROM roles WHERE id = ?`, roleID); err != nil {
		customLog.Errorf("Storage: Failed to delete role %d: %v", roleID, err)
		return fmt.Errorf("database error deleting role: %w", err)
	}
	return nil
}

// --- User operations ---

// InsertUserIfAbsent creates a user unless the external id or email is already taken.
func (s *Store) InsertUserIfAbsent(ctx context.Context, p domain.Principal, roleID *int64) error {
	_, err := s.exec(ctx,
		`INSERT INTO users (external_id, email, display_name, role_id) VALUES (?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		p.ExternalID, p.Email, p.DisplayName, roleID)
	if err != nil {
		customLog.Errorf("Storage: Failed to insert user %s: %v", p.Email, err)
		return fmt.Errorf("database error during user creation: %w", err)
	}
	return nil
}

// GetUserByID returns a user with its role name.
func (s *Store) GetUserByID(ctx context.Context, userID int64) (*domain.User, error) {
	return s.findUser(ctx, "u.id = ?", userID)
}

// GetUserByExternalID returns the user bound to an identity-provider subject.
func (s *Store) GetUserByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	return s.findUser(ctx, "u.external_id = ?", externalID)
}

// GetUserByEmail returns a user by email address.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.findUser(ctx, "u.email = ?", email)
}

func (s *Store) findUser(ctx context.Context, predicate string, arg any) (*domain.User, error) {
	user, err := scanUser(s.queryRow(ctx, userSelectSQL+" WHERE "+predicate, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		customLog.Errorf("Storage: Failed to find user (%v): %v", arg, err)
		return nil, fmt.Errorf("database error finding user: %w", err)
	}
	return user, nil
}

// UpdateDisplayName refreshes the display name reported by the identity provider.
func (s *Store) UpdateDisplayName(ctx context.Context, userID int64, displayName string) error {
	if _, err := s.exec(ctx, `UPDATE users SET display_name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, displayName, userID); err != nil {
		return fmt.Errorf("database error updating display name: %w", err)
	}
	return nil
}

// UpdateExternalID binds a user to a new identity-provider subject.
func (s *Store) UpdateExternalID(ctx context.Context, userID int64, externalID string) error {
	if _, err := s.exec(ctx, `UPDATE users SET external_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, externalID, userID); err != nil {
		if s.Dialect.IsUniqueViolation(err) {
			return fmt.Errorf("%w: external id %q is bound to another user", ErrConstraintViolation, externalID)
		}
		return fmt.Errorf("database error updating external id: %w", err)
	}
	return nil
}

// ListUsers returns one page of users matching the options and the total match count.
func (s *Store) ListUsers(ctx context.Context, opts *core.ListQueryOptions) ([]domain.User, int64, error) {
	where := []string{}
	args := []any{}
	if opts.Search != "" {
		where = append(where, "(u.display_name LIKE ? OR u.email LIKE ?)")
		pattern := "%" + opts.Search + "%"
		args = append(args, pattern, pattern)
	}
	if opts.Role != "" {
		where = append(where, "r.name = ?")
		args = append(args, opts.Role)
	}
	switch opts.Status {
	case "active":
		where = append(where, "u.is_active = TRUE")
	case "inactive":
		where = append(where, "u.is_active = FALSE")
	}
	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	countSQL := `SELECT COUNT(*) FROM users u LEFT JOIN roles r ON r.id = u.role_id` + whereSQL
	if err := s.queryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		customLog.Errorf("Storage: Failed to count users: %v", err)
		return nil, 0, fmt.Errorf("database error counting users: %w", err)
	}

	pageArgs := append(append([]any{}, args...), opts.Limit, opts.Offset())
	rows, err := s.query(ctx, userSelectSQL+whereSQL+` ORDER BY u.created_at DESC, u.id DESC LIMIT ? OFFSET ?`, pageArgs...)
	if err != nil {
		customLog.Errorf("Storage: Failed to list users: %v", err)
		return nil, 0, fmt.Errorf("database error listing users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed reading user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed reading users: %w", err)
	}
	return users, total, nil
}

// UserStats aggregates user counts. Registrations within the last 30 days count as recent.
func (s *Store) UserStats(ctx context.Context) (*domain.UserStats, error) {
	var stats domain.UserStats
	cutoff := time.Now().UTC().AddDate(0, 0, -30).Format("2006-01-02 15:04:05")
	err := s.queryRow(ctx, `
	SELECT COUNT(*),
		COALESCE(SUM(CASE WHEN is_active = TRUE THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0)
	FROM users`, cutoff).Scan(&stats.TotalUsers, &stats.ActiveUsers, &stats.RecentRegistrations)
	if err != nil {
		customLog.Errorf("Storage: Failed to compute user stats: %v", err)
		return nil, fmt.Errorf("database error computing user stats: %w", err)
	}
	stats.InactiveUsers = stats.TotalUsers - stats.ActiveUsers

	rows, err := s.query(ctx, `
	SELECT r.name, r.description, COUNT(u.id)
	FROM roles r
	LEFT JOIN users u ON u.role_id = r.id AND u.is_active = TRUE
	WHERE r.is_active = TRUE
	GROUP BY r.id, r.name, r.description
	ORDER BY r.id`)
	if err != nil {
		return nil, fmt.Errorf("database error computing role stats: %w", err)
	}
	defer rows.Close()

	stats.UsersByRole = make([]domain.RoleUserCount, 0)
	for rows.Next() {
		var rc domain.RoleUserCount
		if err := rows.Scan(&rc.RoleName, &rc.Description, &rc.UserCount); err != nil {
			return nil, fmt.Errorf("failed reading role stats: %w", err)
		}
		stats.UsersByRole = append(stats.UsersByRole, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading role stats: %w", err)
	}
	return &stats, nil
}

// UpdateUserRole assigns an active role to a user.
func (s *Store) UpdateUserRole(ctx context.Context, userID, roleID int64) (*domain.User, error) {
	var active bool
	err := s.queryRow(ctx, `SELECT is_active FROM roles WHERE id = ?`, roleID).Scan(&active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("database error finding role: %w", err)
	}
	if !active {
		return nil, ErrRoleInactive
	}

	result, err := s.exec(ctx, `UPDATE users SET role_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, roleID, userID)
	if err != nil {
		customLog.Errorf("Storage: Failed to update role of user %d: %v", userID, err)
		return nil, fmt.Errorf("database error updating user role: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return nil, ErrUserNotFound
	}
	return s.GetUserByID(ctx, userID)
}

// UpdateUserStatus activates or deactivates a user.
func (s *Store) UpdateUserStatus(ctx context.Context, userID int64, active bool) (*domain.User, error) {
	result, err := s.exec(ctx, `UPDATE users SET is_active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, active, userID)
	if err != nil {
		customLog.Errorf("Storage: Failed to update status of user %d: %v", userID, err)
		return nil, fmt.Errorf("database error updating user status: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return nil, ErrUserNotFound
	}
	return s.GetUserByID(ctx, userID)
}
