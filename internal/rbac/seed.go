package rbac

import (
	"context"
	"fmt"
	"strings"

	"github.com/Annany2002/nebula-insights/internal/domain"
)

// Seeded role names.
const (
	RoleDistrictOfficer = "do"
	RoleAdmin           = "admin"
	RoleSuperAdmin      = "superadmin"
)

type seedRole struct {
	name        string
	description string
	permissions []string
}

func permission(name, description string) domain.Permission {
	resource, action, _ := strings.Cut(name, ".")
	return domain.Permission{Name: name, Description: description, Resource: resource, Action: action}
}

// DefaultPermissions are installed at every start.
var DefaultPermissions = []domain.Permission{
	permission("data.upload", "Upload data files"),
	permission("data.read", "View uploaded data"),
	permission("data.download", "Download data files"),
	permission("data.filter", "Apply filters to data"),
	permission("analysis.basic", "Perform basic data analysis"),
	permission("analysis.advanced", "Perform advanced analytics"),
	permission("analysis.reports", "Generate reports"),
	permission("template.read", "View templates"),
	permission("template.download", "Download templates"),
	permission("role.read", "View roles"),
	permission("role.create", "Create roles"),
	permission("role.update", "Update roles"),
	permission("role.delete", "Delete roles"),
	permission("role.manage_permissions", "Assign permissions to roles"),
	permission("user.read", "View users"),
	permission("user.update", "Activate and deactivate users"),
	permission("user.manage_roles", "Assign roles to users"),
}

var analysisPermissions = []string{
	"data.read", "data.download", "data.filter",
	"analysis.basic", "analysis.advanced", "analysis.reports",
	"template.read", "template.download",
}

var defaultRoles = []seedRole{
	{
		name:        RoleDistrictOfficer,
		description: "District Officer - Can upload, download and analyze data with filters",
		permissions: append([]string{"data.upload"}, analysisPermissions...),
	},
	{
		name:        RoleAdmin,
		description: "Admin/Sales Executive - Can download and analyze data only",
		permissions: analysisPermissions,
	},
	{
		name:        RoleSuperAdmin,
		description: "Administrator - Manages roles, users and every data capability",
		permissions: nil, // every default permission
	},
}

// Seed installs the default roles, permissions and grants. Existing rows are left untouched, so
// running it on every start is safe and never undoes administrative changes to existing roles.
func (r *Resolver) Seed(ctx context.Context) error {
	for _, p := range DefaultPermissions {
		if err := r.store.EnsurePermission(ctx, p); err != nil {
			return err
		}
	}
	for _, role := range defaultRoles {
		if err := r.store.EnsureRole(ctx, role.name, role.description); err != nil {
			return err
		}
		grants := role.permissions
		if grants == nil {
			for _, p := range DefaultPermissions {
				grants = append(grants, p.Name)
			}
		}
		for _, name := range grants {
			if err := r.store.EnsureGrant(ctx, role.name, name); err != nil {
				return fmt.Errorf("failed to seed %s grants: %w", role.name, err)
			}
		}
	}
	customLog.Infof("RBAC: Seeded %d roles and %d permissions", len(defaultRoles), len(DefaultPermissions))
	return nil
}
