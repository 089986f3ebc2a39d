// internal/domain/models.go
package domain

import "time"

// DeclaredType is the column type named in the template's type row.
type DeclaredType string

const (
	TypeText  DeclaredType = "TEXT"
	TypeInt   DeclaredType = "INT"
	TypeDate  DeclaredType = "DATE"
	TypeFloat DeclaredType = "FLOAT"
)

// ParseDeclaredType normalizes a type-row cell. Unknown or blank values are TEXT.
func ParseDeclaredType(raw string) DeclaredType {
	switch raw {
	case "INT", "INTEGER":
		return TypeInt
	case "DATE":
		return TypeDate
	case "FLOAT", "DOUBLE":
		return TypeFloat
	default:
		return TypeText
	}
}

// ColumnDefinition is one column of the upload template.
type ColumnDefinition struct {
	Name         string       `json:"name"`
	DeclaredType DeclaredType `json:"type"`
	Position     int          `json:"position"`
}

// RowRejection records why a spreadsheet row was not inserted.
type RowRejection struct {
	Row    int    `json:"row"`
	Reason string `json:"error"`
}

// UploadOutcome summarizes one upload request.
type UploadOutcome struct {
	InsertedCount int            `json:"rowsInserted"`
	Rejected      []RowRejection `json:"errors"`
}

// Role groups permissions assigned to users.
type Role struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	IsActive    bool         `json:"is_active"`
	UserCount   int64        `json:"user_count"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Permissions []Permission `json:"permissions"`
}

// Permission is a capability, named "<resource>.<action>".
type Permission struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Resource    string `json:"resource"`
	Action      string `json:"action"`
}

// User is a principal known to the service. RoleID is a weak reference.
type User struct {
	ID              int64        `json:"id"`
	ExternalID      string       `json:"external_id"`
	Email           string       `json:"email"`
	DisplayName     string       `json:"display_name"`
	RoleID          *int64       `json:"role_id"`
	RoleName        string       `json:"role_name,omitempty"`
	RoleDescription string       `json:"role_description,omitempty"`
	IsActive        bool         `json:"is_active"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	Permissions     []Permission `json:"permissions,omitempty"`
}

// Principal is what the identity provider asserts about a logged-in person.
type Principal struct {
	ExternalID  string
	Email       string
	DisplayName string
}

// PhysicalColumn is a column as reported by the store's catalog.
type PhysicalColumn struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// UserStats aggregates user counts for the admin dashboard.
type UserStats struct {
	TotalUsers          int64           `json:"total_users"`
	ActiveUsers         int64           `json:"active_users"`
	InactiveUsers       int64           `json:"inactive_users"`
	RecentRegistrations int64           `json:"recent_registrations"`
	UsersByRole         []RoleUserCount `json:"users_by_role"`
}

// RoleUserCount is one row of UserStats.UsersByRole.
type RoleUserCount struct {
	RoleName    string `json:"role_name"`
	Description string `json:"description"`
	UserCount   int64  `json:"user_count"`
}
