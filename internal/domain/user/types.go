// Package user defines the user/role/permission data model and the
// UserDirectory capability contract (spec.md §3, §4.6).
package user

import (
	"context"
	"time"

	"github.com/wardenauth/warden/internal/domain/audit"
)

// User is the directory's principal record (spec.md §3).
type User struct {
	ID         string
	Username   string
	Email      string
	IsActive   bool
	IsVerified bool
	Roles      map[string]struct{}
	Metadata   map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
	LastLogin  *time.Time
}

// HasRole reports whether the user carries the named role directly (not
// counting inheritance; see Role.Inherits for transitive expansion, computed
// by the Directory).
func (u *User) HasRole(name string) bool {
	_, ok := u.Roles[name]
	return ok
}

// Role groups permissions under a name, with an optional inheritance list
// (spec.md §3 "optional inherits list"; expanded per SPEC_FULL.md's role
// inheritance supplement).
type Role struct {
	Name        string
	Description string
	Permissions map[string]struct{}
	Inherits    []string
	Metadata    map[string]any
	AutoCreated bool
}

// Permission describes a `resource:action` capability, with `*` permitted as
// a wildcard segment in either position, or as `*:*` (spec.md §3).
type Permission struct {
	Name       string
	Resource   string
	Action     string
	Conditions map[string]any
}

// RoleChangeCallback is invoked after a role assignment or revocation
// completes (spec.md §4.6 "Role-change notification"). Callback failures
// are logged and suppressed by the Directory implementation; they never
// revert the role change.
type RoleChangeCallback func(userID, event, roleName string)

// Directory is the user/role/permission capability contract (spec.md §4.6).
type Directory interface {
	// CreateUser creates a new user. Required event: user.create.
	CreateUser(ctx context.Context, journal *audit.Journal, u *User) (*User, error)

	// GetByID, GetByUsername, GetByEmail look up a user. Not pipeline-guarded:
	// reads carry no audit requirement of their own in spec.md's operation
	// table.
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)

	// UpdateUser applies changes to an existing user. Required event:
	// user.update.
	UpdateUser(ctx context.Context, journal *audit.Journal, u *User) (*User, error)

	// DeleteUser removes a user and cascades to sessions and credentials.
	// Required event: user.delete.
	DeleteUser(ctx context.Context, journal *audit.Journal, id string) error

	// DefineRole registers a role definition.
	DefineRole(ctx context.Context, r Role) error

	// AssignRole attaches a role to a user, auto-creating the role if
	// AutoCreateRoles is enabled and the role is unknown (spec.md §4.6).
	AssignRole(ctx context.Context, userID, roleName string) error

	// RevokeRole detaches a role from a user.
	RevokeRole(ctx context.Context, userID, roleName string) error

	// GetUserRoles returns the user's directly-assigned role names.
	GetUserRoles(ctx context.Context, userID string) ([]string, error)

	// GetUserPermissions returns the union of permissions across all of the
	// user's roles (transitively through Role.Inherits) plus any permissions
	// assigned directly to the user (spec.md §4.6 "Role inference").
	GetUserPermissions(ctx context.Context, userID string) (map[string]struct{}, error)

	// DefinePermission registers a permission definition.
	DefinePermission(ctx context.Context, p Permission) error

	// CheckPermission reports whether the user's permission set grants p,
	// following the exact/prefix-wildcard/global-wildcard match order of
	// spec.md §4.6.
	CheckPermission(ctx context.Context, userID, permission string) (bool, error)

	// OnRoleChange registers a callback invoked after AssignRole/RevokeRole.
	OnRoleChange(cb RoleChangeCallback)
}
