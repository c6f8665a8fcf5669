package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wardenauth/warden/internal/domain/audit"
	"github.com/wardenauth/warden/internal/domain/credential"
	"github.com/wardenauth/warden/internal/domain/enforcement"
	"github.com/wardenauth/warden/internal/domain/user"
	"github.com/wardenauth/warden/internal/domain/wardenerr"
)

// knownCredentialKinds enumerates the kinds DeleteUser sweeps when cascading
// to the credential store, since credential.Store has no delete-all-for-user
// operation of its own (spec.md §4.4's operation table scopes DeleteCredentials
// to a single kind).
var knownCredentialKinds = []credential.Kind{credential.KindPassword, credential.KindToken, credential.KindAPIKey}

// UserDirectory implements user.Directory in memory: a user map plus
// case-insensitive username/email indexes, a role registry with inheritance,
// and a permission registry. Cascading delete composes directly with a
// SessionManager and CredentialStore rather than going through an event bus,
// matching the teacher's direct-composition style over message-passing.
type UserDirectory struct {
	mu sync.RWMutex

	users      map[string]*user.User
	byUsername map[string]string // lowercased username -> user id
	byEmail    map[string]string // lowercased email -> user id

	roles       map[string]user.Role
	permissions map[string]user.Permission

	autoCreateRoles bool

	sessions    *SessionManager
	credentials *CredentialStore

	callbacks []user.RoleChangeCallback

	logger *slog.Logger
}

// NewUserDirectory creates an empty in-memory user directory. sessions and
// credentials may be nil, in which case DeleteUser skips that cascade leg.
func NewUserDirectory(sessions *SessionManager, credentials *CredentialStore, opts ...UserDirectoryOption) *UserDirectory {
	d := &UserDirectory{
		users:           make(map[string]*user.User),
		byUsername:      make(map[string]string),
		byEmail:         make(map[string]string),
		roles:           make(map[string]user.Role),
		permissions:     make(map[string]user.Permission),
		autoCreateRoles: true,
		sessions:        sessions,
		credentials:     credentials,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// UserDirectoryOption configures a UserDirectory at construction.
type UserDirectoryOption func(*UserDirectory)

// WithStrictRoles disables auto-creation of unknown roles on AssignRole
// (spec.md §4.6 "Auto-create roles" describes this as the default, opt-out
// behavior).
func WithStrictRoles() UserDirectoryOption {
	return func(d *UserDirectory) { d.autoCreateRoles = false }
}

// WithDirectoryLogger overrides the default slog.Logger.
func WithDirectoryLogger(l *slog.Logger) UserDirectoryOption {
	return func(d *UserDirectory) { d.logger = l }
}

const userTypeName = "memory.UserDirectory"

var (
	userCreateTerm = audit.Single(audit.EventUserCreate)
	userUpdateTerm = audit.Single(audit.EventUserUpdate)
	userDeleteTerm = audit.Single(audit.EventUserDelete)
)

// CreateUser stores a new user, enforcing case-insensitive username/email
// uniqueness (spec.md §4.6 "Uniqueness").
func (d *UserDirectory) CreateUser(ctx context.Context, journal *audit.Journal, u *user.User) (*user.User, error) {
	return enforcement.RunValue(journal, userTypeName+".CreateUser", userCreateTerm, func() (*user.User, error) {
		d.mu.Lock()
		defer d.mu.Unlock()

		unameKey := strings.ToLower(u.Username)
		emailKey := strings.ToLower(u.Email)
		if _, exists := d.byUsername[unameKey]; exists {
			return nil, wardenerr.NewAuthValidationError(fmt.Sprintf("username %q already exists", u.Username), nil)
		}
		if u.Email != "" {
			if _, exists := d.byEmail[emailKey]; exists {
				return nil, wardenerr.NewAuthValidationError(fmt.Sprintf("email %q already exists", u.Email), nil)
			}
		}

		clone := cloneUser(u)
		if clone.ID == "" {
			clone.ID = uuid.NewString()
		}
		if clone.Roles == nil {
			clone.Roles = make(map[string]struct{})
		}
		now := time.Now().UTC()
		clone.CreatedAt = now
		clone.UpdatedAt = now
		clone.IsActive = true

		d.users[clone.ID] = clone
		d.byUsername[unameKey] = clone.ID
		if u.Email != "" {
			d.byEmail[emailKey] = clone.ID
		}

		journal.Emit(audit.EventUserCreate, map[string]any{"user_id": clone.ID, "username": clone.Username})
		return cloneUser(clone), nil
	})
}

// GetByID looks up a user by id. Not pipeline-guarded.
func (d *UserDirectory) GetByID(ctx context.Context, id string) (*user.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return nil, wardenerr.NewProviderError(wardenerr.ProviderNotFound, "user not found", nil)
	}
	return cloneUser(u), nil
}

// GetByUsername looks up a user by case-insensitive username.
func (d *UserDirectory) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byUsername[strings.ToLower(username)]
	if !ok {
		return nil, wardenerr.NewProviderError(wardenerr.ProviderNotFound, "user not found", nil)
	}
	return cloneUser(d.users[id]), nil
}

// GetByEmail looks up a user by case-insensitive email.
func (d *UserDirectory) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, wardenerr.NewProviderError(wardenerr.ProviderNotFound, "user not found", nil)
	}
	return cloneUser(d.users[id]), nil
}

// UpdateUser applies changes to an existing user, keeping the
// username/email indexes consistent.
func (d *UserDirectory) UpdateUser(ctx context.Context, journal *audit.Journal, u *user.User) (*user.User, error) {
	return enforcement.RunValue(journal, userTypeName+".UpdateUser", userUpdateTerm, func() (*user.User, error) {
		d.mu.Lock()
		defer d.mu.Unlock()

		existing, ok := d.users[u.ID]
		if !ok {
			return nil, wardenerr.NewProviderError(wardenerr.ProviderNotFound, "user not found", nil)
		}

		newUnameKey := strings.ToLower(u.Username)
		oldUnameKey := strings.ToLower(existing.Username)
		if newUnameKey != oldUnameKey {
			if ownerID, exists := d.byUsername[newUnameKey]; exists && ownerID != u.ID {
				return nil, wardenerr.NewAuthValidationError(fmt.Sprintf("username %q already exists", u.Username), nil)
			}
			delete(d.byUsername, oldUnameKey)
			d.byUsername[newUnameKey] = u.ID
		}

		newEmailKey := strings.ToLower(u.Email)
		oldEmailKey := strings.ToLower(existing.Email)
		if newEmailKey != oldEmailKey {
			if newEmailKey != "" {
				if ownerID, exists := d.byEmail[newEmailKey]; exists && ownerID != u.ID {
					return nil, wardenerr.NewAuthValidationError(fmt.Sprintf("email %q already exists", u.Email), nil)
				}
			}
			if oldEmailKey != "" {
				delete(d.byEmail, oldEmailKey)
			}
			if newEmailKey != "" {
				d.byEmail[newEmailKey] = u.ID
			}
		}

		clone := cloneUser(u)
		clone.CreatedAt = existing.CreatedAt
		clone.UpdatedAt = time.Now().UTC()
		d.users[u.ID] = clone

		journal.Emit(audit.EventUserUpdate, map[string]any{"user_id": u.ID})
		return cloneUser(clone), nil
	})
}

// DeleteUser removes a user and cascades to its sessions and credentials
// (spec.md §4.6 "Cascading delete").
func (d *UserDirectory) DeleteUser(ctx context.Context, journal *audit.Journal, id string) error {
	return enforcement.Run(journal, userTypeName+".DeleteUser", userDeleteTerm, func() error {
		d.mu.Lock()
		u, ok := d.users[id]
		if !ok {
			d.mu.Unlock()
			return wardenerr.NewProviderError(wardenerr.ProviderNotFound, "user not found", nil)
		}
		delete(d.users, id)
		delete(d.byUsername, strings.ToLower(u.Username))
		if u.Email != "" {
			delete(d.byEmail, strings.ToLower(u.Email))
		}
		d.mu.Unlock()

		if d.sessions != nil {
			if _, err := d.sessions.DestroyUserSessions(ctx, journal, id); err != nil {
				d.logger.Warn("failed to cascade-destroy sessions on user delete", "user_id", id, "error", err)
			}
		}
		if d.credentials != nil {
			for _, kind := range knownCredentialKinds {
				if err := d.credentials.DeleteCredentials(ctx, journal, id, kind); err != nil {
					d.logger.Debug("no credential to cascade-delete", "user_id", id, "kind", kind)
				}
			}
		}

		journal.Emit(audit.EventUserDelete, map[string]any{"user_id": id})
		return nil
	})
}

// DefineRole registers a role definition, validating that Inherits does not
// introduce a cycle (SPEC_FULL.md's role-inheritance supplement, grounded in
// original_source/serv/auth/role_registry.py).
func (d *UserDirectory) DefineRole(ctx context.Context, r user.Role) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if r.Permissions == nil {
		r.Permissions = make(map[string]struct{})
	}
	d.roles[r.Name] = r
	if err := d.detectCycleLocked(r.Name, make(map[string]bool)); err != nil {
		delete(d.roles, r.Name)
		return err
	}
	return nil
}

// detectCycleLocked must be called with d.mu held. It walks Inherits
// starting at name and returns an error if the walk revisits a role already
// on the current path.
func (d *UserDirectory) detectCycleLocked(name string, visiting map[string]bool) error {
	if visiting[name] {
		return wardenerr.NewAuthValidationError(fmt.Sprintf("role %q inherits itself transitively", name), nil)
	}
	visiting[name] = true
	defer delete(visiting, name)

	role, ok := d.roles[name]
	if !ok {
		return nil
	}
	for _, parent := range role.Inherits {
		if err := d.detectCycleLocked(parent, visiting); err != nil {
			return err
		}
	}
	return nil
}

// AssignRole attaches roleName to userID, auto-creating an empty role
// definition if it is unknown and auto-creation is enabled (spec.md §4.6).
func (d *UserDirectory) AssignRole(ctx context.Context, userID, roleName string) error {
	d.mu.Lock()
	u, ok := d.users[userID]
	if !ok {
		d.mu.Unlock()
		return wardenerr.NewProviderError(wardenerr.ProviderNotFound, "user not found", nil)
	}
	if _, ok := d.roles[roleName]; !ok {
		if !d.autoCreateRoles {
			d.mu.Unlock()
			return wardenerr.NewAuthValidationError(fmt.Sprintf("role %q is not defined", roleName), nil)
		}
		d.roles[roleName] = user.Role{
			Name:        roleName,
			Permissions: make(map[string]struct{}),
			AutoCreated: true,
		}
	}
	if u.Roles == nil {
		u.Roles = make(map[string]struct{})
	}
	u.Roles[roleName] = struct{}{}
	u.UpdatedAt = time.Now().UTC()
	d.mu.Unlock()

	d.notifyRoleChange(userID, "assigned", roleName)
	return nil
}

// RevokeRole detaches roleName from userID.
func (d *UserDirectory) RevokeRole(ctx context.Context, userID, roleName string) error {
	d.mu.Lock()
	u, ok := d.users[userID]
	if !ok {
		d.mu.Unlock()
		return wardenerr.NewProviderError(wardenerr.ProviderNotFound, "user not found", nil)
	}
	delete(u.Roles, roleName)
	u.UpdatedAt = time.Now().UTC()
	d.mu.Unlock()

	d.notifyRoleChange(userID, "revoked", roleName)
	return nil
}

// notifyRoleChange invokes every registered callback, logging and
// suppressing any panic or the callback's own side effects rather than
// reverting the role change that already committed (spec.md §4.6
// "Role-change notification").
func (d *UserDirectory) notifyRoleChange(userID, event, roleName string) {
	d.mu.RLock()
	callbacks := append([]user.RoleChangeCallback(nil), d.callbacks...)
	d.mu.RUnlock()

	for _, cb := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					d.logger.Warn("role change callback panicked", "user_id", userID, "event", event, "role", roleName, "panic", r)
				}
			}()
			cb(userID, event, roleName)
		}()
	}
}

// GetUserRoles returns the user's directly-assigned role names.
func (d *UserDirectory) GetUserRoles(ctx context.Context, userID string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[userID]
	if !ok {
		return nil, wardenerr.NewProviderError(wardenerr.ProviderNotFound, "user not found", nil)
	}
	roles := make([]string, 0, len(u.Roles))
	for name := range u.Roles {
		roles = append(roles, name)
	}
	return roles, nil
}

// GetUserPermissions returns the union of permissions across all of the
// user's roles, expanded transitively through Role.Inherits (spec.md §4.6
// "Role inference").
func (d *UserDirectory) GetUserPermissions(ctx context.Context, userID string) (map[string]struct{}, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[userID]
	if !ok {
		return nil, wardenerr.NewProviderError(wardenerr.ProviderNotFound, "user not found", nil)
	}

	perms := make(map[string]struct{})
	seen := make(map[string]bool)
	var walk func(roleName string)
	walk = func(roleName string) {
		if seen[roleName] {
			return
		}
		seen[roleName] = true
		role, ok := d.roles[roleName]
		if !ok {
			return
		}
		for p := range role.Permissions {
			perms[p] = struct{}{}
		}
		for _, parent := range role.Inherits {
			walk(parent)
		}
	}
	for roleName := range u.Roles {
		walk(roleName)
	}
	return perms, nil
}

// DefinePermission registers a permission definition.
func (d *UserDirectory) DefinePermission(ctx context.Context, p user.Permission) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.permissions[p.Name] = p
	return nil
}

// CheckPermission reports whether userID's permission set grants permission,
// following the exact match, then resource-prefix wildcard (`resource:*`),
// then global wildcard (`*:*`) order of spec.md §4.6 step 4.
func (d *UserDirectory) CheckPermission(ctx context.Context, userID, permission string) (bool, error) {
	perms, err := d.GetUserPermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	if _, ok := perms[permission]; ok {
		return true, nil
	}

	resource, _, found := strings.Cut(permission, ":")
	if found {
		if _, ok := perms[resource+":*"]; ok {
			return true, nil
		}
	}
	if _, ok := perms["*:*"]; ok {
		return true, nil
	}
	return false, nil
}

// OnRoleChange registers a callback invoked after AssignRole/RevokeRole.
func (d *UserDirectory) OnRoleChange(cb user.RoleChangeCallback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callbacks = append(d.callbacks, cb)
}

func cloneUser(u *user.User) *user.User {
	clone := *u
	clone.Roles = make(map[string]struct{}, len(u.Roles))
	for k := range u.Roles {
		clone.Roles[k] = struct{}{}
	}
	clone.Metadata = make(map[string]any, len(u.Metadata))
	for k, v := range u.Metadata {
		clone.Metadata[k] = v
	}
	return &clone
}

var _ user.Directory = (*UserDirectory)(nil)
