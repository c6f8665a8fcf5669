package memory

import (
	"context"
	"testing"

	"github.com/wardenauth/warden/internal/domain/audit"
	"github.com/wardenauth/warden/internal/domain/session"
	"github.com/wardenauth/warden/internal/domain/user"
)

func newTestUserDirectory() *UserDirectory {
	return NewUserDirectory(newTestSessionManager(), newTestCredentialStore())
}

func TestUserDirectory_CreateAndLookup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := newTestUserDirectory()
	j := audit.NewJournal(ctx, nil)

	if _, err := d.CreateUser(ctx, j, &user.User{Username: "Alice", Email: "Alice@Example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := d.GetByUsername(ctx, "alice"); err != nil {
		t.Fatalf("expected case-insensitive username lookup to succeed: %v", err)
	}
	if _, err := d.GetByEmail(ctx, "alice@example.com"); err != nil {
		t.Fatalf("expected case-insensitive email lookup to succeed: %v", err)
	}

	if _, err := d.CreateUser(ctx, j, &user.User{Username: "alice", Email: "other@example.com"}); err == nil {
		t.Fatal("expected duplicate username to be rejected")
	}
}

func TestUserDirectory_RoleInheritanceCycleRejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := newTestUserDirectory()

	if err := d.DefineRole(ctx, user.Role{Name: "a", Inherits: []string{"b"}}); err != nil {
		t.Fatalf("define a: %v", err)
	}
	if err := d.DefineRole(ctx, user.Role{Name: "b", Inherits: []string{"a"}}); err == nil {
		t.Fatal("expected cycle to be rejected")
	}
}

func TestUserDirectory_PermissionsInheritTransitively(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := newTestUserDirectory()
	j := audit.NewJournal(ctx, nil)

	if err := d.DefineRole(ctx, user.Role{Name: "base", Permissions: map[string]struct{}{"docs:read": {}}}); err != nil {
		t.Fatalf("define base: %v", err)
	}
	if err := d.DefineRole(ctx, user.Role{Name: "editor", Inherits: []string{"base"}, Permissions: map[string]struct{}{"docs:write": {}}}); err != nil {
		t.Fatalf("define editor: %v", err)
	}

	u, err := d.CreateUser(ctx, j, &user.User{Username: "eve"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := d.AssignRole(ctx, u.ID, "editor"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	ok, err := d.CheckPermission(ctx, u.ID, "docs:read")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !ok {
		t.Fatal("expected inherited permission to be granted")
	}
}

func TestUserDirectory_CheckPermissionWildcardFallback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := newTestUserDirectory()
	j := audit.NewJournal(ctx, nil)

	if err := d.DefineRole(ctx, user.Role{Name: "admin", Permissions: map[string]struct{}{"*:*": {}}}); err != nil {
		t.Fatalf("define: %v", err)
	}
	u, err := d.CreateUser(ctx, j, &user.User{Username: "root"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := d.AssignRole(ctx, u.ID, "admin"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	ok, err := d.CheckPermission(ctx, u.ID, "anything:goes")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !ok {
		t.Fatal("expected *:* to grant any permission")
	}
}

func TestUserDirectory_AssignRoleAutoCreates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := newTestUserDirectory()
	j := audit.NewJournal(ctx, nil)

	u, err := d.CreateUser(ctx, j, &user.User{Username: "frank"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := d.AssignRole(ctx, u.ID, "never-defined"); err != nil {
		t.Fatalf("expected auto-create to allow assignment, got: %v", err)
	}

	roles, err := d.GetUserRoles(ctx, u.ID)
	if err != nil {
		t.Fatalf("get roles: %v", err)
	}
	if len(roles) != 1 || roles[0] != "never-defined" {
		t.Fatalf("expected [never-defined], got %v", roles)
	}
}

func TestUserDirectory_RoleChangeCallbackInvoked(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := newTestUserDirectory()
	j := audit.NewJournal(ctx, nil)

	var gotEvent, gotRole string
	d.OnRoleChange(func(userID, event, roleName string) {
		gotEvent = event
		gotRole = roleName
	})

	u, err := d.CreateUser(ctx, j, &user.User{Username: "grace"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := d.AssignRole(ctx, u.ID, "viewer"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if gotEvent != "assigned" || gotRole != "viewer" {
		t.Fatalf("expected callback to observe assigned/viewer, got %s/%s", gotEvent, gotRole)
	}
}

func TestUserDirectory_DeleteUserCascadesSessions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := newTestUserDirectory()
	j := audit.NewJournal(ctx, nil)

	u, err := d.CreateUser(ctx, j, &user.User{Username: "henry"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	sess, err := d.sessions.Create(ctx, j, u.ID, "fp", 0)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	if err := d.DeleteUser(ctx, j, u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := d.sessions.Validate(ctx, j, session.ValidateParams{SessionID: sess.ID}); err == nil {
		t.Fatal("expected session to have been destroyed by cascading delete")
	}
}
