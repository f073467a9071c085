package roleadmin

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture wires an in-memory store with the standard demo roles and three
// users. A is the acting admin holding Assigner+Editor, B and C start with
// no grants unless a test adds some.
type fixture struct {
	store *InMemoryRoleStore

	assigner Role
	editor   Role
	viewer   Role

	userA User
	userB User
	userC User
}

func newFixture() *fixture {
	f := &fixture{
		store:    NewInMemoryRoleStore(),
		assigner: Role{ID: uuid.New(), Name: AssignerRoleName},
		editor:   Role{ID: uuid.New(), Name: "Editor"},
		viewer:   Role{ID: uuid.New(), Name: "Viewer"},
		userA:    User{ID: uuid.New(), Name: "Alice", Email: "alice@example.com"},
		userB:    User{ID: uuid.New(), Name: "Bob", Email: "bob@example.com"},
		userC:    User{ID: uuid.New(), Name: "Carol", Email: "carol@example.com"},
	}
	for _, role := range []Role{f.assigner, f.editor, f.viewer} {
		f.store.SeedRole(role)
	}
	for _, user := range []User{f.userA, f.userB, f.userC} {
		f.store.SeedUser(user)
	}
	return f
}

// adminActor is user A holding Assigner and Editor
func (f *fixture) adminActor() Actor {
	return Actor{UserID: f.userA.ID, Roles: []Role{f.assigner, f.editor}}
}

func (f *fixture) traceOf(t *testing.T, userID uuid.UUID) []TraceEntry {
	t.Helper()
	entries, err := f.store.TraceForUser(context.Background(), userID)
	require.NoError(t, err)
	return entries
}

func TestAssign(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds for assigner holding the role", func(t *testing.T) {
		f := newFixture()
		service := NewMutationService(f.store)
		actor := f.adminActor()

		err := service.Assign(ctx, actor, f.userB.ID, f.editor.ID)
		require.NoError(t, err)

		has, err := f.store.UserHasRole(ctx, f.userB.ID, "Editor")
		require.NoError(t, err)
		assert.True(t, has)

		trace := f.traceOf(t, f.userB.ID)
		require.Len(t, trace, 1)
		assert.Equal(t, ActionAssign, trace[0].ActionType)
		assert.Equal(t, f.editor.ID, trace[0].RoleID)
		assert.Equal(t, actor.UserID, trace[0].PerformedBy)
	})

	t.Run("denied when actor lacks the delegated role", func(t *testing.T) {
		f := newFixture()
		service := NewMutationService(f.store)
		actor := Actor{UserID: f.userA.ID, Roles: []Role{f.assigner, f.viewer}}

		err := service.Assign(ctx, actor, f.userB.ID, f.editor.ID)
		assert.ErrorIs(t, err, ErrRoleNotHeld)
		assert.Empty(t, f.traceOf(t, f.userB.ID))
	})

	t.Run("denied when actor is not an assigner", func(t *testing.T) {
		f := newFixture()
		service := NewMutationService(f.store)
		actor := Actor{UserID: f.userA.ID, Roles: []Role{f.editor}}

		err := service.Assign(ctx, actor, f.userB.ID, f.editor.ID)
		assert.ErrorIs(t, err, ErrNotAssigner)
		assert.Empty(t, f.traceOf(t, f.userB.ID))
	})

	t.Run("denied for the Assigner role even when actor holds it", func(t *testing.T) {
		f := newFixture()
		service := NewMutationService(f.store)

		err := service.Assign(ctx, f.adminActor(), f.userB.ID, f.assigner.ID)
		assert.ErrorIs(t, err, ErrAssignerNotDelegable)
		assert.Empty(t, f.traceOf(t, f.userB.ID))
	})

	t.Run("unknown role id", func(t *testing.T) {
		f := newFixture()
		service := NewMutationService(f.store)

		err := service.Assign(ctx, f.adminActor(), f.userB.ID, uuid.New())
		assert.ErrorIs(t, err, ErrRoleNotFound)
	})

	t.Run("duplicate grant is rejected", func(t *testing.T) {
		f := newFixture()
		service := NewMutationService(f.store)

		require.NoError(t, service.Assign(ctx, f.adminActor(), f.userB.ID, f.editor.ID))
		err := service.Assign(ctx, f.adminActor(), f.userB.ID, f.editor.ID)
		assert.ErrorIs(t, err, ErrRoleAlreadyGranted)

		// Only the first assign left rows behind
		assert.Len(t, f.traceOf(t, f.userB.ID), 1)
	})
}

func TestRemove(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds when target holds the role", func(t *testing.T) {
		f := newFixture()
		service := NewMutationService(f.store)
		f.store.SeedGrant(f.userB.ID, f.viewer.ID)

		err := service.Remove(ctx, f.adminActor(), f.userB.ID, f.viewer.ID)
		require.NoError(t, err)

		has, err := f.store.UserHasRole(ctx, f.userB.ID, "Viewer")
		require.NoError(t, err)
		assert.False(t, has)

		trace := f.traceOf(t, f.userB.ID)
		require.Len(t, trace, 1)
		assert.Equal(t, ActionRemove, trace[0].ActionType)
		assert.Equal(t, f.userA.ID, trace[0].PerformedBy)
	})

	t.Run("revoker does not need to hold the role", func(t *testing.T) {
		f := newFixture()
		service := NewMutationService(f.store)
		f.store.SeedGrant(f.userB.ID, f.viewer.ID)

		actor := Actor{UserID: f.userA.ID, Roles: []Role{f.assigner}}
		assert.NoError(t, service.Remove(ctx, actor, f.userB.ID, f.viewer.ID))
	})

	t.Run("denied for non-assigner", func(t *testing.T) {
		f := newFixture()
		service := NewMutationService(f.store)
		f.store.SeedGrant(f.userB.ID, f.viewer.ID)

		actor := Actor{UserID: f.userA.ID, Roles: []Role{f.viewer}}
		err := service.Remove(ctx, actor, f.userB.ID, f.viewer.ID)
		assert.ErrorIs(t, err, ErrNotAssigner)
		assert.Empty(t, f.traceOf(t, f.userB.ID))
	})

	t.Run("fails when target does not hold the role", func(t *testing.T) {
		f := newFixture()
		service := NewMutationService(f.store)

		err := service.Remove(ctx, f.adminActor(), f.userB.ID, f.viewer.ID)
		assert.ErrorIs(t, err, ErrGrantNotFound)
		assert.Empty(t, f.traceOf(t, f.userB.ID))
	})
}

func TestEdit(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces old role with new and traces both halves", func(t *testing.T) {
		f := newFixture()
		service := NewMutationService(f.store)
		f.store.SeedGrant(f.userB.ID, f.viewer.ID)

		err := service.Edit(ctx, f.adminActor(), f.userB.ID, f.viewer.ID, f.editor.ID)
		require.NoError(t, err)

		hasOld, err := f.store.UserHasRole(ctx, f.userB.ID, "Viewer")
		require.NoError(t, err)
		assert.False(t, hasOld)
		hasNew, err := f.store.UserHasRole(ctx, f.userB.ID, "Editor")
		require.NoError(t, err)
		assert.True(t, hasNew)

		trace := f.traceOf(t, f.userB.ID)
		require.Len(t, trace, 2)
		// Newest first: the EDIT for the new grant, then the REMOVE
		assert.Equal(t, ActionEdit, trace[0].ActionType)
		assert.Equal(t, f.editor.ID, trace[0].RoleID)
		assert.Equal(t, ActionRemove, trace[1].ActionType)
		assert.Equal(t, f.viewer.ID, trace[1].RoleID)
	})

	t.Run("denied for non-assigner", func(t *testing.T) {
		f := newFixture()
		service := NewMutationService(f.store)
		f.store.SeedGrant(f.userB.ID, f.viewer.ID)

		actor := Actor{UserID: f.userA.ID, Roles: []Role{f.editor}}
		err := service.Edit(ctx, actor, f.userB.ID, f.viewer.ID, f.editor.ID)
		assert.ErrorIs(t, err, ErrNotAssigner)

		// Nothing changed
		has, _ := f.store.UserHasRole(ctx, f.userB.ID, "Viewer")
		assert.True(t, has)
		assert.Empty(t, f.traceOf(t, f.userB.ID))
	})

	t.Run("denied when new role is Assigner", func(t *testing.T) {
		f := newFixture()
		service := NewMutationService(f.store)
		f.store.SeedGrant(f.userB.ID, f.viewer.ID)

		err := service.Edit(ctx, f.adminActor(), f.userB.ID, f.viewer.ID, f.assigner.ID)
		assert.ErrorIs(t, err, ErrAssignerNotDelegable)
	})

	t.Run("fails when old grant does not exist", func(t *testing.T) {
		f := newFixture()
		service := NewMutationService(f.store)

		err := service.Edit(ctx, f.adminActor(), f.userB.ID, f.viewer.ID, f.editor.ID)
		assert.ErrorIs(t, err, ErrGrantNotFound)
		assert.Empty(t, f.traceOf(t, f.userB.ID))
	})

	t.Run("fails when target already holds the new role", func(t *testing.T) {
		f := newFixture()
		service := NewMutationService(f.store)
		f.store.SeedGrant(f.userB.ID, f.viewer.ID)
		f.store.SeedGrant(f.userB.ID, f.editor.ID)

		err := service.Edit(ctx, f.adminActor(), f.userB.ID, f.viewer.ID, f.editor.ID)
		assert.ErrorIs(t, err, ErrRoleAlreadyGranted)

		// The old grant must survive the failed replace
		has, _ := f.store.UserHasRole(ctx, f.userB.ID, "Viewer")
		assert.True(t, has)
		assert.Empty(t, f.traceOf(t, f.userB.ID))
	})
}

func TestSharedRoleUsers(t *testing.T) {
	ctx := context.Background()

	t.Run("returns peers sharing a non-Assigner role", func(t *testing.T) {
		f := newFixture()
		service := NewQueryService(f.store)
		f.store.SeedGrant(f.userA.ID, f.assigner.ID)
		f.store.SeedGrant(f.userA.ID, f.editor.ID)
		f.store.SeedGrant(f.userB.ID, f.editor.ID)
		f.store.SeedGrant(f.userB.ID, f.viewer.ID)
		f.store.SeedGrant(f.userC.ID, f.viewer.ID)

		users, err := service.SharedRoleUsers(ctx, f.adminActor())
		require.NoError(t, err)

		// Only B shares Editor with A; C only holds Viewer, which A lacks
		require.Len(t, users, 1)
		assert.Equal(t, f.userB.ID, users[0].ID)

		// B's full role list comes along
		roleNames := []string{}
		for _, role := range users[0].Roles {
			roleNames = append(roleNames, role.Name)
		}
		assert.ElementsMatch(t, []string{"Editor", "Viewer"}, roleNames)
	})

	t.Run("never exposes the acting user or other assigners", func(t *testing.T) {
		f := newFixture()
		service := NewQueryService(f.store)
		f.store.SeedGrant(f.userA.ID, f.assigner.ID)
		f.store.SeedGrant(f.userA.ID, f.editor.ID)
		// B shares Editor but also holds Assigner, so B is hidden
		f.store.SeedGrant(f.userB.ID, f.editor.ID)
		f.store.SeedGrant(f.userB.ID, f.assigner.ID)

		users, err := service.SharedRoleUsers(ctx, f.adminActor())
		require.NoError(t, err)
		assert.Empty(t, users)
	})

	t.Run("empty when actor holds only Assigner", func(t *testing.T) {
		f := newFixture()
		service := NewQueryService(f.store)
		f.store.SeedGrant(f.userA.ID, f.assigner.ID)
		f.store.SeedGrant(f.userB.ID, f.editor.ID)

		actor := Actor{UserID: f.userA.ID, Roles: []Role{f.assigner}}
		users, err := service.SharedRoleUsers(ctx, actor)
		require.NoError(t, err)
		assert.Empty(t, users)
	})

	t.Run("denied for non-assigner", func(t *testing.T) {
		f := newFixture()
		service := NewQueryService(f.store)

		actor := Actor{UserID: f.userA.ID, Roles: []Role{f.editor}}
		_, err := service.SharedRoleUsers(ctx, actor)
		assert.ErrorIs(t, err, ErrNotAssigner)
	})
}

func TestUsersWithoutRoles(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	service := NewQueryService(f.store)
	f.store.SeedGrant(f.userA.ID, f.assigner.ID)

	users, err := service.UsersWithoutRoles(ctx)
	require.NoError(t, err)

	ids := []uuid.UUID{}
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{f.userB.ID, f.userC.ID}, ids)
}

func TestAllUsersWithRoles(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	service := NewQueryService(f.store)
	f.store.SeedGrant(f.userA.ID, f.assigner.ID)
	f.store.SeedGrant(f.userB.ID, f.viewer.ID)

	users, err := service.AllUsersWithRoles(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)

	byID := map[uuid.UUID][]Role{}
	for _, u := range users {
		byID[u.ID] = u.Roles
	}
	assert.Len(t, byID[f.userA.ID], 1)
	assert.Len(t, byID[f.userB.ID], 1)
	// Users with no grants still appear, with an empty role list
	assert.Empty(t, byID[f.userC.ID])
}

func TestTraceForUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	mutations := NewMutationService(f.store)
	queries := NewQueryService(f.store)

	require.NoError(t, mutations.Assign(ctx, f.adminActor(), f.userB.ID, f.editor.ID))
	require.NoError(t, mutations.Remove(ctx, f.adminActor(), f.userB.ID, f.editor.ID))

	entries, err := queries.TraceForUser(ctx, f.adminActor(), f.userB.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ActionRemove, entries[0].ActionType)
	assert.Equal(t, ActionAssign, entries[1].ActionType)

	// The trail is gated the same way as revocation
	actor := Actor{UserID: f.userC.ID, Roles: []Role{f.viewer}}
	_, err = queries.TraceForUser(ctx, actor, f.userB.ID)
	assert.ErrorIs(t, err, ErrNotAssigner)
}

func TestAvailableRolesQuery(t *testing.T) {
	f := newFixture()
	service := NewQueryService(f.store)

	roles := service.AvailableRoles(f.adminActor())
	require.Len(t, roles, 1)
	assert.Equal(t, "Editor", roles[0].Name)
}
