package roleadmin

import (
	"context"

	"github.com/google/uuid"
)

// GrantParams are the parameters for creating a grant with its ASSIGN trace
type GrantParams struct {
	UserID      uuid.UUID
	RoleID      uuid.UUID
	PerformedBy uuid.UUID
}

// RevokeParams are the parameters for deleting a grant with its REMOVE trace
type RevokeParams struct {
	UserID      uuid.UUID
	RoleID      uuid.UUID
	PerformedBy uuid.UUID
}

// ReplaceParams are the parameters for swapping one grant for another
type ReplaceParams struct {
	UserID      uuid.UUID
	OldRoleID   uuid.UUID
	NewRoleID   uuid.UUID
	PerformedBy uuid.UUID
}

// RoleStore defines persistence over the grant relation and the audit trace.
//
// Every mutating operation that touches both relations executes inside a
// single database transaction: grant change and trace rows succeed or fail
// together, and any failure after the transaction begins rolls back fully
// before propagating. Reads are read-committed, not snapshot-isolated.
type RoleStore interface {
	// Grant inserts a grant row and an ASSIGN trace row atomically.
	// Returns ErrRoleAlreadyGranted if the (user, role) pair already exists.
	Grant(ctx context.Context, params GrantParams) error

	// RevokeWithTrace deletes a grant row and inserts a REMOVE trace row
	// atomically. Returns ErrGrantNotFound if the grant does not exist.
	RevokeWithTrace(ctx context.Context, params RevokeParams) error

	// Replace deletes the old grant and inserts the new one, writing a
	// REMOVE trace for the old role and an EDIT trace for the new, all in
	// one transaction. Returns ErrGrantNotFound if the old grant does not
	// exist and ErrRoleAlreadyGranted if the new grant already does.
	Replace(ctx context.Context, params ReplaceParams) error

	// RoleNameByID resolves a role id to its name.
	// Returns ErrRoleNotFound if absent.
	RoleNameByID(ctx context.Context, roleID uuid.UUID) (string, error)

	// UserHasRole reports whether the user currently holds the named role
	UserHasRole(ctx context.Context, userID uuid.UUID, roleName string) (bool, error)

	// UsersWithSharedRoles returns every user other than userID who holds at
	// least one of roleNames and does not hold Assigner, each paired with
	// their full role list
	UsersWithSharedRoles(ctx context.Context, userID uuid.UUID, roleNames []string) ([]UserWithRoles, error)

	// UsersWithoutRoles returns every user with no grant rows at all
	UsersWithoutRoles(ctx context.Context) ([]User, error)

	// FindUsersWithRoles returns every user paired with their role list,
	// empty when they hold none
	FindUsersWithRoles(ctx context.Context) ([]UserWithRoles, error)

	// TraceForUser returns the user's audit trail, newest first
	TraceForUser(ctx context.Context, userID uuid.UUID) ([]TraceEntry, error)
}
