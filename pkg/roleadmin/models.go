package roleadmin

import (
	"time"

	"github.com/google/uuid"
)

// AssignerRoleName is the privileged role that gates every grant mutation.
// It can never be delegated to another user and is excluded from any
// "available roles" listing.
const AssignerRoleName = "Assigner"

// User represents a portal user. User accounts are owned by the account
// management side; this package only reads them.
type User struct {
	ID    uuid.UUID `json:"user_id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// Role represents a named role
type Role struct {
	ID   uuid.UUID `json:"role_id"`
	Name string    `json:"role_name"`
}

// UserWithRoles pairs a user with their currently granted roles
type UserWithRoles struct {
	User
	Roles []Role `json:"roles"`
}

// ActionType identifies the kind of grant mutation recorded in the trace
type ActionType string

const (
	ActionAssign ActionType = "ASSIGN"
	ActionEdit   ActionType = "EDIT"
	ActionRemove ActionType = "REMOVE"
)

// TraceEntry is one immutable audit record of a grant-relation change.
// Trace rows are only ever appended, never updated or deleted.
type TraceEntry struct {
	ID          int64      `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	RoleID      uuid.UUID  `json:"role_id"`
	ActionType  ActionType `json:"action_type"`
	PerformedBy uuid.UUID  `json:"performed_by_user_id"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Actor is the acting user as supplied by the identity layer: their id and
// the role set their session was issued with. The core trusts this value
// verbatim; credential validation happens upstream.
type Actor struct {
	UserID uuid.UUID
	Roles  []Role
}

// HasRole reports whether the actor's role set contains the named role
func (a Actor) HasRole(name string) bool {
	for _, r := range a.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// RoleNames returns the names of the actor's roles, excluding Assigner
func (a Actor) RoleNames() []string {
	names := make([]string, 0, len(a.Roles))
	for _, r := range a.Roles {
		if r.Name == AssignerRoleName {
			continue
		}
		names = append(names, r.Name)
	}
	return names
}
