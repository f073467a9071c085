package roleadmin

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRoleStore implements RoleStore using in-memory storage. It is used
// by tests and the demo binary; the mutex gives it the same all-or-nothing
// mutation semantics the Postgres store gets from transactions.
type InMemoryRoleStore struct {
	mu     sync.RWMutex
	users  map[uuid.UUID]User
	roles  map[uuid.UUID]Role
	grants map[uuid.UUID]map[uuid.UUID]bool // userID -> roleID set
	trace  []TraceEntry
	seq    int64
}

// NewInMemoryRoleStore creates an empty in-memory role store
func NewInMemoryRoleStore() *InMemoryRoleStore {
	return &InMemoryRoleStore{
		users:  make(map[uuid.UUID]User),
		roles:  make(map[uuid.UUID]Role),
		grants: make(map[uuid.UUID]map[uuid.UUID]bool),
	}
}

// SeedUser adds a user directly (for testing/initialization)
func (s *InMemoryRoleStore) SeedUser(user User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

// SeedRole adds a role directly (for testing/initialization)
func (s *InMemoryRoleStore) SeedRole(role Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[role.ID] = role
}

// SeedGrant adds a grant directly without writing a trace row
func (s *InMemoryRoleStore) SeedGrant(userID, roleID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grants[userID] == nil {
		s.grants[userID] = make(map[uuid.UUID]bool)
	}
	s.grants[userID][roleID] = true
}

// Grant inserts a grant and an ASSIGN trace entry
func (s *InMemoryRoleStore) Grant(ctx context.Context, params GrantParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.grants[params.UserID][params.RoleID] {
		return ErrRoleAlreadyGranted
	}
	if s.grants[params.UserID] == nil {
		s.grants[params.UserID] = make(map[uuid.UUID]bool)
	}
	s.grants[params.UserID][params.RoleID] = true
	s.appendTrace(params.UserID, params.RoleID, ActionAssign, params.PerformedBy)
	return nil
}

// RevokeWithTrace deletes a grant and appends a REMOVE trace entry
func (s *InMemoryRoleStore) RevokeWithTrace(ctx context.Context, params RevokeParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.grants[params.UserID][params.RoleID] {
		return ErrGrantNotFound
	}
	delete(s.grants[params.UserID], params.RoleID)
	s.appendTrace(params.UserID, params.RoleID, ActionRemove, params.PerformedBy)
	return nil
}

// Replace swaps the old grant for the new one, appending REMOVE and EDIT
// trace entries. Nothing changes when either precondition fails.
func (s *InMemoryRoleStore) Replace(ctx context.Context, params ReplaceParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.grants[params.UserID][params.OldRoleID] {
		return ErrGrantNotFound
	}
	if s.grants[params.UserID][params.NewRoleID] {
		return ErrRoleAlreadyGranted
	}
	delete(s.grants[params.UserID], params.OldRoleID)
	s.grants[params.UserID][params.NewRoleID] = true
	s.appendTrace(params.UserID, params.OldRoleID, ActionRemove, params.PerformedBy)
	s.appendTrace(params.UserID, params.NewRoleID, ActionEdit, params.PerformedBy)
	return nil
}

func (s *InMemoryRoleStore) appendTrace(userID, roleID uuid.UUID, action ActionType, performedBy uuid.UUID) {
	s.seq++
	s.trace = append(s.trace, TraceEntry{
		ID:          s.seq,
		UserID:      userID,
		RoleID:      roleID,
		ActionType:  action,
		PerformedBy: performedBy,
		CreatedAt:   time.Now().UTC(),
	})
}

// RoleNameByID resolves a role id to its name
func (s *InMemoryRoleStore) RoleNameByID(ctx context.Context, roleID uuid.UUID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	role, ok := s.roles[roleID]
	if !ok {
		return "", ErrRoleNotFound
	}
	return role.Name, nil
}

// UserHasRole reports whether the user currently holds the named role
func (s *InMemoryRoleStore) UserHasRole(ctx context.Context, userID uuid.UUID, roleName string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for roleID := range s.grants[userID] {
		if s.roles[roleID].Name == roleName {
			return true, nil
		}
	}
	return false, nil
}

// UsersWithSharedRoles returns users sharing at least one of roleNames with
// the acting user, excluding the acting user and anyone holding Assigner
func (s *InMemoryRoleStore) UsersWithSharedRoles(ctx context.Context, userID uuid.UUID, roleNames []string) ([]UserWithRoles, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(roleNames) == 0 {
		return []UserWithRoles{}, nil
	}
	wanted := make(map[string]bool, len(roleNames))
	for _, name := range roleNames {
		wanted[name] = true
	}

	result := []UserWithRoles{}
	for id, user := range s.users {
		if id == userID {
			continue
		}
		shares := false
		holdsAssigner := false
		for roleID := range s.grants[id] {
			name := s.roles[roleID].Name
			if name == AssignerRoleName {
				holdsAssigner = true
			}
			if wanted[name] {
				shares = true
			}
		}
		if !shares || holdsAssigner {
			continue
		}
		result = append(result, UserWithRoles{User: user, Roles: s.rolesOf(id)})
	}
	sortUsersWithRoles(result)
	return result, nil
}

// UsersWithoutRoles returns every user with no grants
func (s *InMemoryRoleStore) UsersWithoutRoles(ctx context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []User{}
	for id, user := range s.users {
		if len(s.grants[id]) == 0 {
			result = append(result, user)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// FindUsersWithRoles returns every user paired with their role list
func (s *InMemoryRoleStore) FindUsersWithRoles(ctx context.Context) ([]UserWithRoles, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []UserWithRoles{}
	for id, user := range s.users {
		result = append(result, UserWithRoles{User: user, Roles: s.rolesOf(id)})
	}
	sortUsersWithRoles(result)
	return result, nil
}

// TraceForUser returns the user's audit trail, newest first
func (s *InMemoryRoleStore) TraceForUser(ctx context.Context, userID uuid.UUID) ([]TraceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := []TraceEntry{}
	for i := len(s.trace) - 1; i >= 0; i-- {
		if s.trace[i].UserID == userID {
			entries = append(entries, s.trace[i])
		}
	}
	return entries, nil
}

// rolesOf returns the user's roles sorted by name. Caller must hold the lock.
func (s *InMemoryRoleStore) rolesOf(userID uuid.UUID) []Role {
	roles := []Role{}
	for roleID := range s.grants[userID] {
		roles = append(roles, s.roles[roleID])
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles
}

func sortUsersWithRoles(users []UserWithRoles) {
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
}
