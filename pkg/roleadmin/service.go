package roleadmin

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

// MutationService orchestrates role grant mutations: it resolves role names
// through the store, evaluates the authorization rules, and executes the
// atomic mutation+trace through the store. Failures before the store call
// leave both relations untouched.
type MutationService struct {
	store RoleStore
}

// NewMutationService creates a mutation service over the given store
func NewMutationService(store RoleStore) *MutationService {
	return &MutationService{store: store}
}

// Assign grants roleID to the target user on behalf of the actor.
// On success exactly one grant row and one ASSIGN trace row are written.
func (s *MutationService) Assign(ctx context.Context, actor Actor, targetUserID, roleID uuid.UUID) error {
	roleName, err := s.store.RoleNameByID(ctx, roleID)
	if err != nil {
		return err
	}
	if err := CanAssign(actor, roleName); err != nil {
		return err
	}

	slog.Info("Assigning role", "targetUserId", targetUserID, "role", roleName, "performedBy", actor.UserID)
	return s.store.Grant(ctx, GrantParams{
		UserID:      targetUserID,
		RoleID:      roleID,
		PerformedBy: actor.UserID,
	})
}

// Edit replaces the target user's old role with a new one. The replacement
// goes through the same authorization gate as Assign on the new role, and
// the old-grant removal is traced alongside the new grant in a single
// transaction.
func (s *MutationService) Edit(ctx context.Context, actor Actor, targetUserID, oldRoleID, newRoleID uuid.UUID) error {
	newRoleName, err := s.store.RoleNameByID(ctx, newRoleID)
	if err != nil {
		return fmt.Errorf("new role: %w", err)
	}
	if err := CanAssign(actor, newRoleName); err != nil {
		return err
	}

	slog.Info("Replacing role", "targetUserId", targetUserID, "newRole", newRoleName, "performedBy", actor.UserID)
	return s.store.Replace(ctx, ReplaceParams{
		UserID:      targetUserID,
		OldRoleID:   oldRoleID,
		NewRoleID:   newRoleID,
		PerformedBy: actor.UserID,
	})
}

// Remove revokes roleID from the target user on behalf of the actor.
// On success the grant row is deleted and one REMOVE trace row is written.
func (s *MutationService) Remove(ctx context.Context, actor Actor, targetUserID, roleID uuid.UUID) error {
	if err := CanRevoke(actor); err != nil {
		return err
	}

	roleName, err := s.store.RoleNameByID(ctx, roleID)
	if err != nil {
		return err
	}
	has, err := s.store.UserHasRole(ctx, targetUserID, roleName)
	if err != nil {
		return err
	}
	if !has {
		return fmt.Errorf("%w: %s", ErrGrantNotFound, roleName)
	}

	slog.Info("Removing role", "targetUserId", targetUserID, "role", roleName, "performedBy", actor.UserID)
	return s.store.RevokeWithTrace(ctx, RevokeParams{
		UserID:      targetUserID,
		RoleID:      roleID,
		PerformedBy: actor.UserID,
	})
}

// QueryService derives read-side views from the grant relation
type QueryService struct {
	store RoleStore
}

// NewQueryService creates a query service over the given store
func NewQueryService(store RoleStore) *QueryService {
	return &QueryService{store: store}
}

// SharedRoleUsers returns every other user who shares at least one
// non-Assigner role with the actor and does not themself hold Assigner.
// Assigners are never exposed as peers. Requires the actor to hold Assigner.
func (s *QueryService) SharedRoleUsers(ctx context.Context, actor Actor) ([]UserWithRoles, error) {
	if err := CanRevoke(actor); err != nil {
		return nil, err
	}

	names := actor.RoleNames()
	if len(names) == 0 {
		return []UserWithRoles{}, nil
	}
	return s.store.UsersWithSharedRoles(ctx, actor.UserID, names)
}

// UsersWithoutRoles returns every user with zero grant rows
func (s *QueryService) UsersWithoutRoles(ctx context.Context) ([]User, error) {
	return s.store.UsersWithoutRoles(ctx)
}

// AllUsersWithRoles returns every user paired with their role list
func (s *QueryService) AllUsersWithRoles(ctx context.Context) ([]UserWithRoles, error) {
	return s.store.FindUsersWithRoles(ctx)
}

// AvailableRoles returns the roles the actor could legally assign
func (s *QueryService) AvailableRoles(actor Actor) []Role {
	return AvailableRoles(actor)
}

// TraceForUser returns the audit trail for a user, newest first.
// Requires the actor to hold Assigner.
func (s *QueryService) TraceForUser(ctx context.Context, actor Actor, userID uuid.UUID) ([]TraceEntry, error) {
	if err := CanRevoke(actor); err != nil {
		return nil, err
	}
	return s.store.TraceForUser(ctx, userID)
}
