// Package roleadmin administers role grants for the BI reporting portal.
//
// It implements the two-level permission model that decides who may change
// whose roles, the atomic grant/revoke/replace mutations with their
// append-only audit trail, and the read-side queries derived from the same
// grant relation.
//
// # Overview
//
// The package is built from four pieces:
//   - Authorization rules (policy.go): pure decisions over the acting
//     user's role set. Only holders of the Assigner role may mutate grants,
//     a role may only be delegated by someone who holds it, and the
//     Assigner role itself is never delegable.
//   - RoleStore (repository.go): transactional persistence over the grant
//     and trace relations, with PostgreSQL and in-memory implementations.
//   - MutationService: Assign, Edit and Remove. Every successful mutation
//     appends trace rows in the same transaction as the grant change.
//   - QueryService: shared-role peers, roleless users, full listings,
//     assignable roles and per-user audit trails.
//
// # Basic Usage
//
//	store := roleadmin.NewPostgresRoleStore(pool)
//	mutations := roleadmin.NewMutationService(store)
//	queries := roleadmin.NewQueryService(store)
//
//	actor := roleadmin.Actor{UserID: currentUserID, Roles: currentRoles}
//
//	// Grant a role
//	err := mutations.Assign(ctx, actor, targetUserID, roleID)
//
//	// Replace a role
//	err = mutations.Edit(ctx, actor, targetUserID, oldRoleID, newRoleID)
//
//	// Revoke a role
//	err = mutations.Remove(ctx, actor, targetUserID, roleID)
//
// # Failure semantics
//
// Expected control-flow outcomes are reported as sentinel errors:
// authorization denials (ErrNotAssigner, ErrRoleNotHeld,
// ErrAssignerNotDelegable), unresolved role ids (ErrRoleNotFound), and
// mutations against grants that do not or already exist (ErrGrantNotFound,
// ErrRoleAlreadyGranted). Store failures roll the transaction back, leave
// both relations unchanged, and propagate wrapped; they are not retried
// because mutations are not idempotent.
//
// # Related Packages
//
//   - pkg/client - acting-user identity extracted from verified JWT claims
//   - pkg/powerbi - Power BI dataset RLS role listings
package roleadmin
