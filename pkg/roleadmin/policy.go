package roleadmin

import "fmt"

// Authorization rules over an acting user's role set. These are pure
// decisions with no I/O; role names are resolved by the caller.
//
// Delegation rule: a grantor may only assign roles they themselves hold,
// and the Assigner role itself is never delegable. Revocation is a broader
// power than grant: it only requires Assigner.

// CanAssign returns nil iff the actor may grant roleName to another user
func CanAssign(actor Actor, roleName string) error {
	if roleName == AssignerRoleName {
		return ErrAssignerNotDelegable
	}
	if !actor.HasRole(AssignerRoleName) {
		return ErrNotAssigner
	}
	if !actor.HasRole(roleName) {
		return fmt.Errorf("%w: %s", ErrRoleNotHeld, roleName)
	}
	return nil
}

// CanRevoke returns nil iff the actor may revoke roles from other users
func CanRevoke(actor Actor) error {
	if !actor.HasRole(AssignerRoleName) {
		return ErrNotAssigner
	}
	return nil
}

// AvailableRoles returns the roles the actor could legally assign: their
// own role set minus Assigner
func AvailableRoles(actor Actor) []Role {
	available := make([]Role, 0, len(actor.Roles))
	for _, r := range actor.Roles {
		if r.Name == AssignerRoleName {
			continue
		}
		available = append(available, r)
	}
	return available
}
