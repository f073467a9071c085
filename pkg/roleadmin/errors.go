package roleadmin

import "errors"

var (
	// Authorization failures. The three shapes are kept distinct so the
	// caller-facing message can say which rule was violated.
	ErrNotAssigner          = errors.New("acting user does not hold the Assigner role")
	ErrRoleNotHeld          = errors.New("acting user does not hold the role being delegated")
	ErrAssignerNotDelegable = errors.New("the Assigner role cannot be assigned to other users")

	// ErrRoleNotFound is returned when a role id does not resolve to a name
	ErrRoleNotFound = errors.New("role not found")

	// ErrGrantNotFound is returned when a revoke or replace targets a grant
	// that does not currently exist
	ErrGrantNotFound = errors.New("user does not have the role assigned")

	// ErrRoleAlreadyGranted is returned when an assign would duplicate an
	// existing (user, role) grant
	ErrRoleAlreadyGranted = errors.New("user already has the role assigned")
)

// IsAuthorizationDenied reports whether err is one of the authorization
// failure shapes
func IsAuthorizationDenied(err error) bool {
	return errors.Is(err, ErrNotAssigner) ||
		errors.Is(err, ErrRoleNotHeld) ||
		errors.Is(err, ErrAssignerNotDelegable)
}
