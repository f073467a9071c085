package roleadmin

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRoleStore implements RoleStore on a pgx connection pool. The pool
// is injected; connections are acquired per operation and released on every
// exit path by the pool and transaction semantics.
type PostgresRoleStore struct {
	db *pgxpool.Pool
}

// NewPostgresRoleStore creates a PostgreSQL-backed role store
func NewPostgresRoleStore(db *pgxpool.Pool) *PostgresRoleStore {
	return &PostgresRoleStore{db: db}
}

// Grant inserts the grant row and the ASSIGN trace row in one transaction
func (s *PostgresRoleStore) Grant(ctx context.Context, params GrantParams) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO bi_user_role (user_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, role_id) DO NOTHING
	`, params.UserID, params.RoleID)
	if err != nil {
		return fmt.Errorf("failed to insert grant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRoleAlreadyGranted
	}

	if err := insertTrace(ctx, tx, params.UserID, params.RoleID, ActionAssign, params.PerformedBy); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RevokeWithTrace deletes the grant row and writes the REMOVE trace row in
// one transaction
func (s *PostgresRoleStore) RevokeWithTrace(ctx context.Context, params RevokeParams) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		DELETE FROM bi_user_role WHERE user_id = $1 AND role_id = $2
	`, params.UserID, params.RoleID)
	if err != nil {
		return fmt.Errorf("failed to delete grant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrGrantNotFound
	}

	if err := insertTrace(ctx, tx, params.UserID, params.RoleID, ActionRemove, params.PerformedBy); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Replace swaps the old grant for the new one. The old-grant delete, the
// new-grant insert and both trace rows (REMOVE for the old role, EDIT for
// the new) commit or roll back as a unit, so the target can never be left
// with the old role gone and the new one missing.
func (s *PostgresRoleStore) Replace(ctx context.Context, params ReplaceParams) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		DELETE FROM bi_user_role WHERE user_id = $1 AND role_id = $2
	`, params.UserID, params.OldRoleID)
	if err != nil {
		return fmt.Errorf("failed to delete old grant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrGrantNotFound
	}

	tag, err = tx.Exec(ctx, `
		INSERT INTO bi_user_role (user_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, role_id) DO NOTHING
	`, params.UserID, params.NewRoleID)
	if err != nil {
		return fmt.Errorf("failed to insert new grant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRoleAlreadyGranted
	}

	if err := insertTrace(ctx, tx, params.UserID, params.OldRoleID, ActionRemove, params.PerformedBy); err != nil {
		return err
	}
	if err := insertTrace(ctx, tx, params.UserID, params.NewRoleID, ActionEdit, params.PerformedBy); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertTrace(ctx context.Context, tx pgx.Tx, userID, roleID uuid.UUID, action ActionType, performedBy uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO bi_user_role_trace (user_id, role_id, action_type, performed_by_user_id)
		VALUES ($1, $2, $3, $4)
	`, userID, roleID, string(action), performedBy)
	if err != nil {
		return fmt.Errorf("failed to insert trace row: %w", err)
	}
	return nil
}

// RoleNameByID resolves a role id to its name
func (s *PostgresRoleStore) RoleNameByID(ctx context.Context, roleID uuid.UUID) (string, error) {
	var name string
	err := s.db.QueryRow(ctx, `
		SELECT role_name FROM bi_role WHERE role_id = $1
	`, roleID).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrRoleNotFound
		}
		return "", fmt.Errorf("failed to resolve role name: %w", err)
	}
	return name, nil
}

// UserHasRole reports whether the user currently holds the named role
func (s *PostgresRoleStore) UserHasRole(ctx context.Context, userID uuid.UUID, roleName string) (bool, error) {
	var has bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM bi_user_role ur
			JOIN bi_role r ON r.role_id = ur.role_id
			WHERE ur.user_id = $1 AND r.role_name = $2
		)
	`, userID, roleName).Scan(&has)
	if err != nil {
		return false, fmt.Errorf("failed to check user role: %w", err)
	}
	return has, nil
}

// UsersWithSharedRoles returns users sharing at least one of roleNames with
// the acting user, excluding the acting user and anyone holding Assigner.
// Each user's full role list is assembled in Go from flat rows rather than
// with a store-side JSON aggregate.
func (s *PostgresRoleStore) UsersWithSharedRoles(ctx context.Context, userID uuid.UUID, roleNames []string) ([]UserWithRoles, error) {
	if len(roleNames) == 0 {
		return []UserWithRoles{}, nil
	}

	rows, err := s.db.Query(ctx, `
		SELECT u.user_id, u.name, u.email, r.role_id, r.role_name
		FROM bi_user u
		JOIN bi_user_role ur ON ur.user_id = u.user_id
		JOIN bi_role r ON r.role_id = ur.role_id
		WHERE u.user_id <> $1
		  AND u.user_id IN (
			SELECT ur2.user_id
			FROM bi_user_role ur2
			JOIN bi_role r2 ON r2.role_id = ur2.role_id
			WHERE r2.role_name = ANY($2)
		  )
		  AND u.user_id NOT IN (
			SELECT ur3.user_id
			FROM bi_user_role ur3
			JOIN bi_role r3 ON r3.role_id = ur3.role_id
			WHERE r3.role_name = $3
		  )
		ORDER BY u.user_id, r.role_name
	`, userID, roleNames, AssignerRoleName)
	if err != nil {
		return nil, fmt.Errorf("failed to query shared role users: %w", err)
	}
	defer rows.Close()

	return collectUserRoleRows(rows)
}

// UsersWithoutRoles returns every user with zero rows in the grant relation
func (s *PostgresRoleStore) UsersWithoutRoles(ctx context.Context) ([]User, error) {
	rows, err := s.db.Query(ctx, `
		SELECT u.user_id, u.name, u.email
		FROM bi_user u
		LEFT JOIN bi_user_role ur ON ur.user_id = u.user_id
		WHERE ur.role_id IS NULL
		ORDER BY u.name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users without roles: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// FindUsersWithRoles returns every user paired with their role list
func (s *PostgresRoleStore) FindUsersWithRoles(ctx context.Context) ([]UserWithRoles, error) {
	rows, err := s.db.Query(ctx, `
		SELECT u.user_id, u.name, u.email, r.role_id, r.role_name
		FROM bi_user u
		LEFT JOIN bi_user_role ur ON ur.user_id = u.user_id
		LEFT JOIN bi_role r ON r.role_id = ur.role_id
		ORDER BY u.user_id, r.role_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users with roles: %w", err)
	}
	defer rows.Close()

	users := []UserWithRoles{}
	var current *UserWithRoles
	for rows.Next() {
		var u User
		var roleID *uuid.UUID
		var roleName *string
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &roleID, &roleName); err != nil {
			return nil, fmt.Errorf("failed to scan user role row: %w", err)
		}
		if current == nil || current.ID != u.ID {
			users = append(users, UserWithRoles{User: u, Roles: []Role{}})
			current = &users[len(users)-1]
		}
		if roleID != nil && roleName != nil {
			current.Roles = append(current.Roles, Role{ID: *roleID, Name: *roleName})
		}
	}
	return users, rows.Err()
}

// TraceForUser returns the user's audit trail, newest first
func (s *PostgresRoleStore) TraceForUser(ctx context.Context, userID uuid.UUID) ([]TraceEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, role_id, action_type, performed_by_user_id, created_at
		FROM bi_user_role_trace
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trace: %w", err)
	}
	defer rows.Close()

	entries := []TraceEntry{}
	for rows.Next() {
		var e TraceEntry
		var action string
		if err := rows.Scan(&e.ID, &e.UserID, &e.RoleID, &action, &e.PerformedBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trace row: %w", err)
		}
		e.ActionType = ActionType(action)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// collectUserRoleRows nests flat (user, role) rows into UserWithRoles,
// relying on the query ordering by user_id
func collectUserRoleRows(rows pgx.Rows) ([]UserWithRoles, error) {
	users := []UserWithRoles{}
	var current *UserWithRoles
	for rows.Next() {
		var u User
		var role Role
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &role.ID, &role.Name); err != nil {
			return nil, fmt.Errorf("failed to scan user role row: %w", err)
		}
		if current == nil || current.ID != u.ID {
			users = append(users, UserWithRoles{User: u, Roles: []Role{}})
			current = &users[len(users)-1]
		}
		current.Roles = append(current.Roles, role)
	}
	return users, rows.Err()
}
