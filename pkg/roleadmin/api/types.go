package api

import (
	"time"

	"github.com/google/uuid"
)

// AssignRoleRequest is the body of POST /roles/assign
type AssignRoleRequest struct {
	UserID *uuid.UUID `json:"userId"`
	RoleID *uuid.UUID `json:"roleId"`
}

// UpdateRoleRequest is the body of PATCH /roles/update-role
type UpdateRoleRequest struct {
	UserID        *uuid.UUID `json:"userId"`
	CurrentRoleID *uuid.UUID `json:"currentRoleId"`
	NewRoleID     *uuid.UUID `json:"newRoleId"`
}

// DeleteRoleRequest is the body of DELETE /roles/delete-role
type DeleteRoleRequest struct {
	UserID *uuid.UUID `json:"userId"`
	RoleID *uuid.UUID `json:"roleId"`
}

// DatasetRolesRequest is the body of POST /roles/powerbi-roles
type DatasetRolesRequest struct {
	GroupID   string `json:"groupId"`
	DatasetID string `json:"datasetId"`
}

// RoleResponse mirrors roleadmin.Role field for field so copier can map it
type RoleResponse struct {
	ID   uuid.UUID `json:"role_id"`
	Name string    `json:"role_name"`
}

// UserResponse mirrors roleadmin.User
type UserResponse struct {
	ID    uuid.UUID `json:"user_id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// UserWithRolesResponse mirrors roleadmin.UserWithRoles
type UserWithRolesResponse struct {
	ID    uuid.UUID      `json:"user_id"`
	Name  string         `json:"name"`
	Email string         `json:"email"`
	Roles []RoleResponse `json:"roles"`
}

// TraceEntryResponse mirrors roleadmin.TraceEntry
type TraceEntryResponse struct {
	ID          int64     `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	RoleID      uuid.UUID `json:"role_id"`
	ActionType  string    `json:"action_type"`
	PerformedBy uuid.UUID `json:"performed_by_user_id"`
	CreatedAt   time.Time `json:"created_at"`
}
