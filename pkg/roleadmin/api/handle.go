package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/ggicci/httpin"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"golang.org/x/exp/slog"

	"github.com/tendant/bi-portal/pkg/client"
	"github.com/tendant/bi-portal/pkg/roleadmin"
)

// DatasetRoleLister lists the RLS roles of a Power BI dataset. Implemented
// by pkg/powerbi; optional.
type DatasetRoleLister interface {
	DatasetRoles(ctx context.Context, groupID, datasetID string) (map[string][]string, error)
}

// Handle handles the /roles HTTP surface
type Handle struct {
	mutationService *roleadmin.MutationService
	queryService    *roleadmin.QueryService
	datasetRoles    DatasetRoleLister
}

// Option is a function that configures a Handle
type Option func(*Handle)

// WithMutationService sets the mutation service for the handle
func WithMutationService(service *roleadmin.MutationService) Option {
	return func(h *Handle) {
		h.mutationService = service
	}
}

// WithQueryService sets the query service for the handle
func WithQueryService(service *roleadmin.QueryService) Option {
	return func(h *Handle) {
		h.queryService = service
	}
}

// WithDatasetRoleLister sets the Power BI dataset role lister for the handle
func WithDatasetRoleLister(lister DatasetRoleLister) Option {
	return func(h *Handle) {
		h.datasetRoles = lister
	}
}

// NewHandle creates a new roles handler
func NewHandle(opts ...Option) *Handle {
	h := &Handle{}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// AssignRoleInput binds the assign request body
type AssignRoleInput struct {
	Payload *AssignRoleRequest `in:"body=json"`
}

// UpdateRoleInput binds the update request body
type UpdateRoleInput struct {
	Payload *UpdateRoleRequest `in:"body=json"`
}

// DeleteRoleInput binds the delete request body
type DeleteRoleInput struct {
	Payload *DeleteRoleRequest `in:"body=json"`
}

// DatasetRolesInput binds the Power BI dataset roles request body
type DatasetRolesInput struct {
	Payload *DatasetRolesRequest `in:"body=json"`
}

// RegisterRoutes registers the role administration routes. Callers must
// mount these behind the JWT verifier and client.AuthUserMiddleware.
func (h *Handle) RegisterRoutes(r chi.Router) {
	r.Route("/roles", func(r chi.Router) {
		r.With(httpin.NewInput(AssignRoleInput{})).Post("/assign", h.AssignRole)
		r.With(httpin.NewInput(UpdateRoleInput{})).Patch("/update-role", h.UpdateRole)
		r.With(httpin.NewInput(DeleteRoleInput{})).Delete("/delete-role", h.DeleteRole)
		r.Get("/shared-roles", h.SharedRoles)
		r.Get("/no-role-users", h.NoRoleUsers)
		r.Get("/available", h.AvailableRoles)
		r.Get("/all-users", h.AllUsers)
		r.Get("/trace/{userId}", h.Trace)
		if h.datasetRoles != nil {
			r.With(httpin.NewInput(DatasetRolesInput{})).Post("/powerbi-roles", h.DatasetRoles)
		}
	})
}

// AssignRole handles POST /roles/assign
func (h *Handle) AssignRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "missing authenticated user")
		return
	}

	input := r.Context().Value(httpin.Input).(*AssignRoleInput)
	params := input.Payload
	if params.UserID == nil || params.RoleID == nil {
		respondError(w, r, http.StatusBadRequest, "userId and roleId are required")
		return
	}

	if err := h.mutationService.Assign(r.Context(), actor, *params.UserID, *params.RoleID); err != nil {
		respondServiceError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"message": "Role assigned successfully"})
}

// UpdateRole handles PATCH /roles/update-role
func (h *Handle) UpdateRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "missing authenticated user")
		return
	}

	input := r.Context().Value(httpin.Input).(*UpdateRoleInput)
	params := input.Payload
	if params.UserID == nil || params.CurrentRoleID == nil || params.NewRoleID == nil {
		respondError(w, r, http.StatusBadRequest, "userId, currentRoleId and newRoleId are required")
		return
	}

	if err := h.mutationService.Edit(r.Context(), actor, *params.UserID, *params.CurrentRoleID, *params.NewRoleID); err != nil {
		respondServiceError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"message": "Role updated successfully"})
}

// DeleteRole handles DELETE /roles/delete-role
func (h *Handle) DeleteRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "missing authenticated user")
		return
	}

	input := r.Context().Value(httpin.Input).(*DeleteRoleInput)
	params := input.Payload
	if params.UserID == nil || params.RoleID == nil {
		respondError(w, r, http.StatusBadRequest, "userId and roleId are required")
		return
	}

	if err := h.mutationService.Remove(r.Context(), actor, *params.UserID, *params.RoleID); err != nil {
		respondServiceError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"message": "Role removed successfully"})
}

// SharedRoles handles GET /roles/shared-roles
func (h *Handle) SharedRoles(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "missing authenticated user")
		return
	}

	users, err := h.queryService.SharedRoleUsers(r.Context(), actor)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	response := []UserWithRolesResponse{}
	if err := copier.Copy(&response, &users); err != nil {
		slog.Error("failed to map shared role users", "error", err)
		respondError(w, r, http.StatusInternalServerError, "Error retrieving shared role users")
		return
	}
	render.JSON(w, r, map[string]interface{}{"users": response})
}

// NoRoleUsers handles GET /roles/no-role-users
func (h *Handle) NoRoleUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.queryService.UsersWithoutRoles(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	response := []UserResponse{}
	if err := copier.Copy(&response, &users); err != nil {
		slog.Error("failed to map users without roles", "error", err)
		respondError(w, r, http.StatusInternalServerError, "Error retrieving users without roles")
		return
	}
	render.JSON(w, r, map[string]interface{}{"users": response})
}

// AvailableRoles handles GET /roles/available
func (h *Handle) AvailableRoles(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "missing authenticated user")
		return
	}

	roles := h.queryService.AvailableRoles(actor)
	response := []RoleResponse{}
	if err := copier.Copy(&response, &roles); err != nil {
		slog.Error("failed to map available roles", "error", err)
		respondError(w, r, http.StatusInternalServerError, "Error retrieving available roles")
		return
	}
	render.JSON(w, r, map[string]interface{}{"roles": response})
}

// AllUsers handles GET /roles/all-users
func (h *Handle) AllUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.queryService.AllUsersWithRoles(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	response := []UserWithRolesResponse{}
	if err := copier.Copy(&response, &users); err != nil {
		slog.Error("failed to map users with roles", "error", err)
		respondError(w, r, http.StatusInternalServerError, "Error retrieving all users")
		return
	}
	render.JSON(w, r, map[string]interface{}{"users": response})
}

// Trace handles GET /roles/trace/{userId}
func (h *Handle) Trace(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "missing authenticated user")
		return
	}

	userID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid user ID")
		return
	}

	entries, err := h.queryService.TraceForUser(r.Context(), actor, userID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	response := []TraceEntryResponse{}
	if err := copier.Copy(&response, &entries); err != nil {
		slog.Error("failed to map trace entries", "error", err)
		respondError(w, r, http.StatusInternalServerError, "Error retrieving trace")
		return
	}
	render.JSON(w, r, map[string]interface{}{"trace": response})
}

// DatasetRoles handles POST /roles/powerbi-roles
func (h *Handle) DatasetRoles(w http.ResponseWriter, r *http.Request) {
	input := r.Context().Value(httpin.Input).(*DatasetRolesInput)
	params := input.Payload
	if params.GroupID == "" || params.DatasetID == "" {
		respondError(w, r, http.StatusBadRequest, "groupId and datasetId are required")
		return
	}

	roles, err := h.datasetRoles.DatasetRoles(r.Context(), params.GroupID, params.DatasetID)
	if err != nil {
		slog.Error("failed to fetch dataset roles", "groupId", params.GroupID, "datasetId", params.DatasetID, "error", err)
		respondError(w, r, http.StatusBadGateway, "Error retrieving dataset roles")
		return
	}
	render.JSON(w, r, roles)
}

// actorFromRequest converts the authenticated user in the request context
// into a roleadmin.Actor
func actorFromRequest(r *http.Request) (roleadmin.Actor, bool) {
	authUser, ok := client.AuthUserFromContext(r.Context())
	if !ok {
		return roleadmin.Actor{}, false
	}

	roles := make([]roleadmin.Role, 0, len(authUser.ExtraClaims.Roles))
	for _, claim := range authUser.ExtraClaims.Roles {
		roles = append(roles, roleadmin.Role{ID: claim.RoleID, Name: claim.RoleName})
	}
	return roleadmin.Actor{UserID: authUser.UserUuid, Roles: roles}, true
}

func respondError(w http.ResponseWriter, r *http.Request, code int, message string) {
	render.Status(r, code)
	render.JSON(w, r, map[string]string{"error": message})
}

// respondServiceError maps the core failure taxonomy onto HTTP statuses.
// Store failures are surfaced opaquely; the wrapped detail stays in the log.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case roleadmin.IsAuthorizationDenied(err):
		respondError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, roleadmin.ErrRoleNotFound):
		respondError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, roleadmin.ErrGrantNotFound):
		respondError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, roleadmin.ErrRoleAlreadyGranted):
		respondError(w, r, http.StatusConflict, err.Error())
	default:
		slog.Error("role operation failed", "error", err)
		respondError(w, r, http.StatusInternalServerError, "internal error")
	}
}
