// Demo server backed by the in-memory store. Seeds a few users and roles
// and prints a ready-to-use Assigner token so the /roles endpoints can be
// exercised without Postgres or an identity service.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	"github.com/tendant/chi-demo/app"

	"github.com/tendant/bi-portal/pkg/client"
	"github.com/tendant/bi-portal/pkg/roleadmin"
	roleadminapi "github.com/tendant/bi-portal/pkg/roleadmin/api"
)

const demoSecret = "demo-jwt-secret"

func main() {
	store := roleadmin.NewInMemoryRoleStore()
	admin := seedDemoData(store)

	mutationService := roleadmin.NewMutationService(store)
	queryService := roleadmin.NewQueryService(store)
	rolesHandle := roleadminapi.NewHandle(
		roleadminapi.WithMutationService(mutationService),
		roleadminapi.WithQueryService(queryService),
	)

	tokenAuth := jwtauth.New("HS256", []byte(demoSecret), nil)
	token, err := demoToken(tokenAuth, admin)
	if err != nil {
		slog.Error("Failed to mint demo token", "error", err)
		os.Exit(1)
	}

	server := app.DefaultApp()
	server.R.Group(func(r chi.Router) {
		r.Use(client.Verifier(tokenAuth))
		r.Use(jwtauth.Authenticator(tokenAuth))
		r.Use(client.AuthUserMiddleware)
		rolesHandle.RegisterRoutes(r)
	})

	fmt.Println("Demo Assigner token:")
	fmt.Println(token)

	server.Run()
}

// seedDemoData populates the store and returns the admin actor holding
// Assigner and Editor
func seedDemoData(store *roleadmin.InMemoryRoleStore) roleadmin.Actor {
	assigner := roleadmin.Role{ID: uuid.New(), Name: roleadmin.AssignerRoleName}
	editor := roleadmin.Role{ID: uuid.New(), Name: "Editor"}
	viewer := roleadmin.Role{ID: uuid.New(), Name: "Viewer"}
	for _, role := range []roleadmin.Role{assigner, editor, viewer} {
		store.SeedRole(role)
	}

	admin := roleadmin.User{ID: uuid.New(), Name: "Ada Admin", Email: "ada@example.com"}
	bob := roleadmin.User{ID: uuid.New(), Name: "Bob Builder", Email: "bob@example.com"}
	carol := roleadmin.User{ID: uuid.New(), Name: "Carol Curious", Email: "carol@example.com"}
	for _, user := range []roleadmin.User{admin, bob, carol} {
		store.SeedUser(user)
	}

	store.SeedGrant(admin.ID, assigner.ID)
	store.SeedGrant(admin.ID, editor.ID)
	store.SeedGrant(bob.ID, viewer.ID)

	return roleadmin.Actor{UserID: admin.ID, Roles: []roleadmin.Role{assigner, editor}}
}

func demoToken(tokenAuth *jwtauth.JWTAuth, actor roleadmin.Actor) (string, error) {
	roles := make([]map[string]interface{}, 0, len(actor.Roles))
	for _, role := range actor.Roles {
		roles = append(roles, map[string]interface{}{
			"role_id":   role.ID.String(),
			"role_name": role.Name,
		})
	}

	claims := map[string]interface{}{
		"sub":     actor.UserID.String(),
		"exp":     time.Now().Add(12 * time.Hour).Unix(),
		"user_id": actor.UserID.String(),
		"extra_claims": map[string]interface{}{
			"roles": roles,
		},
	}

	_, token, err := tokenAuth.Encode(claims)
	return token, err
}
