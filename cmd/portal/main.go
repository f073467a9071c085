package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/tendant/chi-demo/app"

	"github.com/tendant/bi-portal/pkg/client"
	"github.com/tendant/bi-portal/pkg/powerbi"
	"github.com/tendant/bi-portal/pkg/roleadmin"
	roleadminapi "github.com/tendant/bi-portal/pkg/roleadmin/api"
)

type Config struct {
	// Database
	DBHost     string `env:"BI_PG_HOST" env-default:"localhost"`
	DBPort     uint16 `env:"BI_PG_PORT" env-default:"5432"`
	DBDatabase string `env:"BI_PG_DATABASE" env-default:"bi_db"`
	DBUser     string `env:"BI_PG_USER" env-default:"bi"`
	DBPassword string `env:"BI_PG_PASSWORD" env-default:"pwd"`
	DBSchema   string `env:"BI_PG_SCHEMA" env-default:"public"`

	// JWT verification. Tokens are issued by the identity service; this
	// service only verifies them.
	JwtSecret string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`

	// Power BI (optional; the powerbi-roles endpoint is disabled when the
	// tenant is not configured)
	PowerBITenantID     string `env:"POWERBI_TENANT_ID"`
	PowerBIClientID     string `env:"POWERBI_CLIENT_ID"`
	PowerBIClientSecret string `env:"POWERBI_CLIENT_SECRET"`

	AppConfig app.AppConfig
}

func (c Config) toDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s,public",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBDatabase, c.DBSchema)
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found (using environment variables or defaults)")
	}

	config := Config{}
	if err := cleanenv.ReadEnv(&config); err != nil {
		slog.Error("Failed to read configuration", "error", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(context.Background(), config.toDatabaseURL())
	if err != nil {
		slog.Error("Failed to connect to database",
			"host", config.DBHost,
			"database", config.DBDatabase,
			"error", err)
		os.Exit(1)
	}
	defer pool.Close()
	slog.Info("Database connected", "database", config.DBDatabase, "schema", config.DBSchema)

	store := roleadmin.NewPostgresRoleStore(pool)
	mutationService := roleadmin.NewMutationService(store)
	queryService := roleadmin.NewQueryService(store)

	handleOpts := []roleadminapi.Option{
		roleadminapi.WithMutationService(mutationService),
		roleadminapi.WithQueryService(queryService),
	}
	if config.PowerBITenantID != "" {
		handleOpts = append(handleOpts, roleadminapi.WithDatasetRoleLister(powerbi.NewClient(powerbi.Config{
			TenantID:     config.PowerBITenantID,
			ClientID:     config.PowerBIClientID,
			ClientSecret: config.PowerBIClientSecret,
		})))
		slog.Info("Power BI dataset roles enabled", "tenant", config.PowerBITenantID)
	}
	rolesHandle := roleadminapi.NewHandle(handleOpts...)

	server := app.DefaultApp()
	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	tokenAuth := jwtauth.New("HS256", []byte(config.JwtSecret), nil)
	server.R.Group(func(r chi.Router) {
		r.Use(client.Verifier(tokenAuth))
		r.Use(jwtauth.Authenticator(tokenAuth))
		r.Use(client.AuthUserMiddleware)
		rolesHandle.RegisterRoutes(r)
	})

	slog.Info("BI portal role service ready")
	server.Run()
}
