package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
)

// RoleClaim is one role carried in the session token, as issued by the
// identity provider at login time
type RoleClaim struct {
	RoleID   uuid.UUID `json:"role_id"`
	RoleName string    `json:"role_name"`
}

// ExtraClaims holds the portal-specific claims of the session token
type ExtraClaims struct {
	Email string      `json:"email,omitempty"`
	Roles []RoleClaim `json:"roles,omitempty"`
}

// AuthUser is the authenticated caller as derived from a previously
// validated session credential. The role set is the one the token was
// issued with; it is trusted verbatim downstream.
type AuthUser struct {
	UserId string `json:"user_id,omitempty"`
	// UserUuid is the parsed form of UserId, convenient to have as a uuid.UUID
	UserUuid    uuid.UUID
	ExtraClaims ExtraClaims `json:"extra_claims,omitempty"`
}

func (u AuthUser) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("user", u.UserId),
		slog.Any("extra_claims", u.ExtraClaims),
	)
}

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation. This technique
// for defining context keys was copied from Go 1.7's new use of context in net/http.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "bi-portal context value " + k.name
}

const ACCESS_TOKEN_NAME = "access_token"

var AuthUserKey = &contextKey{"AuthUser"}

// LoadFromMap round-trips a claims map through JSON into a typed struct
func LoadFromMap[T any](m map[string]interface{}, c *T) error {
	data, err := json.Marshal(m)
	if err == nil {
		err = json.Unmarshal(data, c)
	}
	return err
}

// AuthUserMiddleware extracts the authenticated user from verified JWT
// claims and stashes it in the request context. Must run after the jwtauth
// verifier and authenticator.
func AuthUserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			http.Error(w, fmt.Sprintf("missing or invalid JWT: %v", err), http.StatusUnauthorized)
			return
		}
		if claims == nil {
			http.Error(w, "missing JWT claims", http.StatusUnauthorized)
			return
		}

		authUser := new(AuthUser)
		if err := LoadFromMap(claims, authUser); err != nil {
			slog.Error("failed to parse token claims", "error", err)
			http.Error(w, "invalid token claims", http.StatusUnauthorized)
			return
		}

		if extraClaimsRaw, exists := claims["extra_claims"]; exists {
			extraClaims, ok := extraClaimsRaw.(map[string]interface{})
			if !ok {
				http.Error(w, "invalid extra claims format", http.StatusUnauthorized)
				return
			}
			if err := LoadFromMap(extraClaims, &authUser.ExtraClaims); err != nil {
				slog.Error("failed to parse extra claims", "error", err)
				http.Error(w, "invalid extra claims data", http.StatusUnauthorized)
				return
			}
		}

		if authUser.UserId == "" {
			http.Error(w, "missing user ID in token", http.StatusUnauthorized)
			return
		}
		userUUID, err := uuid.Parse(authUser.UserId)
		if err != nil {
			slog.Warn("failed to parse user ID as UUID", "userId", authUser.UserId, "error", err)
			http.Error(w, "invalid user ID in token", http.StatusUnauthorized)
			return
		}
		authUser.UserUuid = userUUID

		slog.Debug("authenticated user", "userId", authUser.UserId, "roles", authUser.ExtraClaims.Roles)

		ctx := context.WithValue(r.Context(), AuthUserKey, authUser)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AuthUserFromContext returns the authenticated user stashed by
// AuthUserMiddleware, if any
func AuthUserFromContext(ctx context.Context) (*AuthUser, bool) {
	authUser, ok := ctx.Value(AuthUserKey).(*AuthUser)
	return authUser, ok
}

// Verifier verifies tokens from the Authorization header or the access
// token cookie
func Verifier(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return jwtauth.Verify(ja, jwtauth.TokenFromHeader, TokenFromCookie)(next)
	}
}

func TokenFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(ACCESS_TOKEN_NAME)
	if err != nil {
		return ""
	}
	return cookie.Value
}
