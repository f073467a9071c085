// tokengen mints portal access tokens for local testing: a user id plus
// the {role_id, role_name} claims the role administration service expects.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func main() {
	secret := flag.String("secret", "very-secure-jwt-secret", "Secret key for signing the token")
	issuer := flag.String("issuer", "bi-portal", "Issuer of the token")
	userID := flag.String("user-id", "", "User ID (uuid) to embed in the token")
	rolesJSON := flag.String("roles", "[]", `Roles in JSON format, e.g. '[{"role_id":"...","role_name":"Assigner"}]'`)
	expiry := flag.Duration("expiry", 30*time.Minute, "Token expiry duration (e.g., 30m, 1h, 24h)")
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "Error: -user-id is required")
		os.Exit(1)
	}

	var roles []map[string]interface{}
	if err := json.Unmarshal([]byte(*rolesJSON), &roles); err != nil {
		slog.Error("Failed to parse roles JSON", "err", err)
		fmt.Fprintf(os.Stderr, "Error: Failed to parse roles JSON: %v\n", err)
		os.Exit(1)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":     *userID,
		"iss":     *issuer,
		"iat":     now.Unix(),
		"exp":     now.Add(*expiry).Unix(),
		"user_id": *userID,
		"extra_claims": map[string]interface{}{
			"roles": roles,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString([]byte(*secret))
	if err != nil {
		slog.Error("Failed to sign token", "err", err)
		fmt.Fprintf(os.Stderr, "Error: Failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(tokenStr)
}
