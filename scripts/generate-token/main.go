package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"

	"github.com/CDeX-Labs/CDeX-Typing-Service/internal/auth"
)

// Usage: generate-token [playerId] [displayName] [role]
func main() {
	godotenv.Load()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Println("JWT_SECRET is not set")
		os.Exit(1)
	}

	playerID := "test-player-123"
	name := "Test Typist"
	role := 0

	if len(os.Args) > 1 {
		playerID = os.Args[1]
	}
	if len(os.Args) > 2 {
		name = os.Args[2]
	}
	if len(os.Args) > 3 {
		r, err := strconv.Atoi(os.Args[3])
		if err != nil {
			fmt.Printf("Invalid role %q\n", os.Args[3])
			os.Exit(1)
		}
		role = r
	}

	expires := time.Now().Add(24 * time.Hour)
	token, err := auth.NewJWTValidator(secret).Sign(&auth.Claims{
		Sub:  playerID,
		Name: name,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	if err != nil {
		fmt.Printf("Error generating token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== JWT Token Generated ===")
	fmt.Println()
	fmt.Println(token)
	fmt.Println()
	fmt.Println("=== Token Claims ===")
	fmt.Printf("Player ID: %s\n", playerID)
	fmt.Printf("Name: %s\n", name)
	fmt.Printf("Role: %d\n", role)
	fmt.Printf("Expires: %s\n", expires.Format(time.RFC3339))
}
