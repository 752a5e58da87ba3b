package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/luxestay/hotel-booking-backend/internal/utils"
	"github.com/luxestay/hotel-booking-backend/pkg/jwt"
)

// Prints a fresh JWT_SECRET, or with -user a development access token
// signed with the JWT_SECRET from the environment.
func main() {
	var (
		userFlag  string
		email     string
		roles     string
		expiresIn time.Duration
	)
	flag.StringVar(&userFlag, "user", "", "issue a development token for this user id")
	flag.StringVar(&email, "email", "", "email claim for the issued token")
	flag.StringVar(&roles, "roles", "guest", "comma separated roles for the issued token")
	flag.DurationVar(&expiresIn, "expires-in", time.Hour, "lifetime of the issued token")
	flag.Parse()

	if userFlag == "" {
		secret, err := utils.GenerateSecret(32)
		if err != nil {
			log.Fatalf("Failed to generate secret: %v", err)
		}
		fmt.Println("Add this to your .env file:")
		fmt.Println()
		fmt.Printf("JWT_SECRET=%s\n", secret)
		fmt.Println()
		fmt.Println("⚠️  Keep this secret safe and never commit it to version control!")
		return
	}

	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is not set")
	}
	issuer := os.Getenv("JWT_ISSUER")
	if issuer == "" {
		issuer = "luxestay-auth"
	}

	userID, err := uuid.Parse(userFlag)
	if err != nil {
		log.Fatalf("Invalid user id: %v", err)
	}

	var roleList []string
	for _, r := range strings.Split(roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roleList = append(roleList, r)
		}
	}

	token, err := jwt.NewService(secret, issuer, expiresIn).GenerateAccessToken(userID, email, roleList)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}
	fmt.Println(token)
}
