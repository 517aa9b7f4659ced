// Command gentoken issues a JWT for a user, for local development and
// for provisioning log forwarders.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/bharatbuild/buildfix/internal/auth"
)

func main() {
	var (
		userID = flag.String("user", "", "user ID to embed in the token (required)")
		email  = flag.String("email", "", "email to embed in the token")
		secret = flag.String("secret", os.Getenv("AUTH_SECRET"), "signing secret (defaults to AUTH_SECRET)")
		expiry = flag.Duration("expiry", 24*time.Hour, "token lifetime")
	)
	flag.Parse()

	if *userID == "" || *secret == "" {
		fmt.Fprintln(os.Stderr, "usage: gentoken -user <id> [-email <email>] [-expiry <dur>] [-secret <secret>]")
		os.Exit(2)
	}

	svc := auth.NewService(auth.Config{
		JWTSecret:   *secret,
		TokenExpiry: *expiry,
	}, nil)

	token, err := svc.GenerateToken(*userID, *email)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generating token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
