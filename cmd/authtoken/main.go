package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"thumbgen/internal/middleware"
)

// authtoken mints a signed bearer token for a user so the API can be
// exercised without a separate identity service.
func main() {
	var (
		secretFlag string
		subFlag    string
		localeFlag string
		ttlFlag    time.Duration
	)
	flag.StringVar(&secretFlag, "secret", "", "JWT signing secret (fallbacks to JWT_SECRET)")
	flag.StringVar(&subFlag, "sub", "", "Subject (user id) the token belongs to")
	flag.StringVar(&localeFlag, "locale", "", "Optional locale claim")
	flag.DurationVar(&ttlFlag, "ttl", 24*time.Hour, "How long the token stays valid")
	flag.Parse()

	secret := strings.TrimSpace(secretFlag)
	if secret == "" {
		secret = strings.TrimSpace(os.Getenv("JWT_SECRET"))
	}
	if secret == "" {
		fmt.Fprintln(os.Stderr, "a signing secret is required via -secret or JWT_SECRET")
		os.Exit(1)
	}

	sub := strings.TrimSpace(subFlag)
	if sub == "" {
		fmt.Fprintln(os.Stderr, "a subject is required via -sub")
		os.Exit(1)
	}
	if ttlFlag <= 0 {
		fmt.Fprintln(os.Stderr, "ttl must be positive")
		os.Exit(1)
	}

	token, err := middleware.SignJWT(secret, middleware.TokenClaims{
		Sub:    sub,
		Locale: strings.TrimSpace(localeFlag),
		Exp:    time.Now().Add(ttlFlag).Unix(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
