package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tm-signals/signals_service/internal/infrastructure/config"
	"github.com/tm-signals/signals_service/pkg/auth"
)

// issuetoken prints a bearer token for the paper trading and admin routes.
// The signing secret and issuer come from the service configuration.
func main() {
	owner := flag.String("owner", "", "owner id to put in the token subject")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to jwt.token_ttl_hours)")
	flag.Parse()

	token, err := issue(strings.TrimSpace(*owner), *ttl)
	if err != nil {
		exitWithError(err)
	}
	fmt.Println(token)
}

func issue(owner string, ttl time.Duration) (string, error) {
	if owner == "" {
		return "", errors.New("-owner is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.JWT.Secret == "" {
		return "", errors.New("jwt secret is not configured (set JWT_SECRET)")
	}
	if ttl <= 0 {
		ttl = cfg.JWT.TokenTTL()
	}

	token, err := auth.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, ttl).Issue(owner)
	if err != nil {
		return "", fmt.Errorf("failed to issue token: %w", err)
	}
	return token, nil
}

// exitWithError prints the error and terminates the process
func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
