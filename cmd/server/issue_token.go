package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/package-gallery/gallery/internal/auth"
	"github.com/package-gallery/gallery/internal/config"
	"github.com/package-gallery/gallery/internal/db"
	"github.com/package-gallery/gallery/internal/db/repositories"
)

type issueTokenOptions struct {
	username string
	scopes   []string
	ttl      time.Duration
}

// parseIssueTokenFlags parses
//
//	issue-token -user <name> [-scopes users:write,audit:read] [-ttl 1h]
//
// -scopes defaults to the regular user scopes and -ttl to auth.token_ttl.
func parseIssueTokenFlags(args []string, defaultTTL time.Duration) (*issueTokenOptions, error) {
	fs := flag.NewFlagSet("issue-token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	user := fs.String("user", "", "username the token is issued to")
	scopes := fs.String("scopes", strings.Join(auth.GetDefaultScopes(), ","), "comma-separated scopes")
	ttl := fs.Duration("ttl", defaultTTL, "token lifetime")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("issue-token: %w", err)
	}
	if *user == "" {
		return nil, errors.New("usage: issue-token -user <name> [-scopes a,b] [-ttl 1h]")
	}
	if *ttl <= 0 {
		return nil, fmt.Errorf("issue-token: ttl must be positive, got %s", *ttl)
	}

	var list []string
	for _, s := range strings.Split(*scopes, ",") {
		if s = strings.TrimSpace(s); s != "" {
			list = append(list, s)
		}
	}
	if len(list) == 0 {
		return nil, errors.New("issue-token: at least one scope is required")
	}
	if err := auth.ValidateScopes(list); err != nil {
		return nil, fmt.Errorf("issue-token: %w", err)
	}

	return &issueTokenOptions{username: *user, scopes: list, ttl: *ttl}, nil
}

// issueToken mints a JWT for an existing, non-deleted account and prints it to stdout
func issueToken(cfg *config.Config, opts *issueTokenOptions) error {
	if err := auth.ValidateJWTSecret(); err != nil {
		return fmt.Errorf("security configuration error: %w", err)
	}

	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	user, err := repositories.NewUserRepository(database).GetByUsername(context.Background(), opts.username)
	if err != nil {
		return fmt.Errorf("failed to load account %s: %w", opts.username, err)
	}
	if user == nil || user.IsDeleted {
		return fmt.Errorf("account %s not found", opts.username)
	}

	token, err := auth.GenerateJWT(user.ID, user.Username, opts.scopes, opts.ttl)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}
	fmt.Fprintln(os.Stdout, token)
	return nil
}
