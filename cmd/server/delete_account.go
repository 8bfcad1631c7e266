package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/package-gallery/gallery/internal/audit"
	"github.com/package-gallery/gallery/internal/config"
	"github.com/package-gallery/gallery/internal/db"
	"github.com/package-gallery/gallery/internal/db/repositories"
	"github.com/package-gallery/gallery/internal/services"
	"github.com/package-gallery/gallery/internal/telemetry"
)

type deleteAccountOptions struct {
	username      string
	adminUsername string
	policy        services.OrphanPackagePolicy
	transaction   bool
}

// parseDeleteAccountFlags parses
//
//	delete-account -user <name> -admin <name> [-orphans deny|unlist|keep] [-no-transaction]
//
// Omitted options fall back to the account_deletion config.
func parseDeleteAccountFlags(args []string, defaults config.AccountDeletionConfig) (*deleteAccountOptions, error) {
	fs := flag.NewFlagSet("delete-account", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	user := fs.String("user", "", "username of the account to delete")
	admin := fs.String("admin", "", "username of the administrator performing the deletion")
	orphans := fs.String("orphans", defaults.OrphanPolicy, "orphaned package policy: deny, unlist or keep")
	noTx := fs.Bool("no-transaction", !defaults.CommitAsTransaction, "run each step without a surrounding transaction")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("delete-account: %w", err)
	}
	if *user == "" || *admin == "" {
		return nil, errors.New("usage: delete-account -user <name> -admin <name> [-orphans deny|unlist|keep] [-no-transaction]")
	}

	policy, err := services.ParseOrphanPackagePolicy(*orphans)
	if err != nil {
		return nil, fmt.Errorf("delete-account: %w", err)
	}

	return &deleteAccountOptions{
		username:      *user,
		adminUsername: *admin,
		policy:        policy,
		transaction:   !*noTx,
	}, nil
}

// deleteAccount runs one deletion from the command line and prints the status as JSON
func deleteAccount(cfg *config.Config, opts *deleteAccountOptions) error {
	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	sinks, err := audit.OpenSinks(cfg.Audit.Sinks)
	if err != nil {
		return fmt.Errorf("failed to open audit sinks: %w", err)
	}
	defer sinks.Close()

	gallery := services.NewGallery(database,
		audit.NewService(repositories.NewAuditRepository(database), sinks),
		telemetry.NewService())

	ctx := context.Background()
	account, err := gallery.Users.GetByUsername(ctx, opts.username)
	if err != nil {
		return fmt.Errorf("failed to load account %s: %w", opts.username, err)
	}
	if account == nil {
		return fmt.Errorf("account %s not found", opts.username)
	}
	admin, err := gallery.Users.GetByUsername(ctx, opts.adminUsername)
	if err != nil {
		return fmt.Errorf("failed to load admin %s: %w", opts.adminUsername, err)
	}
	if admin == nil {
		return fmt.Errorf("admin %s not found", opts.adminUsername)
	}

	status, err := gallery.DeleteAccount.DeleteAccount(ctx, account, admin, opts.transaction, opts.policy)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(status); err != nil {
		return err
	}
	if !status.Success {
		return errors.New(status.Description)
	}
	return nil
}
