package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/alecgard/venuedesk/internal/auth"
	"github.com/alecgard/venuedesk/internal/profile"
	"github.com/alecgard/venuedesk/internal/schema"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user profiles",
}

var userSetRoleCmd = &cobra.Command{
	Use:   "set-role <email> <role>",
	Short: "Set a user's application role (system_admin, manager, contractor)",
	Args:  cobra.ExactArgs(2),
	RunE:  runUserSetRole,
}

func init() {
	userCmd.AddCommand(userSetRoleCmd)
	rootCmd.AddCommand(userCmd)
}

func runUserSetRole(cmd *cobra.Command, args []string) error {
	email, role := args[0], schema.Role(args[1])
	if !role.Valid() {
		return fmt.Errorf("%w: %q", profile.ErrInvalidRole, role)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.UsesPostgres() {
		return errNeedsPostgres
	}

	ctx := context.Background()
	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	acct, err := b.users.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("looking up %s: %w", email, err)
	}

	// The profile may not exist until the user first signs in.
	profiles := profile.NewService(b.store)
	if _, err := profiles.Ensure(ctx, &auth.User{ID: acct.ID, Email: acct.Email, DisplayName: acct.DisplayName}); err != nil {
		return fmt.Errorf("ensuring profile: %w", err)
	}
	if err := profiles.SetRole(ctx, acct.ID, role); err != nil {
		return err
	}

	slog.Info("role updated", "user_id", acct.ID, "email", acct.Email, "role", role)
	fmt.Printf("%s is now %s\n", acct.Email, role)
	return nil
}
