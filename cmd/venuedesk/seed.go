package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alecgard/venuedesk/internal/auth"
	"github.com/alecgard/venuedesk/internal/profile"
	"github.com/alecgard/venuedesk/internal/seed"
)

var seedEmail string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed a sample venue, contractor membership and job",
	Long:  "Creates a sample venue managed by the given account, adds an active contractor membership for " + seed.ContractorID + ", and posts a broadcast sample job. Each run creates a new venue.",
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedEmail, "email", "", "email of the account that will manage the sample venue")
	_ = seedCmd.MarkFlagRequired("email")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
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

	acct, err := b.users.GetByEmail(ctx, seedEmail)
	if err != nil {
		return fmt.Errorf("looking up %s: %w", seedEmail, err)
	}
	actor := &auth.User{ID: acct.ID, Email: acct.Email, DisplayName: acct.DisplayName}
	if _, err := profile.NewService(b.store).Ensure(ctx, actor); err != nil {
		return fmt.Errorf("ensuring profile: %w", err)
	}

	res, err := seed.Run(ctx, b.store, actor)
	if err != nil {
		return err
	}

	fmt.Printf("\n=== Sample Data Seeded ===\n")
	fmt.Printf("Venue:      %s (%s)\n", seed.VenueName, res.VenueID)
	fmt.Printf("Job:        %s (%s)\n", seed.JobTitle, res.JobID)
	fmt.Printf("Manager:    %s\n", acct.Email)
	fmt.Printf("Contractor: %s\n", seed.ContractorID)
	return nil
}
