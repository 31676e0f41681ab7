package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "venuedesk",
	Short: "Venuedesk venue and job coordination server",
	Long:  "Venuedesk lets managers run venues and post jobs, contractors pick up and report on those jobs, and system admins oversee roles, all behind a policy-checked document store.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: configs/venuedesk.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
