// Package cli wires the dispatch service behind the mooveit-dispatch command.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mooveit-dispatch",
	Short: "Booking, driver assignment and payment settlement service",
	Long: `mooveit-dispatch runs the dispatch core: the booking lifecycle,
automatic driver and vehicle assignment, and payment settlement.
Settings are read from the environment or a .env file.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
