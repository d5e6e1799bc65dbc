package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/chachabrian/mooveit-dispatch/internal/config"
	"github.com/chachabrian/mooveit-dispatch/pkg/utils"
	"github.com/spf13/cobra"
)

var (
	tokenUser uint
	tokenRole string
	tokenTTL  time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a signed API token",
	Long: `Signs a JWT with JWT_SECRET for the given user and role.
Intended for operators and local testing.`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().UintVar(&tokenUser, "user", 0, "user id to embed in the token")
	tokenCmd.Flags().StringVar(&tokenRole, "role", utils.RoleDispatcher, "customer, driver or dispatcher")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	if tokenUser == 0 {
		return errors.New("--user is required")
	}
	switch tokenRole {
	case utils.RoleCustomer, utils.RoleDriver, utils.RoleDispatcher:
	default:
		return fmt.Errorf("unknown role %q", tokenRole)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	token, err := utils.GenerateToken(cfg.JWTSecret, tokenUser, tokenRole, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
