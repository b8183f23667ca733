package main

import (
	"fmt"

	"github.com/kartikbazzad/bunbase/tracker/internal/config"
	"github.com/kartikbazzad/bunbase/tracker/internal/database"
	"github.com/kartikbazzad/bunbase/tracker/pkg/logger"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := database.Migrate(cfg.DB); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info("migrations applied", "driver", cfg.DB.Driver)
			return nil
		},
	}
}

func secretCmd() *cobra.Command {
	var length int
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Print a random JWT signing secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			if length < config.MinSecretLength {
				return fmt.Errorf("length must be at least %d", config.MinSecretLength)
			}
			secret, err := config.GenerateSecret(length)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), secret)
			return nil
		},
	}
	cmd.Flags().IntVarP(&length, "bytes", "n", config.MinSecretLength, "number of random bytes")
	return cmd
}
