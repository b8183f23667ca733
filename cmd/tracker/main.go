package main

import (
	"fmt"
	"os"

	"github.com/kartikbazzad/bunbase/tracker/internal/config"
	"github.com/kartikbazzad/bunbase/tracker/pkg/logger"
	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:          "tracker",
	Short:        "Collaborative project and task tracker",
	SilenceUsage: true,
}

func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.Log)
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (yaml, json, toml or env)")

	rootCmd.AddCommand(serveCmd(), migrateCmd(), secretCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
