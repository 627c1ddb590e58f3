package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pocketerp/outpost/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage outpost configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Write the default configuration to $OUTPOST_HOME/config.yaml
(or the path given with --config). Refuses to overwrite an existing file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = filepath.Join(config.DefaultDir(), "config.yaml")
		}

		if err := config.WriteDefault(path); err != nil {
			return err
		}

		fmt.Printf("Wrote %s\n", path)
		fmt.Println("Set backend.base_url before running sync.")
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("db_path:    %s\n", cfg.DBPath)
		fmt.Printf("spool_dir:  %s\n", cfg.SpoolDir)
		fmt.Printf("log_file:   %s\n", cfg.LogFile)
		fmt.Printf("backend:    %s\n", cfg.Backend.BaseURL)
		fmt.Printf("health:     %s\n", cfg.Backend.HealthURL)
		fmt.Printf("interval:   %v\n", cfg.Sync.Interval)
		fmt.Printf("dashboard:  enabled=%v port=%d\n", cfg.Dashboard.Enabled, cfg.Dashboard.Port)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
