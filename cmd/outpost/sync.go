package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pocketerp/outpost/internal/backend"
	"github.com/pocketerp/outpost/internal/engine"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one reconciliation pass against the backend",
	Long: `Run a single reconciliation pass over the offline queue.

Every record that is unsynced when the pass starts is attempted exactly once.
Failed records stay queued with their error recorded and are retried on the
next pass; one record's failure never blocks the rest.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if cfg.Backend.BaseURL == "" {
			return fmt.Errorf("backend.base_url is not configured")
		}

		st, err := openQueue(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		reg := engine.NewRegistry()
		backend.RegisterHandlers(reg, backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Token))

		eng := engine.New(st, reg, newLogger(cfg, "[sync] "))

		start := time.Now()
		res, err := eng.RunSync(context.Background())
		elapsed := time.Since(start).Round(time.Millisecond)

		fmt.Printf("Synced: %d\n", res.Synced)
		fmt.Printf("Errors: %d\n", res.Errors)
		fmt.Printf("Took:   %v\n", elapsed)

		if err != nil {
			return fmt.Errorf("pass aborted: %w", err)
		}
		return nil
	},
}
