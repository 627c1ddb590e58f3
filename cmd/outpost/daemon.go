package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pocketerp/outpost/internal/backend"
	"github.com/pocketerp/outpost/internal/daemon"
	"github.com/pocketerp/outpost/internal/dashboard"
	"github.com/pocketerp/outpost/internal/engine"
	"github.com/pocketerp/outpost/internal/status"
	"github.com/pocketerp/outpost/internal/trigger"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the sync daemon",
	Long: `Run the long-lived sync process.

The daemon watches the spool directory for record envelopes dropped by
business modules, probes backend connectivity, and runs a reconciliation pass
on every offline-to-online transition, on a coarse periodic timer, and with
exponential backoff while records keep failing. Overlapping triggers collapse
into one in-flight pass plus at most one follow-up.

With dashboard.enabled, a local WebSocket server broadcasts queue events and
serves /status for UI polling.`,
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

		logger := newLogger(cfg, "[daemon] ")

		reg := engine.NewRegistry()
		backend.RegisterHandlers(reg, backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Token))

		var dash *dashboard.Server
		if cfg.Dashboard.Enabled {
			dash = dashboard.NewServer(&dashboard.Config{
				Port:       cfg.Dashboard.Port,
				Aggregator: status.NewAggregator(st),
				Logger:     newLogger(cfg, "[dashboard] "),
			})
			if err := dash.Start(); err != nil {
				return fmt.Errorf("failed to start dashboard: %w", err)
			}
			defer func() { _ = dash.Stop() }()
			fmt.Printf("Dashboard: http://localhost:%d/status\n", cfg.Dashboard.Port)
		}

		// With the dashboard up, every record state change (enqueued, synced,
		// errored) and every pass outcome reaches connected clients
		var queue engine.Queue = st
		var enqueuer daemon.Enqueuer = st
		if dash != nil {
			nq := dashboard.NotifyQueue(st, dash)
			queue = nq
			enqueuer = nq
		}

		eng := engine.New(queue, reg, newLogger(cfg, "[sync] "))

		var syncer trigger.Syncer = eng
		if dash != nil {
			syncer = &broadcastingSyncer{engine: eng, dash: dash}
		}

		runner := trigger.NewRunner(syncer, &trigger.RunnerConfig{
			Interval:     cfg.Sync.Interval,
			RetryInitial: cfg.Sync.RetryInitial,
			RetryMax:     cfg.Sync.RetryMax,
			Logger:       newLogger(cfg, "[trigger] "),
		})

		d, err := daemon.NewWithConfig(enqueuer, runner, &daemon.Config{
			SpoolDir:       cfg.SpoolDir,
			HealthURL:      cfg.Backend.HealthURL,
			HealthInterval: cfg.Sync.HealthInterval,
			Logger:         logger,
		})
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		fmt.Println("Daemon running, press Ctrl+C to stop...")
		return d.Start(ctx)
	},
}

// broadcastingSyncer wraps the engine so every pass outcome reaches the
// dashboard clients.
type broadcastingSyncer struct {
	engine *engine.Engine
	dash   *dashboard.Server
}

func (b *broadcastingSyncer) RunSync(ctx context.Context) (engine.Result, error) {
	start := time.Now()
	res, err := b.engine.RunSync(ctx)
	b.dash.BroadcastSyncComplete(res.Synced, res.Errors, time.Since(start))
	return res, err
}
