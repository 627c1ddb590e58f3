// Command outpost manages the offline write queue for the mobile ERP client.
//
// Business mutations recorded while disconnected are queued in a local
// SQLite database and reconciled against the backend exactly once each when
// connectivity returns.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pocketerp/outpost/internal/config"
	"github.com/pocketerp/outpost/internal/store"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "outpost",
	Short: "Offline write queue and sync engine for the pocket ERP client",
	Long: `Outpost keeps the ERP client usable while disconnected.

Business writes (sales, payments, expenses, journal entries) recorded offline
are queued durably in a local SQLite database. When connectivity returns, the
sync engine replays each queued record against the backend exactly once,
reporting success or failure per record. Failed records stay queued and are
retried on the next pass.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: $OUTPOST_HOME/config.yaml)")

	rootCmd.AddCommand(enqueueCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig resolves configuration honoring the --config flag.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openQueue opens the queue database and ensures the schema exists.
func openQueue(cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := st.InitSchema(); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// newLogger builds a component logger, rotating to cfg.LogFile when set.
func newLogger(cfg *config.Config, prefix string) *log.Logger {
	var w io.Writer = os.Stderr
	if cfg.LogFile != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
	}
	return log.New(w, prefix, log.LstdFlags)
}
