// Package daemon runs the long-lived sync process for the offline queue.
//
// The daemon:
//  1. Watches a spool directory where external business processes drop
//     record envelopes (*.json) for enqueueing
//  2. Monitors backend connectivity and triggers a reconciliation pass on
//     every offline-to-online transition
//  3. Triggers coarse periodic passes as a safety net
//  4. Handles graceful shutdown
//
// All triggers funnel through a single trigger.Runner, so overlapping
// triggers coalesce into one in-flight pass plus at most one follow-up.
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pocketerp/outpost/internal/store"
	"github.com/pocketerp/outpost/internal/trigger"
)

// Enqueuer is the store surface the spool importer writes to.
type Enqueuer interface {
	Enqueue(ctx context.Context, recordType string, payload []byte, scope store.Scope) (string, error)
}

// Config holds configuration for the daemon.
type Config struct {
	// SpoolDir is the directory watched for record envelopes.
	// Empty disables the spool importer.
	SpoolDir string

	// DebounceInterval is how long to wait before processing spool file
	// changes. This batches rapid writes together so half-written files are
	// not picked up.
	DebounceInterval time.Duration

	// HealthURL is the backend endpoint probed for connectivity.
	// Empty disables the connectivity monitor.
	HealthURL string

	// HealthInterval is how often to probe connectivity.
	HealthInterval time.Duration

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 200 * time.Millisecond,
		HealthInterval:   15 * time.Second,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon orchestrates spool importing, connectivity monitoring, and
// reconciliation triggering.
type Daemon struct {
	queue  Enqueuer
	runner *trigger.Runner
	config *Config

	watcher       *fsnotify.Watcher
	changeQueue   map[string]time.Time // spool path -> first seen
	changeQueueMu sync.Mutex

	monitor *trigger.Monitor

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Daemon instance.
//
// The daemon requires:
//   - queue: the durable record store
//   - runner: the trigger runner wrapping the sync engine
//
// Use Start() to begin watching and syncing.
func New(queue Enqueuer, runner *trigger.Runner) (*Daemon, error) {
	return NewWithConfig(queue, runner, DefaultConfig())
}

// NewWithConfig creates a daemon with custom configuration.
func NewWithConfig(queue Enqueuer, runner *trigger.Runner, config *Config) (*Daemon, error) {
	if queue == nil {
		return nil, fmt.Errorf("queue cannot be nil")
	}
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}
	if config.DebounceInterval == 0 {
		config.DebounceInterval = 200 * time.Millisecond
	}

	d := &Daemon{
		queue:       queue,
		runner:      runner,
		config:      config,
		changeQueue: make(map[string]time.Time),
	}

	if config.SpoolDir != "" {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("failed to create watcher: %w", err)
		}
		d.watcher = watcher
	}

	if config.HealthURL != "" {
		d.monitor = trigger.NewMonitor(trigger.MonitorConfig{
			HealthURL:    config.HealthURL,
			PollInterval: config.HealthInterval,
			Logger:       config.Logger,
		})
	}

	d.ctx, d.cancel = context.WithCancel(context.Background())

	return d, nil
}

// Start begins the daemon's operation.
//
// The daemon will:
// 1. Import any envelopes already sitting in the spool directory
// 2. Start watching the spool directory for new envelopes
// 3. Run the trigger loop (periodic, connectivity, manual kicks)
//
// This blocks until ctx is cancelled or startup fails.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	if d.watcher != nil {
		if err := os.MkdirAll(d.config.SpoolDir, 0755); err != nil {
			return fmt.Errorf("failed to create spool directory: %w", err)
		}

		// Pick up envelopes dropped while the daemon was not running
		if err := d.importSpool(); err != nil {
			return fmt.Errorf("initial spool import failed: %w", err)
		}

		if err := d.watcher.Add(d.config.SpoolDir); err != nil {
			return fmt.Errorf("failed to watch spool directory: %w", err)
		}

		d.config.Logger.Printf("Watching spool: %s", d.config.SpoolDir)

		d.wg.Add(2)
		go d.watchSpoolEvents()
		go d.processChangeQueue()
	}

	if d.monitor != nil {
		d.wg.Add(2)
		go func() {
			defer d.wg.Done()
			_ = d.monitor.Run(d.ctx)
		}()
		go d.watchConnectivity()
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		_ = d.runner.Run(d.ctx)
	}()

	// Run one pass at startup to drain anything left from the last session
	d.runner.Kick()

	// Wait for shutdown
	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")

	d.cancel()

	if d.watcher != nil {
		if err := d.watcher.Close(); err != nil {
			d.config.Logger.Printf("Error closing watcher: %v", err)
		}
	}

	d.wg.Wait()

	d.config.Logger.Println("Daemon stopped")
	return nil
}

// Kick requests a reconciliation pass (manual trigger).
func (d *Daemon) Kick() {
	d.runner.Kick()
}

// importSpool enqueues every envelope currently in the spool directory.
// Individual file failures are logged but don't stop the import.
func (d *Daemon) importSpool() error {
	entries, err := os.ReadDir(d.config.SpoolDir)
	if err != nil {
		return fmt.Errorf("failed to read spool directory: %w", err)
	}

	imported := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		path := filepath.Join(d.config.SpoolDir, entry.Name())
		if err := d.importEnvelope(path); err != nil {
			d.config.Logger.Printf("WARNING: failed to import %s: %v", entry.Name(), err)
			continue
		}
		imported++
	}

	if imported > 0 {
		d.config.Logger.Printf("Imported %d spooled records", imported)
		d.runner.Kick()
	}

	return nil
}

// watchSpoolEvents monitors filesystem events and queues spool changes.
func (d *Daemon) watchSpoolEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}

			// Only care about Create and Write
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}

			if filepath.Ext(event.Name) != ".json" {
				continue
			}

			d.queueChange(event.Name)

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// queueChange adds a spool file to the change queue with debouncing.
func (d *Daemon) queueChange(path string) {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	d.changeQueue[path] = time.Now()
}

// processChangeQueue imports queued spool files with debouncing.
func (d *Daemon) processChangeQueue() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.processPendingChanges()
		}
	}
}

// processPendingChanges imports spool files that have been quiet for long
// enough.
func (d *Daemon) processPendingChanges() {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	now := time.Now()
	imported := false

	for path, queuedAt := range d.changeQueue {
		// Only process if enough time has passed (debouncing)
		if now.Sub(queuedAt) < d.config.DebounceInterval {
			continue
		}

		delete(d.changeQueue, path)

		// The file may have been consumed by an earlier event
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		if err := d.importEnvelope(path); err != nil {
			d.config.Logger.Printf("Error importing %s: %v", path, err)
			continue
		}
		imported = true
	}

	if imported {
		d.runner.Kick()
	}
}

// importEnvelope enqueues one spool file and removes it on success.
func (d *Daemon) importEnvelope(path string) error {
	env, err := ReadEnvelopeFile(path)
	if err != nil {
		return err
	}

	scope := store.Scope{CompanyID: env.CompanyID, BranchID: env.BranchID}
	id, err := d.queue.Enqueue(d.ctx, env.RecordType, env.Payload, scope)
	if err != nil {
		return fmt.Errorf("failed to enqueue: %w", err)
	}

	if err := os.Remove(path); err != nil {
		d.config.Logger.Printf("Warning: failed to remove spool file %s: %v", path, err)
	}

	d.config.Logger.Printf("Enqueued %s record %s from spool", env.RecordType, id)
	return nil
}

// watchConnectivity kicks the runner whenever the backend becomes reachable.
func (d *Daemon) watchConnectivity() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case state, ok := <-d.monitor.Transitions():
			if !ok {
				return
			}
			if state == trigger.Online {
				d.config.Logger.Println("Back online, triggering sync")
				d.runner.Kick()
			}
		}
	}
}
