// Package trigger decides when reconciliation passes run.
//
// The engine itself only knows how to run one pass when asked. This package
// supplies the "when": connectivity transitions back to online, a coarse
// periodic timer, and explicit user action all funnel into a Runner, which
// coalesces overlapping triggers into one in-flight pass plus at most one
// queued follow-up. Retry pacing for failing records also lives here, as
// exponential backoff between passes, never inside the engine.
package trigger

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/pocketerp/outpost/internal/engine"
)

// Syncer runs one reconciliation pass. Implemented by *engine.Engine.
type Syncer interface {
	RunSync(ctx context.Context) (engine.Result, error)
}

// RunnerConfig configures the trigger runner.
type RunnerConfig struct {
	// Interval is the coarse periodic trigger. Zero disables the ticker.
	Interval time.Duration

	// RetryInitial is the first backoff delay after a pass that reports
	// errors (default: 5s).
	RetryInitial time.Duration

	// RetryMax caps the backoff delay between retry passes (default: 5m).
	RetryMax time.Duration

	// Logger for runner activity.
	Logger *log.Logger
}

// DefaultRunnerConfig returns sensible defaults.
func DefaultRunnerConfig() *RunnerConfig {
	return &RunnerConfig{
		Interval:     5 * time.Minute,
		RetryInitial: 5 * time.Second,
		RetryMax:     5 * time.Minute,
		Logger:       log.New(os.Stderr, "[trigger] ", log.LstdFlags),
	}
}

// Runner serializes reconciliation passes behind a coalesced trigger channel.
//
// All trigger sources call Kick. Because passes execute on a single goroutine
// and the kick channel has capacity one, triggers arriving mid-pass collapse
// into exactly one follow-up pass; they are never queued indefinitely.
type Runner struct {
	syncer Syncer
	config *RunnerConfig
	kicks  chan struct{}
}

// NewRunner creates a Runner around the given syncer.
func NewRunner(syncer Syncer, config *RunnerConfig) *Runner {
	if config == nil {
		config = DefaultRunnerConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[trigger] ", log.LstdFlags)
	}
	if config.RetryInitial == 0 {
		config.RetryInitial = 5 * time.Second
	}
	if config.RetryMax == 0 {
		config.RetryMax = 5 * time.Minute
	}

	return &Runner{
		syncer: syncer,
		config: config,
		kicks:  make(chan struct{}, 1),
	}
}

// Kick requests a reconciliation pass. It never blocks: if a pass is already
// pending, the trigger is coalesced into it.
func (r *Runner) Kick() {
	select {
	case r.kicks <- struct{}{}:
	default:
	}
}

// Run processes triggers until ctx is cancelled.
//
// Each trigger runs one pass to completion before the next trigger is
// considered; there is no mid-pass cancellation beyond ctx reaching the
// handlers themselves. After a pass that reports errors, a retry trigger is
// scheduled with exponential backoff. A clean pass resets the backoff.
func (r *Runner) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.config.RetryInitial
	bo.MaxInterval = r.config.RetryMax
	bo.Reset()

	var ticker *time.Ticker
	var tick <-chan time.Time
	if r.config.Interval > 0 {
		ticker = time.NewTicker(r.config.Interval)
		tick = ticker.C
		defer ticker.Stop()
	}

	var retry *time.Timer
	defer func() {
		if retry != nil {
			retry.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-tick:
			r.Kick()

		case <-r.kicks:
			res, err := r.syncer.RunSync(ctx)
			if err != nil {
				r.config.Logger.Printf("Pass aborted: %v", err)
			}

			if retry != nil {
				retry.Stop()
				retry = nil
			}

			if err == nil && res.Errors == 0 {
				bo.Reset()
				continue
			}

			// Records are left unsynced; pace the next attempt instead of
			// hammering the backend every trigger.
			delay := bo.NextBackOff()
			r.config.Logger.Printf("Pass left %d records errored, retrying in %v", res.Errors, delay)
			retry = time.AfterFunc(delay, r.Kick)
		}
	}
}
