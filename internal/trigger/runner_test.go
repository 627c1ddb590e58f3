package trigger

import (
	"context"
	"io"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pocketerp/outpost/internal/engine"
)

// gatedSyncer blocks inside RunSync until released, so tests can overlap
// triggers with an in-flight pass.
type gatedSyncer struct {
	started chan struct{}
	release chan struct{}
	passes  atomic.Int32
}

func newGatedSyncer() *gatedSyncer {
	return &gatedSyncer{
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

func (g *gatedSyncer) RunSync(ctx context.Context) (engine.Result, error) {
	g.started <- struct{}{}
	select {
	case <-g.release:
	case <-ctx.Done():
	}
	g.passes.Add(1)
	return engine.Result{}, nil
}

func testRunnerConfig() *RunnerConfig {
	return &RunnerConfig{
		Interval:     0, // no ticker in tests
		RetryInitial: 10 * time.Millisecond,
		RetryMax:     50 * time.Millisecond,
		Logger:       log.New(io.Discard, "", 0),
	}
}

// TestRunner_KickRunsPass tests that a manual trigger runs one pass
func TestRunner_KickRunsPass(t *testing.T) {
	syncer := newGatedSyncer()
	runner := NewRunner(syncer, testRunnerConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = runner.Run(ctx) }()

	runner.Kick()

	select {
	case <-syncer.started:
	case <-time.After(2 * time.Second):
		t.Fatal("pass did not start after Kick()")
	}
	syncer.release <- struct{}{}
}

// TestRunner_CoalescesOverlappingTriggers tests that triggers arriving during
// a pass collapse into exactly one follow-up pass
func TestRunner_CoalescesOverlappingTriggers(t *testing.T) {
	syncer := newGatedSyncer()
	runner := NewRunner(syncer, testRunnerConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = runner.Run(ctx) }()

	runner.Kick()

	// Wait for the first pass to be in flight
	select {
	case <-syncer.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first pass did not start")
	}

	// These must all collapse into one queued follow-up
	runner.Kick()
	runner.Kick()
	runner.Kick()

	syncer.release <- struct{}{}

	// The single follow-up pass starts
	select {
	case <-syncer.started:
	case <-time.After(2 * time.Second):
		t.Fatal("follow-up pass did not start")
	}
	syncer.release <- struct{}{}

	// No third pass should appear
	select {
	case <-syncer.started:
		t.Fatal("unexpected third pass; triggers were not coalesced")
	case <-time.After(200 * time.Millisecond):
	}

	if got := syncer.passes.Load(); got != 2 {
		t.Errorf("passes = %d, want 2", got)
	}
}

// failingThenCleanSyncer fails its first pass and succeeds afterwards.
type failingThenCleanSyncer struct {
	passes  atomic.Int32
	started chan struct{}
}

func (f *failingThenCleanSyncer) RunSync(ctx context.Context) (engine.Result, error) {
	n := f.passes.Add(1)
	f.started <- struct{}{}
	if n == 1 {
		return engine.Result{Errors: 1}, nil
	}
	return engine.Result{Synced: 1}, nil
}

// TestRunner_RetriesAfterErrors tests that a pass reporting errors schedules
// a backoff retry without any external trigger
func TestRunner_RetriesAfterErrors(t *testing.T) {
	syncer := &failingThenCleanSyncer{started: make(chan struct{}, 4)}
	runner := NewRunner(syncer, testRunnerConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = runner.Run(ctx) }()

	runner.Kick()

	select {
	case <-syncer.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first pass did not start")
	}

	// The retry kick arrives on its own after the backoff delay
	select {
	case <-syncer.started:
	case <-time.After(2 * time.Second):
		t.Fatal("retry pass did not start")
	}

	// Clean pass resets; nothing further should run
	select {
	case <-syncer.started:
		t.Fatal("unexpected pass after a clean one")
	case <-time.After(200 * time.Millisecond):
	}
}

// TestRunner_KickNeverBlocks tests that Kick is safe without a running loop
func TestRunner_KickNeverBlocks(t *testing.T) {
	runner := NewRunner(newGatedSyncer(), testRunnerConfig())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			runner.Kick()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Kick() blocked")
	}
}
