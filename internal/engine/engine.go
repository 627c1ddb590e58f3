// Package engine provides the reconciliation engine that drains the offline
// queue against the authoritative backend.
//
// One call to RunSync is one reconciliation pass: every record that was
// unsynced at pass start is attempted exactly once, in creation order, by the
// handler registered for its record type. Processing is strictly per-record
// and independent - a failing record is annotated and left for the next pass,
// and never prevents the rest of the pass from running.
//
// The engine defines no scheduling policy of its own; it runs one pass when
// asked. Callers must serialize passes (see the trigger package), as the
// behavior of two concurrent passes over the same store is undefined.
package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/pocketerp/outpost/internal/store"
)

// Queue is the store surface the engine needs: reading the unsynced set and
// writing per-record outcomes back.
type Queue interface {
	ListUnsynced(ctx context.Context) ([]*store.PendingRecord, error)
	MarkSynced(ctx context.Context, id, serverID string) error
	MarkError(ctx context.Context, id, message string) error
}

// Result is the aggregate outcome of one reconciliation pass.
type Result struct {
	// Synced is the number of records confirmed by the backend this pass.
	Synced int

	// Errors is the number of records that failed this pass and remain
	// queued for retry.
	Errors int
}

// Engine runs reconciliation passes over the offline queue.
type Engine struct {
	queue    Queue
	registry *Registry
	logger   *log.Logger
}

// New creates a new Engine.
//
// The queue must be initialized before passing to this function.
// If logger is nil, a default logger writing to stderr is used.
func New(queue Queue, registry *Registry, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Engine{
		queue:    queue,
		registry: registry,
		logger:   logger,
	}
}

// RunSync executes one complete reconciliation pass and reports the
// aggregate outcome.
//
// Each unsynced record is attempted exactly once: the handler for its type is
// invoked, and the outcome (server ID or error message) is written back to
// the queue. A record type with no registered handler is annotated with a
// distinct configuration error and counted as a failure.
//
// RunSync returns a non-nil error only for storage faults - failing to read
// the unsynced set or to persist an outcome. Storage faults abort the pass;
// the partial Result is still returned. Handler failures never abort the
// pass and are reported only through Result.Errors.
func (e *Engine) RunSync(ctx context.Context) (Result, error) {
	var res Result

	recs, err := e.queue.ListUnsynced(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to read unsynced records: %w", err)
	}

	if len(recs) == 0 {
		return res, nil
	}

	// The store returns records in unspecified order; replay oldest first.
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].ID < recs[j].ID
		}
		return recs[i].CreatedAt.Before(recs[j].CreatedAt)
	})

	e.logger.Printf("Starting pass: %d unsynced records", len(recs))

	for _, rec := range recs {
		h := e.registry.Lookup(rec.RecordType)
		if h == nil {
			msg := fmt.Sprintf("no handler registered for record type %q", rec.RecordType)
			e.logger.Printf("WARNING: %s (record %s)", msg, rec.ID)
			if err := e.queue.MarkError(ctx, rec.ID, msg); err != nil {
				return res, fmt.Errorf("failed to record outcome for %s: %w", rec.ID, err)
			}
			res.Errors++
			continue
		}

		serverID, herr := invoke(ctx, h, rec)
		if herr != nil {
			e.logger.Printf("Record %s (%s) failed: %v", rec.ID, rec.RecordType, herr)
			if err := e.queue.MarkError(ctx, rec.ID, herr.Error()); err != nil {
				return res, fmt.Errorf("failed to record outcome for %s: %w", rec.ID, err)
			}
			res.Errors++
			continue
		}

		if err := e.queue.MarkSynced(ctx, rec.ID, serverID); err != nil {
			return res, fmt.Errorf("failed to record outcome for %s: %w", rec.ID, err)
		}
		e.logger.Printf("Synced record %s (%s) as %s", rec.ID, rec.RecordType, serverID)
		res.Synced++
	}

	e.logger.Printf("Pass complete: synced=%d errors=%d", res.Synced, res.Errors)
	return res, nil
}

// invoke calls a handler, converting a panic into an ordinary error so one
// misbehaving handler cannot take down the pass.
func invoke(ctx context.Context, h Handler, rec *store.PendingRecord) (serverID string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, rec)
}
