// Package status provides derived, read-only views over the offline queue
// for UI indicators.
package status

import (
	"context"
	"fmt"
)

// Counter is the store surface the aggregator reads from.
type Counter interface {
	CountUnsynced(ctx context.Context) (int, error)
	HasErrors(ctx context.Context) (bool, error)
}

// Snapshot is a point-in-time view of the queue for status indicators.
type Snapshot struct {
	// Pending is the number of records awaiting reconciliation.
	Pending int `json:"pending"`

	// HasErrors is true while any pending record carries an error from its
	// most recent reconciliation attempt. It gives the UI a persistent
	// "needs attention" signal until the record syncs or the queue is
	// explicitly cleared.
	HasErrors bool `json:"has_errors"`
}

// Aggregator computes queue status on demand. It holds no state of its own;
// every Snapshot reflects the latest persisted state.
type Aggregator struct {
	counter Counter
}

// NewAggregator creates an Aggregator over the given store.
func NewAggregator(counter Counter) *Aggregator {
	return &Aggregator{counter: counter}
}

// Snapshot recomputes the current queue status.
func (a *Aggregator) Snapshot(ctx context.Context) (Snapshot, error) {
	pending, err := a.counter.CountUnsynced(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to count pending records: %w", err)
	}

	hasErrors, err := a.counter.HasErrors(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to check queue errors: %w", err)
	}

	return Snapshot{Pending: pending, HasErrors: hasErrors}, nil
}
