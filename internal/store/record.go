package store

import (
	"encoding/json"
	"time"
)

// State is the synchronization state of a pending record.
//
// A record starts Unsynced and transitions to Synced exactly once, when the
// backend confirms the write. There is no transition back.
type State string

const (
	// StateUnsynced means the record has not yet been confirmed by the backend.
	StateUnsynced State = "unsynced"

	// StateSynced means the backend accepted the write and assigned a server ID.
	StateSynced State = "synced"
)

// Scope carries the tenant and branch identifiers a record was created under.
// Scope is set at enqueue time and never mutated afterwards.
type Scope struct {
	// CompanyID identifies the owning organization.
	CompanyID string

	// BranchID identifies the branch the mutation applies to.
	BranchID string
}

// PendingRecord is one durable unit of deferred work: a business mutation
// captured while offline, waiting to be replayed against the backend.
type PendingRecord struct {
	// ID is the locally generated primary key, assigned at enqueue time.
	ID string

	// RecordType selects which handler reconciles this record
	// (e.g. "sale", "payment", "expense", "journal_entry").
	RecordType string

	// Payload is the module-defined document needed to reconstruct the
	// backend write. The store and engine treat it as opaque.
	Payload json.RawMessage

	// Scope is the tenant/branch scope the record belongs to.
	Scope Scope

	// CreatedAt is the local creation time, used for ordering and display.
	CreatedAt time.Time

	// State is the current sync state.
	State State

	// ServerID is the backend-assigned identifier, set only once Synced.
	ServerID string

	// LastError holds the message from the most recent failed reconciliation
	// attempt. It is cleared when the record becomes Synced.
	LastError string
}
