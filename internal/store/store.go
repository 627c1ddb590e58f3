// Package store provides the durable local queue of pending business writes.
//
// The store is an embedded SQLite database holding every mutation the client
// performed while offline, together with its sync state. Business modules
// enqueue records synchronously (local-only, succeeds regardless of network),
// and the sync engine later drains the unsynced set against the backend.
//
// The database runs in embedded mode with WAL for concurrency support.
//
// Layout:
//   - Database file: e.g. ~/.outpost/queue.db
//   - Schema: single pending_records table
//   - Index on sync_state so the unsynced set is retrieved without a full scan
//
// Records are never deleted automatically. ClearAll is the only removal path
// and is an explicit, user-confirmed, destructive operation.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// timeLayout is RFC 3339 with fixed-width nanoseconds. RFC3339Nano trims
// trailing zeros, which breaks lexical ORDER BY within a second ("...5Z"
// sorts before "...Z"); the fixed-width form keeps string order equal to
// time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps the SQLite connection holding the pending-record queue.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates a new store at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// If the database doesn't exist, it is created; call InitSchema before use.
//
// The caller MUST call Close() when done to ensure proper cleanup.
//
// Example:
//
//	st, err := store.Open(filepath.Join(home, ".outpost", "queue.db"))
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
func Open(path string) (*Store, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s", path)
	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping store: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	st := &Store{
		conn: conn,
		path: path,
	}

	// Enable WAL mode for concurrent reads
	if _, err := st.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := st.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return st, nil
}

// RawDB returns the underlying sql.DB connection.
// This is useful for integrating with other libraries that expect *sql.DB.
func (st *Store) RawDB() *sql.DB {
	return st.conn
}

// Close closes the store.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (st *Store) Close() error {
	if st.conn == nil {
		return nil
	}

	if _, err := st.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := st.conn.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}

	st.conn = nil
	return nil
}

// InitSchema creates the queue schema if it doesn't exist.
//
// This is idempotent - safe to call multiple times.
func (st *Store) InitSchema() error {
	return st.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the queue schema with context support.
func (st *Store) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS pending_records (
		id TEXT PRIMARY KEY,
		record_type TEXT NOT NULL,
		payload TEXT NOT NULL,  -- JSON document, opaque to the queue
		company_id TEXT NOT NULL,
		branch_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		sync_state TEXT NOT NULL DEFAULT 'unsynced',
		server_id TEXT,
		last_error TEXT
	);

	-- The sync engine only ever asks for unsynced records
	CREATE INDEX IF NOT EXISTS idx_pending_state ON pending_records(sync_state);
	CREATE INDEX IF NOT EXISTS idx_pending_type ON pending_records(record_type);
	CREATE INDEX IF NOT EXISTS idx_pending_created ON pending_records(created_at);
	`

	if _, err := st.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// Enqueue persists a new pending record and returns its generated ID.
//
// The record starts Unsynced. Enqueue is synchronous and local-only: it
// succeeds while offline, and a failure means a local storage fault, which is
// surfaced to the caller rather than silently dropped.
func (st *Store) Enqueue(ctx context.Context, recordType string, payload []byte, scope Scope) (string, error) {
	if recordType == "" {
		return "", fmt.Errorf("record type cannot be empty")
	}
	if len(payload) == 0 {
		return "", fmt.Errorf("payload cannot be empty")
	}

	id := uuid.NewString()

	query := `
	INSERT INTO pending_records (
		id, record_type, payload, company_id, branch_id,
		created_at, sync_state
	) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := st.conn.ExecContext(ctx, query,
		id,
		recordType,
		string(payload),
		scope.CompanyID,
		scope.BranchID,
		time.Now().UTC().Format(timeLayout),
		string(StateUnsynced),
	)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue %s record: %w", recordType, err)
	}

	return id, nil
}

// ListUnsynced returns all records that have not been confirmed by the
// backend. Order is unspecified; ordering is the engine's responsibility.
func (st *Store) ListUnsynced(ctx context.Context) ([]*PendingRecord, error) {
	query := selectColumns + ` WHERE sync_state = ?`

	rows, err := st.conn.QueryContext(ctx, query, string(StateUnsynced))
	if err != nil {
		return nil, fmt.Errorf("failed to list unsynced records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// List returns every record in the queue, synced and unsynced, ordered by
// creation time. Used for display grouping, not by the engine.
func (st *Store) List(ctx context.Context) ([]*PendingRecord, error) {
	query := selectColumns + ` ORDER BY created_at ASC`

	rows, err := st.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Get retrieves a single record by ID.
// Returns ErrNotFound if no record has that ID.
func (st *Store) Get(ctx context.Context, id string) (*PendingRecord, error) {
	query := selectColumns + ` WHERE id = ?`

	rows, err := st.conn.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s: %w", id, err)
	}
	defer rows.Close()

	recs, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return recs[0], nil
}

// MarkSynced transitions a record to Synced, stores the backend-assigned
// server ID, and clears any previous error.
//
// The transition is idempotent: calling it again for an already-synced record
// is a no-op. Returns ErrNotFound if the ID does not exist; MarkSynced never
// creates a record.
func (st *Store) MarkSynced(ctx context.Context, id, serverID string) error {
	query := `
	UPDATE pending_records
	SET sync_state = ?, server_id = ?, last_error = NULL
	WHERE id = ?
	`

	res, err := st.conn.ExecContext(ctx, query, string(StateSynced), serverID, id)
	if err != nil {
		return fmt.Errorf("failed to mark record %s synced: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark record %s synced: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

// MarkError records the most recent reconciliation failure for a record
// without changing its sync state. The record stays Unsynced and will be
// retried on the next pass.
//
// A missing ID is a no-op. Records already Synced are left untouched; a
// synced record never carries an error.
func (st *Store) MarkError(ctx context.Context, id, message string) error {
	query := `
	UPDATE pending_records
	SET last_error = ?
	WHERE id = ? AND sync_state = ?
	`

	_, err := st.conn.ExecContext(ctx, query, message, id, string(StateUnsynced))
	if err != nil {
		return fmt.Errorf("failed to mark record %s errored: %w", id, err)
	}

	return nil
}

// CountUnsynced returns the number of records still awaiting reconciliation.
func (st *Store) CountUnsynced(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM pending_records WHERE sync_state = ?`
	err := st.conn.QueryRowContext(ctx, query, string(StateUnsynced)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unsynced records: %w", err)
	}
	return count, nil
}

// HasErrors reports whether at least one unsynced record carries a non-empty
// error from its most recent reconciliation attempt.
func (st *Store) HasErrors(ctx context.Context) (bool, error) {
	var exists int
	query := `
	SELECT EXISTS(
		SELECT 1 FROM pending_records
		WHERE sync_state = ? AND last_error IS NOT NULL AND last_error != ''
	)
	`
	err := st.conn.QueryRowContext(ctx, query, string(StateUnsynced)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check for errors: %w", err)
	}
	return exists == 1, nil
}

// ClearAll irreversibly deletes every record, synced and unsynced, and
// returns how many were removed.
//
// This is the explicit "wipe local queue" operation. Anything not yet
// reconciled is lost; callers are expected to confirm with the user first.
func (st *Store) ClearAll(ctx context.Context) (int, error) {
	res, err := st.conn.ExecContext(ctx, `DELETE FROM pending_records`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear queue: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to clear queue: %w", err)
	}

	return int(n), nil
}

const selectColumns = `
	SELECT id, record_type, payload, company_id, branch_id,
	       created_at, sync_state, server_id, last_error
	FROM pending_records`

// scanRecords is a helper to scan multiple records from query results.
func scanRecords(rows *sql.Rows) ([]*PendingRecord, error) {
	var recs []*PendingRecord

	for rows.Next() {
		var rec PendingRecord
		var payload, createdAt, state string
		var serverID, lastError sql.NullString

		err := rows.Scan(
			&rec.ID,
			&rec.RecordType,
			&payload,
			&rec.Scope.CompanyID,
			&rec.Scope.BranchID,
			&createdAt,
			&state,
			&serverID,
			&lastError,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		rec.Payload = []byte(payload)
		rec.State = State(state)

		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			rec.CreatedAt = t
		}

		if serverID.Valid {
			rec.ServerID = serverID.String
		}
		if lastError.Valid {
			rec.LastError = lastError.String
		}

		recs = append(recs, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return recs, nil
}
