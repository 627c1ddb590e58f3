package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

// testStorePath returns a temporary path for test databases
func testStorePath(t *testing.T) string {
	tmpDir := t.TempDir()
	return filepath.Join(tmpDir, "queue.db")
}

// openTestStore opens a store with schema initialized.
func openTestStore(t *testing.T) *Store {
	t.Helper()

	st, err := Open(testStorePath(t))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if err := st.InitSchema(); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}

	return st
}

var testScope = Scope{CompanyID: "co-1", BranchID: "br-1"}

// TestOpen_Success tests database creation and initialization
func TestOpen_Success(t *testing.T) {
	path := testStorePath(t)
	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer st.Close()

	if st.path != path {
		t.Errorf("path = %q, want %q", st.path, path)
	}
}

// TestInitSchema_Idempotent tests that schema initialization is idempotent
func TestInitSchema_Idempotent(t *testing.T) {
	st := openTestStore(t)

	if err := st.InitSchema(); err != nil {
		t.Errorf("Second InitSchema() failed: %v", err)
	}
}

// TestEnqueue_StartsUnsynced tests that new records start in the unsynced state
func TestEnqueue_StartsUnsynced(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	id, err := st.Enqueue(ctx, "sale", []byte(`{"total":"10.00"}`), testScope)
	if err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}
	if id == "" {
		t.Fatal("Enqueue() returned empty id")
	}

	rec, err := st.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	if rec.State != StateUnsynced {
		t.Errorf("State = %q, want %q", rec.State, StateUnsynced)
	}
	if rec.RecordType != "sale" {
		t.Errorf("RecordType = %q, want 'sale'", rec.RecordType)
	}
	if rec.Scope != testScope {
		t.Errorf("Scope = %+v, want %+v", rec.Scope, testScope)
	}
	if rec.ServerID != "" {
		t.Errorf("ServerID = %q, want empty", rec.ServerID)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

// TestEnqueue_UniqueIDs tests that every record gets a distinct id
func TestEnqueue_UniqueIDs(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id, err := st.Enqueue(ctx, "payment", []byte(`{}`), testScope)
		if err != nil {
			t.Fatalf("Enqueue() failed: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

// TestEnqueue_Validation tests that empty type or payload is rejected
func TestEnqueue_Validation(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, err := st.Enqueue(ctx, "", []byte(`{}`), testScope); err == nil {
		t.Error("Enqueue() with empty type should fail")
	}
	if _, err := st.Enqueue(ctx, "sale", nil, testScope); err == nil {
		t.Error("Enqueue() with empty payload should fail")
	}
}

// TestListUnsynced_ExcludesSynced tests that synced records drop out of the set
func TestListUnsynced_ExcludesSynced(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	id1, _ := st.Enqueue(ctx, "sale", []byte(`{}`), testScope)
	id2, _ := st.Enqueue(ctx, "expense", []byte(`{}`), testScope)

	if err := st.MarkSynced(ctx, id1, "srv-1"); err != nil {
		t.Fatalf("MarkSynced() failed: %v", err)
	}

	recs, err := st.ListUnsynced(ctx)
	if err != nil {
		t.Fatalf("ListUnsynced() failed: %v", err)
	}

	if len(recs) != 1 {
		t.Fatalf("len(recs) = %d, want 1", len(recs))
	}
	if recs[0].ID != id2 {
		t.Errorf("remaining record = %s, want %s", recs[0].ID, id2)
	}
}

// TestMarkSynced_SetsServerIDAndClearsError tests the full transition
func TestMarkSynced_SetsServerIDAndClearsError(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	id, _ := st.Enqueue(ctx, "sale", []byte(`{}`), testScope)

	if err := st.MarkError(ctx, id, "network"); err != nil {
		t.Fatalf("MarkError() failed: %v", err)
	}
	if err := st.MarkSynced(ctx, id, "srv-9"); err != nil {
		t.Fatalf("MarkSynced() failed: %v", err)
	}

	rec, err := st.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	if rec.State != StateSynced {
		t.Errorf("State = %q, want %q", rec.State, StateSynced)
	}
	if rec.ServerID != "srv-9" {
		t.Errorf("ServerID = %q, want 'srv-9'", rec.ServerID)
	}
	if rec.LastError != "" {
		t.Errorf("LastError = %q, want cleared", rec.LastError)
	}
}

// TestMarkSynced_Idempotent tests that a second MarkSynced is a no-op
func TestMarkSynced_Idempotent(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	id, _ := st.Enqueue(ctx, "sale", []byte(`{}`), testScope)

	if err := st.MarkSynced(ctx, id, "srv-1"); err != nil {
		t.Fatalf("First MarkSynced() failed: %v", err)
	}
	if err := st.MarkSynced(ctx, id, "srv-1"); err != nil {
		t.Errorf("Second MarkSynced() failed: %v", err)
	}

	rec, _ := st.Get(ctx, id)
	if rec.State != StateSynced || rec.ServerID != "srv-1" {
		t.Errorf("record = %+v, want synced with srv-1", rec)
	}
}

// TestMarkSynced_NotFound tests the explicit missing-id signal
func TestMarkSynced_NotFound(t *testing.T) {
	st := openTestStore(t)

	err := st.MarkSynced(context.Background(), "no-such-id", "srv-1")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	// Must never create a record
	count, _ := st.CountUnsynced(context.Background())
	if count != 0 {
		t.Errorf("CountUnsynced() = %d, want 0", count)
	}
}

// TestMarkError_KeepsUnsynced tests that errors don't change sync state
func TestMarkError_KeepsUnsynced(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	id, _ := st.Enqueue(ctx, "sale", []byte(`{}`), testScope)

	if err := st.MarkError(ctx, id, "validation failed"); err != nil {
		t.Fatalf("MarkError() failed: %v", err)
	}

	rec, _ := st.Get(ctx, id)
	if rec.State != StateUnsynced {
		t.Errorf("State = %q, want %q", rec.State, StateUnsynced)
	}
	if rec.LastError != "validation failed" {
		t.Errorf("LastError = %q, want 'validation failed'", rec.LastError)
	}

	// Errors may be recorded repeatedly while unsynced
	if err := st.MarkError(ctx, id, "conflict"); err != nil {
		t.Fatalf("Second MarkError() failed: %v", err)
	}
	rec, _ = st.Get(ctx, id)
	if rec.LastError != "conflict" {
		t.Errorf("LastError = %q, want 'conflict'", rec.LastError)
	}
}

// TestMarkError_MissingIsNoop tests that a missing id is silently ignored
func TestMarkError_MissingIsNoop(t *testing.T) {
	st := openTestStore(t)

	if err := st.MarkError(context.Background(), "no-such-id", "boom"); err != nil {
		t.Errorf("MarkError() for missing id = %v, want nil", err)
	}
}

// TestCountUnsynced_TracksState tests aggregate consistency across transitions
func TestCountUnsynced_TracksState(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	ids := make([]string, 3)
	for i := range ids {
		ids[i], _ = st.Enqueue(ctx, "sale", []byte(`{}`), testScope)
	}

	count, err := st.CountUnsynced(ctx)
	if err != nil {
		t.Fatalf("CountUnsynced() failed: %v", err)
	}
	if count != 3 {
		t.Errorf("CountUnsynced() = %d, want 3", count)
	}

	_ = st.MarkSynced(ctx, ids[0], "srv-1")
	_ = st.MarkError(ctx, ids[1], "network")

	count, _ = st.CountUnsynced(ctx)
	if count != 2 {
		t.Errorf("CountUnsynced() after transitions = %d, want 2", count)
	}
}

// TestHasErrors tests the needs-attention flag
func TestHasErrors(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	id, _ := st.Enqueue(ctx, "sale", []byte(`{}`), testScope)

	hasErrors, err := st.HasErrors(ctx)
	if err != nil {
		t.Fatalf("HasErrors() failed: %v", err)
	}
	if hasErrors {
		t.Error("HasErrors() = true before any failure")
	}

	_ = st.MarkError(ctx, id, "network")

	hasErrors, _ = st.HasErrors(ctx)
	if !hasErrors {
		t.Error("HasErrors() = false after a failure")
	}

	// Syncing the record clears the signal
	_ = st.MarkSynced(ctx, id, "srv-1")

	hasErrors, _ = st.HasErrors(ctx)
	if hasErrors {
		t.Error("HasErrors() = true after the record synced")
	}
}

// TestClearAll_RemovesEverything tests the destructive wipe (synced and
// unsynced, exact count returned)
func TestClearAll_RemovesEverything(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	// 2 synced + 3 unsynced
	for i := 0; i < 2; i++ {
		id, _ := st.Enqueue(ctx, "sale", []byte(`{}`), testScope)
		_ = st.MarkSynced(ctx, id, "srv")
	}
	for i := 0; i < 3; i++ {
		_, _ = st.Enqueue(ctx, "expense", []byte(`{}`), testScope)
	}

	removed, err := st.ClearAll(ctx)
	if err != nil {
		t.Fatalf("ClearAll() failed: %v", err)
	}
	if removed != 5 {
		t.Errorf("ClearAll() = %d, want 5", removed)
	}

	count, _ := st.CountUnsynced(ctx)
	if count != 0 {
		t.Errorf("CountUnsynced() after clear = %d, want 0", count)
	}

	recs, _ := st.List(ctx)
	if len(recs) != 0 {
		t.Errorf("List() after clear returned %d records, want 0", len(recs))
	}
}

// TestList_OrderedWithinSecond tests that the SQL ordering holds for
// sub-second timestamps. A whole-second time must sort before a later time in
// the same second even though a trimmed-nanosecond rendering would put the
// fractional one first ("00.5Z" < "00Z" lexically).
func TestList_OrderedWithinSecond(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	insert := func(id string, at time.Time) {
		t.Helper()
		_, err := st.RawDB().ExecContext(ctx,
			`INSERT INTO pending_records (id, record_type, payload, company_id, branch_id, created_at, sync_state)
			 VALUES (?, 'sale', '{}', 'co-1', 'br-1', ?, 'unsynced')`,
			id, at.Format(timeLayout))
		if err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	insert("later", base.Add(500*time.Millisecond))
	insert("earlier", base)

	recs, err := st.List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len(recs) = %d, want 2", len(recs))
	}
	if recs[0].ID != "earlier" || recs[1].ID != "later" {
		t.Errorf("List() order = [%s %s], want [earlier later]", recs[0].ID, recs[1].ID)
	}
	if !recs[0].CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v (round trip)", recs[0].CreatedAt, base)
	}
}

// TestPersistence_SurvivesReopen tests that records outlive the connection
func TestPersistence_SurvivesReopen(t *testing.T) {
	path := testStorePath(t)

	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := st.InitSchema(); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}

	ctx := context.Background()
	id, err := st.Enqueue(ctx, "journal_entry", []byte(`{"lines":[]}`), testScope)
	if err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}

	if err := st.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	st2, err := Open(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer st2.Close()

	rec, err := st2.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() after reopen failed: %v", err)
	}
	if rec.State != StateUnsynced {
		t.Errorf("State after reopen = %q, want %q", rec.State, StateUnsynced)
	}
}
