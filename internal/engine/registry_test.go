package engine

import (
	"context"
	"testing"

	"github.com/pocketerp/outpost/internal/store"
)

func TestRegistry_LookupUnregistered(t *testing.T) {
	reg := NewRegistry()

	if h := reg.Lookup("sale"); h != nil {
		t.Error("Lookup() on empty registry returned a handler")
	}
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	reg := NewRegistry()

	reg.Register("sale", func(ctx context.Context, rec *store.PendingRecord) (string, error) {
		return "srv", nil
	})

	if h := reg.Lookup("sale"); h == nil {
		t.Error("Lookup() returned nil for registered type")
	}
	if h := reg.Lookup("payment"); h != nil {
		t.Error("Lookup() returned a handler for unregistered type")
	}
}

func TestRegistry_LastRegistrationWins(t *testing.T) {
	reg := NewRegistry()

	reg.Register("sale", func(ctx context.Context, rec *store.PendingRecord) (string, error) {
		return "first", nil
	})
	reg.Register("sale", func(ctx context.Context, rec *store.PendingRecord) (string, error) {
		return "second", nil
	})

	got, err := reg.Lookup("sale")(context.Background(), nil)
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if got != "second" {
		t.Errorf("handler returned %q, want 'second' (re-registration overwrites)", got)
	}
}

func TestRegistry_NilHandlerPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Register(nil) did not panic")
		}
	}()

	NewRegistry().Register("sale", nil)
}

func TestRegistry_Types(t *testing.T) {
	reg := NewRegistry()

	h := func(ctx context.Context, rec *store.PendingRecord) (string, error) { return "", nil }
	reg.Register("sale", h)
	reg.Register("payment", h)

	types := reg.Types()
	if len(types) != 2 {
		t.Errorf("Types() = %v, want 2 entries", types)
	}
}
