// Package backend is the client for the authoritative ERP data service.
//
// Each business mutation kind maps to one create endpoint. The sync engine
// treats these calls as black boxes: a call either returns the server-assigned
// identifier or an error message, and the engine records the outcome on the
// queued record. The client never distinguishes validation failures from
// network faults - both leave the record unsynced for the next pass.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pocketerp/outpost/internal/engine"
	"github.com/pocketerp/outpost/internal/store"
)

// Client calls the ERP backend's create endpoints.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a backend client.
//
// baseURL is the service root (e.g. https://erp.example.com/api). token, if
// non-empty, is sent as a bearer token on every request.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// createResponse is the body returned by all create endpoints.
// Exactly one of ID or Error is set.
type createResponse struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// create POSTs a payload to one of the create endpoints and returns the
// server-assigned identifier.
func (c *Client) create(ctx context.Context, path string, scope store.Scope, payload json.RawMessage) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Company-ID", scope.CompanyID)
	req.Header.Set("X-Branch-ID", scope.BranchID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var cr createResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return "", fmt.Errorf("unexpected response (%d): %s", resp.StatusCode, truncate(string(body), 200))
	}

	if resp.StatusCode >= 400 || cr.Error != "" {
		if cr.Error == "" {
			cr.Error = fmt.Sprintf("backend returned status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("%s", cr.Error)
	}

	if cr.ID == "" {
		return "", fmt.Errorf("backend returned no id")
	}

	return cr.ID, nil
}

// CreateSale submits a sale recorded offline.
func (c *Client) CreateSale(ctx context.Context, scope store.Scope, payload json.RawMessage) (string, error) {
	return c.create(ctx, "/sales", scope, payload)
}

// CreatePayment submits a payment recorded offline.
func (c *Client) CreatePayment(ctx context.Context, scope store.Scope, payload json.RawMessage) (string, error) {
	return c.create(ctx, "/payments", scope, payload)
}

// CreateExpense submits an expense recorded offline.
func (c *Client) CreateExpense(ctx context.Context, scope store.Scope, payload json.RawMessage) (string, error) {
	return c.create(ctx, "/expenses", scope, payload)
}

// CreateJournalEntry submits a journal entry recorded offline.
func (c *Client) CreateJournalEntry(ctx context.Context, scope store.Scope, payload json.RawMessage) (string, error) {
	return c.create(ctx, "/journal-entries", scope, payload)
}

// RegisterHandlers binds every record type this client reconciles into the
// registry. Call once at process start.
func RegisterHandlers(reg *engine.Registry, c *Client) {
	reg.Register(TypeSale, func(ctx context.Context, rec *store.PendingRecord) (string, error) {
		return c.CreateSale(ctx, rec.Scope, rec.Payload)
	})
	reg.Register(TypePayment, func(ctx context.Context, rec *store.PendingRecord) (string, error) {
		return c.CreatePayment(ctx, rec.Scope, rec.Payload)
	})
	reg.Register(TypeExpense, func(ctx context.Context, rec *store.PendingRecord) (string, error) {
		return c.CreateExpense(ctx, rec.Scope, rec.Payload)
	})
	reg.Register(TypeJournalEntry, func(ctx context.Context, rec *store.PendingRecord) (string, error) {
		return c.CreateJournalEntry(ctx, rec.Scope, rec.Payload)
	})
}

// truncate shortens s for error messages.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
