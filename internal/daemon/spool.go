package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Envelope is the wire format of a spool file: one business mutation dropped
// into the spool directory by an external process for enqueueing.
type Envelope struct {
	// RecordType selects the reconciliation handler (e.g. "sale").
	RecordType string `json:"record_type"`

	// CompanyID and BranchID establish the record's tenant scope.
	CompanyID string `json:"company_id"`
	BranchID  string `json:"branch_id"`

	// Payload is the module-defined document, passed through opaquely.
	Payload json.RawMessage `json:"payload"`
}

// Validate checks that the envelope carries everything Enqueue needs.
func (e *Envelope) Validate() error {
	if e.RecordType == "" {
		return fmt.Errorf("record_type is required")
	}
	if e.CompanyID == "" {
		return fmt.Errorf("company_id is required")
	}
	if len(e.Payload) == 0 {
		return fmt.Errorf("payload is required")
	}
	return nil
}

// ReadEnvelopeFile reads and validates a spool file.
func ReadEnvelopeFile(path string) (*Envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read spool file: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse spool file %s: %w", filepath.Base(path), err)
	}

	if err := env.Validate(); err != nil {
		return nil, fmt.Errorf("invalid spool file %s: %w", filepath.Base(path), err)
	}

	return &env, nil
}
