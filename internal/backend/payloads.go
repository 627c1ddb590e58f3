package backend

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidatePayload decodes the payload document for a known record type and
// checks it is a well-formed business mutation before it enters the queue.
// A record that would be rejected by the backend on every pass should be
// rejected at enqueue time instead of getting stuck unsynced.
//
// Unknown record types pass through untouched; the queue treats them as
// opaque.
func ValidatePayload(recordType string, payload json.RawMessage) error {
	switch recordType {
	case TypeSale:
		var p SalePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("invalid sale payload: %w", err)
		}
		return p.Validate()

	case TypePayment:
		var p PaymentPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("invalid payment payload: %w", err)
		}
		return p.Validate()

	case TypeExpense:
		var p ExpensePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("invalid expense payload: %w", err)
		}
		return p.Validate()

	case TypeJournalEntry:
		var p JournalEntryPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("invalid journal entry payload: %w", err)
		}
		return p.Validate()
	}

	return nil
}

// Validate checks line items and that the stated total covers them.
func (p *SalePayload) Validate() error {
	if len(p.Items) == 0 {
		return fmt.Errorf("sale has no items")
	}

	lineTotal := decimal.Zero
	for i, item := range p.Items {
		if item.ProductID == "" {
			return fmt.Errorf("sale item %d has no product", i)
		}
		if !item.Quantity.IsPositive() {
			return fmt.Errorf("sale item %d quantity must be positive", i)
		}
		if item.UnitPrice.IsNegative() {
			return fmt.Errorf("sale item %d unit price cannot be negative", i)
		}
		if item.Discount.IsNegative() {
			return fmt.Errorf("sale item %d discount cannot be negative", i)
		}
		lineTotal = lineTotal.Add(item.Quantity.Mul(item.UnitPrice).Sub(item.Discount))
	}

	if !p.Total.Equal(lineTotal) {
		return fmt.Errorf("sale total %s does not match line total %s", p.Total, lineTotal)
	}

	return nil
}

// Validate checks the receipt amount.
func (p *PaymentPayload) Validate() error {
	if !p.Amount.IsPositive() {
		return fmt.Errorf("payment amount must be positive")
	}
	if p.Mode == "" {
		return fmt.Errorf("payment mode is required")
	}
	return nil
}

// Validate checks the expense amount and account.
func (p *ExpensePayload) Validate() error {
	if p.AccountID == "" {
		return fmt.Errorf("expense account is required")
	}
	if !p.Amount.IsPositive() {
		return fmt.Errorf("expense amount must be positive")
	}
	return nil
}

// Validate enforces double-entry balance: total debits equal total credits
// and the entry moves a non-zero amount.
func (p *JournalEntryPayload) Validate() error {
	if len(p.Lines) < 2 {
		return fmt.Errorf("journal entry needs at least two lines")
	}

	debits, credits := decimal.Zero, decimal.Zero
	for i, line := range p.Lines {
		if line.AccountID == "" {
			return fmt.Errorf("journal line %d has no account", i)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("journal line %d amounts cannot be negative", i)
		}
		debits = debits.Add(line.Debit)
		credits = credits.Add(line.Credit)
	}

	if !debits.Equal(credits) {
		return fmt.Errorf("journal entry is unbalanced: debits %s, credits %s", debits, credits)
	}
	if debits.IsZero() {
		return fmt.Errorf("journal entry moves no amount")
	}

	return nil
}
