package backend

import (
	"time"

	"github.com/shopspring/decimal"
)

// Record types reconciled by this client. Together they form the closed set
// of offline-tolerant business mutations.
const (
	TypeSale         = "sale"
	TypePayment      = "payment"
	TypeExpense      = "expense"
	TypeJournalEntry = "journal_entry"
)

// SaleItem is one line of a sale.
type SaleItem struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount,omitempty"`
}

// SalePayload is the document enqueued for an offline sale.
type SalePayload struct {
	CustomerID string          `json:"customer_id"`
	Items      []SaleItem      `json:"items"`
	Total      decimal.Decimal `json:"total"`
	Notes      string          `json:"notes,omitempty"`
	SoldAt     time.Time       `json:"sold_at"`
}

// PaymentPayload is the document enqueued for an offline payment receipt.
type PaymentPayload struct {
	CustomerID string          `json:"customer_id"`
	InvoiceID  string          `json:"invoice_id,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Mode       string          `json:"mode"` // cash, bank, mobile
	PaidAt     time.Time       `json:"paid_at"`
}

// ExpensePayload is the document enqueued for an offline expense entry.
type ExpensePayload struct {
	AccountID   string          `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	SpentAt     time.Time       `json:"spent_at"`
}

// JournalLine is one side of a double-entry journal posting.
type JournalLine struct {
	AccountID string          `json:"account_id"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

// JournalEntryPayload is the document enqueued for an offline journal entry.
type JournalEntryPayload struct {
	Reference string        `json:"reference,omitempty"`
	Lines     []JournalLine `json:"lines"`
	EnteredAt time.Time     `json:"entered_at"`
}
