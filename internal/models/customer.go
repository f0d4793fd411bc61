package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionDebit  TransactionType = "DEBIT"
	TransactionCredit TransactionType = "CREDIT"
)

// Customer is a branch customer with a running debt ledger.
// TotalDebt always equals the sum of DEBIT amounts minus the sum of CREDIT
// amounts in Transactions.
type Customer struct {
	ID            string          `json:"id"`
	BranchID      string          `json:"branch_id"`
	Name          string          `json:"name"`
	Phone         string          `json:"phone,omitempty"`
	Location      string          `json:"location,omitempty"`
	TotalDebt     decimal.Decimal `json:"total_debt"`
	Transactions  []Transaction   `json:"transactions"`
	CustomerSince time.Time       `json:"customer_since"`
	DueDate       *time.Time      `json:"due_date,omitempty"`

	// LedgerDeletions counts explicit transaction deletions; sales that
	// referenced a removed entry are not rewritten.
	LedgerDeletions      int        `json:"ledger_deletions"`
	LastLedgerDeletionAt *time.Time `json:"last_ledger_deletion_at,omitempty"`
}

// Transaction is a single ledger entry.
type Transaction struct {
	ID          string          `json:"id"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Type        TransactionType `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	SaleID      string          `json:"sale_id,omitempty"`
	Items       []SaleItem      `json:"items,omitempty"`
}

// RecomputeDebt returns ΣDEBIT − ΣCREDIT over entries. The sum is exact so it
// always equals the debt built up entry by entry.
func RecomputeDebt(entries []Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range entries {
		switch t.Type {
		case TransactionDebit:
			total = total.Add(t.Amount)
		case TransactionCredit:
			total = total.Sub(t.Amount)
		}
	}
	return total
}

// CreateCustomerRequest represents the request body for creating a customer
type CreateCustomerRequest struct {
	Name     string     `json:"name"`
	Phone    string     `json:"phone"`
	Location string     `json:"location"`
	DueDate  *time.Time `json:"due_date,omitempty"`
}

// RecordPaymentRequest is a manual debt payment (CREDIT).
type RecordPaymentRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Notes    string          `json:"notes"`
}

// StatementLine is one ledger entry with the balance after it.
type StatementLine struct {
	Transaction
	Balance decimal.Decimal `json:"balance"`
}

// CustomerStatement joins a customer's ledger with their sales.
type CustomerStatement struct {
	Customer *Customer       `json:"customer"`
	Lines    []StatementLine `json:"lines"`
	Sales    []*Sale         `json:"sales"`
	Total    decimal.Decimal `json:"total_debt"`
	// PotentiallyStale is set once any ledger entry was deleted: sale records
	// are immutable and may disagree with the edited ledger.
	PotentiallyStale bool `json:"potentially_stale"`
}
