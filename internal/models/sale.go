package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentPaid    PaymentMethod = "paid"
	PaymentDebt    PaymentMethod = "debt"
	PaymentPartial PaymentMethod = "partial"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentPaid, PaymentDebt, PaymentPartial:
		return true
	}
	return false
}

type SaleStatus string

const (
	SaleStatusPaid    SaleStatus = "Paid"
	SaleStatusDebt    SaleStatus = "Debt"
	SaleStatusPartial SaleStatus = "Partial"
)

type DiscountType string

const (
	DiscountNone       DiscountType = ""
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// DiscountSpec is the cashier's requested discount. Value is a percent for
// percentage discounts and an amount in Currency for fixed ones.
type DiscountSpec struct {
	Type     DiscountType    `json:"type"`
	Value    decimal.Decimal `json:"value"`
	Currency string          `json:"currency,omitempty"`
}

// SaleItem is a cart line. UnitCost is frozen at sale time.
type SaleItem struct {
	ProductID     string          `json:"product_id"`
	Name          string          `json:"name"`
	UnitSalePrice decimal.Decimal `json:"unit_sale_price"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	Quantity      int             `json:"quantity"`
}

func (i SaleItem) LineTotal() decimal.Decimal {
	return i.UnitSalePrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (i SaleItem) LineCost() decimal.Decimal {
	return i.UnitCost.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// IsCustom reports whether the line is an ad-hoc item outside the catalog.
func (i SaleItem) IsCustom(prefix string) bool {
	return prefix != "" && strings.HasPrefix(i.ProductID, prefix)
}

// Sale is the immutable record of a completed checkout.
type Sale struct {
	ID               string          `json:"id"`
	BranchID         string          `json:"branch_id"`
	InvoiceNumber    string          `json:"invoice_number"`
	InvoiceSequence  int64           `json:"invoice_sequence"`
	Date             time.Time       `json:"date"`
	CustomerID       string          `json:"customer_id"`
	CustomerName     string          `json:"customer_name"`
	CustomerPhone    string          `json:"customer_phone,omitempty"`
	CustomerLocation string          `json:"customer_location,omitempty"`
	Items            []SaleItem      `json:"items"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	DiscountType     DiscountType    `json:"discount_type,omitempty"`
	DiscountValue    decimal.Decimal `json:"discount_value"`
	DiscountCurrency string          `json:"discount_currency,omitempty"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	Status           SaleStatus      `json:"status"`
	PaymentMethod    PaymentMethod   `json:"payment_method"`
	AmountPaid       decimal.Decimal `json:"amount_paid"`
}

// Remaining is the part of the total that went onto the customer's debt.
func (s *Sale) Remaining() decimal.Decimal {
	return s.TotalAmount.Sub(s.AmountPaid)
}

// TotalCost sums the frozen unit costs.
func (s *Sale) TotalCost() decimal.Decimal {
	cost := decimal.Zero
	for _, it := range s.Items {
		cost = cost.Add(it.LineCost())
	}
	return cost
}

// Profit is subtotal minus cost minus discount.
func (s *Sale) Profit() decimal.Decimal {
	return s.Subtotal.Sub(s.TotalCost()).Sub(s.DiscountAmount)
}

// RecordSaleRequest is the engine input.
type RecordSaleRequest struct {
	BranchID          string           `json:"branch_id"`
	Cart              []SaleItem       `json:"cart"`
	CustomerID        string           `json:"customer_id"`
	PaymentMethod     PaymentMethod    `json:"payment_method"`
	Discount          DiscountSpec     `json:"discount"`
	PartialAmountPaid *decimal.Decimal `json:"partial_amount_paid,omitempty"`
	PartialCurrency   string           `json:"partial_currency,omitempty"`
}

// SaleFilter narrows sale history queries. Zero values mean "any".
type SaleFilter struct {
	From       *time.Time
	To         *time.Time
	CustomerID string
	Status     SaleStatus
	Limit      int
	Offset     int
}

// SalesReport aggregates sales over a period.
type SalesReport struct {
	BranchID      string                `json:"branch_id"`
	From          time.Time             `json:"from"`
	To            time.Time             `json:"to"`
	SaleCount     int                   `json:"sale_count"`
	Revenue       decimal.Decimal       `json:"revenue"`
	Discounts     decimal.Decimal       `json:"discounts"`
	Cost          decimal.Decimal       `json:"cost"`
	Profit        decimal.Decimal       `json:"profit"`
	CollectedNow  decimal.Decimal       `json:"collected"`
	DebtCreated   decimal.Decimal       `json:"debt_created"`
	CountByStatus map[SaleStatus]int    `json:"count_by_status"`
	TopProducts   []ProductSalesSummary `json:"top_products"`
}

type ProductSalesSummary struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// Event is pushed to connected terminals after a committed change.
type Event struct {
	Type     string    `json:"type"`
	BranchID string    `json:"branch_id"`
	ID       string    `json:"id"`
	At       time.Time `json:"at"`
}

const (
	EventSaleRecorded       = "sale.recorded"
	EventCustomerUpdated    = "customer.updated"
	EventProductUpdated     = "product.updated"
	EventLedgerEntryDeleted = "ledger.deleted"
)
