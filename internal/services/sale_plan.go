package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"pos-backend/internal/apperr"
	"pos-backend/internal/currency"
	"pos-backend/internal/models"
)

var hundred = decimal.NewFromInt(100)

// SaleOptions are the branch-independent knobs of the engine.
type SaleOptions struct {
	CustomItemPrefix string
	InvoicePrefix    string
}

// SaleTotals is the money side of a sale, all in base currency.
type SaleTotals struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
	AmountPaid     decimal.Decimal
	Status         models.SaleStatus
}

// ValidateRequest runs the checks that need no storage access and returns
// the resulting totals.
func ValidateRequest(req models.RecordSaleRequest, conv *currency.Converter) (SaleTotals, error) {
	if len(req.Cart) == 0 {
		return SaleTotals{}, apperr.ErrEmptyCart
	}
	if req.CustomerID == "" {
		return SaleTotals{}, apperr.ErrNoCustomerSelected
	}
	if !req.PaymentMethod.Valid() {
		return SaleTotals{}, apperr.ErrInvalidPaymentMethod
	}
	for _, line := range req.Cart {
		if line.ProductID == "" {
			return SaleTotals{}, apperr.InvalidCartLine("", "missing product id")
		}
		if line.Quantity <= 0 {
			return SaleTotals{}, apperr.InvalidCartLine(line.ProductID, "quantity must be positive")
		}
		if line.UnitSalePrice.IsNegative() {
			return SaleTotals{}, apperr.InvalidCartLine(line.ProductID, "negative price")
		}
	}

	subtotal := Subtotal(req.Cart)
	discount, err := DiscountAmount(subtotal, req.Discount, conv)
	if err != nil {
		return SaleTotals{}, err
	}
	total := subtotal.Sub(discount)

	totals := SaleTotals{Subtotal: subtotal, DiscountAmount: discount, Total: total}
	switch req.PaymentMethod {
	case models.PaymentPaid:
		totals.AmountPaid = total
		totals.Status = models.SaleStatusPaid
	case models.PaymentDebt:
		totals.AmountPaid = decimal.Zero
		totals.Status = models.SaleStatusDebt
	case models.PaymentPartial:
		if req.PartialAmountPaid == nil {
			return SaleTotals{}, apperr.ErrInvalidPartialPayment
		}
		paid, err := conv.ToBase(*req.PartialAmountPaid, req.PartialCurrency)
		if err != nil {
			return SaleTotals{}, &apperr.Error{Kind: apperr.KindInvalidPartialPayment, Msg: apperr.ErrInvalidPartialPayment.Msg, Err: err}
		}
		paid = paid.Round(2)
		if !paid.IsPositive() || paid.GreaterThanOrEqual(total) {
			return SaleTotals{}, apperr.ErrInvalidPartialPayment
		}
		totals.AmountPaid = paid
		totals.Status = models.SaleStatusPartial
	}
	return totals, nil
}

// Subtotal sums price × quantity over every line, custom lines included.
func Subtotal(cart []models.SaleItem) decimal.Decimal {
	subtotal := decimal.Zero
	for _, line := range cart {
		subtotal = subtotal.Add(line.LineTotal())
	}
	return subtotal
}

// DiscountAmount clamps the requested discount to [0, subtotal]. Percentages
// above 100 behave as 100; fixed amounts are converted to base first.
func DiscountAmount(subtotal decimal.Decimal, spec models.DiscountSpec, conv *currency.Converter) (decimal.Decimal, error) {
	var amount decimal.Decimal
	switch spec.Type {
	case models.DiscountNone:
		return decimal.Zero, nil
	case models.DiscountPercentage:
		amount = subtotal.Mul(spec.Value).Div(hundred).Round(2)
	case models.DiscountFixed:
		converted, err := conv.ToBase(spec.Value, spec.Currency)
		if err != nil {
			return decimal.Zero, &apperr.Error{Kind: apperr.KindInvalidAmount, Msg: "invalid discount currency", Err: err}
		}
		amount = converted.Round(2)
	default:
		return decimal.Zero, &apperr.Error{Kind: apperr.KindInvalidAmount, Msg: fmt.Sprintf("unknown discount type %q", spec.Type)}
	}

	if amount.IsNegative() {
		return decimal.Zero, nil
	}
	if amount.GreaterThan(subtotal) {
		return subtotal, nil
	}
	return amount, nil
}

// SaleSnapshot is everything the engine reads inside the atomic scope.
type SaleSnapshot struct {
	Products map[string]*models.Product
	Customer *models.Customer
	// Counter is the branch's last issued invoice sequence.
	Counter int64
}

// StockDecrement is one product's total quantity leaving stock.
type StockDecrement struct {
	ProductID string
	Quantity  int
}

// SalePlan is the full write set of one sale.
type SalePlan struct {
	Sale         *models.Sale
	Decrements   []StockDecrement
	Ledger       LedgerDelta
	NewTotalDebt decimal.Decimal
}

// AttemptSale validates req against snap and builds the write set. It does
// no I/O; the caller applies the plan inside the same atomic scope it read
// snap from.
func AttemptSale(snap SaleSnapshot, req models.RecordSaleRequest, totals SaleTotals, saleID string, now time.Time, opts SaleOptions) (*SalePlan, error) {
	if snap.Customer == nil {
		return nil, apperr.CustomerNotFound(req.CustomerID)
	}

	// quantities are summed per product so duplicate lines are checked together
	needed := make(map[string]int)
	var order []string
	items := make([]models.SaleItem, 0, len(req.Cart))
	for _, line := range req.Cart {
		item := line
		if !line.IsCustom(opts.CustomItemPrefix) {
			p, ok := snap.Products[line.ProductID]
			if !ok {
				return nil, apperr.ProductNotFound(line.ProductID)
			}
			if _, seen := needed[line.ProductID]; !seen {
				order = append(order, line.ProductID)
			}
			needed[line.ProductID] += line.Quantity
			item.UnitCost = p.UnitCost
			if item.Name == "" {
				item.Name = p.Name
			}
		}
		items = append(items, item)
	}

	sort.Strings(order)
	decrements := make([]StockDecrement, 0, len(order))
	for _, id := range order {
		if snap.Products[id].StockQuantity < needed[id] {
			return nil, apperr.InsufficientStock(id)
		}
		decrements = append(decrements, StockDecrement{ProductID: id, Quantity: needed[id]})
	}

	seq := snap.Counter + 1
	sale := &models.Sale{
		ID:               saleID,
		BranchID:         req.BranchID,
		InvoiceNumber:    FormatInvoiceNumber(opts.InvoicePrefix, now, seq),
		InvoiceSequence:  seq,
		Date:             now,
		CustomerID:       snap.Customer.ID,
		CustomerName:     snap.Customer.Name,
		CustomerPhone:    snap.Customer.Phone,
		CustomerLocation: snap.Customer.Location,
		Items:            items,
		Subtotal:         totals.Subtotal,
		DiscountType:     req.Discount.Type,
		DiscountValue:    req.Discount.Value,
		DiscountCurrency: req.Discount.Currency,
		DiscountAmount:   totals.DiscountAmount,
		TotalAmount:      totals.Total,
		Status:           totals.Status,
		PaymentMethod:    req.PaymentMethod,
		AmountPaid:       totals.AmountPaid,
	}

	delta := ComputeLedgerDelta(sale)
	return &SalePlan{
		Sale:         sale,
		Decrements:   decrements,
		Ledger:       delta,
		NewTotalDebt: snap.Customer.TotalDebt.Add(delta.DebtIncrease),
	}, nil
}

// FormatInvoiceNumber renders "<prefix>-<last six digits of unix millis>-<seq>".
// Uniqueness comes from seq; the time fragment is for humans.
func FormatInvoiceNumber(prefix string, at time.Time, seq int64) string {
	if prefix == "" {
		prefix = "S"
	}
	return fmt.Sprintf("%s-%06d-%d", prefix, at.UnixMilli()%1000000, seq)
}

// LedgerDelta is the ledger side of a sale.
type LedgerDelta struct {
	Entries      []models.Transaction
	DebtIncrease decimal.Decimal
}

// ComputeLedgerDelta derives the ledger entries of a sale. Nothing is written
// when the sale was paid in full. Otherwise the full total is debited and any
// amount paid up front is credited back.
func ComputeLedgerDelta(sale *models.Sale) LedgerDelta {
	remaining := sale.Remaining()
	if !remaining.IsPositive() {
		return LedgerDelta{DebtIncrease: decimal.Zero}
	}

	entries := []models.Transaction{{
		ID:          sale.ID + "-D",
		Date:        sale.Date,
		Description: "Sale #" + sale.InvoiceNumber,
		Type:        models.TransactionDebit,
		Amount:      sale.TotalAmount,
		SaleID:      sale.ID,
		Items:       append([]models.SaleItem(nil), sale.Items...),
	}}
	if sale.AmountPaid.IsPositive() {
		entries = append(entries, models.Transaction{
			ID:          sale.ID + "-C",
			Date:        sale.Date,
			Description: "Down payment for sale #" + sale.InvoiceNumber,
			Type:        models.TransactionCredit,
			Amount:      sale.AmountPaid,
			SaleID:      sale.ID,
		})
	}
	return LedgerDelta{Entries: entries, DebtIncrease: remaining}
}
