package services

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf/v2"
	"github.com/shopspring/decimal"

	"pos-backend/internal/models"
	"pos-backend/internal/timeutil"
)

// ReceiptService renders printable sale receipts.
type ReceiptService struct {
	StoreName string
	Currency  string
}

func NewReceiptService(storeName, currency string) *ReceiptService {
	return &ReceiptService{StoreName: storeName, Currency: currency}
}

func (s *ReceiptService) money(d decimal.Decimal) string {
	return fmt.Sprintf("%s %s", d.StringFixed(2), s.Currency)
}

// RenderPDF renders an A5 receipt for sale.
func (s *ReceiptService) RenderPDF(sale *models.Sale, branchName string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(8, 8, 8)
	pdf.AddPage()

	// Header
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(132, 8, s.StoreName, "", 1, "C", false, 0, "")
	if branchName != "" {
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(132, 5, "Branch: "+branchName, "", 1, "C", false, 0, "")
	}
	pdf.Ln(3)

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(66, 6, "Invoice: "+sale.InvoiceNumber, "", 0, "L", false, 0, "")
	pdf.CellFormat(66, 6, timeutil.Format(sale.Date, timeutil.DisplayLayout), "", 1, "R", false, 0, "")
	pdf.CellFormat(132, 6, "Customer: "+sale.CustomerName, "", 1, "L", false, 0, "")
	if sale.CustomerPhone != "" {
		pdf.CellFormat(132, 6, "Phone: "+sale.CustomerPhone, "", 1, "L", false, 0, "")
	}
	pdf.Ln(2)

	// Items table
	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(220, 220, 220)
	pdf.CellFormat(62, 7, "Item", "1", 0, "L", true, 0, "")
	pdf.CellFormat(16, 7, "Qty", "1", 0, "C", true, 0, "")
	pdf.CellFormat(26, 7, "Price", "1", 0, "R", true, 0, "")
	pdf.CellFormat(28, 7, "Total", "1", 1, "R", true, 0, "")

	pdf.SetFont("Arial", "", 9)
	for _, it := range sale.Items {
		name := it.Name
		if len(name) > 34 {
			name = name[:31] + "..."
		}
		pdf.CellFormat(62, 6, name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(16, 6, fmt.Sprintf("%d", it.Quantity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(26, 6, it.UnitSalePrice.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(28, 6, it.LineTotal().StringFixed(2), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(3)

	// Totals
	row := func(label, value string, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont("Arial", style, 10)
		pdf.CellFormat(90, 6, label, "", 0, "R", false, 0, "")
		pdf.CellFormat(42, 6, value, "", 1, "R", false, 0, "")
	}
	row("Subtotal:", s.money(sale.Subtotal), false)
	if sale.DiscountAmount.IsPositive() {
		label := "Discount:"
		if sale.DiscountType == models.DiscountPercentage {
			label = fmt.Sprintf("Discount (%s%%):", sale.DiscountValue.String())
		}
		row(label, "-"+s.money(sale.DiscountAmount), false)
	}
	row("Total:", s.money(sale.TotalAmount), true)
	row("Paid:", s.money(sale.AmountPaid), false)
	if rem := sale.Remaining(); rem.IsPositive() {
		row("Remaining:", s.money(rem), true)
	}
	pdf.Ln(2)

	switch sale.Status {
	case models.SaleStatusPaid:
		pdf.SetFillColor(200, 255, 200)
	case models.SaleStatusPartial:
		pdf.SetFillColor(255, 240, 190)
	default:
		pdf.SetFillColor(255, 200, 200)
	}
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(132, 9, string(sale.Status), "1", 1, "C", true, 0, "")

	pdf.Ln(4)
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(132, 5, "Thank you for your purchase", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render receipt: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderStatementPDF renders an A4 ledger statement with running balances.
func (s *ReceiptService) RenderStatementPDF(st *models.CustomerStatement) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	// Header
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(190, 10, s.StoreName+" - Customer Statement", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(190, 6, "Generated: "+timeutil.Format(timeutil.Now(), timeutil.DisplayLayout), "", 1, "C", false, 0, "")
	pdf.Ln(5)

	// Customer Info Box
	c := st.Customer
	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Customer Information", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(95, 7, "Name: "+c.Name, "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, "Phone: "+c.Phone, "RB", 1, "L", false, 0, "")
	pdf.CellFormat(95, 7, "Location: "+c.Location, "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, "Since: "+timeutil.Format(c.CustomerSince, timeutil.DateLayout), "RB", 1, "L", false, 0, "")
	pdf.Ln(5)

	// Ledger
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Ledger", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(200, 200, 200)
	pdf.CellFormat(30, 7, "Date", "1", 0, "C", true, 0, "")
	pdf.CellFormat(80, 7, "Description", "1", 0, "C", true, 0, "")
	pdf.CellFormat(25, 7, "Debit", "1", 0, "C", true, 0, "")
	pdf.CellFormat(25, 7, "Credit", "1", 0, "C", true, 0, "")
	pdf.CellFormat(30, 7, "Balance", "1", 1, "C", true, 0, "")

	pdf.SetFont("Arial", "", 10)
	for _, line := range st.Lines {
		debit, credit := "", ""
		if line.Type == models.TransactionDebit {
			debit = line.Amount.StringFixed(2)
		} else {
			credit = line.Amount.StringFixed(2)
		}
		description := line.Description
		if len(description) > 44 {
			description = description[:41] + "..."
		}
		pdf.CellFormat(30, 6, timeutil.Format(line.Date, timeutil.DateLayout), "1", 0, "C", false, 0, "")
		pdf.CellFormat(80, 6, description, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, debit, "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, credit, "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, line.Balance.StringFixed(2), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(5)

	// Balance - highlight if outstanding
	if st.Total.IsPositive() {
		pdf.SetFillColor(255, 200, 200)
	} else {
		pdf.SetFillColor(200, 255, 200)
	}
	pdf.SetFont("Arial", "B", 14)
	balanceText := "Balance Due: " + s.money(st.Total)
	if !st.Total.IsPositive() {
		balanceText = "FULLY PAID"
	}
	pdf.CellFormat(190, 10, balanceText, "1", 1, "C", true, 0, "")

	if st.PotentiallyStale {
		pdf.Ln(3)
		pdf.SetFont("Arial", "I", 9)
		pdf.MultiCell(190, 5, "Ledger entries were deleted after some sales were recorded. Sale totals below may not match the ledger.", "", "L", false)
	}

	if len(st.Sales) > 0 {
		pdf.Ln(5)
		pdf.SetFont("Arial", "B", 12)
		pdf.SetFillColor(240, 240, 240)
		pdf.CellFormat(190, 8, "Sales", "1", 1, "L", true, 0, "")

		pdf.SetFont("Arial", "B", 10)
		pdf.SetFillColor(200, 200, 200)
		pdf.CellFormat(50, 7, "Invoice", "1", 0, "C", true, 0, "")
		pdf.CellFormat(35, 7, "Date", "1", 0, "C", true, 0, "")
		pdf.CellFormat(35, 7, "Total", "1", 0, "C", true, 0, "")
		pdf.CellFormat(35, 7, "Paid", "1", 0, "C", true, 0, "")
		pdf.CellFormat(35, 7, "Status", "1", 1, "C", true, 0, "")

		pdf.SetFont("Arial", "", 10)
		for _, sale := range st.Sales {
			pdf.CellFormat(50, 6, sale.InvoiceNumber, "1", 0, "C", false, 0, "")
			pdf.CellFormat(35, 6, timeutil.Format(sale.Date, timeutil.DateLayout), "1", 0, "C", false, 0, "")
			pdf.CellFormat(35, 6, sale.TotalAmount.StringFixed(2), "1", 0, "R", false, 0, "")
			pdf.CellFormat(35, 6, sale.AmountPaid.StringFixed(2), "1", 0, "R", false, 0, "")
			pdf.CellFormat(35, 6, string(sale.Status), "1", 1, "C", false, 0, "")
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render statement: %w", err)
	}
	return buf.Bytes(), nil
}
