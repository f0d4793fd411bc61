package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"pos-backend/internal/apperr"
	"pos-backend/internal/models"
)

type PgSaleRepository struct {
	DB       querier
	BranchID string
}

const saleColumns = `id, branch_id, invoice_number, invoice_sequence, date, customer_id, customer_name,
	customer_phone, customer_location, items, subtotal, discount_type, discount_value,
	discount_currency, discount_amount, total_amount, status, payment_method, amount_paid`

func scanSale(row pgx.Row) (*models.Sale, error) {
	var s models.Sale
	err := row.Scan(&s.ID, &s.BranchID, &s.InvoiceNumber, &s.InvoiceSequence, &s.Date, &s.CustomerID,
		&s.CustomerName, &s.CustomerPhone, &s.CustomerLocation, &s.Items, &s.Subtotal, &s.DiscountType,
		&s.DiscountValue, &s.DiscountCurrency, &s.DiscountAmount, &s.TotalAmount, &s.Status,
		&s.PaymentMethod, &s.AmountPaid)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts the sale. A duplicate invoice number means another writer
// won the counter race; the caller retries the whole sale.
func (r *PgSaleRepository) Create(ctx context.Context, s *models.Sale) error {
	s.BranchID = r.BranchID
	_, err := r.DB.Exec(ctx,
		`INSERT INTO sales (`+saleColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		s.ID, s.BranchID, s.InvoiceNumber, s.InvoiceSequence, s.Date, s.CustomerID, s.CustomerName,
		s.CustomerPhone, s.CustomerLocation, s.Items, s.Subtotal, s.DiscountType, s.DiscountValue,
		s.DiscountCurrency, s.DiscountAmount, s.TotalAmount, s.Status, s.PaymentMethod, s.AmountPaid)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Contention(err)
		}
		return fmt.Errorf("failed to create sale: %w", err)
	}
	return nil
}

func (r *PgSaleRepository) getOne(ctx context.Context, where, arg, notFound string) (*models.Sale, error) {
	s, err := scanSale(r.DB.QueryRow(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE branch_id = $1 AND `+where+` = $2`,
		r.BranchID, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.SaleNotFound(notFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sale %s: %w", arg, err)
	}
	return s, nil
}

func (r *PgSaleRepository) GetByID(ctx context.Context, id string) (*models.Sale, error) {
	return r.getOne(ctx, "id", id, id)
}

func (r *PgSaleRepository) GetByInvoiceNumber(ctx context.Context, number string) (*models.Sale, error) {
	return r.getOne(ctx, "invoice_number", number, number)
}

func (r *PgSaleRepository) List(ctx context.Context, filter models.SaleFilter) ([]*models.Sale, error) {
	conditions := []string{"branch_id = $1"}
	args := []interface{}{r.BranchID}
	argNum := 2

	if filter.CustomerID != "" {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argNum))
		args = append(args, filter.CustomerID)
		argNum++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, filter.Status)
		argNum++
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", argNum))
		args = append(args, *filter.From)
		argNum++
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("date <= $%d", argNum))
		args = append(args, *filter.To)
		argNum++
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}

	query := fmt.Sprintf(`SELECT %s FROM sales WHERE %s
		ORDER BY date DESC, invoice_sequence DESC
		LIMIT $%d OFFSET $%d`,
		saleColumns, strings.Join(conditions, " AND "), argNum, argNum+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}
	defer rows.Close()

	var sales []*models.Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}
