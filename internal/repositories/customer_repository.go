package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"pos-backend/internal/apperr"
	"pos-backend/internal/models"
)

type PgCustomerRepository struct {
	DB       querier
	BranchID string
	Locking  bool
}

const customerColumns = `id, branch_id, name, phone, location, total_debt, customer_since,
	due_date, ledger_deletions, last_ledger_deletion_at`

func scanCustomer(row pgx.Row) (*models.Customer, error) {
	var c models.Customer
	err := row.Scan(&c.ID, &c.BranchID, &c.Name, &c.Phone, &c.Location, &c.TotalDebt, &c.CustomerSince,
		&c.DueDate, &c.LedgerDeletions, &c.LastLedgerDeletionAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PgCustomerRepository) GetByID(ctx context.Context, id string) (*models.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE branch_id = $1 AND id = $2`
	if r.Locking {
		query += " FOR UPDATE"
	}

	c, err := scanCustomer(r.DB.QueryRow(ctx, query, r.BranchID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.CustomerNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer %s: %w", id, err)
	}

	c.Transactions, err = r.transactions(ctx, id)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *PgCustomerRepository) transactions(ctx context.Context, customerID string) ([]models.Transaction, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT id, date, description, type, amount, sale_id, items
		 FROM ledger_transactions
		 WHERE branch_id = $1 AND customer_id = $2
		 ORDER BY seq`,
		r.BranchID, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger for %s: %w", customerID, err)
	}
	defer rows.Close()

	entries := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.Date, &t.Description, &t.Type, &t.Amount, &t.SaleID, &t.Items); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, t)
	}
	return entries, rows.Err()
}

// List returns customers without their ledgers, highest debt first.
func (r *PgCustomerRepository) List(ctx context.Context) ([]*models.Customer, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE branch_id = $1 ORDER BY total_debt DESC, name`,
		r.BranchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	var customers []*models.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (r *PgCustomerRepository) Create(ctx context.Context, c *models.Customer) error {
	c.BranchID = r.BranchID
	_, err := r.DB.Exec(ctx,
		`INSERT INTO customers (id, branch_id, name, phone, location, total_debt, customer_since, due_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.BranchID, c.Name, c.Phone, c.Location, c.TotalDebt, c.CustomerSince, c.DueDate)
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}
	return nil
}

func (r *PgCustomerRepository) AppendTransactions(ctx context.Context, id string, entries []models.Transaction, totalDebt decimal.Decimal) error {
	for _, t := range entries {
		items := t.Items
		if items == nil {
			items = []models.SaleItem{}
		}
		_, err := r.DB.Exec(ctx,
			`INSERT INTO ledger_transactions (branch_id, customer_id, id, date, description, type, amount, sale_id, items)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			r.BranchID, id, t.ID, t.Date, t.Description, t.Type, t.Amount, t.SaleID, items)
		if err != nil {
			return fmt.Errorf("failed to append ledger entry %s: %w", t.ID, err)
		}
	}
	return r.setDebt(ctx, id, totalDebt)
}

func (r *PgCustomerRepository) DeleteTransaction(ctx context.Context, id, txID string, totalDebt decimal.Decimal, at time.Time) error {
	tag, err := r.DB.Exec(ctx,
		`DELETE FROM ledger_transactions WHERE branch_id = $1 AND customer_id = $2 AND id = $3`,
		r.BranchID, id, txID)
	if err != nil {
		return fmt.Errorf("failed to delete ledger entry %s: %w", txID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.TransactionNotFound(txID)
	}

	_, err = r.DB.Exec(ctx,
		`UPDATE customers
		 SET total_debt = $3, ledger_deletions = ledger_deletions + 1, last_ledger_deletion_at = $4
		 WHERE branch_id = $1 AND id = $2`,
		r.BranchID, id, totalDebt, at)
	if err != nil {
		return fmt.Errorf("failed to update customer %s: %w", id, err)
	}
	return nil
}

func (r *PgCustomerRepository) setDebt(ctx context.Context, id string, totalDebt decimal.Decimal) error {
	tag, err := r.DB.Exec(ctx,
		`UPDATE customers SET total_debt = $3 WHERE branch_id = $1 AND id = $2`,
		r.BranchID, id, totalDebt)
	if err != nil {
		return fmt.Errorf("failed to update debt for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.CustomerNotFound(id)
	}
	return nil
}
