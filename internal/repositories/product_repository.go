package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"pos-backend/internal/apperr"
	"pos-backend/internal/models"
)

type PgProductRepository struct {
	DB       querier
	BranchID string
	Locking  bool
}

const productColumns = `id, branch_id, name, category, barcode, description,
	unit_sale_price, unit_cost, stock_quantity, low_stock_threshold, created_at, updated_at`

func scanProduct(row pgx.Row) (*models.Product, error) {
	var p models.Product
	err := row.Scan(&p.ID, &p.BranchID, &p.Name, &p.Category, &p.Barcode, &p.Description,
		&p.UnitSalePrice, &p.UnitCost, &p.StockQuantity, &p.LowStockThreshold, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PgProductRepository) lockClause() string {
	if r.Locking {
		return " FOR UPDATE"
	}
	return ""
}

func (r *PgProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE branch_id = $1 AND id = $2`+r.lockClause(),
		r.BranchID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ProductNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product %s: %w", id, err)
	}
	return p, nil
}

func (r *PgProductRepository) GetCost(ctx context.Context, id string) (decimal.Decimal, error) {
	var cost decimal.Decimal
	err := r.DB.QueryRow(ctx,
		`SELECT unit_cost FROM products WHERE branch_id = $1 AND id = $2`, r.BranchID, id).Scan(&cost)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, apperr.ProductNotFound(id)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get cost for %s: %w", id, err)
	}
	return cost, nil
}

// GetByIDs locks rows in id order so concurrent sales over overlapping carts
// cannot deadlock each other.
func (r *PgProductRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*models.Product, error) {
	result := make(map[string]*models.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	rows, err := r.DB.Query(ctx,
		`SELECT `+productColumns+` FROM products
		 WHERE branch_id = $1 AND id = ANY($2)
		 ORDER BY id`+r.lockClause(),
		r.BranchID, sorted)
	if err != nil {
		return nil, fmt.Errorf("failed to get products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		result[p.ID] = p
	}
	return result, rows.Err()
}

func (r *PgProductRepository) list(ctx context.Context, where string) ([]*models.Product, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE branch_id = $1`+where+` ORDER BY name`,
		r.BranchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *PgProductRepository) List(ctx context.Context) ([]*models.Product, error) {
	return r.list(ctx, "")
}

func (r *PgProductRepository) ListLowStock(ctx context.Context) ([]*models.Product, error) {
	return r.list(ctx, " AND stock_quantity <= low_stock_threshold")
}

func (r *PgProductRepository) Create(ctx context.Context, p *models.Product) error {
	p.BranchID = r.BranchID
	err := r.DB.QueryRow(ctx,
		`INSERT INTO products (id, branch_id, name, category, barcode, description,
			unit_sale_price, unit_cost, stock_quantity, low_stock_threshold)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at, updated_at`,
		p.ID, p.BranchID, p.Name, p.Category, p.Barcode, p.Description,
		p.UnitSalePrice, p.UnitCost, p.StockQuantity, p.LowStockThreshold,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

func (r *PgProductRepository) DecrementStock(ctx context.Context, id string, qty int) error {
	tag, err := r.DB.Exec(ctx,
		`UPDATE products SET stock_quantity = stock_quantity - $3, updated_at = NOW()
		 WHERE branch_id = $1 AND id = $2 AND stock_quantity >= $3`,
		r.BranchID, id, qty)
	if err != nil {
		return fmt.Errorf("failed to decrement stock for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return apperr.InsufficientStock(id)
	}
	return nil
}

func (r *PgProductRepository) AdjustStock(ctx context.Context, id string, delta int) (*models.Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx,
		`UPDATE products SET stock_quantity = stock_quantity + $3, updated_at = NOW()
		 WHERE branch_id = $1 AND id = $2 AND stock_quantity + $3 >= 0
		 RETURNING `+productColumns,
		r.BranchID, id, delta))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, apperr.InsufficientStock(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to adjust stock for %s: %w", id, err)
	}
	return p, nil
}
