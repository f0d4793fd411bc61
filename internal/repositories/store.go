package repositories

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"pos-backend/internal/models"
)

// Every repository is bound to one branch; ids are unique within a branch.

type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*models.Product, error)
	// GetByIDs returns the products that exist, keyed by id. Inside an atomic
	// scope the rows stay locked until the scope ends.
	GetByIDs(ctx context.Context, ids []string) (map[string]*models.Product, error)
	// GetCost returns the current unit cost used for sale snapshots.
	GetCost(ctx context.Context, id string) (decimal.Decimal, error)
	List(ctx context.Context) ([]*models.Product, error)
	ListLowStock(ctx context.Context) ([]*models.Product, error)
	Create(ctx context.Context, p *models.Product) error
	// DecrementStock fails with InsufficientStock instead of going negative.
	DecrementStock(ctx context.Context, id string, qty int) error
	AdjustStock(ctx context.Context, id string, delta int) (*models.Product, error)
}

type CustomerRepository interface {
	// GetByID returns the customer with its full ledger.
	GetByID(ctx context.Context, id string) (*models.Customer, error)
	List(ctx context.Context) ([]*models.Customer, error)
	Create(ctx context.Context, c *models.Customer) error
	// AppendTransactions adds entries and stores the caller-computed debt.
	AppendTransactions(ctx context.Context, id string, entries []models.Transaction, totalDebt decimal.Decimal) error
	// DeleteTransaction removes one entry, stores the recomputed debt and
	// records the deletion time.
	DeleteTransaction(ctx context.Context, id, txID string, totalDebt decimal.Decimal, at time.Time) error
}

type SaleRepository interface {
	Create(ctx context.Context, s *models.Sale) error
	GetByID(ctx context.Context, id string) (*models.Sale, error)
	GetByInvoiceNumber(ctx context.Context, number string) (*models.Sale, error)
	// List returns newest first.
	List(ctx context.Context, filter models.SaleFilter) ([]*models.Sale, error)
}

type SequenceRepository interface {
	// Next advances the branch invoice counter and returns the new value.
	Next(ctx context.Context) (int64, error)
	Current(ctx context.Context) (int64, error)
}

// Repos groups the repositories of one branch.
type Repos struct {
	Products  ProductRepository
	Customers CustomerRepository
	Sales     SaleRepository
	Sequences SequenceRepository
}

// Store hands out branch repositories.
//
// Atomic runs fn so that its reads and writes form one unit. The guarantee
// depends on the implementation: PgStore commits everything or nothing and
// reports lost races as apperr.ErrSequenceContention, while LocalStore only
// serializes writers and applies writes in order with no rollback.
// Transactional reports which of the two the caller is getting.
type Store interface {
	Atomic(ctx context.Context, branchID string, fn func(ctx context.Context, r Repos) error) error
	Branch(branchID string) Repos
	Transactional() bool
	Close() error
}
