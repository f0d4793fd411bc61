package repositories

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos-backend/internal/apperr"
	"pos-backend/internal/database"
	"pos-backend/internal/models"
)

// newPgTestStore connects to POS_TEST_DATABASE_URL, applies the shipped
// migrations and returns a store plus a branch id no other test uses.
func newPgTestStore(t *testing.T) (*PgStore, string) {
	t.Helper()
	url := os.Getenv("POS_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("POS_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	require.NoError(t, database.NewMigrator(pool, "../../migrations").RunMigrations(ctx))

	branch := "it-" + uuid.NewString()[:8]
	t.Cleanup(func() {
		for _, table := range []string{"sales", "ledger_transactions", "customers", "products", "counters"} {
			_, _ = pool.Exec(context.Background(), fmt.Sprintf("DELETE FROM %s WHERE branch_id = $1", table), branch)
		}
		pool.Close()
	})
	return NewPgStore(pool), branch
}

// withRetry re-runs Atomic while it reports contention.
func withRetry(ctx context.Context, s Store, branch string, fn func(ctx context.Context, r Repos) error) error {
	var err error
	for attempt := 0; attempt < 10; attempt++ {
		if err = s.Atomic(ctx, branch, fn); !apperr.Retryable(err) {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * 5 * time.Millisecond)
	}
	return err
}

func TestPgStoreInvoiceCounter(t *testing.T) {
	s, branch := newPgTestStore(t)
	ctx := context.Background()

	current, err := s.Branch(branch).Sequences.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), current)

	var got []int64
	for i := 0; i < 3; i++ {
		err := s.Atomic(ctx, branch, func(ctx context.Context, r Repos) error {
			n, err := r.Sequences.Next(ctx)
			got = append(got, n)
			return err
		})
		require.NoError(t, err)
	}
	assert.Equal(t, []int64{1, 2, 3}, got)

	// A failed scope gives its number back.
	err = s.Atomic(ctx, branch, func(ctx context.Context, r Repos) error {
		if _, err := r.Sequences.Next(ctx); err != nil {
			return err
		}
		return apperr.InsufficientStock("p1")
	})
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)

	current, err = s.Branch(branch).Sequences.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), current)
}

func TestPgStoreLastUnitRace(t *testing.T) {
	s, branch := newPgTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Branch(branch).Products.Create(ctx, &models.Product{
		ID: "p1", Name: "Cable", UnitSalePrice: decimal.NewFromInt(10), UnitCost: decimal.NewFromInt(6),
		StockQuantity: 1, LowStockThreshold: 1,
	}))

	const buyers = 4
	errs := make([]error, buyers)
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = withRetry(ctx, s, branch, func(ctx context.Context, r Repos) error {
				if _, err := r.Sequences.Next(ctx); err != nil {
					return err
				}
				products, err := r.Products.GetByIDs(ctx, []string{"p1"})
				if err != nil {
					return err
				}
				if products["p1"].StockQuantity < 1 {
					return apperr.InsufficientStock("p1")
				}
				return r.Products.DecrementStock(ctx, "p1", 1)
			})
		}(i)
	}
	wg.Wait()

	sold := 0
	for _, err := range errs {
		if err == nil {
			sold++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
	}
	assert.Equal(t, 1, sold)

	p, err := s.Branch(branch).Products.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.StockQuantity)

	cost, err := s.Branch(branch).Products.GetCost(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, cost.Equal(decimal.NewFromInt(6)))
	_, err = s.Branch(branch).Products.GetCost(ctx, "ghost")
	assert.ErrorIs(t, err, apperr.ErrProductNotFound)

	current, err := s.Branch(branch).Sequences.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), current)
}

func TestPgStoreLedgerAndSaleRoundTrip(t *testing.T) {
	s, branch := newPgTestStore(t)
	ctx := context.Background()
	r := s.Branch(branch)
	require.NoError(t, r.Customers.Create(ctx, &models.Customer{
		ID: "c1", Name: "Ali", TotalDebt: decimal.Zero, CustomerSince: time.Now(),
	}))

	items := []models.SaleItem{
		{ProductID: "p1", Name: "Cable", UnitSalePrice: decimal.RequireFromString("10.5"), UnitCost: decimal.NewFromInt(6), Quantity: 2},
		{ProductID: "custom-1", Name: "Repair", UnitSalePrice: decimal.RequireFromString("0.335"), Quantity: 1},
	}
	sale := &models.Sale{
		ID: "s1", InvoiceNumber: "INV-1", InvoiceSequence: 1, Date: time.Now().UTC().Truncate(time.Millisecond),
		CustomerID: "c1", CustomerName: "Ali", Items: items,
		Subtotal: decimal.RequireFromString("21.335"), DiscountValue: decimal.Zero, DiscountAmount: decimal.Zero,
		TotalAmount: decimal.RequireFromString("21.335"), Status: models.SaleStatusDebt,
		PaymentMethod: models.PaymentDebt, AmountPaid: decimal.Zero,
	}
	err := s.Atomic(ctx, branch, func(ctx context.Context, r Repos) error {
		if err := r.Customers.AppendTransactions(ctx, "c1", []models.Transaction{
			{ID: "t1", Date: sale.Date, Type: models.TransactionDebit, Amount: sale.TotalAmount, SaleID: "s1", Items: items},
			{ID: "t2", Date: sale.Date, Type: models.TransactionCredit, Amount: decimal.NewFromInt(5)},
		}, decimal.RequireFromString("16.335")); err != nil {
			return err
		}
		return r.Sales.Create(ctx, sale)
	})
	require.NoError(t, err)

	got, err := r.Sales.GetByInvoiceNumber(ctx, "INV-1")
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.True(t, got.Items[1].UnitSalePrice.Equal(decimal.RequireFromString("0.335")))
	assert.True(t, got.TotalAmount.Equal(sale.TotalAmount))

	c, err := r.Customers.GetByID(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, c.Transactions, 2)
	assert.Equal(t, "t1", c.Transactions[0].ID)
	assert.Len(t, c.Transactions[0].Items, 2)
	assert.True(t, c.TotalDebt.Equal(models.RecomputeDebt(c.Transactions)))

	t.Run("duplicate invoice number is contention", func(t *testing.T) {
		dup := *sale
		dup.ID = "s2"
		err := s.Atomic(ctx, branch, func(ctx context.Context, r Repos) error {
			return r.Sales.Create(ctx, &dup)
		})
		assert.ErrorIs(t, err, apperr.ErrSequenceContention)
	})

	t.Run("delete entry", func(t *testing.T) {
		err := s.Atomic(ctx, branch, func(ctx context.Context, r Repos) error {
			return r.Customers.DeleteTransaction(ctx, "c1", "t2", sale.TotalAmount, time.Now())
		})
		require.NoError(t, err)

		c, err := r.Customers.GetByID(ctx, "c1")
		require.NoError(t, err)
		require.Len(t, c.Transactions, 1)
		assert.Equal(t, 1, c.LedgerDeletions)
		assert.True(t, c.TotalDebt.Equal(models.RecomputeDebt(c.Transactions)))

		err = s.Atomic(ctx, branch, func(ctx context.Context, r Repos) error {
			return r.Customers.DeleteTransaction(ctx, "c1", "t2", sale.TotalAmount, time.Now())
		})
		assert.ErrorIs(t, err, apperr.ErrTransactionNotFound)
	})
}
