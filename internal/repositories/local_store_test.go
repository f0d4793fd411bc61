package repositories

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos-backend/internal/apperr"
	"pos-backend/internal/models"
)

func seedBranch(t *testing.T, s *LocalStore, branch string) {
	t.Helper()
	ctx := context.Background()
	r := s.Branch(branch)
	require.NoError(t, r.Products.Create(ctx, &models.Product{
		ID: "p1", Name: "Cable", UnitSalePrice: decimal.NewFromInt(10), UnitCost: decimal.NewFromInt(6),
		StockQuantity: 5, LowStockThreshold: 10,
	}))
	require.NoError(t, r.Customers.Create(ctx, &models.Customer{ID: "c1", Name: "Ali", CustomerSince: time.Now()}))
}

func TestLocalStoreStock(t *testing.T) {
	s, err := NewLocalStore("")
	require.NoError(t, err)
	seedBranch(t, s, "main")
	ctx := context.Background()
	r := s.Branch("main")

	t.Run("decrement within stock", func(t *testing.T) {
		require.NoError(t, r.Products.DecrementStock(ctx, "p1", 2))
		p, err := r.Products.GetByID(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, 3, p.StockQuantity)
	})

	t.Run("decrement never goes negative", func(t *testing.T) {
		err := r.Products.DecrementStock(ctx, "p1", 4)
		assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
		assert.Equal(t, "p1", apperr.EntityOf(err))

		p, _ := r.Products.GetByID(ctx, "p1")
		assert.Equal(t, 3, p.StockQuantity)
	})

	t.Run("unknown product", func(t *testing.T) {
		err := r.Products.DecrementStock(ctx, "nope", 1)
		assert.ErrorIs(t, err, apperr.ErrProductNotFound)
	})

	t.Run("adjust stock", func(t *testing.T) {
		p, err := r.Products.AdjustStock(ctx, "p1", 7)
		require.NoError(t, err)
		assert.Equal(t, 10, p.StockQuantity)

		_, err = r.Products.AdjustStock(ctx, "p1", -11)
		assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
	})

	t.Run("low stock listing", func(t *testing.T) {
		low, err := r.Products.ListLowStock(ctx)
		require.NoError(t, err)
		require.Len(t, low, 1)
		assert.Equal(t, "p1", low[0].ID)
	})

	t.Run("returned products are copies", func(t *testing.T) {
		p, _ := r.Products.GetByID(ctx, "p1")
		p.StockQuantity = 999
		again, _ := r.Products.GetByID(ctx, "p1")
		assert.NotEqual(t, 999, again.StockQuantity)
	})
}

func TestLocalStoreBranchesAreIsolated(t *testing.T) {
	s, _ := NewLocalStore("")
	seedBranch(t, s, "main")
	ctx := context.Background()

	_, err := s.Branch("north").Products.GetByID(ctx, "p1")
	assert.ErrorIs(t, err, apperr.ErrProductNotFound)

	n1, _ := s.Branch("main").Sequences.Next(ctx)
	n2, _ := s.Branch("main").Sequences.Next(ctx)
	other, _ := s.Branch("north").Sequences.Next(ctx)
	assert.Equal(t, int64(1), n1)
	assert.Equal(t, int64(2), n2)
	assert.Equal(t, int64(1), other)
}

func TestLocalStoreLedger(t *testing.T) {
	s, _ := NewLocalStore("")
	seedBranch(t, s, "main")
	ctx := context.Background()
	r := s.Branch("main")

	entries := []models.Transaction{
		{ID: "t1", Type: models.TransactionDebit, Amount: decimal.NewFromInt(50), Date: time.Now()},
		{ID: "t2", Type: models.TransactionCredit, Amount: decimal.NewFromInt(20), Date: time.Now()},
	}
	require.NoError(t, r.Customers.AppendTransactions(ctx, "c1", entries, decimal.NewFromInt(30)))

	c, err := r.Customers.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, c.Transactions, 2)
	assert.True(t, c.TotalDebt.Equal(decimal.NewFromInt(30)))

	at := time.Now()
	require.NoError(t, r.Customers.DeleteTransaction(ctx, "c1", "t2", decimal.NewFromInt(50), at))
	c, _ = r.Customers.GetByID(ctx, "c1")
	require.Len(t, c.Transactions, 1)
	assert.Equal(t, "t1", c.Transactions[0].ID)
	assert.Equal(t, 1, c.LedgerDeletions)
	require.NotNil(t, c.LastLedgerDeletionAt)

	err = r.Customers.DeleteTransaction(ctx, "c1", "t2", decimal.Zero, at)
	assert.ErrorIs(t, err, apperr.ErrTransactionNotFound)

	err = r.Customers.AppendTransactions(ctx, "ghost", entries, decimal.Zero)
	assert.ErrorIs(t, err, apperr.ErrCustomerNotFound)
}

func TestLocalStoreSalesListing(t *testing.T) {
	s, _ := NewLocalStore("")
	ctx := context.Background()
	r := s.Branch("main")
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, status := range []models.SaleStatus{models.SaleStatusPaid, models.SaleStatusDebt, models.SaleStatusPaid} {
		require.NoError(t, r.Sales.Create(ctx, &models.Sale{
			ID: string(rune('a' + i)), InvoiceNumber: "S-" + string(rune('a'+i)), CustomerID: "c1",
			Status: status, Date: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	all, err := r.Sales.List(ctx, models.SaleFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)

	paid, _ := r.Sales.List(ctx, models.SaleFilter{Status: models.SaleStatusPaid})
	assert.Len(t, paid, 2)

	from := base.Add(30 * time.Minute)
	later, _ := r.Sales.List(ctx, models.SaleFilter{From: &from, Limit: 1})
	require.Len(t, later, 1)
	assert.Equal(t, "c", later[0].ID)

	got, err := r.Sales.GetByInvoiceNumber(ctx, "S-b")
	require.NoError(t, err)
	assert.Equal(t, "b", got.ID)

	_, err = r.Sales.GetByID(ctx, "zzz")
	assert.ErrorIs(t, err, apperr.ErrSaleNotFound)
}

func TestLocalStoreAtomicKeepsEarlierWrites(t *testing.T) {
	s, _ := NewLocalStore("")
	seedBranch(t, s, "main")
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Atomic(ctx, "main", func(ctx context.Context, r Repos) error {
		if err := r.Products.DecrementStock(ctx, "p1", 1); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, s.Transactional())

	p, _ := s.Branch("main").Products.GetByID(ctx, "p1")
	assert.Equal(t, 4, p.StockQuantity)
}

func TestLocalStoreSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap", "pos.json")
	s, err := NewLocalStore(path)
	require.NoError(t, err)
	seedBranch(t, s, "main")
	ctx := context.Background()

	err = s.Atomic(ctx, "main", func(ctx context.Context, r Repos) error {
		if _, err := r.Sequences.Next(ctx); err != nil {
			return err
		}
		return r.Products.DecrementStock(ctx, "p1", 2)
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := NewLocalStore(path)
	require.NoError(t, err)
	p, err := reopened.Branch("main").Products.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.StockQuantity)

	seq, _ := reopened.Branch("main").Sequences.Current(ctx)
	assert.Equal(t, int64(1), seq)

	c, err := reopened.Branch("main").Customers.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Ali", c.Name)
}

func TestLocalStoreUnwritableSnapshotKeepsChange(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	path := filepath.Join(dir, "pos.json")
	s, err := NewLocalStore(path)
	require.NoError(t, err)
	seedBranch(t, s, "main")
	ctx := context.Background()

	// A regular file where the snapshot directory should be.
	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, os.WriteFile(dir, []byte("x"), 0o644))

	err = s.Atomic(ctx, "main", func(ctx context.Context, r Repos) error {
		if _, err := r.Sequences.Next(ctx); err != nil {
			return err
		}
		if err := r.Products.DecrementStock(ctx, "p1", 2); err != nil {
			return err
		}
		return r.Customers.AppendTransactions(ctx, "c1", []models.Transaction{
			{ID: "t1", Type: models.TransactionDebit, Amount: decimal.NewFromInt(20), Date: time.Now()},
		}, decimal.NewFromInt(20))
	})
	require.NoError(t, err)

	r := s.Branch("main")
	p, _ := r.Products.GetByID(ctx, "p1")
	assert.Equal(t, 3, p.StockQuantity)
	c, _ := r.Customers.GetByID(ctx, "c1")
	assert.True(t, c.TotalDebt.Equal(decimal.NewFromInt(20)))
	assert.Len(t, c.Transactions, 1)
	seq, _ := r.Sequences.Current(ctx)
	assert.Equal(t, int64(1), seq)

	assert.Error(t, s.Close())

	require.NoError(t, os.Remove(dir))
	require.NoError(t, s.Close())

	reopened, err := NewLocalStore(path)
	require.NoError(t, err)
	p, err = reopened.Branch("main").Products.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.StockQuantity)
}

func TestLocalStoreGetCost(t *testing.T) {
	s, _ := NewLocalStore("")
	seedBranch(t, s, "main")
	ctx := context.Background()

	cost, err := s.Branch("main").Products.GetCost(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, cost.Equal(decimal.NewFromInt(6)))

	_, err = s.Branch("main").Products.GetCost(ctx, "ghost")
	assert.ErrorIs(t, err, apperr.ErrProductNotFound)

	_, err = s.Branch("other").Products.GetCost(ctx, "p1")
	assert.ErrorIs(t, err, apperr.ErrProductNotFound)
}
