package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos-backend/internal/apperr"
	"pos-backend/internal/models"
)

func TestComputeLedgerDelta(t *testing.T) {
	base := models.Sale{
		ID:            "s1",
		InvoiceNumber: "INV-000001-1",
		TotalAmount:   dec("20"),
		Items:         cart(2),
	}

	t.Run("paid in full writes nothing", func(t *testing.T) {
		sale := base
		sale.AmountPaid = dec("20")
		delta := ComputeLedgerDelta(&sale)
		assert.Empty(t, delta.Entries)
		assert.True(t, delta.DebtIncrease.IsZero())
	})

	t.Run("debt writes one debit", func(t *testing.T) {
		sale := base
		sale.AmountPaid = dec("0")
		delta := ComputeLedgerDelta(&sale)
		require.Len(t, delta.Entries, 1)
		assert.Equal(t, "s1-D", delta.Entries[0].ID)
		assert.Equal(t, models.TransactionDebit, delta.Entries[0].Type)
		assert.Len(t, delta.Entries[0].Items, 1)
		assert.True(t, delta.DebtIncrease.Equal(dec("20")))
	})

	t.Run("partial writes debit and credit", func(t *testing.T) {
		sale := base
		sale.AmountPaid = dec("8")
		delta := ComputeLedgerDelta(&sale)
		require.Len(t, delta.Entries, 2)
		assert.Equal(t, "s1-C", delta.Entries[1].ID)
		assert.Equal(t, models.TransactionCredit, delta.Entries[1].Type)
		assert.True(t, delta.Entries[1].Amount.Equal(dec("8")))
		assert.Equal(t, "Down payment for sale #INV-000001-1", delta.Entries[1].Description)
		assert.True(t, delta.DebtIncrease.Equal(dec("12")))
		assert.True(t, models.RecomputeDebt(delta.Entries).Equal(delta.DebtIncrease))
	})
}

func TestFormatInvoiceNumber(t *testing.T) {
	at := time.UnixMilli(1700000123456)
	assert.Equal(t, "INV-123456-42", FormatInvoiceNumber("INV", at, 42))
	assert.Equal(t, "S-123456-1", FormatInvoiceNumber("", at, 1))
}

func newTestLedgerService(t *testing.T) (*LedgerService, *SaleService) {
	t.Helper()
	store := newTestStore(t, 50)
	sales := newTestSaleService(store)
	ledger := NewLedgerService(store, testConverter())
	ledger.Now = sales.Now
	return ledger, sales
}

func TestLedgerRecordPayment(t *testing.T) {
	ledger, sales := newTestLedgerService(t)
	ctx := context.Background()

	_, err := sales.RecordSale(ctx, models.RecordSaleRequest{
		BranchID: testBranch, Cart: cart(3), CustomerID: "C1", PaymentMethod: models.PaymentDebt,
	})
	require.NoError(t, err)

	c, err := ledger.RecordPayment(ctx, testBranch, "C1", models.RecordPaymentRequest{Amount: dec("13100"), Currency: "IQD", Notes: "cash"})
	require.NoError(t, err)
	assert.True(t, c.TotalDebt.Equal(dec("20")))
	require.Len(t, c.Transactions, 2)
	assert.Equal(t, "Payment - cash", c.Transactions[1].Description)

	stored, err := ledger.GetCustomer(ctx, testBranch, "C1")
	require.NoError(t, err)
	assert.True(t, stored.TotalDebt.Equal(dec("20")))
	assertDebtReconciles(t, stored)

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		_, err := ledger.RecordPayment(ctx, testBranch, "C1", models.RecordPaymentRequest{Amount: dec("0")})
		assert.ErrorIs(t, err, apperr.ErrInvalidAmount)
	})

	t.Run("unknown customer", func(t *testing.T) {
		_, err := ledger.RecordPayment(ctx, testBranch, "nobody", models.RecordPaymentRequest{Amount: dec("1")})
		assert.ErrorIs(t, err, apperr.ErrCustomerNotFound)
	})
}

func TestLedgerDeleteTransaction(t *testing.T) {
	ledger, sales := newTestLedgerService(t)
	ctx := context.Background()

	sale, err := sales.RecordSale(ctx, models.RecordSaleRequest{
		BranchID: testBranch, Cart: cart(2), CustomerID: "C1", PaymentMethod: models.PaymentPartial, PartialAmountPaid: decPtr("8"),
	})
	require.NoError(t, err)

	c, err := ledger.DeleteTransaction(ctx, testBranch, "C1", sale.ID+"-C")
	require.NoError(t, err)
	assert.True(t, c.TotalDebt.Equal(dec("20")))
	assert.Equal(t, 1, c.LedgerDeletions)
	require.NotNil(t, c.LastLedgerDeletionAt)

	stored, err := ledger.GetCustomer(ctx, testBranch, "C1")
	require.NoError(t, err)
	assertDebtReconciles(t, stored)
	assert.Equal(t, 1, stored.LedgerDeletions)

	t.Run("sale record is left untouched", func(t *testing.T) {
		s, err := sales.Store.Branch(testBranch).Sales.GetByID(ctx, sale.ID)
		require.NoError(t, err)
		assert.True(t, s.AmountPaid.Equal(dec("8")))
		assert.Equal(t, models.SaleStatusPartial, s.Status)
	})

	t.Run("statement is flagged", func(t *testing.T) {
		st, err := ledger.Statement(ctx, testBranch, "C1")
		require.NoError(t, err)
		assert.True(t, st.PotentiallyStale)
		require.Len(t, st.Lines, 1)
		assert.True(t, st.Lines[0].Balance.Equal(dec("20")))
		require.Len(t, st.Sales, 1)
	})

	t.Run("unknown transaction", func(t *testing.T) {
		_, err := ledger.DeleteTransaction(ctx, testBranch, "C1", "missing")
		assert.ErrorIs(t, err, apperr.ErrTransactionNotFound)
		assert.Equal(t, "missing", apperr.EntityOf(err))
	})
}

func TestLedgerStatementRunningBalance(t *testing.T) {
	ledger, sales := newTestLedgerService(t)
	ctx := context.Background()

	for _, qty := range []int{1, 2} {
		_, err := sales.RecordSale(ctx, models.RecordSaleRequest{
			BranchID: testBranch, Cart: cart(qty), CustomerID: "C1", PaymentMethod: models.PaymentDebt,
		})
		require.NoError(t, err)
	}
	_, err := ledger.RecordPayment(ctx, testBranch, "C1", models.RecordPaymentRequest{Amount: dec("5")})
	require.NoError(t, err)

	st, err := ledger.Statement(ctx, testBranch, "C1")
	require.NoError(t, err)
	assert.False(t, st.PotentiallyStale)
	require.Len(t, st.Lines, 3)
	assert.True(t, st.Lines[0].Balance.Equal(dec("10")))
	assert.True(t, st.Lines[1].Balance.Equal(dec("30")))
	assert.True(t, st.Lines[2].Balance.Equal(dec("25")))
	assert.True(t, st.Total.Equal(dec("25")))

	pdf, err := NewReceiptService("Shop", "USD").RenderStatementPDF(st)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}

func TestLedgerCustomers(t *testing.T) {
	ledger, sales := newTestLedgerService(t)
	ctx := context.Background()

	_, err := ledger.CreateCustomer(ctx, testBranch, models.CreateCustomerRequest{Name: "  "})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	c, err := ledger.CreateCustomer(ctx, testBranch, models.CreateCustomerRequest{Name: " Shilan ", Phone: "0770"})
	require.NoError(t, err)
	assert.Equal(t, "Shilan", c.Name)
	assert.True(t, c.TotalDebt.IsZero())

	_, err = sales.RecordSale(ctx, models.RecordSaleRequest{
		BranchID: testBranch, Cart: cart(1), CustomerID: c.ID, PaymentMethod: models.PaymentDebt,
	})
	require.NoError(t, err)

	all, err := ledger.ListCustomers(ctx, testBranch)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	debtors, err := ledger.ListDebtors(ctx, testBranch)
	require.NoError(t, err)
	require.Len(t, debtors, 1)
	assert.Equal(t, c.ID, debtors[0].ID)
}

func TestLedgerDeleteKeepsSubCentDebtExact(t *testing.T) {
	ledger, sales := newTestLedgerService(t)
	ctx := context.Background()

	_, err := sales.RecordSale(ctx, models.RecordSaleRequest{
		BranchID:      testBranch,
		Cart:          []models.SaleItem{{ProductID: "custom-sim", Name: "SIM card", UnitSalePrice: dec("0.335"), Quantity: 1}},
		CustomerID:    "C1",
		PaymentMethod: models.PaymentDebt,
	})
	require.NoError(t, err)

	c, err := ledger.RecordPayment(ctx, testBranch, "C1", models.RecordPaymentRequest{Amount: dec("0.1")})
	require.NoError(t, err)
	payment := c.Transactions[len(c.Transactions)-1]
	require.Equal(t, models.TransactionCredit, payment.Type)

	c, err = ledger.DeleteTransaction(ctx, testBranch, "C1", payment.ID)
	require.NoError(t, err)
	assert.True(t, c.TotalDebt.Equal(dec("0.335")), "debt = %s", c.TotalDebt)

	stored, err := ledger.GetCustomer(ctx, testBranch, "C1")
	require.NoError(t, err)
	assert.True(t, stored.TotalDebt.Equal(dec("0.335")), "stored debt = %s", stored.TotalDebt)
	assertDebtReconciles(t, stored)
}

func TestLedgerWritesRetryOnContention(t *testing.T) {
	ctx := context.Background()

	newLedger := func(failures int) (*LedgerService, *contendedStore) {
		store := &contendedStore{Store: newTestStore(t, 5), failures: failures}
		ledger := NewLedgerService(store, testConverter())
		ledger.Retry = WritePolicy(3, time.Millisecond)
		return ledger, store
	}

	t.Run("payment succeeds within budget", func(t *testing.T) {
		ledger, store := newLedger(2)
		c, err := ledger.RecordPayment(ctx, testBranch, "C1", models.RecordPaymentRequest{Amount: dec("5")})
		require.NoError(t, err)
		assert.Equal(t, 3, store.calls)
		assert.True(t, c.TotalDebt.Equal(dec("-5")))
		require.Len(t, customerOf(t, store).Transactions, 1)
	})

	t.Run("payment gives up after max attempts", func(t *testing.T) {
		ledger, store := newLedger(10)
		_, err := ledger.RecordPayment(ctx, testBranch, "C1", models.RecordPaymentRequest{Amount: dec("5")})
		assert.ErrorIs(t, err, apperr.ErrSequenceContention)
		assert.Equal(t, 3, store.calls)
		assert.Empty(t, customerOf(t, store).Transactions)
	})

	t.Run("delete retries", func(t *testing.T) {
		ledger, store := newLedger(0)
		c, err := ledger.RecordPayment(ctx, testBranch, "C1", models.RecordPaymentRequest{Amount: dec("5")})
		require.NoError(t, err)

		store.failures = store.calls + 1
		_, err = ledger.DeleteTransaction(ctx, testBranch, "C1", c.Transactions[0].ID)
		require.NoError(t, err)
		assert.Empty(t, customerOf(t, store).Transactions)
	})

	t.Run("not found is not retried", func(t *testing.T) {
		ledger, store := newLedger(0)
		_, err := ledger.DeleteTransaction(ctx, testBranch, "C1", "missing")
		assert.ErrorIs(t, err, apperr.ErrTransactionNotFound)
		assert.Equal(t, 1, store.calls)
	})
}
