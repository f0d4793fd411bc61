package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"pos-backend/internal/apperr"
	"pos-backend/internal/currency"
	"pos-backend/internal/metrics"
	"pos-backend/internal/models"
	"pos-backend/internal/repositories"
	"pos-backend/internal/retry"
)

// LedgerService manages customers and their debt ledgers outside of sales.
type LedgerService struct {
	Store  repositories.Store
	Conv   *currency.Converter
	Events EventPublisher
	Cache  BranchCache
	Retry  retry.Policy
	Now    func() time.Time
}

func NewLedgerService(store repositories.Store, conv *currency.Converter) *LedgerService {
	return &LedgerService{Store: store, Conv: conv, Retry: defaultWritePolicy(), Now: time.Now}
}

func (s *LedgerService) CreateCustomer(ctx context.Context, branchID string, req models.CreateCustomerRequest) (*models.Customer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.InvalidInput("customer name is required")
	}

	c := &models.Customer{
		ID:            uuid.NewString(),
		Name:          name,
		Phone:         strings.TrimSpace(req.Phone),
		Location:      strings.TrimSpace(req.Location),
		TotalDebt:     decimal.Zero,
		Transactions:  []models.Transaction{},
		CustomerSince: s.Now(),
		DueDate:       req.DueDate,
	}
	if err := s.Store.Branch(branchID).Customers.Create(ctx, c); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"branch": branchID, "customer": c.ID}).Info("[Ledger] Customer created")
	return c, nil
}

func (s *LedgerService) GetCustomer(ctx context.Context, branchID, id string) (*models.Customer, error) {
	return s.Store.Branch(branchID).Customers.GetByID(ctx, id)
}

func (s *LedgerService) ListCustomers(ctx context.Context, branchID string) ([]*models.Customer, error) {
	return s.Store.Branch(branchID).Customers.List(ctx)
}

// ListDebtors returns customers that currently owe money.
func (s *LedgerService) ListDebtors(ctx context.Context, branchID string) ([]*models.Customer, error) {
	all, err := s.ListCustomers(ctx, branchID)
	if err != nil {
		return nil, err
	}
	var debtors []*models.Customer
	for _, c := range all {
		if c.TotalDebt.IsPositive() {
			debtors = append(debtors, c)
		}
	}
	return debtors, nil
}

// RecordPayment appends a CREDIT for a manual debt payment.
func (s *LedgerService) RecordPayment(ctx context.Context, branchID, customerID string, req models.RecordPaymentRequest) (*models.Customer, error) {
	amount, err := s.Conv.ToBase(req.Amount, req.Currency)
	if err != nil {
		return nil, &apperr.Error{Kind: apperr.KindInvalidAmount, Msg: "invalid payment currency", Err: err}
	}
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return nil, apperr.ErrInvalidAmount
	}

	description := "Payment"
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		description += " - " + notes
	}

	var updated *models.Customer
	err = atomicWithRetry(ctx, s.Store, branchID, "record_payment", s.Retry, func(ctx context.Context, r repositories.Repos) error {
		c, err := r.Customers.GetByID(ctx, customerID)
		if err != nil {
			return err
		}
		entry := models.Transaction{
			ID:          "P-" + uuid.NewString(),
			Date:        s.Now(),
			Description: description,
			Type:        models.TransactionCredit,
			Amount:      amount,
		}
		newDebt := c.TotalDebt.Sub(amount)
		if err := r.Customers.AppendTransactions(ctx, customerID, []models.Transaction{entry}, newDebt); err != nil {
			return err
		}
		c.Transactions = append(c.Transactions, entry)
		c.TotalDebt = newDebt
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"branch":   branchID,
		"customer": customerID,
		"amount":   amount.StringFixed(2),
		"debt":     updated.TotalDebt.StringFixed(2),
	}).Info("[Ledger] Payment recorded")

	s.changed(ctx, branchID, models.EventCustomerUpdated, customerID)
	return updated, nil
}

// DeleteTransaction removes one ledger entry and recomputes the debt from
// the remaining entries. Sales that produced the entry are left as they are.
func (s *LedgerService) DeleteTransaction(ctx context.Context, branchID, customerID, txID string) (*models.Customer, error) {
	var updated *models.Customer
	err := atomicWithRetry(ctx, s.Store, branchID, "delete_transaction", s.Retry, func(ctx context.Context, r repositories.Repos) error {
		c, err := r.Customers.GetByID(ctx, customerID)
		if err != nil {
			return err
		}

		remaining := make([]models.Transaction, 0, len(c.Transactions))
		found := false
		for _, t := range c.Transactions {
			if t.ID == txID {
				found = true
				continue
			}
			remaining = append(remaining, t)
		}
		if !found {
			return apperr.TransactionNotFound(txID)
		}

		now := s.Now()
		newDebt := models.RecomputeDebt(remaining)
		if err := r.Customers.DeleteTransaction(ctx, customerID, txID, newDebt, now); err != nil {
			return err
		}

		c.Transactions = remaining
		c.TotalDebt = newDebt
		c.LedgerDeletions++
		c.LastLedgerDeletionAt = &now
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.LedgerDeletions.WithLabelValues(branchID).Inc()
	log.WithFields(log.Fields{
		"branch":      branchID,
		"customer":    customerID,
		"transaction": txID,
		"debt":        updated.TotalDebt.StringFixed(2),
	}).Warn("[Ledger] Ledger entry deleted, debt recomputed")

	s.changed(ctx, branchID, models.EventLedgerEntryDeleted, customerID)
	return updated, nil
}

// Statement returns the ledger with running balances next to the
// customer's sales.
func (s *LedgerService) Statement(ctx context.Context, branchID, customerID string) (*models.CustomerStatement, error) {
	repos := s.Store.Branch(branchID)
	c, err := repos.Customers.GetByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	sales, err := repos.Sales.List(ctx, models.SaleFilter{CustomerID: customerID})
	if err != nil {
		return nil, err
	}

	balance := decimal.Zero
	lines := make([]models.StatementLine, 0, len(c.Transactions))
	for _, t := range c.Transactions {
		if t.Type == models.TransactionDebit {
			balance = balance.Add(t.Amount)
		} else {
			balance = balance.Sub(t.Amount)
		}
		lines = append(lines, models.StatementLine{Transaction: t, Balance: balance})
	}

	return &models.CustomerStatement{
		Customer:         c,
		Lines:            lines,
		Sales:            sales,
		Total:            c.TotalDebt,
		PotentiallyStale: c.LedgerDeletions > 0,
	}, nil
}

func (s *LedgerService) changed(ctx context.Context, branchID, eventType, customerID string) {
	if s.Cache != nil {
		s.Cache.InvalidateBranch(ctx, branchID)
	}
	if s.Events != nil {
		s.Events.Publish(models.Event{Type: eventType, BranchID: branchID, ID: customerID, At: s.Now()})
	}
}
