package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"pos-backend/internal/apperr"
	"pos-backend/internal/currency"
	"pos-backend/internal/metrics"
	"pos-backend/internal/models"
	"pos-backend/internal/repositories"
	"pos-backend/internal/retry"
)

// EventPublisher receives committed changes for connected terminals.
type EventPublisher interface {
	Publish(evt models.Event)
}

// BranchCache is the read cache that must forget a branch after a write.
type BranchCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration)
	InvalidateBranch(ctx context.Context, branchID string)
}

type SaleServiceConfig struct {
	Options       SaleOptions
	MaxAttempts   int
	RetryBackoff  time.Duration
	DefaultBranch string
}

// SaleService records sales: cart in, Sale out, with stock, ledger and
// invoice counter updated in the same atomic scope.
type SaleService struct {
	Store  repositories.Store
	Conv   *currency.Converter
	Config SaleServiceConfig
	Events EventPublisher
	Cache  BranchCache
	Now    func() time.Time
}

func NewSaleService(store repositories.Store, conv *currency.Converter, cfg SaleServiceConfig) *SaleService {
	return &SaleService{
		Store:  store,
		Conv:   conv,
		Config: cfg,
		Now:    time.Now,
	}
}

// RecordSale validates req, then runs read-validate-write as one unit,
// re-running the whole unit when it loses a race on the invoice counter.
func (s *SaleService) RecordSale(ctx context.Context, req models.RecordSaleRequest) (*models.Sale, error) {
	start := time.Now()
	if req.BranchID == "" {
		req.BranchID = s.Config.DefaultBranch
	}
	logger := log.WithFields(log.Fields{
		"branch":   req.BranchID,
		"customer": req.CustomerID,
		"payment":  req.PaymentMethod,
		"lines":    len(req.Cart),
	})

	totals, err := ValidateRequest(req, s.Conv)
	if err != nil {
		s.fail(logger, err)
		return nil, err
	}

	if !s.Store.Transactional() {
		logger.Warn("[Sale] Store is not transactional, applying sale sequentially")
	}

	saleID := uuid.NewString()
	policy := retry.Policy{
		MaxAttempts: s.Config.MaxAttempts,
		Backoff:     s.Config.RetryBackoff,
		Retryable:   apperr.Retryable,
		OnRetry: func(attempt int, err error) {
			metrics.SaleRetries.Inc()
			logger.WithError(err).WithField("attempt", attempt).Warn("[Sale] Contention, retrying sale")
		},
	}

	sale, err := retry.Do(ctx, policy, func(ctx context.Context, _ int) (*models.Sale, error) {
		metrics.SaleAttempts.Inc()
		return s.attempt(ctx, req, totals, saleID)
	})
	if err != nil {
		s.fail(logger, err)
		return nil, err
	}

	metrics.SalesRecorded.WithLabelValues(sale.BranchID, string(sale.Status)).Inc()
	metrics.SaleAmount.WithLabelValues(sale.BranchID).Add(sale.TotalAmount.InexactFloat64())
	metrics.SaleDuration.Observe(time.Since(start).Seconds())

	logger.WithFields(log.Fields{
		"invoice": sale.InvoiceNumber,
		"total":   sale.TotalAmount.StringFixed(2),
		"status":  sale.Status,
	}).Info("[Sale] Sale recorded")

	s.afterCommit(ctx, sale)
	return sale, nil
}

func (s *SaleService) attempt(ctx context.Context, req models.RecordSaleRequest, totals SaleTotals, saleID string) (*models.Sale, error) {
	var plan *SalePlan
	err := s.Store.Atomic(ctx, req.BranchID, func(ctx context.Context, r repositories.Repos) error {
		snap, err := readSnapshot(ctx, r, req, s.Config.Options.CustomItemPrefix)
		if err != nil {
			return err
		}

		plan, err = AttemptSale(snap, req, totals, saleID, s.Now(), s.Config.Options)
		if err != nil {
			return err
		}
		return applyPlan(ctx, r, plan)
	})
	if err != nil {
		return nil, err
	}
	return plan.Sale, nil
}

func readSnapshot(ctx context.Context, r repositories.Repos, req models.RecordSaleRequest, customPrefix string) (SaleSnapshot, error) {
	var ids []string
	seen := make(map[string]bool)
	for _, line := range req.Cart {
		if line.IsCustom(customPrefix) || seen[line.ProductID] {
			continue
		}
		seen[line.ProductID] = true
		ids = append(ids, line.ProductID)
	}

	products, err := r.Products.GetByIDs(ctx, ids)
	if err != nil {
		return SaleSnapshot{}, err
	}

	customer, err := r.Customers.GetByID(ctx, req.CustomerID)
	if err != nil {
		return SaleSnapshot{}, err
	}

	counter, err := r.Sequences.Current(ctx)
	if err != nil {
		return SaleSnapshot{}, err
	}

	return SaleSnapshot{Products: products, Customer: customer, Counter: counter}, nil
}

// applyPlan writes counter, stock, ledger, then the sale itself. The counter
// goes first so a lost race leaves nothing else written on stores without
// rollback.
func applyPlan(ctx context.Context, r repositories.Repos, plan *SalePlan) error {
	seq, err := r.Sequences.Next(ctx)
	if err != nil {
		return err
	}
	if seq != plan.Sale.InvoiceSequence {
		return apperr.Contention(fmt.Errorf("invoice counter moved: expected %d, got %d", plan.Sale.InvoiceSequence, seq))
	}

	for _, d := range plan.Decrements {
		if err := r.Products.DecrementStock(ctx, d.ProductID, d.Quantity); err != nil {
			return err
		}
	}

	if len(plan.Ledger.Entries) > 0 {
		if err := r.Customers.AppendTransactions(ctx, plan.Sale.CustomerID, plan.Ledger.Entries, plan.NewTotalDebt); err != nil {
			return err
		}
	}

	return r.Sales.Create(ctx, plan.Sale)
}

func (s *SaleService) fail(logger *log.Entry, err error) {
	kind := apperr.KindOf(err)
	metrics.SaleFailures.WithLabelValues(kind.String()).Inc()

	entry := logger.WithError(err).WithField("reason", kind.String())
	if entity := apperr.EntityOf(err); entity != "" {
		entry = entry.WithField("entity", entity)
	}
	switch kind {
	case apperr.KindStorage, apperr.KindSequenceContention, apperr.KindUnknown:
		entry.Error("[Sale] Sale failed")
	default:
		entry.Info("[Sale] Sale rejected")
	}
}

func (s *SaleService) afterCommit(ctx context.Context, sale *models.Sale) {
	if s.Cache != nil {
		s.Cache.InvalidateBranch(ctx, sale.BranchID)
	}
	if s.Events == nil {
		return
	}

	now := s.Now()
	s.Events.Publish(models.Event{Type: models.EventSaleRecorded, BranchID: sale.BranchID, ID: sale.ID, At: now})
	if sale.Remaining().IsPositive() {
		s.Events.Publish(models.Event{Type: models.EventCustomerUpdated, BranchID: sale.BranchID, ID: sale.CustomerID, At: now})
	}
	seen := make(map[string]bool)
	for _, it := range sale.Items {
		if it.IsCustom(s.Config.Options.CustomItemPrefix) || seen[it.ProductID] {
			continue
		}
		seen[it.ProductID] = true
		s.Events.Publish(models.Event{Type: models.EventProductUpdated, BranchID: sale.BranchID, ID: it.ProductID, At: now})
	}
}
