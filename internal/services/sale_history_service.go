package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"pos-backend/internal/models"
	"pos-backend/internal/repositories"
)

const (
	saleListTTL = 2 * time.Minute
	reportTTL   = 10 * time.Minute
	topProducts = 10

	salesPageSize = 500
)

// SaleHistoryService is the read side of the sale log.
type SaleHistoryService struct {
	Store repositories.Store
	Cache BranchCache
}

func NewSaleHistoryService(store repositories.Store, cache BranchCache) *SaleHistoryService {
	return &SaleHistoryService{Store: store, Cache: cache}
}

func (s *SaleHistoryService) GetSale(ctx context.Context, branchID, id string) (*models.Sale, error) {
	return s.Store.Branch(branchID).Sales.GetByID(ctx, id)
}

func (s *SaleHistoryService) GetByInvoice(ctx context.Context, branchID, number string) (*models.Sale, error) {
	return s.Store.Branch(branchID).Sales.GetByInvoiceNumber(ctx, number)
}

func (s *SaleHistoryService) ListSales(ctx context.Context, branchID string, filter models.SaleFilter) ([]*models.Sale, error) {
	key := SalesCacheKey(branchID, filter)
	var sales []*models.Sale
	if s.cached(ctx, key, &sales) {
		return sales, nil
	}

	sales, err := s.Store.Branch(branchID).Sales.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, sales, saleListTTL)
	return sales, nil
}

// Report aggregates every sale in [from, to].
func (s *SaleHistoryService) Report(ctx context.Context, branchID string, from, to time.Time) (*models.SalesReport, error) {
	key := fmt.Sprintf("reports:%s:%d:%d", branchID, from.Unix(), to.Unix())
	var report models.SalesReport
	if s.cached(ctx, key, &report) {
		return &report, nil
	}

	sales, err := ListAllSales(ctx, s.Store.Branch(branchID).Sales, models.SaleFilter{From: &from, To: &to}, salesPageSize)
	if err != nil {
		return nil, err
	}

	built := BuildSalesReport(branchID, from, to, sales)
	s.store(ctx, key, built, reportTTL)
	return built, nil
}

// ListAllSales pages through every sale matching filter, newest first.
// filter.Limit and filter.Offset are ignored. A sale that moves to a later
// page while paging is only returned once.
func ListAllSales(ctx context.Context, repo repositories.SaleRepository, filter models.SaleFilter, pageSize int) ([]*models.Sale, error) {
	if pageSize <= 0 {
		pageSize = salesPageSize
	}
	filter.Limit = pageSize
	filter.Offset = 0

	var out []*models.Sale
	seen := make(map[string]bool)
	for {
		page, err := repo.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		for _, sale := range page {
			if seen[sale.ID] {
				continue
			}
			seen[sale.ID] = true
			out = append(out, sale)
		}
		if len(page) < pageSize {
			return out, nil
		}
		filter.Offset += pageSize
	}
}

// BuildSalesReport computes revenue, cost and profit. Profit per sale is
// subtotal minus frozen cost minus discount.
func BuildSalesReport(branchID string, from, to time.Time, sales []*models.Sale) *models.SalesReport {
	report := &models.SalesReport{
		BranchID:      branchID,
		From:          from,
		To:            to,
		Revenue:       decimal.Zero,
		Discounts:     decimal.Zero,
		Cost:          decimal.Zero,
		Profit:        decimal.Zero,
		CollectedNow:  decimal.Zero,
		DebtCreated:   decimal.Zero,
		CountByStatus: make(map[models.SaleStatus]int),
	}

	byProduct := make(map[string]*models.ProductSalesSummary)
	for _, sale := range sales {
		report.SaleCount++
		report.CountByStatus[sale.Status]++
		report.Revenue = report.Revenue.Add(sale.TotalAmount)
		report.Discounts = report.Discounts.Add(sale.DiscountAmount)
		report.Cost = report.Cost.Add(sale.TotalCost())
		report.Profit = report.Profit.Add(sale.Profit())
		report.CollectedNow = report.CollectedNow.Add(sale.AmountPaid)
		if rem := sale.Remaining(); rem.IsPositive() {
			report.DebtCreated = report.DebtCreated.Add(rem)
		}

		for _, it := range sale.Items {
			summary, ok := byProduct[it.ProductID]
			if !ok {
				summary = &models.ProductSalesSummary{ProductID: it.ProductID, Name: it.Name, Revenue: decimal.Zero}
				byProduct[it.ProductID] = summary
			}
			summary.Quantity += it.Quantity
			summary.Revenue = summary.Revenue.Add(it.LineTotal())
		}
	}

	for _, summary := range byProduct {
		report.TopProducts = append(report.TopProducts, *summary)
	}
	sort.Slice(report.TopProducts, func(i, j int) bool {
		a, b := report.TopProducts[i], report.TopProducts[j]
		if a.Quantity != b.Quantity {
			return a.Quantity > b.Quantity
		}
		return a.ProductID < b.ProductID
	})
	if len(report.TopProducts) > topProducts {
		report.TopProducts = report.TopProducts[:topProducts]
	}
	return report
}

// SalesCacheKey keys a sale list query; all keys of a branch share the
// "sales:<branch>:" prefix so a write can drop them together.
func SalesCacheKey(branchID string, f models.SaleFilter) string {
	var from, to int64
	if f.From != nil {
		from = f.From.Unix()
	}
	if f.To != nil {
		to = f.To.Unix()
	}
	return fmt.Sprintf("sales:%s:%d:%d:%s:%s:%d:%d", branchID, from, to, f.CustomerID, f.Status, f.Limit, f.Offset)
}

func (s *SaleHistoryService) cached(ctx context.Context, key string, dst interface{}) bool {
	if s.Cache == nil {
		return false
	}
	data, ok := s.Cache.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		log.WithError(err).WithField("key", key).Warn("[Cache] Dropping undecodable entry")
		return false
	}
	return true
}

func (s *SaleHistoryService) store(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	if s.Cache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.Cache.Set(ctx, key, data, ttl)
}
