package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"pos-backend/internal/apperr"
	"pos-backend/internal/models"
	"pos-backend/internal/repositories"
	"pos-backend/internal/retry"
)

type CatalogService struct {
	Store  repositories.Store
	Events EventPublisher
	Retry  retry.Policy
}

func NewCatalogService(store repositories.Store) *CatalogService {
	return &CatalogService{Store: store, Retry: defaultWritePolicy()}
}

func (s *CatalogService) CreateProduct(ctx context.Context, branchID string, req models.CreateProductRequest) (*models.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.InvalidInput("product name is required")
	}
	if req.UnitSalePrice.IsNegative() || req.UnitCost.IsNegative() {
		return nil, apperr.InvalidInput("prices cannot be negative")
	}
	if req.StockQuantity < 0 {
		return nil, apperr.InvalidInput("stock cannot be negative")
	}

	threshold := req.LowStockThreshold
	if threshold <= 0 {
		threshold = models.DefaultLowStockThreshold
	}

	p := &models.Product{
		ID:                uuid.NewString(),
		Name:              name,
		Category:          strings.TrimSpace(req.Category),
		Barcode:           strings.TrimSpace(req.Barcode),
		Description:       req.Description,
		UnitSalePrice:     req.UnitSalePrice,
		UnitCost:          req.UnitCost,
		StockQuantity:     req.StockQuantity,
		LowStockThreshold: threshold,
	}
	if err := s.Store.Branch(branchID).Products.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, branchID, id string) (*models.Product, error) {
	return s.Store.Branch(branchID).Products.GetByID(ctx, id)
}

func (s *CatalogService) ListProducts(ctx context.Context, branchID string) ([]*models.Product, error) {
	return s.Store.Branch(branchID).Products.List(ctx)
}

func (s *CatalogService) LowStock(ctx context.Context, branchID string) ([]*models.Product, error) {
	return s.Store.Branch(branchID).Products.ListLowStock(ctx)
}

// AdjustStock applies a manual restock or correction under the same
// isolation as sales, so the two cannot lose each other's updates.
func (s *CatalogService) AdjustStock(ctx context.Context, branchID, id string, req models.AdjustStockRequest) (*models.Product, error) {
	if req.Delta == 0 {
		return nil, apperr.InvalidInput("delta must not be zero")
	}

	var updated *models.Product
	err := atomicWithRetry(ctx, s.Store, branchID, "adjust_stock", s.Retry, func(ctx context.Context, r repositories.Repos) error {
		p, err := r.Products.AdjustStock(ctx, id, req.Delta)
		if err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"branch":  branchID,
		"product": id,
		"delta":   req.Delta,
		"stock":   updated.StockQuantity,
		"reason":  req.Reason,
	}).Info("[Catalog] Stock adjusted")

	if s.Events != nil {
		s.Events.Publish(models.Event{Type: models.EventProductUpdated, BranchID: branchID, ID: id, At: updated.UpdatedAt})
	}
	return updated, nil
}
