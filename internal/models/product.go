package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const DefaultLowStockThreshold = 10

type Product struct {
	ID                string          `json:"id"`
	BranchID          string          `json:"branch_id"`
	Name              string          `json:"name"`
	Category          string          `json:"category,omitempty"`
	Barcode           string          `json:"barcode,omitempty"`
	Description       string          `json:"description,omitempty"`
	UnitSalePrice     decimal.Decimal `json:"unit_sale_price"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	StockQuantity     int             `json:"stock_quantity"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (p *Product) IsLowStock() bool {
	return p.StockQuantity <= p.LowStockThreshold
}

type CreateProductRequest struct {
	Name              string          `json:"name"`
	Category          string          `json:"category"`
	Barcode           string          `json:"barcode"`
	Description       string          `json:"description"`
	UnitSalePrice     decimal.Decimal `json:"unit_sale_price"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	StockQuantity     int             `json:"stock_quantity"`
	LowStockThreshold int             `json:"low_stock_threshold"`
}

// AdjustStockRequest applies a signed correction (restock > 0, shrinkage < 0).
type AdjustStockRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}
