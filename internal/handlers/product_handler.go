package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"pos-backend/internal/models"
	"pos-backend/internal/services"
	"pos-backend/pkg/utils"
)

type ProductHandler struct {
	Service *services.CatalogService
}

func NewProductHandler(s *services.CatalogService) *ProductHandler {
	return &ProductHandler{Service: s}
}

func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProductRequest
	if !decode(w, r, &req) {
		return
	}

	product, err := h.Service.CreateProduct(r.Context(), branchOf(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.JSON(w, http.StatusCreated, product)
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.Service.GetProduct(r.Context(), branchOf(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.JSON(w, http.StatusOK, product)
}

func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Service.ListProducts(r.Context(), branchOf(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.JSON(w, http.StatusOK, nonNil(products))
}

func (h *ProductHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.Service.LowStock(r.Context(), branchOf(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.JSON(w, http.StatusOK, nonNil(products))
}

func (h *ProductHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req models.AdjustStockRequest
	if !decode(w, r, &req) {
		return
	}

	product, err := h.Service.AdjustStock(r.Context(), branchOf(r), mux.Vars(r)["id"], req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.JSON(w, http.StatusOK, product)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
