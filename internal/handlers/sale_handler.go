package handlers

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"pos-backend/internal/models"
	"pos-backend/internal/services"
	"pos-backend/internal/timeutil"
	"pos-backend/pkg/utils"
)

type SaleHandler struct {
	Sales    *services.SaleService
	History  *services.SaleHistoryService
	Receipts *services.ReceiptService
}

func NewSaleHandler(sales *services.SaleService, history *services.SaleHistoryService, receipts *services.ReceiptService) *SaleHandler {
	return &SaleHandler{Sales: sales, History: history, Receipts: receipts}
}

func (h *SaleHandler) RecordSale(w http.ResponseWriter, r *http.Request) {
	var req models.RecordSaleRequest
	if !decode(w, r, &req) {
		return
	}
	req.BranchID = branchOf(r)

	sale, err := h.Sales.RecordSale(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.JSON(w, http.StatusCreated, sale)
}

func (h *SaleHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	filter, err := parseSaleFilter(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	sales, err := h.History.ListSales(r.Context(), branchOf(r), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.JSON(w, http.StatusOK, nonNil(sales))
}

func (h *SaleHandler) GetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := h.History.GetSale(r.Context(), branchOf(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.JSON(w, http.StatusOK, sale)
}

func (h *SaleHandler) GetByInvoice(w http.ResponseWriter, r *http.Request) {
	sale, err := h.History.GetByInvoice(r.Context(), branchOf(r), mux.Vars(r)["number"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.JSON(w, http.StatusOK, sale)
}

// Receipt streams the printable PDF of a sale.
func (h *SaleHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	branch := branchOf(r)
	sale, err := h.History.GetSale(r.Context(), branch, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	pdf, err := h.Receipts.RenderPDF(sale, branch)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", "receipt-"+sale.InvoiceNumber+".pdf"))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

func parseSaleFilter(r *http.Request) (models.SaleFilter, error) {
	q := r.URL.Query()
	filter := models.SaleFilter{
		CustomerID: q.Get("customer_id"),
		Status:     models.SaleStatus(q.Get("status")),
	}

	if raw := q.Get("from"); raw != "" {
		from, err := timeutil.ParseDate(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid from date %q", raw)
		}
		from = timeutil.StartOfDay(from)
		filter.From = &from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := timeutil.ParseDate(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid to date %q", raw)
		}
		to = timeutil.EndOfDay(to)
		filter.To = &to
	}

	var err error
	if filter.Limit, err = queryInt(r, "limit", 100); err != nil || filter.Limit < 0 {
		return filter, fmt.Errorf("invalid limit")
	}
	if filter.Offset, err = queryInt(r, "offset", 0); err != nil || filter.Offset < 0 {
		return filter, fmt.Errorf("invalid offset")
	}
	return filter, nil
}
