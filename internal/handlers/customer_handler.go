package handlers

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"pos-backend/internal/models"
	"pos-backend/internal/services"
	"pos-backend/pkg/utils"
)

type CustomerHandler struct {
	Service  *services.LedgerService
	Receipts *services.ReceiptService
}

func NewCustomerHandler(s *services.LedgerService, receipts *services.ReceiptService) *CustomerHandler {
	return &CustomerHandler{Service: s, Receipts: receipts}
}

func (h *CustomerHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCustomerRequest
	if !decode(w, r, &req) {
		return
	}

	customer, err := h.Service.CreateCustomer(r.Context(), branchOf(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.JSON(w, http.StatusCreated, customer)
}

func (h *CustomerHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := h.Service.GetCustomer(r.Context(), branchOf(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.JSON(w, http.StatusOK, customer)
}

func (h *CustomerHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.Service.ListCustomers(r.Context(), branchOf(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.JSON(w, http.StatusOK, nonNil(customers))
}

func (h *CustomerHandler) ListDebtors(w http.ResponseWriter, r *http.Request) {
	customers, err := h.Service.ListDebtors(r.Context(), branchOf(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.JSON(w, http.StatusOK, nonNil(customers))
}

func (h *CustomerHandler) Statement(w http.ResponseWriter, r *http.Request) {
	statement, err := h.Service.Statement(r.Context(), branchOf(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.JSON(w, http.StatusOK, statement)
}

func (h *CustomerHandler) StatementPDF(w http.ResponseWriter, r *http.Request) {
	statement, err := h.Service.Statement(r.Context(), branchOf(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	pdf, err := h.Receipts.RenderStatementPDF(statement)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", "statement-"+statement.Customer.ID+".pdf"))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

func (h *CustomerHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req models.RecordPaymentRequest
	if !decode(w, r, &req) {
		return
	}

	customer, err := h.Service.RecordPayment(r.Context(), branchOf(r), mux.Vars(r)["id"], req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.JSON(w, http.StatusOK, customer)
}

func (h *CustomerHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	customer, err := h.Service.DeleteTransaction(r.Context(), branchOf(r), vars["id"], vars["txID"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.JSON(w, http.StatusOK, customer)
}
