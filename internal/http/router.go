package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pos-backend/internal/handlers"
	"pos-backend/internal/middleware"
)

type Handlers struct {
	Sales     *handlers.SaleHandler
	Products  *handlers.ProductHandler
	Customers *handlers.CustomerHandler
	Reports   *handlers.ReportHandler
	Health    *handlers.HealthHandler
	// Realtime serves the terminal WebSocket; nil disables the route.
	Realtime http.HandlerFunc
}

func NewRouter(h Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.PanicRecovery)
	r.Use(middleware.MetricsMiddleware)
	r.Use(middleware.RequestLogging)

	// Health and metrics
	r.HandleFunc("/health", h.Health.BasicHealth).Methods("GET")
	r.HandleFunc("/health/ready", h.Health.ReadinessHealth).Methods("GET")
	r.HandleFunc("/health/detailed", h.Health.DetailedHealth).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	if h.Realtime != nil {
		r.HandleFunc("/ws", h.Realtime)
	}

	branchAPI := r.PathPrefix("/api/branches/{branch}").Subrouter()

	// Sales
	branchAPI.HandleFunc("/sales", h.Sales.RecordSale).Methods("POST")
	branchAPI.HandleFunc("/sales", h.Sales.ListSales).Methods("GET")
	branchAPI.HandleFunc("/sales/invoice/{number}", h.Sales.GetByInvoice).Methods("GET")
	branchAPI.HandleFunc("/sales/{id}", h.Sales.GetSale).Methods("GET")
	branchAPI.HandleFunc("/sales/{id}/receipt.pdf", h.Sales.Receipt).Methods("GET")

	// Reports
	branchAPI.HandleFunc("/reports/sales", h.Reports.SalesReport).Methods("GET")

	// Products
	branchAPI.HandleFunc("/products", h.Products.ListProducts).Methods("GET")
	branchAPI.HandleFunc("/products", h.Products.CreateProduct).Methods("POST")
	branchAPI.HandleFunc("/products/low-stock", h.Products.LowStock).Methods("GET")
	branchAPI.HandleFunc("/products/{id}", h.Products.GetProduct).Methods("GET")
	branchAPI.HandleFunc("/products/{id}/adjust-stock", h.Products.AdjustStock).Methods("POST")

	// Customers and ledger
	branchAPI.HandleFunc("/customers", h.Customers.ListCustomers).Methods("GET")
	branchAPI.HandleFunc("/customers", h.Customers.CreateCustomer).Methods("POST")
	branchAPI.HandleFunc("/customers/debtors", h.Customers.ListDebtors).Methods("GET")
	branchAPI.HandleFunc("/customers/{id}", h.Customers.GetCustomer).Methods("GET")
	branchAPI.HandleFunc("/customers/{id}/statement", h.Customers.Statement).Methods("GET")
	branchAPI.HandleFunc("/customers/{id}/statement.pdf", h.Customers.StatementPDF).Methods("GET")
	branchAPI.HandleFunc("/customers/{id}/payments", h.Customers.RecordPayment).Methods("POST")
	branchAPI.HandleFunc("/customers/{id}/transactions/{txID}", h.Customers.DeleteTransaction).Methods("DELETE")

	return r
}
