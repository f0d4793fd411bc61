package handlers

import (
	"net/http"

	"pos-backend/internal/services"
	"pos-backend/internal/timeutil"
	"pos-backend/pkg/utils"
)

type ReportHandler struct {
	History *services.SaleHistoryService
}

func NewReportHandler(history *services.SaleHistoryService) *ReportHandler {
	return &ReportHandler{History: history}
}

// SalesReport aggregates sales between ?from and ?to (YYYY-MM-DD, inclusive).
// Both default to today.
func (h *ReportHandler) SalesReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := timeutil.Now(), timeutil.Now()

	if raw := q.Get("from"); raw != "" {
		parsed, err := timeutil.ParseDate(raw)
		if err != nil {
			badRequest(w, "Invalid from date, expected YYYY-MM-DD")
			return
		}
		from = parsed
	}
	if raw := q.Get("to"); raw != "" {
		parsed, err := timeutil.ParseDate(raw)
		if err != nil {
			badRequest(w, "Invalid to date, expected YYYY-MM-DD")
			return
		}
		to = parsed
	}

	from, to = timeutil.StartOfDay(from), timeutil.EndOfDay(to)
	if to.Before(from) {
		badRequest(w, "from must not be after to")
		return
	}

	report, err := h.History.Report(r.Context(), branchOf(r), from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.JSON(w, http.StatusOK, report)
}
