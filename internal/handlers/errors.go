package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"pos-backend/internal/apperr"
	"pos-backend/pkg/utils"
)

// statusFor maps an engine failure to its HTTP status.
func statusFor(err error) int {
	switch kind := apperr.KindOf(err); {
	case apperr.IsValidation(err):
		return http.StatusBadRequest
	case kind == apperr.KindProductNotFound, kind == apperr.KindCustomerNotFound,
		kind == apperr.KindSaleNotFound, kind == apperr.KindTransactionNotFound:
		return http.StatusNotFound
	case kind == apperr.KindInsufficientStock:
		return http.StatusConflict
	case kind == apperr.KindSequenceContention:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.WithError(err).WithField("path", r.URL.Path).Error("[API] Internal error")
		message = "Internal server error"
	}
	utils.Error(w, status, apperr.KindOf(err).String(), message, apperr.EntityOf(err))
}

func badRequest(w http.ResponseWriter, message string) {
	utils.Error(w, http.StatusBadRequest, apperr.KindInvalidInput.String(), message, "")
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		badRequest(w, "Invalid request body")
		return false
	}
	return true
}

func branchOf(r *http.Request) string {
	return mux.Vars(r)["branch"]
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
