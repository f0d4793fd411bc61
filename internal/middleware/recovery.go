package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"pos-backend/pkg/utils"
)

// PanicRecovery turns a handler panic into a 500 with the usual error body.
func PanicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.WithFields(log.Fields{
					"method": r.Method,
					"route":  routeTemplate(r),
					"panic":  fmt.Sprint(rec),
					"stack":  string(debug.Stack()),
				}).Error("[Recovery] Panic recovered")

				utils.Error(w, http.StatusInternalServerError, "internal", "Internal server error", "")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
