package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// RequestLogging writes one structured log line per API request.
func RequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip health checks, metrics scrapes and the websocket
		if shouldSkipLogging(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		fields := log.Fields{
			"method":      r.Method,
			"route":       routeTemplate(r),
			"path":        sanitizePath(r.URL.Path),
			"status":      wrapped.statusCode,
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000.0,
			"bytes":       wrapped.bytesWritten,
			"ip":          getClientIP(r),
		}
		if branch := mux.Vars(r)["branch"]; branch != "" {
			fields["branch"] = branch
		}
		entry := log.WithFields(fields)

		switch {
		case wrapped.statusCode >= 500:
			entry.Error("[API] Request failed")
		case wrapped.statusCode >= 400:
			entry.Warn("[API] Request rejected")
		default:
			entry.Info("[API] Request")
		}
	})
}

var quietPrefixes = []string{"/health", "/metrics", "/ws", "/favicon.ico"}

func shouldSkipLogging(path string) bool {
	for _, prefix := range quietPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

const maxLoggedPath = 256

func sanitizePath(path string) string {
	if len(path) > maxLoggedPath {
		return path[:maxLoggedPath] + "..."
	}
	return path
}

// getClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the socket peer.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
