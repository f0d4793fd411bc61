package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

func TestPanicRecovery(t *testing.T) {
	h := PanicRecovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/branches/main/sales", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error": "Internal server error", "code": "internal"}`, rec.Body.String())
}

func TestRouteTemplate(t *testing.T) {
	var got string
	r := mux.NewRouter()
	r.HandleFunc("/api/branches/{branch}/sales/{id}", func(w http.ResponseWriter, r *http.Request) {
		got = routeTemplate(r)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/branches/main/sales/abc", nil))
	assert.Equal(t, "/api/branches/{branch}/sales/{id}", got)
}

func TestRequestLoggingKeepsStatus(t *testing.T) {
	h := RequestLogging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{}`))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/branches/main/sales", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	assert.Equal(t, "10.0.0.1", getClientIP(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.5:5555"
	assert.Equal(t, "192.168.1.5", getClientIP(req))
}

func TestRequestLoggingHelpers(t *testing.T) {
	assert.True(t, shouldSkipLogging("/health/ready"))
	assert.True(t, shouldSkipLogging("/ws"))
	assert.False(t, shouldSkipLogging("/api/branches/main/sales"))

	long := "/" + strings.Repeat("a", 400)
	assert.Len(t, sanitizePath(long), maxLoggedPath+3)
	assert.Equal(t, "/short", sanitizePath("/short"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[::1]:8080"
	assert.Equal(t, "::1", getClientIP(req))
}
