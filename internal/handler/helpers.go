package handler

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/curiohq/curio/internal/model"
	"github.com/curiohq/curio/internal/store"
)

// timeNow is swappable for tests.
var timeNow = func() time.Time { return time.Now().UTC() }

// writeJSON serializes v and writes it with the given HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// respondError writes the standard `{success:false, message}` envelope.
func respondError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, model.Response{Success: false, Message: message})
}

// respondStoreError maps store errors onto HTTP statuses. A busy database
// is a retryable 503, never a 500.
func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, store.ErrBusy):
		respondError(w, http.StatusServiceUnavailable, "Server busy, please retry")
	default:
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// readJSON decodes the request body into v. The body is closed after
// decoding regardless of success or failure.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// clientIP is the caller address used for token binding. RealIP middleware
// has already rewritten RemoteAddr from X-Forwarded-For where trusted.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
