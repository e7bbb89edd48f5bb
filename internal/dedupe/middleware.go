// ABOUTME: HTTP middleware rejecting repeated POSTs that reuse an Idempotency-Key
// ABOUTME: Keys are scoped per caller and path; failed requests release their key

package dedupe

import (
	"encoding/json"
	"net/http"
	"strings"
)

// HeaderName is the request header carrying the client's submission key.
const HeaderName = "Idempotency-Key"

// Middleware returns a handler that answers 409 when a POST repeats an
// Idempotency-Key already seen for the same caller and path. identity names
// the caller and may be nil. Requests without the header pass through. When
// the wrapped handler answers with a status >= 400 the key is released so the
// client can retry.
func Middleware(c *Cache, identity func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			idem := strings.TrimSpace(r.Header.Get(HeaderName))
			if r.Method != http.MethodPost || idem == "" {
				next.ServeHTTP(w, r)
				return
			}

			who := ""
			if identity != nil {
				who = identity(r)
			}
			key := who + "\x00" + r.URL.Path + "\x00" + idem

			if c.CheckAndMark(key) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusConflict)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "duplicate submission"})
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			if rec.status >= http.StatusBadRequest {
				c.Forget(key)
			}
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}
