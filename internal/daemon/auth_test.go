package daemon

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"visuallab/internal/services"
)

func TestAuthMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	cases := []struct {
		name   string
		token  string
		header string
		want   int
	}{
		{"no token configured", "", "", http.StatusNoContent},
		{"missing header", "abc", "", http.StatusUnauthorized},
		{"wrong scheme", "abc", "Basic abc", http.StatusUnauthorized},
		{"wrong token", "abc", "Bearer abd", http.StatusUnauthorized},
		{"valid", "abc", "Bearer abc", http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			authMiddleware(tc.token, ok).ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = services.RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req.Header.Set("X-Request-ID", "caller-id")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if seen != "caller-id" || w.Header().Get("X-Request-ID") != "caller-id" {
		t.Fatalf("request id not propagated: ctx=%q header=%q", seen, w.Header().Get("X-Request-ID"))
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	if seen == "" || seen == "caller-id" || w.Header().Get("X-Request-ID") != seen {
		t.Fatalf("expected generated id, got %q", seen)
	}
}
