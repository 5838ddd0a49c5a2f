package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORS(t *testing.T) {
	t.Parallel()

	teapot := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name        string
		origins     []string
		method      string
		origin      string
		preflight   bool
		wantStatus  int
		wantAllowed string
	}{
		{name: "preflight from listed origin", origins: []string{"http://localhost:5173/"}, method: http.MethodOptions, origin: "http://localhost:5173", preflight: true, wantStatus: http.StatusNoContent, wantAllowed: "http://localhost:5173"},
		{name: "preflight from unlisted origin", origins: []string{"http://localhost:5173"}, method: http.MethodOptions, origin: "http://evil.local", preflight: true, wantStatus: http.StatusForbidden},
		{name: "simple request from unlisted origin passes without headers", origins: []string{"http://localhost:5173"}, method: http.MethodPost, origin: "http://evil.local", wantStatus: http.StatusTeapot},
		{name: "wildcard", origins: []string{" * "}, method: http.MethodGet, origin: "http://shop.example", wantStatus: http.StatusTeapot, wantAllowed: "*"},
		{name: "no origin header", origins: nil, method: http.MethodGet, wantStatus: http.StatusTeapot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/holds", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()

			CORS(tt.origins, teapot).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantAllowed, rec.Header().Get("Access-Control-Allow-Origin"))
			if tt.wantStatus == http.StatusNoContent {
				assert.Equal(t, corsAllowMethods, rec.Header().Get("Access-Control-Allow-Methods"))
			}
		})
	}
}
