package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func protected(cfg AuthConfig) http.Handler {
	return Auth(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestAuth(t *testing.T) {
	cfg := AuthConfig{Enabled: true, APIKey: "secret"}

	tests := []struct {
		name     string
		header   string
		value    string
		wantCode int
	}{
		{"missing key", "", "", http.StatusUnauthorized},
		{"wrong X-API-Key", "X-API-Key", "nope", http.StatusUnauthorized},
		{"correct X-API-Key", "X-API-Key", "secret", http.StatusOK},
		{"correct bearer token", "Authorization", "Bearer secret", http.StatusOK},
		{"bearer casing is ignored", "Authorization", "bearer secret", http.StatusOK},
		{"wrong bearer token", "Authorization", "Bearer nope", http.StatusUnauthorized},
		{"non-bearer authorization", "Authorization", "Basic abc", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/production", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rr := httptest.NewRecorder()
			protected(cfg).ServeHTTP(rr, req)
			assert.Equal(t, tt.wantCode, rr.Code)
		})
	}
}

func TestAuth_Disabled(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/production", nil)
	rr := httptest.NewRecorder()

	protected(AuthConfig{Enabled: false}).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"https://plans.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "https://plans.example.com")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "https://plans.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("disallowed origin gets no CORS headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/production", nil)
		req.Header.Set("Origin", "https://plans.example.com")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "PUT")
	})

	t.Run("wildcard echoes the origin", func(t *testing.T) {
		wildcard := CORS([]string{"*"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "https://anywhere.example.com")
		rr := httptest.NewRecorder()
		wildcard.ServeHTTP(rr, req)

		assert.Equal(t, "https://anywhere.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
	})
}
