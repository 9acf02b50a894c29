package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/waconsole/waconsole/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Redis: config.RedisConfig{Addr: "localhost:6379"},
		Auth: config.AuthConfig{
			JWTSecret:  "test-secret",
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 24 * time.Hour,
		},
		Gateway: config.GatewayConfig{
			BaseURL: "http://localhost:3000",
			Timeout: time.Second,
		},
	}
}

// Protected routes answer 401 without a token; an unmounted path would
// answer 404. That distinction pins the public URL layout.
func TestRouteLayout(t *testing.T) {
	h := NewRouter(nil, nil, testConfig()).Setup()

	const id = "5f0c9cf6-0a5e-4c6a-9a5d-5b1a2f3c4d5e"
	cases := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},

		{http.MethodGet, "/api/v1/whatsapp/devices", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/whatsapp/devices/" + id, http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/whatsapp/devices/" + id + "/status", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/whatsapp/devices/" + id + "/qr", http.StatusUnauthorized},
		{http.MethodPost, "/api/v1/whatsapp/devices", http.StatusUnauthorized},
		{http.MethodPost, "/api/v1/whatsapp/devices/" + id + "/disconnect", http.StatusUnauthorized},
		{http.MethodPost, "/api/v1/whatsapp/send", http.StatusUnauthorized},

		{http.MethodGet, "/api/v1/messages", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/messages/" + id, http.StatusUnauthorized},

		{http.MethodGet, "/api/v1/users", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/groups", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/contacts", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/webhooks", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/admin/audit", http.StatusUnauthorized},

		// Devices were never documented at the API root.
		{http.MethodGet, "/api/v1/devices", http.StatusNotFound},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Errorf("%s %s = %d, want %d", tc.method, tc.path, rec.Code, tc.want)
		}
	}
}
