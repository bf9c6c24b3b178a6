package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func serve(t *testing.T, cfg Config, path, key string) int {
	t.Helper()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rec := httptest.NewRecorder()
	Middleware(cfg, next).ServeHTTP(rec, req)
	return rec.Code
}

func TestOpenModeAllowsAll(t *testing.T) {
	if code := serve(t, Config{}, "/v1/tables", ""); code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
}

func TestBackendKeyRequired(t *testing.T) {
	cfg := Config{BackendKeys: KeySet([]string{"bk"})}
	if code := serve(t, cfg, "/v1/tables", ""); code != http.StatusUnauthorized {
		t.Fatalf("no key code = %d", code)
	}
	if code := serve(t, cfg, "/v1/tables", "wrong"); code != http.StatusUnauthorized {
		t.Fatalf("wrong key code = %d", code)
	}
	if code := serve(t, cfg, "/v1/tables", "bk"); code != http.StatusOK {
		t.Fatalf("valid key code = %d", code)
	}
}

func TestAdminPathNeedsAdminKey(t *testing.T) {
	cfg := Config{
		BackendKeys: KeySet([]string{"bk"}),
		AdminKeys:   KeySet([]string{"adm"}),
	}
	if code := serve(t, cfg, "/v1/admin/tables/x/purge", "bk"); code != http.StatusForbidden {
		t.Fatalf("backend key on admin path = %d", code)
	}
	if code := serve(t, cfg, "/v1/admin/tables/x/purge", "adm"); code != http.StatusOK {
		t.Fatalf("admin key code = %d", code)
	}
	// admin keys also work on regular paths
	if code := serve(t, cfg, "/v1/tables", "adm"); code != http.StatusOK {
		t.Fatalf("admin key on backend path = %d", code)
	}
}

func TestNonAPIPathsBypassAuth(t *testing.T) {
	cfg := Config{BackendKeys: KeySet([]string{"bk"})}
	if code := serve(t, cfg, "/healthz", ""); code != http.StatusOK {
		t.Fatalf("healthz code = %d", code)
	}
	if code := serve(t, cfg, "/metrics", ""); code != http.StatusOK {
		t.Fatalf("metrics code = %d", code)
	}
}

func TestBearerTokenAccepted(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	cfg := Config{BackendKeys: KeySet([]string{"bk"})}
	req := httptest.NewRequest(http.MethodGet, "/v1/tables", nil)
	req.Header.Set("Authorization", "Bearer bk")
	rec := httptest.NewRecorder()
	Middleware(cfg, next).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := Middleware(Config{RPS: 1, Burst: 2}, next)

	do := func() int {
		req := httptest.NewRequest(http.MethodGet, "/v1/tables", nil)
		req.Header.Set("X-API-Key", "k")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	// first two requests fit the burst, the third must be limited
	if code := do(); code != http.StatusOK {
		t.Fatalf("first request = %d", code)
	}
	if code := do(); code != http.StatusOK {
		t.Fatalf("second request = %d", code)
	}
	if code := do(); code != http.StatusTooManyRequests {
		t.Fatalf("third request = %d, want 429", code)
	}
}
