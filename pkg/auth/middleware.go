// Package auth gates the operational API behind static API keys with
// per-key rate limiting. Backend keys may drive the write path; admin
// keys are additionally required for destructive endpoints.
package auth

import (
	"net/http"
	"strings"

	"deltastore/pkg/logger"
)

// Config holds the key sets and rate limits for the middleware.
type Config struct {
	BackendKeys map[string]struct{}
	AdminKeys   map[string]struct{}
	RPS         float64
	Burst       int
}

// Middleware enforces API keys and rate limits. Paths under /v1/admin/
// require an admin key; every other /v1/ path accepts backend or admin
// keys. Health and metrics endpoints pass through. When no keys are
// configured at all the middleware is permissive (local development).
func Middleware(cfg Config, next http.Handler) http.Handler {
	pool := &limiterPool{rps: cfg.RPS, burst: cfg.Burst}
	open := len(cfg.BackendKeys) == 0 && len(cfg.AdminKeys) == 0

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v1/") {
			next.ServeHTTP(w, r)
			return
		}
		key := apiKey(r)
		limKey := key
		if limKey == "" {
			limKey = r.RemoteAddr
		}
		if !pool.Allow(limKey) {
			http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
			return
		}
		if open {
			next.ServeHTTP(w, r)
			return
		}
		_, isAdmin := cfg.AdminKeys[key]
		_, isBackend := cfg.BackendKeys[key]
		if strings.HasPrefix(r.URL.Path, "/v1/admin/") {
			if !isAdmin {
				logger.Warn("admin_key_rejected", "path", r.URL.Path, "remote", r.RemoteAddr)
				http.Error(w, `{"error":"admin key required"}`, http.StatusForbidden)
				return
			}
		} else if !isAdmin && !isBackend {
			http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func apiKey(r *http.Request) string {
	if k := r.Header.Get("X-API-Key"); k != "" {
		return k
	}
	if a := r.Header.Get("Authorization"); strings.HasPrefix(a, "Bearer ") {
		return strings.TrimPrefix(a, "Bearer ")
	}
	return ""
}

// KeySet builds a lookup set from a key list.
func KeySet(keys []string) map[string]struct{} {
	out := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k != "" {
			out[k] = struct{}{}
		}
	}
	return out
}
