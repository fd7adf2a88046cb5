// Package server provides shared utilities for HTTP servers.
package server

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/rs/cors"

	"github.com/FocuswithJustin/JuniperReader/internal/logging"
)

// AbsPath returns the absolute path of a file, or the original path if it fails.
func AbsPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

// CORSConfig holds CORS middleware configuration.
type CORSConfig struct {
	AllowedOrigins []string // List of allowed origins, empty = allow all (*)
	MaxAge         time.Duration
}

// CORSMiddlewareWithConfig answers preflight requests and adds CORS headers.
// If AllowedOrigins is empty, every origin is allowed without credentials.
// Requests from origins outside the list get no CORS headers, which makes
// the browser block the response.
func CORSMiddlewareWithConfig(cfg CORSConfig, next http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "If-None-Match", "X-Request-ID"},
		ExposedHeaders:   []string{"ETag", "X-Request-ID"},
		AllowCredentials: len(cfg.AllowedOrigins) > 0,
		MaxAge:           int(cfg.MaxAge / time.Second),
	}
	return cors.New(opts).Handler(next)
}

// TimingMiddleware logs slow requests.
func TimingMiddleware(threshold time.Duration, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if duration := time.Since(start); duration > threshold {
			logging.LoggerFromContext(r.Context()).Warn("slow_request",
				"method", r.Method,
				"path", r.URL.Path,
				"duration_ms", duration.Milliseconds())
		}
	})
}
