package server

import (
	"log/slog"
	"net/http"

	"github.com/maauso/audiocards/internal/metrics"
)

// DefaultMaxBodyBytes is the request body limit when none is configured.
const DefaultMaxBodyBytes = 200 << 20

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
	// MaxBodyBytes limits the size of request bodies.
	MaxBodyBytes int64
	// Metrics, when set, is recorded per request and served on /metrics.
	Metrics *metrics.Metrics
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
		MaxBodyBytes:   DefaultMaxBodyBytes,
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	// Register routes with method-based patterns (Go 1.22+)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("POST /jobs/normalize", h.Normalize)
	mux.HandleFunc("POST /jobs/cut", h.Cut)
	mux.HandleFunc("POST /jobs/join", h.Join)
	mux.HandleFunc("POST /jobs/anki", h.Anki)
	mux.HandleFunc("GET /jobs", h.ListJobs)
	mux.HandleFunc("GET /jobs/{id}", h.GetJob)
	mux.HandleFunc("DELETE /jobs/{id}", h.CancelJob)
	mux.HandleFunc("GET /jobs/{id}/artifact", h.GetArtifact)

	middlewares := []func(http.Handler) http.Handler{
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
	}
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
		middlewares = append(middlewares, MetricsMiddleware(cfg.Metrics))
	}
	middlewares = append(middlewares,
		CORSMiddleware(cfg.AllowedOrigins),
		MaxBytesMiddleware(cfg.MaxBodyBytes),
	)

	return ChainMiddleware(middlewares...)(mux)
}
