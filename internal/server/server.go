// Package server assembles the HTTP surface: routing, CORS, rate limiting,
// and the Prometheus metrics endpoint.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	importhandler "github.com/Ghost8002/fynance-18-sub001/internal/domain/import/handler"
	"github.com/Ghost8002/fynance-18-sub001/pkg/config"
)

// Server wraps the HTTP listener and, optionally, a separate metrics listener.
type Server struct {
	http    *http.Server
	metrics *http.Server
}

// New builds the router and servers from configuration.
func New(cfg *config.Config, importV1 *importhandler.Handler) *Server {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(rateLimit(cfg.Server.RateLimitPerSecond, cfg.Server.RateLimitBurst))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-User-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	router.Use(corsHandler.Handler)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/import", importV1.Routes)
	})

	s := &Server{
		http: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	if cfg.Observability.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		s.metrics = &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Observability.MetricsPort),
			Handler:           metricsMux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	return s
}

// ListenAndServe starts the metrics listener (if enabled) and then blocks on
// the main listener.
func (s *Server) ListenAndServe() error {
	if s.metrics != nil {
		go func() {
			// Metrics listener failures must not take the API down.
			_ = s.metrics.ListenAndServe()
		}()
	}
	return s.http.ListenAndServe()
}

// Shutdown gracefully drains both listeners.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.metrics != nil {
		_ = s.metrics.Shutdown(ctx)
	}
	return s.http.Shutdown(ctx)
}

// rateLimit applies a process-wide token bucket. Imports are heavyweight
// requests, so a coarse global limiter is enough to protect the parser.
func rateLimit(perSecond, burst int) func(http.Handler) http.Handler {
	if perSecond <= 0 {
		perSecond = 20
	}
	if burst <= 0 {
		burst = perSecond * 2
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
