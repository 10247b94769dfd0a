package http

import (
	"context"
	"encoding/json"
	"log/slog"
	nethttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"go-airflow-monitor-ui/internal/config"
	"go-airflow-monitor-ui/internal/connectors/airflow"
	"go-airflow-monitor-ui/internal/logger"
)

// gateway is the subset of the Airflow client the routes depend on.
type gateway interface {
	LatestStatus(ctx context.Context, dagID, token string) airflow.Result[airflow.DagStatus]
	RecentRuns(ctx context.Context, dagID, token string, limit int) airflow.Result[[]airflow.DagRun]
	TaskInstances(ctx context.Context, dagID, dagRunID, token string) airflow.Result[[]airflow.TaskInstance]
	TaskLog(ctx context.Context, dagID, dagRunID, taskID, tryNumber, token string) airflow.Result[string]
	Health(ctx context.Context, token string) airflow.Result[airflow.Health]
}

// Server wraps an HTTP server and route handlers.
type Server struct {
	httpServer *nethttp.Server
	log        *slog.Logger
}

// NewServer creates a configured HTTP server backed by the Airflow API at
// cfg.AirflowBaseURL.
func NewServer(cfg config.Config, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = logger.FromContext(context.Background())
	}
	client := airflow.NewClient(cfg)
	creds := airflow.Credentials{Username: cfg.AirflowUser, Password: cfg.AirflowPassword}

	httpServer := &nethttp.Server{
		Addr:         cfg.ListenAddr,
		Handler:      newRouter(cfg, client, creds, log),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return &Server{httpServer: httpServer, log: log}, nil
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() nethttp.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func newRouter(cfg config.Config, gw gateway, creds airflow.Credentials, log *slog.Logger) nethttp.Handler {
	m := newMetrics()
	runsLimit := cfg.RecentRunsLimit

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(loggingMiddleware(log))
	r.Use(m.middleware)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{nethttp.MethodGet, nethttp.MethodHead},
			MaxAge:         300,
		}))
	}

	r.Get("/api/status", statusHandler(gw, creds, m))
	r.Get("/api/runs", runsHandler(runsLimit, gw, creds, m))
	r.Get("/api/tasks", tasksHandler(gw, creds, m))
	r.Get("/api/logs", logsHandler(gw, creds, m))
	r.Get("/api/upstream", upstreamStatusHandler(cfg.AirflowBaseURL, gw, creds, m))

	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(cfg.AirflowBaseURL))
	r.Method(nethttp.MethodGet, "/metrics", m.handler())
	r.Get("/favicon.ico", faviconHandler)

	r.NotFound(dashboardHandler)
	return r
}

func healthHandler(w nethttp.ResponseWriter, _ *nethttp.Request) {
	writeJSON(w, nethttp.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

func readyHandler(upstream string) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		writeJSON(w, nethttp.StatusOK, map[string]any{
			"status":   "ready",
			"upstream": upstream,
		})
	}
}

func loggingMiddleware(log *slog.Logger) func(nethttp.Handler) nethttp.Handler {
	return func(next nethttp.Handler) nethttp.Handler {
		return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
			start := time.Now()
			reqLog := log.With(slog.String("request-id", middleware.GetReqID(r.Context())))
			ctx := logger.WithLogger(r.Context(), reqLog)

			rec := &statusRecorder{ResponseWriter: w, status: nethttp.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			reqLog.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("elapsed", time.Since(start)),
			)
		})
	}
}

func writeJSON(w nethttp.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
