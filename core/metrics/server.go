package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/m3rciful/petbot/core/logger"
)

// NewRouter mounts /metrics and /healthz.
func NewRouter(m *Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())
	return r
}

// Server runs the metrics router on its own listener.
type Server struct {
	srv *http.Server
}

// NewServer prepares a server for listen; it does not start it.
func NewServer(listen string, m *Metrics) *Server {
	return &Server{srv: &http.Server{
		Addr:              listen,
		Handler:           NewRouter(m),
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Start serves in a background goroutine; listener errors are logged.
func (s *Server) Start(ctx context.Context) {
	go func() {
		logger.Info(ctx, logger.ComponentMetrics, "listen", slog.String("listen", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, logger.ComponentMetrics, "listen", slog.String("listen", s.srv.Addr), slog.String("err", err.Error()))
		}
	}()
}

// Shutdown stops the server, waiting up to five seconds for in-flight scrapes.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
