package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server serves the processor's Prometheus collectors, plus a
// readiness probe, over HTTP.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// Start begins serving /metrics and /healthz on addr and returns
// immediately; the HTTP server runs in a background goroutine.
// /healthz reports 200 once ready returns true and 503 until then, so
// an orchestrator can hold a processor out of rotation while it loads
// its snapshots and performs its first Synchronize pass.
func Start(addr string, ready func() bool, logger *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", healthzHandler(ready))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	s := &Server{
		httpServer: httpServer,
		logger:     logger,
	}

	go func() {
		s.logger.Info("metrics server starting", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return s
}

func healthzHandler(ready func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready == nil || !ready() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("stopping metrics server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("metrics server shutdown failed", zap.Error(err))
	}
}
