// Package server is the external HTTP surface: job submission plus the
// read-only status gateway polled by clients. Status reads are pure
// projections of the job store and safe at any polling frequency.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/handarchive/video-analysis-service/internal/jobstore"
	"github.com/handarchive/video-analysis-service/internal/orchestrator"
)

type Server struct {
	store  *jobstore.Store
	orch   *orchestrator.Orchestrator
	logger *zap.Logger
}

func New(store *jobstore.Store, orch *orchestrator.Orchestrator, logger *zap.Logger) *Server {
	return &Server{store: store, orch: orch, logger: logger}
}

// Router wires the wire contract:
//
//	POST /analyze          -> 202 {success, jobId, message}
//	GET  /status/{jobId}   -> 200 {success, job} | 404
//	GET  /status           -> 200 {success, count, jobs}
//	GET  /health           -> 200 {status: "ok"}
func (s *Server) Router() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /analyze", s.handleAnalyze)
	mux.HandleFunc("GET /status/{jobId}", s.handleStatus)
	mux.HandleFunc("GET /status", s.handleList)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// Start runs the HTTP listener in the background and returns the server
// handle for shutdown.
func (s *Server) Start(ctx context.Context, port int) *http.Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.logger.Info("http server starting", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", zap.Error(err))
		}
	}()

	return srv
}
