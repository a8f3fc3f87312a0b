// Package server exposes the orchestrator over HTTP: one blocking chat
// endpoint plus health and dataset discovery, with Prometheus metrics on
// a separate listener.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/datamesa/assistant/pkg/availdata"
	"github.com/datamesa/assistant/pkg/contracts"
	"github.com/datamesa/assistant/pkg/orchestrator"
)

// Server handles chat turns over HTTP.
type Server struct {
	orc   *orchestrator.Orchestrator
	store *availdata.Store
	log   *slog.Logger
}

// New builds a server around the orchestrator.
func New(orc *orchestrator.Orchestrator, store *availdata.Store, log *slog.Logger) *Server {
	return &Server{orc: orc, store: store, log: log}
}

// Router builds the chat API router.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metricsMiddleware())

	r.GET("/healthz", s.handleHealthz)
	r.GET("/datasets", s.handleDatasets)
	r.POST("/chat", s.handleChat)
	return r
}

// MetricsHandler serves the Prometheus scrape endpoint; callers mount it
// on a separate listener so scrapes never compete with chat traffic.
func MetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type datasetInfo struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

func (s *Server) handleDatasets(c *gin.Context) {
	names := s.store.ListDatasets()
	out := make([]datasetInfo, 0, len(names))
	for _, name := range names {
		cols, err := s.store.Schema(name)
		if err != nil {
			s.log.Warn("failed to load dataset schema", "dataset", name, "error", err)
			continue
		}
		out = append(out, datasetInfo{Name: name, Columns: cols})
	}
	c.JSON(http.StatusOK, gin.H{"datasets": out})
}

func (s *Server) handleChat(c *gin.Context) {
	var req contracts.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	start := time.Now()
	resp := s.orc.Run(c.Request.Context(), req)
	chatTurnsTotal.WithLabelValues(string(resp.Status)).Inc()
	s.log.Info("chat turn",
		"session_id", req.SessionID,
		"status", string(resp.Status),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	c.JSON(http.StatusOK, resp)
}

// ListenAndServe runs the chat API and metrics listeners until ctx is
// canceled, then shuts both down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, listenAddr, metricsAddr string) error {
	api := &http.Server{Addr: listenAddr, Handler: s.Router()}
	metrics := &http.Server{Addr: metricsAddr, Handler: MetricsHandler()}

	errCh := make(chan error, 2)
	go func() {
		s.log.Info("chat API listening", "addr", listenAddr)
		if err := api.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	go func() {
		s.log.Info("metrics listening", "addr", metricsAddr)
		if err := metrics.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("chat API shutdown", "error", err)
	}
	if err := metrics.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("metrics shutdown", "error", err)
	}
	return nil
}
