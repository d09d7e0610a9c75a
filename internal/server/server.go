package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/atikulmunna/logbook/internal/aggregator"
	"github.com/atikulmunna/logbook/internal/hub"
	"github.com/atikulmunna/logbook/internal/logging"
	"github.com/atikulmunna/logbook/internal/metrics"
	"github.com/atikulmunna/logbook/internal/query"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

// Server exposes recording and querying over HTTP.
type Server struct {
	engine     *gin.Engine
	query      *query.Interface
	hub        *hub.Hub
	aggregator *aggregator.Aggregator
	metrics    *metrics.Recorder
	logger     *logging.Logger
	addr       string
}

// New creates the HTTP server. Entries recorded through q must reach h for
// the /ws stream and the aggregator to see them.
func New(q *query.Interface, h *hub.Hub, agg *aggregator.Aggregator, m *metrics.Recorder, logger *logging.Logger, addr string) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false

	s := &Server{
		engine:     engine,
		query:      q,
		hub:        h,
		aggregator: agg,
		metrics:    m,
		logger:     logger,
		addr:       addr,
	}

	s.setupRoutes()
	return s
}

// Handler returns the underlying HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		stats := s.aggregator.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"status":       "ok",
			"uptime":       stats.Uptime,
			"sinks":        stats.Sinks,
			"eps":          stats.EPS,
			"dropped_logs": stats.DroppedLogs,
		})
	})

	api := s.engine.Group("/api")
	api.POST("/logs", s.handleRecord)
	api.GET("/logs", s.handleQuery)
	api.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.aggregator.Snapshot())
	})

	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))

	s.engine.GET("/ws", s.handleWebSocket)

	s.engine.GET("/debug/pprof/", gin.WrapF(pprof.Index))
	s.engine.GET("/debug/pprof/cmdline", gin.WrapF(pprof.Cmdline))
	s.engine.GET("/debug/pprof/profile", gin.WrapF(pprof.Profile))
	s.engine.GET("/debug/pprof/symbol", gin.WrapF(pprof.Symbol))
	s.engine.GET("/debug/pprof/trace", gin.WrapF(pprof.Trace))
	s.engine.GET("/debug/pprof/allocs", gin.WrapH(pprof.Handler("allocs")))
	s.engine.GET("/debug/pprof/heap", gin.WrapH(pprof.Handler("heap")))
	s.engine.GET("/debug/pprof/goroutine", gin.WrapH(pprof.Handler("goroutine")))
}

type recordRequest struct {
	API     string `json:"api"`
	Message string `json:"message"`
}

// handleRecord records one entry. File write failures are not visible here;
// the entry is recorded regardless.
func (s *Server) handleRecord(c *gin.Context) {
	var req recordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, s.query.Log(req.API, req.Message))
}

// handleQuery maps present query parameters to filters. An absent parameter
// does not constrain; a present but empty one matches only empty values.
func (s *Server) handleQuery(c *gin.Context) {
	var f query.Filter
	if v, ok := c.GetQuery("level"); ok {
		f.Level = query.Ptr(v)
	}
	if v, ok := c.GetQuery("q"); ok {
		f.LogString = query.Ptr(v)
	}
	if v, ok := c.GetQuery("timestamp"); ok {
		f.Timestamp = query.Ptr(v)
	}
	if v, ok := c.GetQuery("source"); ok {
		f.Source = query.Ptr(v)
	}

	logs := s.query.Query(f)
	c.JSON(http.StatusOK, gin.H{
		"count": len(logs),
		"logs":  logs,
	})
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
