// Package server exposes a running watchdog over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yukselaciker/seyda-matematik-sub001/internal/output"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/watchdog"
)

// ShutdownTimeout bounds how long Run waits for in-flight requests.
const ShutdownTimeout = 5 * time.Second

// Server serves the status API for one watchdog.
//
// Routes:
//
//	GET  /healthz     liveness, always 200
//	GET  /status      latest result; 200 healthy, 503 unhealthy, 204 before the first pass
//	POST /check       run a full sweep
//	POST /check/:key  check one record; 404 for keys outside the registry
//	POST /repair      force-repair every record
//	GET  /metrics     Prometheus exposition
type Server struct {
	wd      *watchdog.Watchdog
	metrics http.Handler
	logger  *slog.Logger
	engine  *gin.Engine
}

// New builds the router. metrics may be nil, in which case /metrics is not
// registered.
func New(wd *watchdog.Watchdog, metrics http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{wd: wd, metrics: metrics, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests())
	r.GET("/healthz", s.handleHealthz)
	r.GET("/status", s.handleStatus)
	r.POST("/check", s.handleCheck)
	r.POST("/check/:key", s.handleCheckKey)
	r.POST("/repair", s.handleRepair)
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}
	s.engine = r
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("status server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndRun listens on addr and calls Run.
func (s *Server) ListenAndRun(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return s.Run(ctx, ln)
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, output.Response{OK: true, Data: gin.H{"running": s.wd.Running()}})
}

func (s *Server) handleStatus(c *gin.Context) {
	res := s.wd.HealthStatus()
	if res == nil {
		c.Status(http.StatusNoContent)
		return
	}
	s.writeResult(c, *res)
}

func (s *Server) handleCheck(c *gin.Context) {
	s.writeResult(c, s.wd.RunHealthCheck())
}

func (s *Server) handleCheckKey(c *gin.Context) {
	key := c.Param("key")
	res, ok := s.wd.CheckKey(key)
	if !ok {
		s.writeError(c, output.ErrNotFoundHint("record", key, "GET /status lists the monitored records"))
		return
	}
	s.writeResult(c, res)
}

func (s *Server) handleRepair(c *gin.Context) {
	s.writeResult(c, s.wd.ForceRepairAll())
}

func (s *Server) writeResult(c *gin.Context, res watchdog.Result) {
	code := http.StatusOK
	if !res.IsHealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, output.Response{OK: res.IsHealthy, Data: res, Summary: res.Summary()})
}

func (s *Server) writeError(c *gin.Context, err error) {
	e := output.AsError(err)
	c.JSON(e.HTTPStatus(), output.NewErrorResponse(e))
}
