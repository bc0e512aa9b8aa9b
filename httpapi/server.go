package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jonwraymond/toolscript/catalog"
	"github.com/jonwraymond/toolscript/exec"
	"github.com/jonwraymond/toolscript/metrics"
	"github.com/jonwraymond/toolscript/protocol"
	"github.com/jonwraymond/toolscript/script"
)

// RequestIDHeader carries the per-request identifier.
const RequestIDHeader = "X-Request-ID"

const shutdownTimeout = 10 * time.Second

// Options configures the HTTP API.
type Options struct {
	// Logger receives request logs. Defaults to the logrus standard logger.
	Logger logrus.FieldLogger

	// AllowOrigins enables CORS for the listed origins. Empty disables CORS.
	AllowOrigins []string

	// Metrics, when set, is served on /metrics.
	Metrics *metrics.Collector
}

// Server serves the toolscript REST API.
type Server struct {
	exec   *exec.Exec
	logger logrus.FieldLogger
	engine *gin.Engine
}

// New builds the router for e.
func New(e *exec.Exec, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(opts.Logger))
	if len(opts.AllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  opts.AllowOrigins,
			AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept", RequestIDHeader},
			ExposeHeaders: []string{"Content-Length", RequestIDHeader},
			MaxAge:        12 * time.Hour,
		}))
	}

	s := &Server{exec: e, logger: opts.Logger, engine: r}

	r.GET("/healthz", s.handleHealth)
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	v1 := r.Group("/v1")
	v1.POST("/execute", s.handleExecute)
	v1.GET("/tools", s.handleListTools)
	v1.POST("/tools", s.handleRegisterTool)
	v1.GET("/tools/:name", s.handleDescribeTool)
	v1.DELETE("/tools/:name", s.handleUnregisterTool)
	v1.POST("/tools/:name/invoke", s.handleInvokeTool)

	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// requestLogger logs one line per request and tags it with a request ID.
func requestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)

		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"request_id": id,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
		} else {
			entry.Debug("request served")
		}
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"tools":  s.exec.Catalog().Len(),
	})
}

func (s *Server) handleExecute(c *gin.Context) {
	var req protocol.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.exec.Execute(c.Request.Context(), req))
}

func (s *Server) handleListTools(c *gin.Context) {
	limit := catalog.DefaultSearchLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusOK, protocol.ListToolsResponse{Tools: exec.ToolInfos(s.exec.ListTools())})
		return
	}
	hits, err := s.exec.SearchTools(c.Request.Context(), query, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, protocol.SearchToolsResponse{Tools: exec.ToolInfos(hits)})
}

func (s *Server) handleRegisterTool(c *gin.Context) {
	var req protocol.RegisterToolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	resp, err := s.exec.HandleRegister(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleDescribeTool(c *gin.Context) {
	d, err := s.exec.DescribeTool(c.Request.Context(), c.Param("name"))
	if errors.Is(err, catalog.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, exec.DescribeResponse(d))
}

func (s *Server) handleUnregisterTool(c *gin.Context) {
	resp := s.exec.HandleUnregister(protocol.UnregisterToolRequest{Name: c.Param("name")})
	if !resp.Removed {
		c.JSON(http.StatusNotFound, gin.H{"error": resp.Message})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleInvokeTool(c *gin.Context) {
	var req protocol.InvokeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}
	}

	// Normalize JSON numbers the way scripts pass them.
	input := script.FromJSON(req.Input).ToJSON()
	rec, err := s.exec.Invoke(c.Request.Context(), c.Param("name"), input)
	if errors.Is(err, script.ErrToolNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, protocol.NewInvokeResponse(rec, err))
}
