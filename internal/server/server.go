// Package server exposes a property chain over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/systmms/kvconfig/internal/configsource"
	"github.com/systmms/kvconfig/internal/logging"
)

// Config holds configuration for the HTTP server.
type Config struct {
	// Addr is the address to listen on.
	Addr string

	// Reveal serves property values from /config/properties instead of
	// redacting them.
	Reveal bool

	// MetricsEnabled mounts the Prometheus handler at MetricsPath.
	MetricsEnabled bool
	MetricsPath    string

	// CORSAllowedOrigins enables CORS for the listed origins. "*" allows any.
	CORSAllowedOrigins []string

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            "127.0.0.1:8080",
		MetricsPath:     "/metrics",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Resolver is the read side of a property chain.
type Resolver interface {
	Resolve(ctx context.Context, key string) (configsource.Resolution, bool, error)
	PropertyNames(ctx context.Context) ([]string, error)
	Properties(ctx context.Context) (map[string]string, error)
	Sources() []configsource.PropertySource
}

// ErrorResponse is the JSON body of every non-2xx JSON reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// SourceInfo describes one chain member in the health report.
type SourceInfo struct {
	Name    string `json:"name"`
	Ordinal int    `json:"ordinal"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string       `json:"status"`
	Version   string       `json:"version"`
	Uptime    string       `json:"uptime"`
	Timestamp time.Time    `json:"timestamp"`
	Sources   []SourceInfo `json:"sources"`
}

// Server serves configuration properties over HTTP.
type Server struct {
	config    Config
	resolver  Resolver
	logger    *logging.Logger
	version   string
	startTime time.Time
	router    *gin.Engine
	server    *http.Server
}

// New creates a server for resolver. Routes are registered immediately so
// Handler can be used without listening.
func New(config Config, resolver Resolver, logger *logging.Logger, version string) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Server{
		config:    config,
		resolver:  resolver,
		logger:    logger,
		version:   version,
		startTime: time.Now(),
	}
	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() *gin.Engine {
	if s.logger.DebugEnabled() {
		gin.SetMode(gin.DebugMode)
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		s.logger.Debug("HTTP %s %s %d %s", param.Method, param.Path, param.StatusCode, param.Latency)
		return ""
	}))

	if len(s.config.CORSAllowedOrigins) > 0 {
		corsConfig := cors.DefaultConfig()
		if len(s.config.CORSAllowedOrigins) == 1 && s.config.CORSAllowedOrigins[0] == "*" {
			corsConfig.AllowAllOrigins = true
		} else {
			corsConfig.AllowOrigins = s.config.CORSAllowedOrigins
		}
		corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
		router.Use(cors.New(corsConfig))
	}

	router.GET("/health", s.health)

	cfg := router.Group("/config")
	cfg.GET("/value/:name", s.value)
	cfg.GET("/propertyNames", s.propertyNames)
	cfg.GET("/properties", s.properties)

	if s.config.MetricsEnabled {
		path := s.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(promhttp.Handler()))
	}

	return router
}

func (s *Server) health(c *gin.Context) {
	sources := s.resolver.Sources()
	info := make([]SourceInfo, 0, len(sources))
	for _, src := range sources {
		info = append(info, SourceInfo{Name: src.Name(), Ordinal: src.Ordinal()})
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   s.version,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Timestamp: time.Now(),
		Sources:   info,
	})
}

// value returns a single property as text/plain. The answering source is
// reported in the X-Config-Source header.
func (s *Server) value(c *gin.Context) {
	name := c.Param("name")
	res, ok, err := s.resolver.Resolve(c.Request.Context(), name)
	if err != nil {
		s.fail(c, "resolve_failed", err)
		return
	}
	if !ok {
		c.String(http.StatusNotFound, "property %s not found", name)
		return
	}
	c.Header("X-Config-Source", res.Source)
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(res.Value))
}

func (s *Server) propertyNames(c *gin.Context) {
	names, err := s.resolver.PropertyNames(c.Request.Context())
	if err != nil {
		s.fail(c, "list_failed", err)
		return
	}
	c.JSON(http.StatusOK, names)
}

func (s *Server) properties(c *gin.Context) {
	props, err := s.resolver.Properties(c.Request.Context())
	if err != nil {
		s.fail(c, "list_failed", err)
		return
	}
	if !s.config.Reveal {
		for k, v := range props {
			props[k] = logging.Secret(v).String()
		}
	}
	c.JSON(http.StatusOK, props)
}

func (s *Server) fail(c *gin.Context, code string, err error) {
	s.logger.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	c.JSON(http.StatusBadGateway, ErrorResponse{
		Error:   code,
		Message: err.Error(),
	})
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Serving configuration on http://%s", ln.Addr())
		errCh <- s.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().ShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}
