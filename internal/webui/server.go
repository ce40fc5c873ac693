// Package webui serves the browser chat interface: a static page, a JSON API
// that runs agent turns and a websocket that streams turn events.
package webui

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"codeagent/internal/agent"
	"codeagent/internal/logging"
	"codeagent/internal/tools"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

//go:embed static
var staticFiles embed.FS

const shutdownTimeout = 10 * time.Second

// TurnRunner runs one conversation turn.
type TurnRunner interface {
	Turn(ctx context.Context, userID, message string) (*agent.Reply, error)
}

// Config configures the server.
type Config struct {
	Host           string
	Port           int
	Debug          bool
	AllowedOrigins []string
	// UserID is used for requests that do not name one.
	UserID  string
	Version string
}

// Server is the web UI HTTP server.
type Server struct {
	cfg     Config
	runner  TurnRunner
	tools   []tools.Definition
	metrics http.Handler
	logger  logging.Logger

	engine   *gin.Engine
	hub      *hub
	upgrader websocket.Upgrader
	started  time.Time

	// turnMu serialises turns; the runtime is not safe for concurrent use.
	turnMu sync.Mutex
	busy   bool
	busyMu sync.Mutex
}

// Option customises a Server.
type Option func(*Server)

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithLogger sets the server logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Server) { s.logger = logging.OrNop(logger) }
}

// NewServer builds the router. defs are listed by /api/tools.
func NewServer(cfg Config, runner TurnRunner, defs []tools.Definition, opts ...Option) *Server {
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 7860
	}
	s := &Server{
		cfg:     cfg,
		runner:  runner,
		tools:   defs,
		logger:  logging.NewComponentLogger("WebUI"),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = newHub(s.logger)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.originAllowed,
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), requestLogger(s.logger))
	s.engine.Use(cors.New(s.corsConfig()))
	s.routes()
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr returns host:port.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

func (s *Server) corsConfig() cors.Config {
	corsConfig := cors.DefaultConfig()
	if allowAll(s.cfg.AllowedOrigins) {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = s.cfg.AllowedOrigins
	}
	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"}
	corsConfig.AllowWebSockets = true
	return corsConfig
}

func allowAll(origins []string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}

func (s *Server) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || allowAll(s.cfg.AllowedOrigins) {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if strings.EqualFold(strings.TrimSpace(allowed), origin) {
			return true
		}
	}
	return false
}

func (s *Server) routes() {
	s.engine.GET("/", func(c *gin.Context) {
		page, err := staticFiles.ReadFile("static/index.html")
		if err != nil {
			c.String(http.StatusInternalServerError, "index page missing")
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", page)
	})
	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.metrics))
	}

	api := s.engine.Group("/api")
	api.GET("/stream", s.handleStream)

	jsonAPI := api.Group("", jsonMiddleware())
	jsonAPI.GET("/health", s.handleHealth)
	jsonAPI.GET("/tools", s.handleTools)
	jsonAPI.POST("/chat", s.handleChat)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data: HealthResponse{
			Status:    "ok",
			Version:   s.cfg.Version,
			Timestamp: time.Now(),
			Uptime:    time.Since(s.started).Round(time.Second).String(),
			Busy:      s.isBusy(),
		},
	})
}

func (s *Server) handleTools(c *gin.Context) {
	defs := s.tools
	if defs == nil {
		defs = []tools.Definition{}
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: ToolsListResponse{Tools: defs}})
}

func (s *Server) handleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{Success: false, Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, APIResponse{Success: false, Error: "message is required"})
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = s.cfg.UserID
	}

	reply, err := s.runTurn(c.Request.Context(), userID, req.Message)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.Canceled) {
			status = 499
		}
		c.JSON(status, APIResponse{Success: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data: ChatResponse{
			Answer:     reply.Answer,
			Memories:   reply.Memories,
			DurationMS: reply.Duration.Milliseconds(),
		},
	})
}

func (s *Server) runTurn(ctx context.Context, userID, message string) (*agent.Reply, error) {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()
	s.setBusy(true)
	defer s.setBusy(false)

	ctx = agent.WithListener(ctx, s.hub.broadcast)
	return s.runner.Turn(ctx, userID, message)
}

func (s *Server) setBusy(busy bool) {
	s.busyMu.Lock()
	s.busy = busy
	s.busyMu.Unlock()
}

func (s *Server) isBusy() bool {
	s.busyMu.Lock()
	defer s.busyMu.Unlock()
	return s.busy
}

func (s *Server) handleStream(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed: %v", err)
		return
	}
	client := s.hub.register(conn)
	s.logger.Debug("websocket client connected (%d total)", s.hub.count())
	go s.hub.writePump(client)
	s.hub.readPump(client)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.Addr(), err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("web UI listening on http://%s", listener.Addr())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve web UI: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.hub.closeAll()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown web UI: %w", err)
		}
		s.logger.Info("web UI stopped")
		return nil
	})
	return g.Wait()
}
