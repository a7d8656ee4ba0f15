// Package webui serves the upscaler over HTTP and pushes run progress to
// websocket clients.
package webui

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"go_upscaler/db"
	"go_upscaler/metrics"
	"go_upscaler/upscaler"
	"go_upscaler/webui/auth"
	"go_upscaler/webui/static"
)

// Engine is the part of *upscaler.Upscaler the server drives.
type Engine interface {
	Upscale(ctx context.Context, in upscaler.Input, opts upscaler.UpscaleOptions) (upscaler.Result, error)
	Abort()
	Model(ctx context.Context) (*upscaler.ModelPackage, error)
	State() upscaler.State
}

// Config holds the HTTP settings.
type Config struct {
	Host string
	Port int

	// MaxUploadBytes bounds request bodies. Zero means 32 MB.
	MaxUploadBytes int64

	// Tiling used when a request does not set patch_size or padding.
	PatchSize int
	Padding   int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Version string
}

// DefaultConfig listens on localhost. Upscales can take minutes, so the write
// timeout is generous.
func DefaultConfig() Config {
	return Config{
		Host:            "127.0.0.1",
		Port:            8090,
		MaxUploadBytes:  32 << 20,
		ReadTimeout:     60 * time.Second,
		WriteTimeout:    10 * time.Minute,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		Version:         "dev",
	}
}

// Deps are the server's collaborators. Engine is required; History and Guard
// are optional. A Metrics store is created when none is given.
type Deps struct {
	Engine  Engine
	History *db.Repository
	Guard   *auth.Guard
	Metrics *metrics.Store
	Logger  *zap.Logger
}

// recentEvents is how many run events a new websocket client is sent.
const recentEvents = 20

// Server is the HTTP front end of an upscaler.
type Server struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger

	mux         *http.ServeMux
	handler     http.Handler
	httpServer  *http.Server
	broadcaster *Broadcaster
	recent      *CircularBuffer[WSMessage]
	recorder    *db.AsyncWriter[db.UpscaleRun]
	startedAt   time.Time

	runCtx       context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
	shutdownErr  error
}

func NewServer(cfg Config, deps Deps) (*Server, error) {
	if deps.Engine == nil {
		return nil, errors.New("webui: engine is required")
	}
	def := DefaultConfig()
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = def.MaxUploadBytes
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if cfg.Version == "" {
		cfg.Version = def.Version
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("webui")
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewStore(cfg.Version, time.Now())
	}

	s := &Server{
		cfg:         cfg,
		deps:        deps,
		logger:      logger,
		mux:         http.NewServeMux(),
		broadcaster: NewBroadcaster(DefaultBroadcasterConfig(), logger),
		recent:      NewCircularBuffer[WSMessage](recentEvents),
		startedAt:   time.Now(),
	}
	s.runCtx, s.cancel = context.WithCancel(context.Background())
	s.broadcaster.SetInitial(s.initialMessage)

	if deps.History != nil {
		s.recorder = db.NewAsyncWriter(db.DefaultQueueSize,
			func(ctx context.Context, run db.UpscaleRun) error {
				_, err := deps.History.InsertUpscaleRun(ctx, run)
				return err
			},
			func(run db.UpscaleRun, err error) {
				logger.Error("record upscale run", zap.Stringer("run_id", run.ID), zap.Error(err))
			})
	}

	s.setupRoutes()
	s.handler = LoggingMiddleware(logger, "/health")(s.mux)
	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		ErrorLog:     zap.NewStdLog(logger),
	}
	return s, nil
}

func (s *Server) setupRoutes() {
	guard := func(h http.Handler) http.Handler {
		if s.deps.Guard == nil {
			return h
		}
		return s.deps.Guard.Middleware(h)
	}

	s.mux.Handle("POST /api/upscale", guard(http.HandlerFunc(s.handleUpscale)))
	s.mux.Handle("POST /api/abort", guard(http.HandlerFunc(s.handleAbort)))
	s.mux.Handle("GET /api/model", guard(http.HandlerFunc(s.handleModel)))
	s.mux.Handle("GET /api/history", guard(http.HandlerFunc(s.handleHistory)))
	s.mux.Handle("GET /api/stats", guard(http.HandlerFunc(s.handleStats)))
	s.mux.Handle("GET /ws", guard(http.HandlerFunc(s.broadcaster.HandleConnection)))
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /", guard(http.FileServerFS(static.FS())))
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

// Addr is the configured listen address.
func (s *Server) Addr() string { return s.httpServer.Addr }

// Start runs the broadcaster and serves HTTP until Shutdown. It returns nil
// after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener. Cancelling ctx stops the
// background loops but not the listener; call Shutdown for that.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, s.cancel)
	defer stop()
	go s.broadcaster.Run(s.runCtx)
	if s.deps.Guard != nil {
		go s.pruneLimiter(s.runCtx)
	}

	s.logger.Info("http server listening", zap.String("addr", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.cancel()
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones, closes the
// websocket clients and flushes pending history records.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		s.cancel()
		if s.recorder != nil {
			if err := s.recorder.Close(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		s.shutdownErr = errors.Join(errs...)
		s.logger.Info("http server stopped")
	})
	return s.shutdownErr
}

func (s *Server) pruneLimiter(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.deps.Guard.Limiter().Cleanup(); n > 0 {
				s.logger.Debug("pruned auth limiter", zap.Int("clients", n))
			}
		}
	}
}

// publish broadcasts msg and remembers it for clients that connect later.
// Progress is not remembered.
func (s *Server) publish(msg WSMessage) {
	if msg.Type != MessageTypeProgress {
		s.recent.Push(msg)
	}
	s.broadcaster.Broadcast(msg)
}

func (s *Server) initialMessage() WSMessage {
	return NewWSMessage(MessageTypeInitial, InitialData{
		Model:  s.modelState(context.Background()),
		Recent: s.recent.Items(),
	})
}

// modelState never blocks on a model that is still loading.
func (s *Server) modelState(ctx context.Context) ModelStateData {
	state := s.deps.Engine.State()
	data := ModelStateData{State: state.String()}
	if state == upscaler.StateLoading {
		return data
	}
	pkg, err := s.deps.Engine.Model(ctx)
	if err != nil {
		data.Error = err.Error()
		return data
	}
	data.Name = pkg.Definition.Name
	data.Runtime = pkg.Definition.Runtime
	data.Scale = pkg.Definition.Scale
	return data
}
