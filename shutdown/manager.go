package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"go_upscaler/core"
)

// DefaultTimeout bounds the whole shutdown sequence.
const DefaultTimeout = 30 * time.Second

// Manager coordinates graceful shutdown: the first SIGINT or SIGTERM cancels
// Context, Shutdown waits for tracked operations and then runs the registered
// handlers. A second signal exits immediately.
//
//	m := shutdown.NewManager(logger)
//	m.Register("http", shutdown.PriorityServer, srv.Shutdown)
//	m.Start()
//	<-m.Context().Done()
//	err := m.Shutdown()
type Manager struct {
	logger  *zap.Logger
	timeout time.Duration
	exit    func(code int)

	ctx    context.Context
	cancel context.CancelFunc

	tracker  *OperationTracker
	registry *Registry
	signals  *SignalCounter
	sigChan  chan os.Signal

	mu       sync.Mutex
	started  bool
	shutdown bool
}

type ManagerOption func(*Manager)

// WithTimeout bounds how long Shutdown waits in total.
func WithTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.timeout = d }
}

// WithExitFunc replaces os.Exit for the forced exit on a second signal.
func WithExitFunc(exit func(code int)) ManagerOption {
	return func(m *Manager) { m.exit = exit }
}

func NewManager(logger *zap.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		logger:   logger,
		timeout:  DefaultTimeout,
		exit:     os.Exit,
		ctx:      ctx,
		cancel:   cancel,
		tracker:  NewOperationTracker(),
		registry: NewRegistry(),
		sigChan:  make(chan os.Signal, 2),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.signals = NewSignalCounter(2, func() {
		m.logger.Warn("second signal received, exiting immediately")
		m.exit(core.ExitCodeSIGINT)
	})
	return m
}

// Context is cancelled when a shutdown signal arrives or Trigger is called.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Register adds a cleanup handler; see the Priority constants.
func (m *Manager) Register(name string, priority int, fn Func) {
	m.registry.Register(name, priority, fn)
	m.logger.Debug("registered shutdown handler", zap.String("name", name), zap.Int("priority", priority))
}

// Start listens for SIGINT and SIGTERM. Calling it again has no effect.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true

	signal.Notify(m.sigChan, os.Interrupt, syscall.SIGTERM)
	go m.watch()
}

func (m *Manager) watch() {
	for sig := range m.sigChan {
		m.handleSignal(sig)
	}
}

func (m *Manager) handleSignal(sig os.Signal) {
	if m.signals.Increment() == 1 {
		m.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		m.cancel()
	}
}

// Trigger starts shutdown as if a signal had arrived.
func (m *Manager) Trigger() {
	m.cancel()
}

// Track runs fn as an in-flight operation. Operations are refused with
// ErrTrackerClosed once Shutdown has begun.
func (m *Manager) Track(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := m.tracker.Start(); err != nil {
		m.logger.Debug("operation refused during shutdown", zap.String("operation", name))
		return err
	}
	defer m.tracker.Done()
	return fn(ctx)
}

// ActiveOperations returns the number of tracked operations in flight.
func (m *Manager) ActiveOperations() int64 {
	return m.tracker.Active()
}

// IsShuttingDown reports whether Shutdown has been called.
func (m *Manager) IsShuttingDown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown
}

// Handlers lists the registered handlers in execution order.
func (m *Manager) Handlers() []string {
	return m.registry.Names()
}

// Shutdown refuses new operations, waits for in-flight ones, then runs the
// handlers with whatever time remains (at least one second). It returns the
// joined handler errors. Later calls return nil.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil
	}
	m.shutdown = true
	started := m.started
	m.mu.Unlock()

	start := time.Now()
	m.cancel()
	m.tracker.Close()
	m.logger.Info("shutting down",
		zap.Duration("timeout", m.timeout),
		zap.Int64("active_operations", m.tracker.Active()),
		zap.Int("handlers", m.registry.Len()))

	waitCtx, cancelWait := context.WithTimeout(context.Background(), m.timeout)
	if err := m.tracker.Wait(waitCtx); err != nil {
		m.logger.Warn("in-flight operations did not finish",
			zap.Int64("remaining", m.tracker.Active()),
			zap.Duration("waited", time.Since(start)))
	}
	cancelWait()

	remaining := max(m.timeout-time.Since(start), time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), remaining)
	defer cancel()

	errs := m.registry.Run(ctx)
	for _, err := range errs {
		m.logger.Error("shutdown handler failed", zap.Error(err))
	}

	if started {
		signal.Stop(m.sigChan)
	}

	m.logger.Info("shutdown complete",
		zap.Duration("duration", time.Since(start)),
		zap.Int("errors", len(errs)))
	return errors.Join(errs...)
}
