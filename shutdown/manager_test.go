package shutdown

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"go_upscaler/core"
)

func TestManager_ShutdownWaitsForOperations(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t), WithTimeout(2*time.Second))

	started := make(chan struct{})
	release := make(chan struct{})
	opDone := make(chan error, 1)
	go func() {
		opDone <- m.Track(context.Background(), "upscale", func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	var handlerSawActive int64 = -1
	m.Register("upscaler", PriorityUpscaler, func(context.Context) error {
		handlerSawActive = m.ActiveOperations()
		return nil
	})

	shutdownDone := make(chan error, 1)
	go func() { shutdownDone <- m.Shutdown() }()

	time.Sleep(20 * time.Millisecond)
	close(release)

	if err := <-shutdownDone; err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := <-opDone; err != nil {
		t.Errorf("tracked operation error = %v", err)
	}
	if handlerSawActive != 0 {
		t.Errorf("handler ran with %d active operations, want 0", handlerSawActive)
	}
	if m.Context().Err() == nil {
		t.Error("Context() not cancelled after Shutdown")
	}
	if !m.IsShuttingDown() {
		t.Error("IsShuttingDown() = false")
	}
	if err := m.Track(context.Background(), "late", func(context.Context) error { return nil }); !errors.Is(err, ErrTrackerClosed) {
		t.Errorf("Track() after Shutdown = %v, want ErrTrackerClosed", err)
	}
	if err := m.Shutdown(); err != nil {
		t.Errorf("second Shutdown() = %v, want nil", err)
	}
}

func TestManager_ShutdownJoinsErrors(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))
	errDB := errors.New("db busy")
	m.Register("db", PriorityDatabase, func(context.Context) error { return errDB })
	m.Register("logger", PriorityLogger, func(context.Context) error { return nil })

	err := m.Shutdown()
	if !errors.Is(err, errDB) {
		t.Fatalf("Shutdown() = %v, want wrapping %v", err, errDB)
	}
	if got := m.Handlers(); len(got) != 2 || got[0] != "db" {
		t.Errorf("Handlers() = %v", got)
	}
}

func TestManager_Signals(t *testing.T) {
	exitCode := -1
	m := NewManager(zaptest.NewLogger(t), WithExitFunc(func(code int) { exitCode = code }))

	m.handleSignal(syscall.SIGTERM)
	select {
	case <-m.Context().Done():
	default:
		t.Fatal("first signal did not cancel Context()")
	}
	if exitCode != -1 {
		t.Fatalf("exit called after first signal with %d", exitCode)
	}

	m.handleSignal(os.Interrupt)
	if exitCode != core.ExitCodeSIGINT {
		t.Errorf("exit code = %d, want %d", exitCode, core.ExitCodeSIGINT)
	}
}

func TestManager_Trigger(t *testing.T) {
	m := NewManager(nil)
	m.Trigger()
	if m.Context().Err() == nil {
		t.Error("Trigger() did not cancel Context()")
	}
}

func TestCleanupPartialDownloads(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a1b2-x4.onnx.part", "c3d4-x2.onnx.part", "e5f6-x2.onnx"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("data"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	fn := CleanupPartialDownloads(zaptest.NewLogger(t), dir)
	if err := fn(context.Background()); err != nil {
		t.Fatalf("cleanup error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "e5f6-x2.onnx" {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("remaining files = %v, want only the complete model", names)
	}

	// A missing directory is not an error.
	if err := CleanupPartialDownloads(zaptest.NewLogger(t), filepath.Join(dir, "missing"))(context.Background()); err != nil {
		t.Errorf("cleanup of missing dir = %v", err)
	}
}
