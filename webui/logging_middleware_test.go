package webui

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggingMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		status    int
		wantLevel zapcore.Level
		wantLog   bool
	}{
		{"ok at debug", "/api/model", http.StatusOK, zapcore.DebugLevel, true},
		{"client error at warn", "/api/upscale", http.StatusBadRequest, zapcore.WarnLevel, true},
		{"server error at error", "/api/history", http.StatusInternalServerError, zapcore.ErrorLevel, true},
		{"skipped path", "/health", http.StatusOK, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			h := LoggingMiddleware(zap.New(core), "/health")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte("body"))
			}))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			entries := logs.All()
			if !tt.wantLog {
				if len(entries) != 0 {
					t.Fatalf("logged %d entries for skipped path", len(entries))
				}
				return
			}
			if len(entries) != 1 {
				t.Fatalf("logged %d entries, want 1", len(entries))
			}
			e := entries[0]
			if e.Level != tt.wantLevel {
				t.Errorf("level = %v, want %v", e.Level, tt.wantLevel)
			}
			fields := e.ContextMap()
			if fields["status"] != int64(tt.status) || fields["path"] != tt.path || fields["bytes"] != int64(4) {
				t.Errorf("fields = %v", fields)
			}
		})
	}
}

func TestLoggingMiddleware_ImplicitOK(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := LoggingMiddleware(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got := logs.All()[0].ContextMap()["status"]; got != int64(http.StatusOK) {
		t.Errorf("status = %v, want 200", got)
	}
}
