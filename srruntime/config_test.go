package srruntime

import "testing"

func TestParseThreads(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"4", 4},
		{"0", 0},
		{"-2", 0},
		{"many", 0},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseThreads(tt.input); got != tt.want {
				t.Errorf("parseThreads(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadRuntimeConfig(t *testing.T) {
	t.Setenv("ONNXRUNTIME_LIB", "/opt/ort/libonnxruntime.so")
	t.Setenv("ONNXRUNTIME_THREADS", "2")

	cfg := LoadRuntimeConfig()
	if cfg.LibraryPath != "/opt/ort/libonnxruntime.so" {
		t.Errorf("LibraryPath = %q", cfg.LibraryPath)
	}
	if cfg.IntraOpThreads != 2 {
		t.Errorf("IntraOpThreads = %d, want 2", cfg.IntraOpThreads)
	}
}
