package core

import "testing"

func TestGetEnvOrDefault(t *testing.T) {
	const testKey = "TEST_UPSCALER_GET_ENV"

	tests := []struct {
		name     string
		envValue string
		want     string
	}{
		{name: "returns env value when set", envValue: "custom", want: "custom"},
		{name: "returns default when empty", envValue: "", want: "default"},
		{name: "returns default when blank", envValue: "   ", want: "default"},
		{name: "trims whitespace", envValue: " value ", want: "value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(testKey, tt.envValue)
			if got := GetEnvOrDefault(testKey, "default"); got != tt.want {
				t.Errorf("GetEnvOrDefault() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseIntEnv(t *testing.T) {
	const testKey = "TEST_UPSCALER_PARSE_INT"

	tests := []struct {
		envValue string
		want     int
	}{
		{"42", 42},
		{"-7", -7},
		{"", 10},
		{"abc", 10},
		{"3.5", 10},
	}

	for _, tt := range tests {
		t.Run(tt.envValue, func(t *testing.T) {
			t.Setenv(testKey, tt.envValue)
			if got := ParseIntEnv(testKey, 10); got != tt.want {
				t.Errorf("ParseIntEnv() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseSizeEnv(t *testing.T) {
	const testKey = "TEST_UPSCALER_PARSE_SIZE"

	tests := []struct {
		name     string
		envValue string
		want     int
		wantErr  bool
	}{
		{name: "unset uses default", envValue: "", want: 5},
		{name: "zero", envValue: "0", want: 0},
		{name: "positive", envValue: "128", want: 128},
		{name: "negative", envValue: "-1", wantErr: true},
		{name: "not a number", envValue: "big", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(testKey, tt.envValue)
			got, err := ParseSizeEnv(testKey, 5)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseSizeEnv() expected error, got %d", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSizeEnv() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseSizeEnv() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseBoolEnv(t *testing.T) {
	const testKey = "TEST_UPSCALER_PARSE_BOOL"

	tests := []struct {
		envValue     string
		defaultValue bool
		want         bool
	}{
		{"true", false, true},
		{"YES", false, true},
		{"1", false, true},
		{"on", false, true},
		{"false", true, false},
		{"Off", true, false},
		{"0", true, false},
		{"", true, true},
		{"maybe", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.envValue, func(t *testing.T) {
			t.Setenv(testKey, tt.envValue)
			if got := ParseBoolEnv(testKey, tt.defaultValue); got != tt.want {
				t.Errorf("ParseBoolEnv(%q) = %v, want %v", tt.envValue, got, tt.want)
			}
		})
	}
}
