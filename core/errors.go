package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for model fetching.
var (
	ErrChecksumMismatch = errors.New("core: checksum mismatch")
	ErrDownloadFailed   = errors.New("core: download failed")
)

// ConfigError represents a configuration error with an actionable fix.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // What the user should change
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Error codes for configuration errors
const (
	ErrCodeInvalidValue = "INVALID_VALUE"
	ErrCodeInvalidPort  = "INVALID_PORT"
	ErrCodeMissingModel = "MISSING_MODEL"
)

// ErrInvalidValue returns an error for an environment variable that failed to parse.
func ErrInvalidValue(varName string, cause error) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidValue,
		Message: fmt.Sprintf("Invalid configuration: %v", cause),
		Action:  fmt.Sprintf("Set %s to a non-negative integer or remove it", varName),
	}
}

// ErrInvalidPort returns an error for a port outside 1-65535.
func ErrInvalidPort(port int) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidPort,
		Message: fmt.Sprintf("Invalid UPSCALER_PORT: %d", port),
		Action:  "Set UPSCALER_PORT to a value between 1 and 65535",
	}
}

// ErrMissingModel returns an error when no model is configured.
func ErrMissingModel() *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingModel,
		Message: "No model configured",
		Action:  "Set UPSCALER_MODEL to a built-in model name or a model definition YAML file",
	}
}

// GetErrorCode extracts the code from a ConfigError anywhere in err's chain.
func GetErrorCode(err error) string {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr.Code
	}
	return ""
}

// DownloadError describes a model fetch that failed after all retries.
type DownloadError struct {
	URL      string
	DestPath string
	Attempts int
	Cause    error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("%v: %s after %d attempt(s): %v", ErrDownloadFailed, e.URL, e.Attempts, e.Cause)
}

// Unwrap exposes both ErrDownloadFailed and the underlying cause.
func (e *DownloadError) Unwrap() []error {
	return []error{ErrDownloadFailed, e.Cause}
}
