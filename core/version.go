package core

import "fmt"

// Build metadata, injected with:
//
//	go build -ldflags "-X go_upscaler/core.Version=$(git describe --tags --always) \
//	  -X go_upscaler/core.GitCommit=$(git rev-parse --short HEAD) \
//	  -X go_upscaler/core.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" .
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// GetVersionInfo returns a formatted version information string, e.g.
// "v1.0.0 (built 2024-01-15T10:30:00Z, commit abc1234)".
func GetVersionInfo() string {
	return fmt.Sprintf("%s (built %s, commit %s)", Version, BuildTime, GitCommit)
}
