package core

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName is the application name used in data directory paths.
const AppName = "go-upscaler"

// GetDataDirectory returns the platform-specific data directory:
//   - Windows: %APPDATA%\go-upscaler
//   - Linux/macOS: ~/.go-upscaler
//
// The directory is not created.
func GetDataDirectory() string {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, AppName)
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "." + AppName
	}
	return filepath.Join(home, "."+AppName)
}

// GetDataFilePath returns the full path for a file within the data directory.
func GetDataFilePath(elem ...string) string {
	return filepath.Join(append([]string{GetDataDirectory()}, elem...)...)
}
