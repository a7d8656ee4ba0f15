// Package static embeds the single-page web UI.
package static

import (
	"embed"
	"io/fs"
)

//go:embed index.html
var files embed.FS

// FS returns the UI files rooted at the directory holding index.html.
func FS() fs.FS {
	return files
}
