// Package filestore writes caller-supplied text files, creating parent
// directories as needed.
package filestore

import (
	"os"
	"path/filepath"

	"github.com/dotSlashJack/knitscript-mcp-runner/internal/toolerr"
)

// Write stores content as UTF-8 text at path, overwriting any existing
// file. Parent directories are created recursively. It returns the
// resolved absolute path. A failed write may leave a truncated file
// behind; callers must treat failure as "state unknown".
func Write(path, content string) (string, *toolerr.Error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", toolerr.New(toolerr.IO, "resolve %s: %v", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", toolerr.New(toolerr.IO, "create parent directories for %s: %v", abs, err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return "", toolerr.New(toolerr.IO, "write %s: %v", abs, err)
	}
	return abs, nil
}
