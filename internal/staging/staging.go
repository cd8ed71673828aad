// Package staging mirrors produced artifacts into a fixed cache directory
// so callers can retrieve them from one known location. Staging is
// best-effort: a failed copy is advisory and never aborts the workflow
// that triggered it.
package staging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Cache copies artifacts into Dir, keyed by filename only. Collisions
// silently overwrite; last writer wins.
type Cache struct {
	Dir string
}

// New returns a Cache rooted at dir. The directory is created lazily on
// the first Stage call.
func New(dir string) *Cache {
	return &Cache{Dir: dir}
}

// Stage copies the file at path into the cache, preserving file mode and
// modification time. A missing source is not an error: Stage returns
// ("", nil). The returned string is the staged path on success.
func (c *Cache) Stage(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("stage %s: is a directory", path)
	}

	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create staging directory %s: %w", c.Dir, err)
	}

	staged := filepath.Join(c.Dir, filepath.Base(path))
	if err := copyFile(path, staged, info); err != nil {
		return "", err
	}
	return staged, nil
}

func copyFile(src, dst string, info os.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}

	// Mirror the source mtime so the staged copy carries the artifact's
	// timestamp, not the copy time.
	_ = os.Chtimes(dst, info.ModTime(), info.ModTime())
	return nil
}
