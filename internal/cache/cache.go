// Package cache is a path-keyed, write-once store of downloaded
// archives. Entries are staged in a tmp subdirectory and renamed into
// place, so a present entry is always complete.
package cache

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kazhuravlev/optional"
	"github.com/spf13/afero"

	"github.com/asottile/rubyvenv/internal/fsh"
)

const (
	// EnvCacheDir overrides the cache root entirely.
	EnvCacheDir = "RUBYVENV_CACHE_DIR"
	// EnvXDGCacheHome is the conventional cache home the root defaults to.
	EnvXDGCacheHome = "XDG_CACHE_HOME"

	appDirName = "rubyvenv"
	tmpDirName = "tmp"
)

// SourceOpener produces the byte stream for a cache miss. It is only
// invoked when the entry does not exist yet.
type SourceOpener func(ctx context.Context) (io.ReadCloser, error)

type Cache struct {
	fs   fsh.FS
	root string
}

// New resolves the cache root and returns a Cache. Resolution order:
// explicit root, $RUBYVENV_CACHE_DIR, $XDG_CACHE_HOME/rubyvenv,
// ~/.cache/rubyvenv.
func New(fSys fsh.FS, root optional.Val[string]) (*Cache, error) {
	rootDir, ok := root.Get()
	if !ok {
		resolved, err := defaultRoot(fSys)
		if err != nil {
			return nil, fmt.Errorf("resolve cache root: %w", err)
		}

		rootDir = resolved
	}

	return &Cache{
		fs:   fSys,
		root: rootDir,
	}, nil
}

func defaultRoot(fSys fsh.FS) (string, error) {
	if dir := os.Getenv(EnvCacheDir); dir != "" {
		return dir, nil
	}

	if dir := os.Getenv(EnvXDGCacheHome); dir != "" {
		return filepath.Join(dir, appDirName), nil
	}

	home, err := fSys.GetHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(home, ".cache", appDirName), nil
}

func (c *Cache) Root() string {
	return c.root
}

// Ensure returns the local path of the entry at relPath, downloading it
// first when absent. A present entry is returned as-is: no freshness or
// integrity check. Population is all-or-nothing: on any failure the
// staged temp file is removed and the final path stays absent.
func (c *Cache) Ensure(ctx context.Context, relPath string, open SourceOpener) (string, error) {
	path := filepath.Join(c.root, relPath)
	if fsh.IsExists(c.fs, path) {
		return path, nil
	}

	if err := c.fs.MkdirAll(filepath.Dir(path), fsh.DefaultDirPerm); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}

	tmpDir := filepath.Join(c.root, tmpDirName)
	if err := c.fs.MkdirAll(tmpDir, fsh.DefaultDirPerm); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}

	// Serialize concurrent acquisitions of the same entry. The rename
	// below stays the atomicity anchor; the lock only avoids duplicate
	// downloads.
	lockPath := path + ".lock"
	unlock, err := c.fs.Lock(ctx, lockPath)
	if err != nil {
		return "", fmt.Errorf("lock cache entry: %w", err)
	}
	defer func() {
		unlock()
		_ = c.fs.Remove(lockPath)
	}()

	// Another process may have populated the entry while we waited.
	if fsh.IsExists(c.fs, path) {
		return path, nil
	}

	tmp, err := afero.TempFile(c.fs, tmpDir, "download-")
	if err != nil {
		return "", fmt.Errorf("create staging file: %w", err)
	}

	if err := fill(ctx, tmp, open); err != nil {
		_ = c.fs.Remove(tmp.Name())
		return "", err
	}

	if err := c.fs.Rename(tmp.Name(), path); err != nil {
		_ = c.fs.Remove(tmp.Name())
		return "", fmt.Errorf("commit cache entry: %w", err)
	}

	return path, nil
}

// fill copies the source stream into the staged file and always closes
// both ends.
func fill(ctx context.Context, dst afero.File, open SourceOpener) error {
	defer dst.Close() //nolint:errcheck

	src, err := open(ctx)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer src.Close() //nolint:errcheck

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copy source: %w", err)
	}

	if err := dst.Close(); err != nil {
		return fmt.Errorf("close staging file: %w", err)
	}

	return nil
}
