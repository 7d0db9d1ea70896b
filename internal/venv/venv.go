// Package venv provisions an isolated, relocatable ruby runtime
// directory: it fetches the platform's prebuilt archive through the
// content cache, unpacks it into the destination and writes the
// activation script.
package venv

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"path/filepath"

	"github.com/kazhuravlev/optional"
	"github.com/schollz/progressbar/v3"

	"github.com/asottile/rubyvenv/internal/archive"
	"github.com/asottile/rubyvenv/internal/cache"
	"github.com/asottile/rubyvenv/internal/catalog"
	"github.com/asottile/rubyvenv/internal/fsh"
	"github.com/asottile/rubyvenv/internal/platform"
)

type Env struct {
	fs       fsh.FS
	cache    *cache.Cache
	client   *http.Client
	platform platform.Identity
	progress bool
}

type Option func(*Env)

func WithHTTPClient(client *http.Client) Option {
	return func(e *Env) {
		if client != nil {
			e.client = client
		}
	}
}

// WithProgress toggles the download progress bar. Off by default so
// tests and scripted use stay quiet.
func WithProgress(enabled bool) Option {
	return func(e *Env) {
		e.progress = enabled
	}
}

func New(fSys fsh.FS, cch *cache.Cache, plat platform.Identity, opts ...Option) *Env {
	e := &Env{
		fs:       fSys,
		cache:    cch,
		client:   http.DefaultClient,
		platform: plat,
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// CacheRelPath keys a cache entry by platform and archive filename.
func CacheRelPath(plat platform.Identity, version string) string {
	return filepath.Join(plat.Name, plat.Version, plat.Arch, catalog.VersionToFilename(version))
}

// Install fetches the version's archive (via the cache), extracts it
// into dest and writes bin/activate. The destination is not cleaned up
// when extraction fails partway; a retry after such a failure is not
// guaranteed to be idempotent.
func (e *Env) Install(ctx context.Context, dest string, ver catalog.Version) error {
	relPath := CacheRelPath(e.platform, ver.Version)

	tarPath, err := e.cache.Ensure(ctx, relPath, e.download(ver.URL))
	if err != nil {
		return fmt.Errorf("fetch archive (%s): %w", ver.URL, err)
	}

	dest = fsh.Abs(e.fs, dest)
	if err := e.fs.MkdirAll(dest, fsh.DefaultDirPerm); err != nil {
		return fmt.Errorf("create dest dir (%s): %w", dest, err)
	}

	if err := archive.Extract(e.fs, tarPath, dest); err != nil {
		return fmt.Errorf("extract archive (%s): %w", tarPath, err)
	}

	if err := WriteActivate(e.fs, dest, optional.Empty[string]()); err != nil {
		return fmt.Errorf("write activate script: %w", err)
	}

	return nil
}

// InstallSystem wires the environment to the ruby already on $PATH:
// dest/bin gets symlinks to the system ruby and gem, and the activation
// script redirects GEM_HOME into the environment so installed gems stay
// isolated.
func (e *Env) InstallSystem(_ context.Context, dest string) error {
	rubyBin, err := exec.LookPath("ruby")
	if err != nil {
		return fmt.Errorf("system ruby not found on PATH: %w", err)
	}

	gemBin, err := exec.LookPath("gem")
	if err != nil {
		return fmt.Errorf("system gem not found on PATH: %w", err)
	}

	dest = fsh.Abs(e.fs, dest)
	binDir := filepath.Join(dest, "bin")
	if err := e.fs.MkdirAll(binDir, fsh.DefaultDirPerm); err != nil {
		return fmt.Errorf("create bin dir (%s): %w", binDir, err)
	}

	for _, src := range []string{rubyBin, gemBin} {
		link := filepath.Join(binDir, filepath.Base(src))
		if fsh.IsExists(e.fs, link) {
			if err := e.fs.Remove(link); err != nil {
				return fmt.Errorf("remove stale link (%s): %w", link, err)
			}
		}

		if err := e.fs.SymlinkIfPossible(src, link); err != nil {
			return fmt.Errorf("link %s: %w", link, err)
		}
	}

	if err := WriteActivate(e.fs, dest, optional.New(gemHomeAssignments)); err != nil {
		return fmt.Errorf("write activate script: %w", err)
	}

	return nil
}

func (e *Env) download(url string) cache.SourceOpener {
	return func(ctx context.Context) (io.ReadCloser, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		resp, err := e.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("get (%s): %w", url, err)
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close() //nolint:errcheck
			return nil, fmt.Errorf("get (%s): unexpected status %s", url, resp.Status)
		}

		if !e.progress {
			return resp.Body, nil
		}

		bar := progressbar.DefaultBytes(resp.ContentLength, filepath.Base(url))
		reader := progressbar.NewReader(resp.Body, bar)

		return &reader, nil
	}
}
