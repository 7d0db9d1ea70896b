// Package catalog resolves ruby version tokens against the rvm.io
// prebuilt binary tree for a concrete platform.
package catalog

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/asottile/rubyvenv/internal/listing"
	"github.com/asottile/rubyvenv/internal/platform"
)

const (
	// DefaultBaseURL is the rvm.io binary tree. The trailing segments are
	// distro name, distro version and machine arch.
	DefaultBaseURL = "https://rvm.io/binaries/"

	filenamePrefix = "ruby-"
	filenameSuffix = ".tar.bz2"

	// Latest is the version token that picks the newest prebuilt entry.
	Latest = "latest"
)

// ErrBadFilename signals an archive filename outside the ruby-<version>.tar.bz2
// naming scheme, which would mean an upstream naming change.
var ErrBadFilename = errors.New("unexpected archive filename")

// Version pairs a version string with the absolute URL of its archive.
type Version struct {
	Version string
	URL     string
}

// FilenameToVersion extracts the version from an archive filename.
// ruby-2.3.1.tar.bz2 => 2.3.1
func FilenameToVersion(filename string) (string, error) {
	if !strings.HasPrefix(filename, filenamePrefix) {
		return "", fmt.Errorf("%w: no %q prefix in %q", ErrBadFilename, filenamePrefix, filename)
	}

	if !strings.HasSuffix(filename, filenameSuffix) {
		return "", fmt.Errorf("%w: no %q suffix in %q", ErrBadFilename, filenameSuffix, filename)
	}

	return filename[len(filenamePrefix) : len(filename)-len(filenameSuffix)], nil
}

// VersionToFilename is the exact inverse of FilenameToVersion.
func VersionToFilename(version string) string {
	return filenamePrefix + version + filenameSuffix
}

type Catalog struct {
	client   *http.Client
	base     string
	platform platform.Identity
}

type Option func(*Catalog)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Catalog) {
		if client != nil {
			c.client = client
		}
	}
}

func WithBaseURL(base string) Option {
	return func(c *Catalog) {
		if base != "" {
			c.base = base
		}
	}
}

func New(plat platform.Identity, opts ...Option) *Catalog {
	c := &Catalog{
		client:   http.DefaultClient,
		base:     DefaultBaseURL,
		platform: plat,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ListingURL is the directory listing for this catalog's platform.
func (c *Catalog) ListingURL() string {
	return fmt.Sprintf("%s%s/%s/%s/", c.base, c.platform.Name, c.platform.Version, c.platform.Arch)
}

// DownloadURL templates the archive URL for a version without touching
// the network.
func (c *Catalog) DownloadURL(version string) (string, error) {
	return joinURL(c.ListingURL(), VersionToFilename(version))
}

// Prebuilt fetches the platform's directory listing and returns every
// prebuilt version in the order the listing presents them. The listing's
// own sort is trusted to be ascending; the result is never re-sorted.
func (c *Catalog) Prebuilt(ctx context.Context) ([]Version, error) {
	listingURL := c.ListingURL()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listingURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	// Ask for uncompressed content and disable the transport's transparent
	// gzip handling. rvm.io ignores this anyway, see decodeResponse.
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch listing (%s): %w", listingURL, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch listing (%s): unexpected status %s", listingURL, resp.Status)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read listing: %w", err)
	}

	text, err := decodeResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}

	hrefs, err := listing.Hrefs(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	var versions []Version
	for _, href := range hrefs {
		if !strings.HasPrefix(href, filenamePrefix) {
			continue
		}

		ver, err := FilenameToVersion(href)
		if err != nil {
			return nil, err
		}

		absURL, err := joinURL(listingURL, href)
		if err != nil {
			return nil, err
		}

		versions = append(versions, Version{Version: ver, URL: absURL})
	}

	return versions, nil
}

// Pick resolves a version token. "latest" picks the last entry of the
// platform's listing; any other token templates a download URL directly
// without a network call or an existence check.
func (c *Catalog) Pick(ctx context.Context, token string) (Version, error) {
	if token != Latest {
		dlURL, err := c.DownloadURL(token)
		if err != nil {
			return Version{}, err
		}

		return Version{Version: token, URL: dlURL}, nil
	}

	versions, err := c.Prebuilt(ctx)
	if err != nil {
		return Version{}, fmt.Errorf("list prebuilt versions: %w", err)
	}

	if len(versions) == 0 {
		return Version{}, fmt.Errorf("no prebuilt versions for %s", c.platform)
	}

	return versions[len(versions)-1], nil
}

// decodeResponse turns a listing body into text. Even though we request
// identity, rvm.io sometimes sends gzip: try plain UTF-8 first in case
// they ever fix their bug, fall back to gunzip.
func decodeResponse(raw []byte) (string, error) {
	if utf8.Valid(raw) {
		return string(raw), nil
	}

	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("response is neither utf-8 nor gzip: %w", err)
	}
	defer gz.Close() //nolint:errcheck

	text, err := io.ReadAll(gz)
	if err != nil {
		return "", fmt.Errorf("decompress response: %w", err)
	}

	if !utf8.Valid(text) {
		return "", errors.New("decompressed response is not utf-8")
	}

	return string(text), nil
}

func joinURL(base, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse url (%s): %w", base, err)
	}

	refURL, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse url (%s): %w", ref, err)
	}

	return baseURL.ResolveReference(refURL).String(), nil
}
