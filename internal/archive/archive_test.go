package archive_test

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/asottile/rubyvenv/internal/archive"
	"github.com/asottile/rubyvenv/internal/fsh"
)

func TestAdjustName(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		exp     string
		expKeep bool
	}{
		{
			name:    "wrapper_directory_maps_to_root",
			in:      "ruby-2.3.1",
			exp:     "",
			expKeep: true,
		},
		{
			name:    "wrapper_directory_with_slash",
			in:      "ruby-2.3.1/",
			exp:     "",
			expKeep: true,
		},
		{
			name:    "regular_file",
			in:      "ruby-2.3.1/bin/ruby",
			exp:     "bin/ruby",
			expKeep: true,
		},
		{
			name:    "nested_directory",
			in:      "ruby-2.3.1/lib/ruby/2.3.0/",
			exp:     "lib/ruby/2.3.0",
			expKeep: true,
		},
		{
			name:    "cache_directory_dropped",
			in:      "ruby-2.3.1/cache",
			expKeep: false,
		},
		{
			name:    "cache_directory_with_slash_dropped",
			in:      "ruby-2.3.1/cache/",
			expKeep: false,
		},
		{
			name:    "file_inside_cache_dropped",
			in:      "ruby-2.3.1/cache/ruby-2.3.1.tar.bz2",
			expKeep: false,
		},
		{
			name:    "nested_cache_dropped",
			in:      "ruby-2.3.1/lib/cache/foo",
			expKeep: false,
		},
		{
			name:    "cache_prefix_is_not_cache",
			in:      "ruby-2.3.1/cachefoo/bar",
			exp:     "cachefoo/bar",
			expKeep: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, keep := archive.AdjustName(tt.in)
			require.Equal(t, tt.expKeep, keep)
			if tt.expKeep {
				require.Equal(t, tt.exp, got)
			}
		})
	}
}

type tarEntry struct {
	name     string
	typeflag byte
	content  string
	linkname string
}

func buildTarGz(t *testing.T, entries []tarEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for _, e := range entries {
		hdr := &tar.Header{
			Name:     e.name,
			Typeflag: e.typeflag,
			Linkname: e.linkname,
			Mode:     0o755,
			Size:     int64(len(e.content)),
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if e.typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(e.content))
			require.NoError(t, err)
		}
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	return buf.Bytes()
}

func TestExtract(t *testing.T) {
	fs := fsh.NewMemFS(nil)

	data := buildTarGz(t, []tarEntry{
		{name: "ruby-2.3.1", typeflag: tar.TypeDir},
		{name: "ruby-2.3.1/bin", typeflag: tar.TypeDir},
		{name: "ruby-2.3.1/bin/ruby", typeflag: tar.TypeReg, content: "#!ruby"},
		{name: "ruby-2.3.1/lib/libruby.so", typeflag: tar.TypeReg, content: "elf"},
		{name: "ruby-2.3.1/bin/ruby2.3", typeflag: tar.TypeLink, linkname: "ruby-2.3.1/bin/ruby"},
		{name: "ruby-2.3.1/cache", typeflag: tar.TypeSymlink, linkname: "/missing"},
		{name: "ruby-2.3.1/cache/ruby-2.3.1.tar.bz2", typeflag: tar.TypeReg, content: "nested archive"},
	})
	require.NoError(t, afero.WriteFile(fs, "/cache/ruby-2.3.1.tar.gz", data, 0o644))

	require.NoError(t, archive.Extract(fs, "/cache/ruby-2.3.1.tar.gz", "/dest"))

	content, err := afero.ReadFile(fs, "/dest/bin/ruby")
	require.NoError(t, err)
	require.Equal(t, "#!ruby", string(content))

	content, err = afero.ReadFile(fs, "/dest/lib/libruby.so")
	require.NoError(t, err)
	require.Equal(t, "elf", string(content))

	content, err = afero.ReadFile(fs, "/dest/bin/ruby2.3")
	require.NoError(t, err)
	require.Equal(t, "#!ruby", string(content))

	require.False(t, fsh.IsExists(fs, "/dest/cache"))
	require.False(t, fsh.IsExists(fs, "/dest/cache/ruby-2.3.1.tar.bz2"))
}

func TestExtractUnsupportedMember(t *testing.T) {
	fs := fsh.NewMemFS(nil)

	data := buildTarGz(t, []tarEntry{
		{name: "ruby-2.3.1", typeflag: tar.TypeDir},
		{name: "ruby-2.3.1/dev/fifo", typeflag: tar.TypeFifo},
	})
	require.NoError(t, afero.WriteFile(fs, "/cache/ruby-2.3.1.tar.gz", data, 0o644))

	err := archive.Extract(fs, "/cache/ruby-2.3.1.tar.gz", "/dest")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported tar member")
}

func TestExtractUnsupportedType(t *testing.T) {
	fs := fsh.NewMemFS(map[string]string{
		"/cache/ruby.rar": "not an archive",
	})

	err := archive.Extract(fs, "/cache/ruby.rar", "/dest")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported archive type")
}

func TestExtractMalformedArchive(t *testing.T) {
	fs := fsh.NewMemFS(map[string]string{
		"/cache/ruby.tar.gz": "definitely not gzip",
	})

	err := archive.Extract(fs, "/cache/ruby.tar.gz", "/dest")
	require.Error(t, err)
}
