// Package archive extracts prebuilt ruby tarballs. Member paths are
// rewritten on the fly: the archive's single top-level wrapper
// directory is stripped so files land directly in the destination, and
// the bundled cache subtree is dropped entirely (on some platforms it
// is a broken symlink).
package archive

import (
	"archive/tar"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/ulikunitz/xz"

	"github.com/asottile/rubyvenv/internal/fsh"
)

// AdjustName maps a raw member path to its destination-relative path.
// The second return is false for members that must be skipped. The
// wrapper directory itself maps to "", i.e. the destination root.
func AdjustName(name string) (string, bool) {
	trimmed := strings.TrimSuffix(name, "/")
	if trimmed == "cache" || strings.HasSuffix(trimmed, "/cache") || strings.Contains(trimmed, "/cache/") {
		return "", false
	}

	if _, rest, ok := strings.Cut(trimmed, "/"); ok {
		return rest, true
	}

	return "", true
}

func Extract(fs fsh.FS, archivePath, destDir string) error {
	f, err := fs.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	ext := fsh.Ext(archivePath)

	switch ext {
	case ".tar.gz", ".tgz":
		return extractTar(fs, f, destDir, func(r io.Reader) (io.Reader, error) { return gzip.NewReader(r) })
	case ".tar.bz2":
		return extractTar(fs, f, destDir, func(r io.Reader) (io.Reader, error) { return bzip2.NewReader(r), nil })
	case ".tar.xz":
		return extractTar(fs, f, destDir, func(r io.Reader) (io.Reader, error) { return xz.NewReader(r) })
	}

	return fmt.Errorf("unsupported archive type (%s)", ext)
}

func extractTar(fs fsh.FS, f afero.File, dest string, wrap func(io.Reader) (io.Reader, error)) error {
	reader, err := wrap(f)
	if err != nil {
		return err
	}

	tr := tar.NewReader(reader)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		name, keep := AdjustName(hdr.Name)
		if !keep {
			continue
		}

		if err := extractTarFile(fs, tr, hdr, dest, filepath.Join(dest, name)); err != nil {
			return err
		}
	}

	return nil
}

func extractTarFile(fs fsh.FS, tr *tar.Reader, hdr *tar.Header, dest, target string) error {
	mode := hdr.FileInfo().Mode().Perm()

	switch hdr.Typeflag {
	case tar.TypeDir:
		if err := fs.MkdirAll(target, mode); err != nil {
			return err
		}
	case tar.TypeReg:
		if err := fs.MkdirAll(filepath.Dir(target), fsh.DefaultDirPerm); err != nil {
			return err
		}

		out, err := fs.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
		if err != nil {
			return err
		}

		if _, err := io.Copy(out, tr); err != nil {
			_ = out.Close()
			return err
		}

		if err := out.Close(); err != nil {
			return err
		}
	case tar.TypeSymlink:
		if err := fs.MkdirAll(filepath.Dir(target), fsh.DefaultDirPerm); err != nil {
			return err
		}

		if err := fs.Remove(target); err != nil && !os.IsNotExist(err) {
			return err
		}

		if err := fs.SymlinkIfPossible(hdr.Linkname, target); err != nil {
			return err
		}
	case tar.TypeLink:
		// afero has no hard-link support; materialize the link as a copy
		// of the already-extracted target.
		srcName, keep := AdjustName(hdr.Linkname)
		if !keep {
			return nil
		}

		return copyExtracted(fs, filepath.Join(dest, srcName), target, mode)
	case tar.TypeXGlobalHeader:
		// pax metadata, nothing to write.
	default:
		return fmt.Errorf("unsupported tar member %q (type %d)", hdr.Name, hdr.Typeflag)
	}

	return nil
}

func copyExtracted(fs fsh.FS, src, target string, mode os.FileMode) error {
	in, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck

	if err := fs.MkdirAll(filepath.Dir(target), fsh.DefaultDirPerm); err != nil {
		return err
	}

	out, err := fs.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}

	return out.Close()
}
