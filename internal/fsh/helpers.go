package fsh

import (
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

func IsExists(fSys FS, path string) bool {
	exists, err := afero.Exists(fSys, path)
	if err != nil {
		return false
	}

	return exists
}

func Abs(fSys FS, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}

	return filepath.Join(fSys.GetCurrentDir(), path)
}

var archiveExts = []string{".tar.gz", ".tgz", ".tar.bz2", ".tar.xz"}

// Ext works like filepath.Ext but supports .tar.gz extensions.
func Ext(filename string) string {
	base := strings.ToLower(filepath.Base(filename))

	for _, ext := range archiveExts {
		if strings.HasSuffix(base, ext) {
			return ext
		}
	}

	return filepath.Ext(base)
}
