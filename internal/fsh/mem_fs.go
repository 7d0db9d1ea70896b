package fsh

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/afero"
)

var _ FS = (*MemFS)(nil)

// MemFS is an in-memory FS for tests. Locks are no-ops because
// afero.MemMapFs is process-local anyway.
type MemFS struct {
	afero.Fs
}

func NewMemFS(files map[string]string) *MemFS {
	fs := afero.NewMemMapFs()
	for path, content := range files {
		_ = afero.WriteFile(fs, path, []byte(content), 0o644)
	}

	return &MemFS{fs}
}

func (m *MemFS) SymlinkIfPossible(oldname, newname string) error {
	return afero.WriteFile(m.Fs, newname, []byte(oldname), 0o777)
}

func (m *MemFS) GetCurrentDir() string {
	return "/"
}

func (m *MemFS) GetHomeDir() (string, error) {
	return "/home/test", nil
}

func (m *MemFS) Lock(_ context.Context, _ string) (func(), error) {
	return func() {}, nil
}

func (m *MemFS) GetTree(dir string) ([]string, error) {
	res := make([]string, 0)
	err := afero.Walk(m, dir, func(path string, info os.FileInfo, err error) error {
		res = append(res, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk dir: %w", err)
	}

	return res, nil
}
