package fsh

import (
	"context"

	"github.com/spf13/afero"
)

type FS interface {
	afero.Fs
	afero.Linker
	GetCurrentDir() string
	GetHomeDir() (string, error)
	Lock(ctx context.Context, filename string) (func(), error)
}
