// Package platform derives the host identity used to select a matching
// prebuilt ruby archive: distribution name, distribution version and
// machine architecture, in the same form the rvm.io binary tree uses
// (e.g. ubuntu/16.04/x86_64).
package platform

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/host"
)

// Identity is immutable after Resolve and is used only for URL and
// cache-path templating.
type Identity struct {
	Name    string // distro id, e.g. "ubuntu"
	Version string // distro version, e.g. "16.04"
	Arch    string // uname -m form, e.g. "x86_64"
}

func (i Identity) String() string {
	return fmt.Sprintf("%s %s (%s)", i.Name, i.Version, i.Arch)
}

// Resolve reads the host distribution identity and machine architecture.
func Resolve(ctx context.Context) (Identity, error) {
	name, _, version, err := host.PlatformInformationWithContext(ctx)
	if err != nil {
		return Identity{}, fmt.Errorf("detect distribution: %w", err)
	}

	arch, err := host.KernelArch()
	if err != nil {
		return Identity{}, fmt.Errorf("detect machine arch: %w", err)
	}

	return Identity{
		Name:    name,
		Version: version,
		Arch:    arch,
	}, nil
}
