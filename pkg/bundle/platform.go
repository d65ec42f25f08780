package bundle

import (
	"errors"
	"fmt"
)

// ErrUnsupportedPlatform is returned when no agent release exists for the OS.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// Asset is a VPN agent release archive.
type Asset struct {
	Name   string
	Format Format
}

// releaseAsset maps GOOS/GOARCH onto the upstream release naming.
func releaseAsset(goos, goarch string) (Asset, error) {
	switch goos {
	case "linux":
		arch := goarch
		if goarch == "arm" {
			arch = "arm-7"
		}
		return Asset{Name: fmt.Sprintf("nebula-linux-%s.tar.gz", arch), Format: FormatTarGz}, nil
	case "freebsd":
		return Asset{Name: fmt.Sprintf("nebula-freebsd-%s.tar.gz", goarch), Format: FormatTarGz}, nil
	case "darwin":
		return Asset{Name: "nebula-darwin.zip", Format: FormatZip}, nil
	default:
		return Asset{}, fmt.Errorf("%w: %s/%s (linux, darwin and freebsd are supported)", ErrUnsupportedPlatform, goos, goarch)
	}
}
