package bundle

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

// Format is an archive encoding.
type Format int

const (
	FormatUnknown Format = iota
	FormatZip
	FormatTarGz
)

func (f Format) String() string {
	switch f {
	case FormatZip:
		return "zip"
	case FormatTarGz:
		return "tar.gz"
	default:
		return "unknown"
	}
}

// ErrUnsafePath is returned for archive entries that would land outside the
// extraction directory.
var ErrUnsafePath = errors.New("archive entry escapes target directory")

var (
	zipMagic  = []byte("PK\x03\x04")
	gzipMagic = []byte{0x1f, 0x8b}
)

// DetectFormat sniffs the archive encoding from the file header.
func DetectFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, err
	}
	defer f.Close()
	head := make([]byte, 4)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return FormatUnknown, fmt.Errorf("read archive header: %w", err)
	}
	head = head[:n]
	switch {
	case bytes.HasPrefix(head, zipMagic):
		return FormatZip, nil
	case bytes.HasPrefix(head, gzipMagic):
		return FormatTarGz, nil
	}
	return FormatUnknown, nil
}

// placeFunc decides where an archive entry goes. ok=false skips the entry.
type placeFunc func(name string) (target string, perm fs.FileMode, ok bool, err error)

// keepTree extracts every regular file below dest, preserving relative paths.
// mode picks the permissions of each entry from its name.
func keepTree(dest string, mode func(name string) fs.FileMode) placeFunc {
	return func(name string) (string, fs.FileMode, bool, error) {
		rel := filepath.Clean(filepath.FromSlash(name))
		if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", 0, false, fmt.Errorf("%w: %s", ErrUnsafePath, name)
		}
		return filepath.Join(dest, rel), mode(rel), true, nil
	}
}

// identityMode keeps private keys readable by root only. Certificates and
// the mesh config stay world-readable so the unprivileged console can
// inspect them.
func identityMode(name string) fs.FileMode {
	if strings.EqualFold(filepath.Ext(name), ".key") {
		return 0o600
	}
	return 0o644
}

// onlyNamed extracts entries whose base name is in names, flattened into dest.
func onlyNamed(dest string, perm fs.FileMode, names ...string) placeFunc {
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}
	return func(name string) (string, fs.FileMode, bool, error) {
		base := filepath.Base(filepath.FromSlash(name))
		if _, ok := want[base]; !ok {
			return "", 0, false, nil
		}
		return filepath.Join(dest, base), perm, true, nil
	}
}

// unpack extracts src according to format and returns the written paths.
func unpack(src string, format Format, place placeFunc) ([]string, error) {
	switch format {
	case FormatZip:
		return extractZip(src, place)
	case FormatTarGz:
		return extractTarGz(src, place)
	default:
		return nil, fmt.Errorf("unsupported archive format for %s", filepath.Base(src))
	}
}

func extractZip(src string, place placeFunc) ([]string, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	var written []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		target, perm, ok, err := place(f.Name)
		if err != nil {
			return written, err
		}
		if !ok {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return written, fmt.Errorf("open %s: %w", f.Name, err)
		}
		err = writeFile(target, rc, perm)
		rc.Close()
		if err != nil {
			return written, err
		}
		written = append(written, target)
	}
	return written, nil
}

func extractTarGz(src string, place placeFunc) ([]string, error) {
	file, err := os.Open(src)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	gzr, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("open gzip: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	var written []string
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return written, fmt.Errorf("read tar: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		target, perm, ok, err := place(header.Name)
		if err != nil {
			return written, err
		}
		if !ok {
			continue
		}
		if err := writeFile(target, tr, perm); err != nil {
			return written, err
		}
		written = append(written, target)
	}
	return written, nil
}

// writeFile replaces target atomically so a running binary is never
// truncated in place.
func writeFile(target string, r io.Reader, perm fs.FileMode) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", target, err)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", target, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", target, err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod %s: %w", target, err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("install %s: %w", target, err)
	}
	return nil
}
