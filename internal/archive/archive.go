// Package archive unpacks downloaded source archives into a staging
// directory.
package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// ErrUnsafePath is returned for entries that would land outside the
// destination directory.
var ErrUnsafePath = errors.New("archive entry escapes destination")

// Format identifies an archive container/compression pair.
type Format string

const (
	FormatTar      Format = "tar"
	FormatTarGzip  Format = "tar.gz"
	FormatTarXz    Format = "tar.xz"
	FormatTarZstd  Format = "tar.zst"
	FormatTarBzip2 Format = "tar.bz2"
	FormatZip      Format = "zip"
)

var magics = []struct {
	prefix []byte
	format Format
}{
	{[]byte{0x1f, 0x8b}, FormatTarGzip},
	{[]byte{0xfd, '7', 'z', 'X', 'Z', 0x00}, FormatTarXz},
	{[]byte{0x28, 0xb5, 0x2f, 0xfd}, FormatTarZstd},
	{[]byte("BZh"), FormatTarBzip2},
	{[]byte{'P', 'K', 0x03, 0x04}, FormatZip},
	{[]byte{'P', 'K', 0x05, 0x06}, FormatZip},
}

func detect(header []byte) Format {
	for _, m := range magics {
		if bytes.HasPrefix(header, m.prefix) {
			return m.format
		}
	}
	return FormatTar
}

// Detect reports the format of the archive at path from its leading bytes.
func Detect(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	header := make([]byte, 6)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read archive header: %w", err)
	}
	return detect(header[:n]), nil
}

// Extract unpacks the archive at archivePath into destDir, which is
// created if needed.
func Extract(archivePath, destDir string) error {
	format, err := Detect(archivePath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", destDir, err)
	}

	if format == FormatZip {
		return extractZip(archivePath, destDir)
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()
	br := bufio.NewReader(f)

	var r io.Reader
	switch format {
	case FormatTarGzip:
		gz, err := gzip.NewReader(br)
		if err != nil {
			return fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	case FormatTarXz:
		xr, err := xz.NewReader(br)
		if err != nil {
			return fmt.Errorf("failed to create xz reader: %w", err)
		}
		r = xr
	case FormatTarZstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			return fmt.Errorf("failed to create zstd reader: %w", err)
		}
		defer zr.Close()
		r = zr
	case FormatTarBzip2:
		r = bzip2.NewReader(br)
	default:
		r = br
	}

	if err := extractTar(r, destDir); err != nil {
		return fmt.Errorf("failed to extract %s (%s): %w", filepath.Base(archivePath), format, err)
	}
	return nil
}

func extractTar(r io.Reader, destDir string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar header: %w", err)
		}

		switch hdr.Typeflag {
		case tar.TypeXGlobalHeader, tar.TypeXHeader:
			// GitHub tarballs carry the commit id in a global pax header.
			continue
		}

		target, err := safeJoin(destDir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := checkAncestors(destDir, target, true); err != nil {
				return err
			}
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("creating directory %s: %w", hdr.Name, err)
			}
		case tar.TypeReg:
			if err := writeFile(destDir, target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := writeSymlink(destDir, target, hdr.Linkname); err != nil {
				return err
			}
		default:
			// Hard links, devices and FIFOs are never install sources.
		}
	}
}

func extractZip(archivePath, destDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open zip: %w", err)
	}
	defer zr.Close()

	for _, zf := range zr.File {
		target, err := safeJoin(destDir, zf.Name)
		if err != nil {
			return err
		}
		mode := zf.Mode()

		switch {
		case mode.IsDir():
			if err := checkAncestors(destDir, target, true); err != nil {
				return err
			}
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("creating directory %s: %w", zf.Name, err)
			}
		case mode&os.ModeSymlink != 0:
			rc, err := zf.Open()
			if err != nil {
				return fmt.Errorf("opening %s: %w", zf.Name, err)
			}
			link, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return fmt.Errorf("reading link %s: %w", zf.Name, err)
			}
			if err := writeSymlink(destDir, target, string(link)); err != nil {
				return err
			}
		default:
			rc, err := zf.Open()
			if err != nil {
				return fmt.Errorf("opening %s: %w", zf.Name, err)
			}
			err = writeFile(destDir, target, rc, mode.Perm())
			rc.Close()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// safeJoin resolves an archive entry name under destDir.
func safeJoin(destDir, name string) (string, error) {
	if name == "" || filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	rel := filepath.Clean(filepath.FromSlash(name))
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return filepath.Join(destDir, rel), nil
}

// checkAncestors rejects target when a path component between destDir and
// target is a symlink, so that no write is redirected by a link extracted
// earlier. With self set the final component is checked as well.
func checkAncestors(destDir, target string, self bool) error {
	rel, err := filepath.Rel(destDir, target)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnsafePath, target)
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if !self {
		parts = parts[:len(parts)-1]
	}
	cur := destDir
	for _, part := range parts {
		if part == "." {
			continue
		}
		cur = filepath.Join(cur, part)
		info, err := os.Lstat(cur)
		if os.IsNotExist(err) {
			// Everything below is created as plain directories.
			return nil
		}
		if err != nil {
			return fmt.Errorf("checking %s: %w", cur, err)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("%w: %s passes through symlink %s", ErrUnsafePath, rel, part)
		}
	}
	return nil
}

func writeFile(destDir, target string, r io.Reader, perm os.FileMode) error {
	if err := checkAncestors(destDir, target, true); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	// The owner must be able to clean the staging tree up afterwards.
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0600)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", target, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("copying file contents: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", target, err)
	}
	return os.Chmod(target, perm|0600)
}

// writeSymlink creates a link whose target stays inside destDir no matter
// how other links in the tree resolve: ".." may only lead the link target,
// and an existing entry is never replaced by a link.
func writeSymlink(destDir, target, linkname string) error {
	if filepath.IsAbs(linkname) || strings.HasPrefix(linkname, "/") {
		return fmt.Errorf("%w: symlink %s -> %s", ErrUnsafePath, target, linkname)
	}
	named := false
	for _, part := range strings.Split(filepath.ToSlash(linkname), "/") {
		switch part {
		case "", ".":
		case "..":
			if named {
				return fmt.Errorf("%w: symlink %s -> %s", ErrUnsafePath, target, linkname)
			}
		default:
			named = true
		}
	}
	if err := checkAncestors(destDir, target, false); err != nil {
		return err
	}
	if _, err := os.Lstat(target); err == nil {
		return fmt.Errorf("%w: symlink %s would replace an existing entry", ErrUnsafePath, target)
	}
	resolved := filepath.Join(filepath.Dir(target), filepath.FromSlash(linkname))
	rel, err := filepath.Rel(destDir, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: symlink %s -> %s", ErrUnsafePath, target, linkname)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := os.Symlink(linkname, target); err != nil {
		return fmt.Errorf("creating symlink %s: %w", target, err)
	}
	return nil
}

// Root returns the directory an install should work from: the single
// top-level directory of the extracted tree if there is exactly one,
// destDir otherwise.
func Root(destDir string) (string, error) {
	entries, err := os.ReadDir(destDir)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", destDir, err)
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(destDir, entries[0].Name()), nil
	}
	return destDir, nil
}
