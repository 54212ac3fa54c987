// Package archivetest builds in-memory archives for tests.
package archivetest

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// File is one archive entry. Entries with Dir set are directories;
// entries with Link set are symlinks to Link.
type File struct {
	Name string
	Body string
	Mode int64
	Dir  bool
	Link string
}

// Script is a convenience for an executable regular file.
func Script(name, body string) File {
	return File{Name: name, Body: body, Mode: 0755}
}

// Tar returns an uncompressed tarball of files, preceded by a pax global
// header the way GitHub archives are.
func Tar(tb testing.TB, files ...File) []byte {
	tb.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	global := &tar.Header{
		Typeflag:   tar.TypeXGlobalHeader,
		Name:       "pax_global_header",
		PAXRecords: map[string]string{"comment": "0123456789abcdef0123456789abcdef01234567"},
		Format:     tar.FormatPAX,
	}
	if err := tw.WriteHeader(global); err != nil {
		tb.Fatalf("writing global header: %v", err)
	}

	for _, f := range files {
		hdr := &tar.Header{Name: f.Name, Mode: f.Mode}
		switch {
		case f.Dir:
			hdr.Typeflag = tar.TypeDir
			if hdr.Mode == 0 {
				hdr.Mode = 0755
			}
		case f.Link != "":
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = f.Link
			hdr.Mode = 0777
		default:
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(f.Body))
			if hdr.Mode == 0 {
				hdr.Mode = 0644
			}
		}
		if err := tw.WriteHeader(hdr); err != nil {
			tb.Fatalf("writing header for %s: %v", f.Name, err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := io.WriteString(tw, f.Body); err != nil {
				tb.Fatalf("writing %s: %v", f.Name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		tb.Fatalf("closing tar: %v", err)
	}
	return buf.Bytes()
}

// TarGz returns a gzip-compressed tarball.
func TarGz(tb testing.TB, files ...File) []byte {
	tb.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(Tar(tb, files...)); err != nil {
		tb.Fatalf("gzip: %v", err)
	}
	if err := zw.Close(); err != nil {
		tb.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

// TarXz returns an xz-compressed tarball.
func TarXz(tb testing.TB, files ...File) []byte {
	tb.Helper()
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	if err != nil {
		tb.Fatalf("xz: %v", err)
	}
	if _, err := xw.Write(Tar(tb, files...)); err != nil {
		tb.Fatalf("xz write: %v", err)
	}
	if err := xw.Close(); err != nil {
		tb.Fatalf("xz close: %v", err)
	}
	return buf.Bytes()
}

// TarZst returns a zstd-compressed tarball.
func TarZst(tb testing.TB, files ...File) []byte {
	tb.Helper()
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		tb.Fatalf("zstd: %v", err)
	}
	if _, err := zw.Write(Tar(tb, files...)); err != nil {
		tb.Fatalf("zstd write: %v", err)
	}
	if err := zw.Close(); err != nil {
		tb.Fatalf("zstd close: %v", err)
	}
	return buf.Bytes()
}

// Zip returns a zip archive of files. Symlinks are not supported.
func Zip(tb testing.TB, files ...File) []byte {
	tb.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		name := f.Name
		if f.Dir {
			if name[len(name)-1] != '/' {
				name += "/"
			}
			if _, err := zw.Create(name); err != nil {
				tb.Fatalf("zip dir %s: %v", name, err)
			}
			continue
		}
		hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}
		mode := f.Mode
		if mode == 0 {
			mode = 0644
		}
		hdr.SetMode(os.FileMode(mode).Perm())
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			tb.Fatalf("zip %s: %v", name, err)
		}
		if _, err := io.WriteString(w, f.Body); err != nil {
			tb.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		tb.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}
