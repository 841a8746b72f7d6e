package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"

	"updater/pkg/fspath"
)

// Format identifies an archive container.
type Format string

const (
	FormatZip    Format = "zip"
	FormatTarGz  Format = "tar.gz"
	FormatTarZst Format = "tar.zst"
)

// formats maps a file extension (without dot) to its archive format.
var formats = map[string]Format{
	"zip":  FormatZip,
	"jar":  FormatZip,
	"gz":   FormatTarGz,
	"tgz":  FormatTarGz,
	"zst":  FormatTarZst,
	"tzst": FormatTarZst,
}

// FormatOf returns the format used for p, dispatching on its extension only.
func FormatOf(p fspath.Path) (Format, bool) {
	f, ok := formats[p.ForceDir(false).Extension()]
	return f, ok
}

// Supported reports whether a file named name can be extracted.
func Supported(name string) bool {
	_, ok := FormatOf(fspath.Begin(name))
	return ok
}

// Record describes one entry of an archive stream.
type Record struct {
	Name    string
	Dir     bool
	Regular bool
	Size    int64
	ModTime time.Time
}

// entryReader iterates the entries of one archive. The reader returned by Next
// is valid until the following call.
type entryReader interface {
	Next() (*Record, io.Reader, error)
	Close() error
}

func open(src fspath.Path, format Format) (entryReader, error) {
	switch format {
	case FormatZip:
		return openZip(src)
	case FormatTarGz:
		return openTar(src, func(r io.Reader) (io.Reader, func(), error) {
			gzr, err := gzip.NewReader(r)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to create gzip reader: %w", err)
			}
			return gzr, func() { gzr.Close() }, nil
		})
	case FormatTarZst:
		return openTar(src, func(r io.Reader) (io.Reader, func(), error) {
			zr, err := zstd.NewReader(r)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to create zstd reader: %w", err)
			}
			return zr, zr.Close, nil
		})
	}
	return nil, fmt.Errorf("unsupported archive format: %s", format)
}

type zipEntries struct {
	r    *zip.ReadCloser
	next int
	cur  io.ReadCloser
}

func openZip(src fspath.Path) (entryReader, error) {
	r, err := zip.OpenReader(src.String())
	if err != nil {
		return nil, fmt.Errorf("failed to open zip archive: %w", err)
	}
	return &zipEntries{r: r}, nil
}

func (z *zipEntries) Next() (*Record, io.Reader, error) {
	z.closeCurrent()
	if z.next >= len(z.r.File) {
		return nil, nil, io.EOF
	}
	f := z.r.File[z.next]
	z.next++

	info := f.FileInfo()
	rec := &Record{
		Name:    f.Name,
		Dir:     info.IsDir(),
		Regular: info.Mode().IsRegular(),
		Size:    int64(f.UncompressedSize64),
		ModTime: f.Modified,
	}
	if rec.Dir {
		return rec, nil, nil
	}
	rc, err := f.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open archive entry %s: %w", f.Name, err)
	}
	z.cur = rc
	return rec, rc, nil
}

func (z *zipEntries) closeCurrent() {
	if z.cur != nil {
		z.cur.Close()
		z.cur = nil
	}
}

func (z *zipEntries) Close() error {
	z.closeCurrent()
	return z.r.Close()
}

type tarEntries struct {
	f       *os.File
	tr      *tar.Reader
	release func()
}

func openTar(src fspath.Path, decompress func(io.Reader) (io.Reader, func(), error)) (entryReader, error) {
	f, err := os.Open(src.String())
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	r, release, err := decompress(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &tarEntries{f: f, tr: tar.NewReader(r), release: release}, nil
}

func (t *tarEntries) Next() (*Record, io.Reader, error) {
	hdr, err := t.tr.Next()
	if err == io.EOF {
		return nil, nil, io.EOF
	}
	// Unsafe names are rejected by Extract itself.
	if err != nil && !(errors.Is(err, tar.ErrInsecurePath) && hdr != nil) {
		return nil, nil, fmt.Errorf("failed to read tar header: %w", err)
	}
	return &Record{
		Name:    hdr.Name,
		Dir:     hdr.Typeflag == tar.TypeDir,
		Regular: hdr.Typeflag == tar.TypeReg,
		Size:    hdr.Size,
		ModTime: hdr.ModTime,
	}, t.tr, nil
}

func (t *tarEntries) Close() error {
	t.release()
	return t.f.Close()
}
