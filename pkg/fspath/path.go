// Package fspath provides Path, a handle over a filesystem location that can be
// navigated, created on demand, copied, moved, deleted, read and written.
//
// A Path is a value type. Whether it denotes a directory is normally derived from
// the filesystem (or, for paths that do not exist yet, from the presence of an
// extension) but can be pinned with ForceDir.
package fspath

import (
	"os"
	"path/filepath"
	"strings"
)

// Path is an absolute, cleaned filesystem location.
type Path struct {
	root string
	dir  *bool
}

// Begin creates a Path from a system path. Relative paths are resolved against
// the working directory.
func Begin(p string) Path {
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	return Path{root: filepath.Clean(p)}
}

// IsZero reports whether p is the zero Path.
func (p Path) IsZero() bool {
	return p.root == ""
}

// To joins one or more segments onto p. The result is normalized, so "." and
// ".." segments are resolved. The directory pin is not carried over.
func (p Path) To(segments ...string) Path {
	parts := make([]string, 0, len(segments)+1)
	parts = append(parts, p.root)
	parts = append(parts, segments...)
	return Path{root: filepath.Join(parts...)}
}

// Parent returns the containing directory.
func (p Path) Parent() Path {
	return Path{root: filepath.Dir(p.root)}
}

// ForceDir returns a copy of p that reports isDir from IsDir regardless of
// what exists on disk.
func (p Path) ForceDir(isDir bool) Path {
	p.dir = &isDir
	return p
}

// String returns the absolute path.
func (p Path) String() string {
	return p.root
}

// Escape returns the path with spaces backslash-escaped.
func (p Path) Escape() string {
	return strings.ReplaceAll(p.root, " ", `\ `)
}

// Quote returns the path wrapped in double quotes.
func (p Path) Quote() string {
	return `"` + p.root + `"`
}

// Equal reports whether both handles point at the same location.
func (p Path) Equal(other Path) bool {
	return p.root == other.root
}

// Exists reports whether anything exists at p.
func (p Path) Exists() bool {
	_, err := os.Stat(p.root)
	return err == nil
}

// IsDir returns the pinned value if set. Otherwise an existing path is asked
// for its type and a missing path is a directory when its name has no
// extension.
func (p Path) IsDir() bool {
	if p.dir != nil {
		return *p.dir
	}
	if info, err := os.Stat(p.root); err == nil {
		return info.IsDir()
	}
	return rawExtension(p.Name()) == ""
}

// Name returns the last path element.
func (p Path) Name() string {
	return filepath.Base(p.root)
}

// Extension returns the text after the last dot of the name, without the dot.
// It is empty when the name has no dot and always empty for directories.
func (p Path) Extension() string {
	if p.IsDir() {
		return ""
	}
	return rawExtension(p.Name())
}

// NameWithoutExtension returns Name with the extension and its dot removed.
func (p Path) NameWithoutExtension() string {
	name := p.Name()
	ext := p.Extension()
	if ext == "" {
		return name
	}
	return strings.TrimSuffix(name, "."+ext)
}

func rawExtension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return name[i+1:]
}

// Prepare makes sure p can be written to: a directory is created together
// with its parents, a file gets its parent chain created.
func (p Path) Prepare() (Path, error) {
	target := p.root
	if !p.IsDir() {
		target = filepath.Dir(p.root)
	}
	if err := os.MkdirAll(target, 0755); err != nil {
		return p, err
	}
	return p, nil
}

// Files lists the direct children of a directory in name order. It returns
// nil for files and for directories that cannot be read.
func (p Path) Files() []Path {
	if !p.IsDir() {
		return nil
	}
	entries, err := os.ReadDir(p.root)
	if err != nil {
		return nil
	}
	files := make([]Path, 0, len(entries))
	for _, e := range entries {
		files = append(files, Path{root: filepath.Join(p.root, e.Name())})
	}
	return files
}

// Size returns the size of a file, or the total size of all files below a
// directory. Errors count as zero.
func (p Path) Size() int64 {
	info, err := os.Stat(p.root)
	if err != nil {
		return 0
	}
	if !info.IsDir() {
		return info.Size()
	}
	var size int64
	_ = filepath.WalkDir(p.root, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			size += fi.Size()
		}
		return nil
	})
	return size
}
