package fspath

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/klauspost/compress/gzip"
)

type copyJob struct {
	src Path
	dst Path
}

// Copy copies p to dst. Directories are copied recursively, each child going to
// dst joined with the child's name. A file whose destination already exists is
// replaced when overwrite is set and left untouched otherwise. Failures on
// individual entries do not stop the copy; they are returned joined.
func (p Path) Copy(dst Path, overwrite bool) error {
	var errs []error
	stack := []copyJob{{src: p, dst: dst}}
	for len(stack) > 0 {
		job := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if job.src.IsDir() {
			if err := os.MkdirAll(job.dst.root, 0755); err != nil {
				errs = append(errs, err)
				continue
			}
			children := job.src.Files()
			for i := len(children) - 1; i >= 0; i-- {
				c := children[i]
				stack = append(stack, copyJob{src: c, dst: job.dst.To(c.Name())})
			}
			continue
		}

		if err := copyFile(job.src, job.dst, overwrite); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func copyFile(src, dst Path, overwrite bool) error {
	if sameFile(src, dst) {
		return nil
	}
	if dst.Exists() {
		if !overwrite {
			return nil
		}
		if err := os.Remove(dst.root); err != nil {
			return fmt.Errorf("failed to replace %s: %w", dst, err)
		}
	}

	in, err := os.Open(src.root)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	if _, err := dst.ForceDir(false).Prepare(); err != nil {
		return fmt.Errorf("failed to create parent of %s: %w", dst, err)
	}

	out, err := os.OpenFile(dst.root, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return out.Close()
}

func sameFile(a, b Path) bool {
	if a.Equal(b) {
		return true
	}
	ai, err := os.Stat(a.root)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b.root)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}

// Move copies p to dst and then deletes p. It is not atomic: a failure between
// the two steps leaves both copies on disk. Moving a path onto itself does
// nothing. The returned Path points at dst.
func (p Path) Move(dst Path) (Path, error) {
	if sameFile(p, dst) {
		return Path{root: dst.root}, nil
	}
	if err := p.Copy(dst, true); err != nil {
		return p, err
	}
	p.Delete()
	return Path{root: dst.root}, nil
}

// Delete removes p, emptying directories first. It returns whether the final
// removal of p succeeded; a path that does not exist yields false.
func (p Path) Delete() bool {
	info, err := os.Lstat(p.root)
	if err != nil {
		return false
	}
	if !info.IsDir() {
		return os.Remove(p.root) == nil
	}

	// Collect the tree pre-order and remove it in reverse, children first.
	var order []string
	stack := []string{p.root}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		order = append(order, cur)

		entries, err := os.ReadDir(cur)
		if err != nil {
			continue
		}
		for _, e := range entries {
			child := Path{root: cur}.To(e.Name()).root
			if e.IsDir() {
				stack = append(stack, child)
			} else {
				order = append(order, child)
			}
		}
	}
	for i := len(order) - 1; i > 0; i-- {
		_ = os.Remove(order[i])
	}
	return os.Remove(p.root) == nil
}

// Exec grants read, write and execute to owner, group and others. It does
// nothing on hosts without POSIX permission bits.
func (p Path) Exec() error {
	if runtime.GOOS == "windows" {
		return nil
	}
	return os.Chmod(p.root, 0777)
}

// ReadBytes returns the whole content of the file.
func (p Path) ReadBytes() ([]byte, error) {
	return os.ReadFile(p.root)
}

// ReadString returns the content of the file as text, or "" if it cannot be
// read.
func (p Path) ReadString() string {
	b, err := os.ReadFile(p.root)
	if err != nil {
		return ""
	}
	return string(b)
}

// Write replaces the content of the file, creating parents as needed.
func (p Path) Write(content []byte) error {
	if _, err := p.ForceDir(false).Prepare(); err != nil {
		return err
	}
	return os.WriteFile(p.root, content, 0644)
}

// WriteString is Write for text.
func (p Path) WriteString(content string) error {
	return p.Write([]byte(content))
}

// Append adds content at the end of the file, creating it if needed.
func (p Path) Append(content []byte) error {
	if _, err := p.ForceDir(false).Prepare(); err != nil {
		return err
	}
	f, err := os.OpenFile(p.root, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// OpenGzip returns the decompressed content of a gzip file.
func (p Path) OpenGzip() ([]byte, error) {
	f, err := os.Open(p.root)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gzr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzr.Close()

	return io.ReadAll(gzr)
}
