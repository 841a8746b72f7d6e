package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"

	"updater/pkg/fspath"
)

// Zip writes src into a new zip file at dst. Entry names are relative to src
// and use `/`. Directories get their own entry before their children. When src
// is a single file its name is used as the entry name.
func Zip(src, dst fspath.Path) error {
	if _, err := dst.ForceDir(false).Prepare(); err != nil {
		return fmt.Errorf("failed to create parent directory for %s: %w", dst, err)
	}
	f, err := os.Create(dst.String())
	if err != nil {
		return fmt.Errorf("failed to create zip archive: %w", err)
	}

	zw := zip.NewWriter(f)
	if err := writeTree(zw, src, dst); err != nil {
		zw.Close()
		f.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("failed to finish zip archive: %w", err)
	}
	return f.Close()
}

func writeTree(zw *zip.Writer, root, dst fspath.Path) error {
	stack := []fspath.Path{root}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.Equal(dst) {
			continue
		}

		info, err := os.Stat(p.String())
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", p, err)
		}

		name, err := entryName(root, p)
		if err != nil {
			return err
		}

		if info.IsDir() {
			if name != "" {
				if err := writeDirEntry(zw, name, info); err != nil {
					return err
				}
			}
			children := p.Files()
			for i := len(children) - 1; i >= 0; i-- {
				stack = append(stack, children[i])
			}
			continue
		}

		if name == "" {
			name = p.Name()
		}
		if err := writeFileEntry(zw, name, p, info); err != nil {
			return err
		}
	}
	return nil
}

func entryName(root, p fspath.Path) (string, error) {
	rel, err := filepath.Rel(root.String(), p.String())
	if err != nil {
		return "", fmt.Errorf("failed to get relative path: %w", err)
	}
	if rel == "." {
		return "", nil
	}
	return filepath.ToSlash(rel), nil
}

func writeDirEntry(zw *zip.Writer, name string, info os.FileInfo) error {
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to create zip header: %w", err)
	}
	header.Name = name + "/"
	header.Method = zip.Store
	if _, err := zw.CreateHeader(header); err != nil {
		return fmt.Errorf("failed to create directory in zip: %w", err)
	}
	return nil
}

func writeFileEntry(zw *zip.Writer, name string, p fspath.Path, info os.FileInfo) error {
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to create zip header: %w", err)
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create file in zip: %w", err)
	}

	in, err := os.Open(p.String())
	if err != nil {
		return err
	}
	defer in.Close()

	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("failed to write %s to zip: %w", p, err)
	}
	return nil
}
