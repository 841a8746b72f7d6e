// Package archive writes directory trees into zip files and extracts zip,
// tar.gz and tar.zst archives onto disk.
package archive

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"updater/pkg/fspath"
	"updater/pkg/metrics"
)

// Stats counts what one extraction did.
type Stats struct {
	Files    int
	Dirs     int
	Excluded int
	// Rejected counts entries that would have landed outside the destination
	// or are not regular files or directories.
	Rejected int
}

// Extract unpacks src into dest. The format is chosen from the extension of
// src alone: gz/tgz are gzip-compressed tar, zst/tzst zstd-compressed tar,
// zip/jar zip. Any other extension is ignored without error. A zero dest means
// the directory containing src.
//
// Entry names and exclude items are compared after sanitizing, with `\` read
// as `/`. Extracted files are made executable and get the modification time
// recorded in the archive. Entries that cannot be written are skipped and
// their errors returned joined once the whole archive has been read.
func Extract(src, dest fspath.Path, exclude []string) (Stats, error) {
	var stats Stats

	format, ok := FormatOf(src)
	if !ok {
		slog.Debug("Not an archive, skipping extraction", "path", src)
		return stats, nil
	}
	if dest.IsZero() {
		dest = src.Parent()
	}

	excluded := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		if key := entryKey(e); key != "" {
			excluded[key] = true
		}
	}

	er, err := open(src, format)
	if err != nil {
		return stats, err
	}
	defer er.Close()

	slog.Debug("Extracting archive", "path", src, "format", format, "dest", dest)

	var errs []error
	for {
		rec, r, err := er.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			errs = append(errs, err)
			return stats, errors.Join(errs...)
		}

		key := entryKey(rec.Name)
		if key == "" {
			continue
		}
		if excluded[key] {
			stats.Excluded++
			metrics.RecordSkipped("excluded")
			continue
		}

		target, ok := within(dest, key)
		if !ok {
			slog.Warn("Skipping archive entry outside destination", "entry", rec.Name, "dest", dest)
			stats.Rejected++
			metrics.RecordSkipped("traversal")
			continue
		}

		switch {
		case rec.Dir:
			if err := os.MkdirAll(target.String(), 0755); err != nil {
				errs = append(errs, fmt.Errorf("failed to create directory %s: %w", target, err))
				continue
			}
			stats.Dirs++
		case rec.Regular:
			if err := writeEntry(target, r, rec); err != nil {
				errs = append(errs, err)
				continue
			}
			stats.Files++
			metrics.RecordExtracted(string(format))
		default:
			stats.Rejected++
			metrics.RecordSkipped("type")
		}
	}

	return stats, errors.Join(errs...)
}

// entryKey turns an archive entry name or exclusion item into the relative
// slash-separated form both are compared in.
func entryKey(name string) string {
	name = fspath.Sanitize(strings.ReplaceAll(name, `\`, "/"), '/')
	name = strings.Trim(name, "/")
	if name == "" {
		return ""
	}
	name = path.Clean(name)
	if name == "." {
		return ""
	}
	return name
}

// within joins key onto dest and reports whether the result stays inside it.
func within(dest fspath.Path, key string) (fspath.Path, bool) {
	target := dest.To(filepath.FromSlash(key))
	rel, err := filepath.Rel(dest.String(), target.String())
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return target, false
	}
	return target, true
}

func writeEntry(target fspath.Path, r io.Reader, rec *Record) error {
	if _, err := target.ForceDir(false).Prepare(); err != nil {
		return fmt.Errorf("failed to create parent directory for %s: %w", target, err)
	}

	f, err := os.OpenFile(target.String(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", target, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("failed to write file %s: %w", target, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write file %s: %w", target, err)
	}

	if err := target.Exec(); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", target, err)
	}
	if !rec.ModTime.IsZero() {
		if err := os.Chtimes(target.String(), rec.ModTime, rec.ModTime); err != nil {
			return fmt.Errorf("failed to set modification time on %s: %w", target, err)
		}
	}
	return nil
}
