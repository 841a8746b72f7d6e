package archive

import (
	"fmt"
	"io"
	"strings"

	"updater/pkg/fspath"
)

// ProbeResult is the content of the entry a probe matched.
type ProbeResult struct {
	// Index is the position of the matching name in the candidate list.
	Index int
	Name  string
	Data  []byte
}

// Text returns the entry content as a string.
func (r *ProbeResult) Text() string {
	return string(r.Data)
}

// Probe reads src until it meets an entry whose name equals one of candidates
// and returns that entry's content without extracting anything. Scanning stops
// at the first match. It returns nil when no entry matches or when src is not
// a supported archive.
func Probe(src fspath.Path, candidates ...string) (*ProbeResult, error) {
	format, ok := FormatOf(src)
	if !ok || len(candidates) == 0 {
		return nil, nil
	}

	er, err := open(src, format)
	if err != nil {
		return nil, err
	}
	defer er.Close()

	for {
		rec, r, err := er.Next()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		idx := indexOf(candidates, rec.Name)
		if idx < 0 {
			continue
		}
		if r == nil {
			return &ProbeResult{Index: idx, Name: rec.Name}, nil
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read archive entry %s: %w", rec.Name, err)
		}
		return &ProbeResult{Index: idx, Name: rec.Name, Data: data}, nil
	}
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

// FirstEntry returns the name of the first entry in src, or "" for an empty or
// unsupported archive.
func FirstEntry(src fspath.Path) (string, error) {
	format, ok := FormatOf(src)
	if !ok {
		return "", nil
	}
	er, err := open(src, format)
	if err != nil {
		return "", err
	}
	defer er.Close()

	rec, _, err := er.Next()
	if err == io.EOF {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return rec.Name, nil
}

// MainFolder returns the top-level folder of the first entry in src, or "" if
// that entry sits at the archive root.
func MainFolder(src fspath.Path) (string, error) {
	first, err := FirstEntry(src)
	if err != nil {
		return "", err
	}
	folder, _, found := strings.Cut(first, "/")
	if !found {
		return "", nil
	}
	return folder, nil
}
