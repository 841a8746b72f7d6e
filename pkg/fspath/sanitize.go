package fspath

import "strings"

// Sanitize removes characters that are not allowed in file names on common
// filesystems: control characters, `"`, `<`, `>`, `|`, `:`, `*`, `?`, `\` and
// `/`. Runes listed in keep are left in place.
func Sanitize(name string, keep ...rune) string {
	return strings.Map(func(r rune) rune {
		if invalidRune(r) && !containsRune(keep, r) {
			return -1
		}
		return r
	}, name)
}

func invalidRune(r rune) bool {
	if r < 32 {
		return true
	}
	switch r {
	case '"', '<', '>', '|', ':', '*', '?', '\\', '/':
		return true
	}
	return false
}

func containsRune(set []rune, r rune) bool {
	for _, k := range set {
		if k == r {
			return true
		}
	}
	return false
}
