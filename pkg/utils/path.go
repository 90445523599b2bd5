package utils

import "strings"

// JoinPath joins store path segments, dropping empty ones and stray slashes.
func JoinPath(segs ...string) string {
	parts := make([]string, 0, len(segs))
	for _, s := range segs {
		for _, p := range strings.Split(s, "/") {
			if p != "" {
				parts = append(parts, p)
			}
		}
	}
	return strings.Join(parts, "/")
}

// SplitPath returns the segments of a store path. The root is empty.
func SplitPath(p string) []string {
	p = JoinPath(p)
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// IsSubPath reports whether sub equals parent or lies below it.
func IsSubPath(parent, sub string) bool {
	parent, sub = JoinPath(parent), JoinPath(sub)
	if parent == "" || parent == sub {
		return true
	}
	return strings.HasPrefix(sub, parent+"/")
}

// PathRelated reports whether a write at one path can change the value at the other.
func PathRelated(a, b string) bool {
	return IsSubPath(a, b) || IsSubPath(b, a)
}
