package frontend

import (
	"bytes"
	"regexp"
	"strings"
)

var (
	// Pattern: # <line> "<file>" [flags]  (GNU linemarker, also #line <n> "<file>")
	lineMarkerPattern = regexp.MustCompile(`^#\s*(?:line\s+)?(\d+)\s+"((?:[^"\\]|\\.)*)"`)

	// Pattern: #include <path> / #include "path"
	includePattern = regexp.MustCompile(`^\s*#\s*include\s*([<"])([^>"]+)[>"]`)
)

// matchLineMarker returns [line, file] if line is a linemarker
func matchLineMarker(line string) []string {
	if m := lineMarkerPattern.FindStringSubmatch(line); m != nil {
		return []string{m[1], m[2]}
	}
	return nil
}

// matchInclude returns [delimiter, path] if line is an include directive
func matchInclude(line string) []string {
	if m := includePattern.FindStringSubmatch(line); m != nil {
		return []string{m[1], m[2]}
	}
	return nil
}

type span struct {
	start, end int
}

// regions records which bytes of a preprocessed file came from the main
// source file rather than from an included header.
type regions struct {
	all   bool
	main  string
	spans []span
}

// scanRegions splits src at linemarkers. Input without linemarkers is all
// main file. Otherwise the file named by the first marker is the main file.
func scanRegions(src []byte) regions {
	var r regions
	current := ""
	start := 0
	seen := false

	offset := 0
	for offset < len(src) {
		end := bytes.IndexByte(src[offset:], '\n')
		next := len(src)
		if end >= 0 {
			next = offset + end + 1
		}
		line := string(src[offset:next])
		if strings.HasPrefix(strings.TrimLeft(line, " \t"), "#") {
			if m := matchLineMarker(strings.TrimLeft(line, " \t")); m != nil {
				if !seen {
					seen = true
					r.main = m[1]
					current = m[1]
				}
				if current == r.main && offset > start {
					r.spans = append(r.spans, span{start, offset})
				}
				current = m[1]
				start = next
			}
		}
		offset = next
	}

	if !seen {
		r.all = true
		return r
	}
	if current == r.main && start < len(src) {
		r.spans = append(r.spans, span{start, len(src)})
	}
	return r
}

// inMain reports whether the byte at off belongs to the main file.
func (r regions) inMain(off int) bool {
	if r.all {
		return true
	}
	for _, s := range r.spans {
		if off >= s.start && off < s.end {
			return true
		}
	}
	return false
}
