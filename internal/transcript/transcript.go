// Package transcript turns uploaded text into lines and chunk labels.
package transcript

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrInvalidSuffix is returned for a chunk name suffix that contains a path separator.
var ErrInvalidSuffix = errors.New("suffix must not contain a path separator")

// nonWord matches everything that is not a letter, digit or underscore.
var nonWord = regexp.MustCompile(`[^\p{L}\p{N}_]`)

// Lines decodes data as UTF-8, silently dropping invalid byte sequences, and
// splits it into lines. \n, \r\n, \r and the Unicode line and record
// separators all end a line. A terminator at the end of the input does not
// produce an empty final line.
func Lines(data []byte) []string {
	text := strings.ToValidUTF8(string(data), "")

	var lines []string
	start := 0
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !isLineBreak(r) {
			i += size
			continue
		}
		lines = append(lines, text[start:i])
		i += size
		if r == '\r' && i < len(text) && text[i] == '\n' {
			i++
		}
		start = i
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}

// Label derives the label of the 1-based chunk index from lines. The line is
// trimmed and stripped of non-word characters. A missing line or a line with
// nothing left falls back to the decimal index.
func Label(lines []string, index int) string {
	if index >= 1 && index <= len(lines) {
		if label := nonWord.ReplaceAllString(strings.TrimSpace(lines[index-1]), ""); label != "" {
			return label
		}
	}
	return strconv.Itoa(index)
}

// CheckSuffix reports whether suffix can be used in a file name. Slash and
// backslash are rejected on every platform.
func CheckSuffix(suffix string) error {
	if strings.ContainsAny(suffix, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidSuffix, suffix)
	}
	return nil
}

// ChunkName builds the display name "{index}-{label}-{suffix}". Path
// separators in suffix are replaced with "_" so the name is always a single
// path element; callers that accept a suffix from users reject those with
// CheckSuffix first.
func ChunkName(lines []string, index int, suffix string) string {
	return strconv.Itoa(index) + "-" + Label(lines, index) + "-" + separators.Replace(suffix)
}

var separators = strings.NewReplacer("/", "_", `\`, "_")

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', 0x1c, 0x1d, 0x1e, 0x85, 0x2028, 0x2029:
		return true
	}
	return false
}
