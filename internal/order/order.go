// Package order implements the file-name ordering convention shared by the
// composer and the Anki row pairer.
//
// A name sorts by the first run of ASCII digits it contains, read as a
// non-negative integer of any size. Names without digits sort after every
// name that has one. Equal keys keep their input order. Downstream tooling
// depends on this literal name format ("12-Hello-Theme-Part-User.mp3"), so the
// key is never taken from anywhere but the name.
package order

import (
	"slices"
	"strings"
)

// Key is the sort key extracted from a name.
type Key struct {
	digits string // leading zeros stripped, empty means zero
	ok     bool
}

// KeyOf returns the sort key of name.
func KeyOf(name string) Key {
	start := strings.IndexFunc(name, isDigit)
	if start < 0 {
		return Key{}
	}
	end := start
	for end < len(name) && isDigit(rune(name[end])) {
		end++
	}
	return Key{digits: strings.TrimLeft(name[start:end], "0"), ok: true}
}

// HasNumber reports whether the name carried a digit run.
func (k Key) HasNumber() bool {
	return k.ok
}

// Compare orders two keys. Keys without a number compare greater than keys
// with one and equal to each other.
func (k Key) Compare(other Key) int {
	switch {
	case !k.ok && !other.ok:
		return 0
	case !k.ok:
		return 1
	case !other.ok:
		return -1
	}
	if len(k.digits) != len(other.digits) {
		if len(k.digits) < len(other.digits) {
			return -1
		}
		return 1
	}
	return strings.Compare(k.digits, other.digits)
}

// Sort stably sorts items in place by the key of name(item).
func Sort[T any](items []T, name func(T) string) {
	slices.SortStableFunc(items, func(a, b T) int {
		return KeyOf(name(a)).Compare(KeyOf(name(b)))
	})
}

// Names returns a sorted copy of names.
func Names(names []string) []string {
	out := slices.Clone(names)
	Sort(out, func(s string) string { return s })
	return out
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
