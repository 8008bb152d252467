// Package archive bundles audio files into zip archives and reads them back.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"
)

// Static errors for archive operations.
var (
	// ErrDuplicateEntry is returned when two entries share a name.
	ErrDuplicateEntry = errors.New("duplicate archive entry")
	// ErrInvalidEntry is returned for an entry without a usable file name.
	ErrInvalidEntry = errors.New("invalid archive entry name")
)

// Entry is one file in an archive.
type Entry struct {
	Name string
	Data []byte
}

// Pack writes entries to w as a zip archive, in the given order.
func Pack(w io.Writer, entries []Entry) error {
	seen := make(map[string]struct{}, len(entries))
	zw := zip.NewWriter(w)

	for _, e := range entries {
		name, err := cleanName(e.Name)
		if err != nil {
			_ = zw.Close()
			return err
		}
		if _, dup := seen[name]; dup {
			_ = zw.Close()
			return fmt.Errorf("%w: %s", ErrDuplicateEntry, name)
		}
		seen[name] = struct{}{}

		fw, err := zw.Create(name)
		if err != nil {
			_ = zw.Close()
			return fmt.Errorf("create entry %s: %w", name, err)
		}
		if _, err := fw.Write(e.Data); err != nil {
			_ = zw.Close()
			return fmt.Errorf("write entry %s: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return nil
}

// PackBytes is Pack into a new buffer.
func PackBytes(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := Pack(&buf, entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unpack reads every regular file of a zip archive. Directory entries are
// skipped and entry names are reduced to their base name.
func Unpack(data []byte) ([]Entry, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	entries := make([]Entry, 0, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name, err := cleanName(f.Name)
		if err != nil {
			return nil, err
		}
		content, err := readFile(f)
		if err != nil {
			return nil, fmt.Errorf("read entry %s: %w", f.Name, err)
		}
		entries = append(entries, Entry{Name: name, Data: content})
	}
	return entries, nil
}

func readFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

// cleanName keeps only the final path element of name.
func cleanName(name string) (string, error) {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == ".." || base == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidEntry, name)
	}
	return base, nil
}
