// Package anki attaches audio file references to flashcard table rows.
package anki

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/maauso/audiocards/internal/audio"
	"github.com/maauso/audiocards/internal/order"
	"github.com/maauso/audiocards/internal/transcript"
)

// ErrEmptyInput is returned when there are neither rows nor file names to pair.
var ErrEmptyInput = errors.New("no rows and no file names to pair")

// Row is one record of a tab-delimited flashcard table.
type Row []string

// CountMismatchError is returned when the number of rows and file names differ.
type CountMismatchError struct {
	Rows  int
	Files int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("row count %d does not match file count %d", e.Rows, e.Files)
}

// SoundTag returns the card reference Anki resolves to a media file.
func SoundTag(name string) string {
	return "[sound:" + name + "]"
}

// ParseRows reads a tab-delimited table. Invalid UTF-8 is dropped and an
// empty line yields an empty row.
//
// A field that opens with a double quote may contain tabs and may run over
// several lines, which are joined without a separator; it closes at the next
// lone quote and "" inside it is a literal quote. Text after the closing quote
// is kept as part of the field, and quotes in a field that did not open with
// one are plain text. A quote still open at the end of input closes there.
func ParseRows(data []byte) ([]Row, error) {
	var p rowParser
	for _, line := range transcript.Lines(data) {
		for _, r := range line {
			p.char(r)
		}
		p.endOfLine()
	}
	if p.state == inQuotedField {
		p.saveField()
		p.endRecord()
	}
	if p.rows == nil {
		return []Row{}, nil
	}
	return p.rows, nil
}

type parseState int

const (
	startRecord parseState = iota
	startField
	inField
	inQuotedField
	quoteInQuotedField
)

type rowParser struct {
	rows  []Row
	row   Row
	field strings.Builder
	state parseState
}

func (p *rowParser) char(r rune) {
	switch p.state {
	case startRecord, startField:
		switch r {
		case '"':
			p.state = inQuotedField
		case '\t':
			p.saveField()
		default:
			p.field.WriteRune(r)
			p.state = inField
		}
	case inField:
		if r == '\t' {
			p.saveField()
			return
		}
		p.field.WriteRune(r)
	case inQuotedField:
		if r == '"' {
			p.state = quoteInQuotedField
			return
		}
		p.field.WriteRune(r)
	case quoteInQuotedField:
		switch r {
		case '"':
			p.field.WriteRune(r)
			p.state = inQuotedField
		case '\t':
			p.saveField()
		default:
			p.field.WriteRune(r)
			p.state = inField
		}
	}
}

func (p *rowParser) endOfLine() {
	switch p.state {
	case inQuotedField:
		// The field continues on the next line.
		return
	case startRecord:
		p.rows = append(p.rows, Row{})
		return
	}
	p.saveField()
	p.endRecord()
}

func (p *rowParser) saveField() {
	p.row = append(p.row, p.field.String())
	p.field.Reset()
	p.state = startField
}

func (p *rowParser) endRecord() {
	p.rows = append(p.rows, p.row)
	p.row = nil
	p.state = startRecord
}

// Pair appends one sound reference to each row.
//
// Names are ordered by the number in them (see package order) and row i is
// paired with the i-th name. Neither input is modified. Progress is reported
// after each row.
func Pair(rows []Row, names []string, progress audio.Progress) ([]Row, error) {
	if len(rows) != len(names) {
		return nil, &CountMismatchError{Rows: len(rows), Files: len(names)}
	}
	if len(rows) == 0 {
		return nil, ErrEmptyInput
	}

	sorted := order.Names(names)
	reporter := audio.NewReporter(progress)

	paired := make([]Row, len(rows))
	for i, row := range rows {
		out := slices.Grow(slices.Clone(row), 1)
		paired[i] = append(out, SoundTag(sorted[i]))
		reporter.Fraction(i+1, len(rows), 0, 100)
	}
	return paired, nil
}

// WriteRows writes rows as tab-delimited UTF-8 with "\n" line endings.
func WriteRows(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush rows: %w", err)
	}
	return nil
}
