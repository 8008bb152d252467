package audio

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/maauso/audiocards/internal/order"
)

// ErrInvalidMode is returned for a composition mode other than SAI or LAR.
var ErrInvalidMode = errors.New("invalid composition mode")

// Mode selects how a composition spaces its chunks.
type Mode string

const (
	// ModeSAI follows every chunk with one second of silence and normalises
	// the result to a -3 dBFS peak.
	ModeSAI Mode = "SAI"
	// ModeLAR follows every chunk with silence twice its length, leaving room
	// to repeat it aloud. No gain is applied.
	ModeLAR Mode = "LAR"
)

const (
	// saiFillerMs is the pause after every chunk in SAI mode.
	saiFillerMs = 1000
	// saiPeakDBFS is the peak level of a finished SAI composition.
	saiPeakDBFS = -3.0
)

// ParseMode converts s, case-insensitively, to a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
	return m, nil
}

// IsValid reports whether m is a known mode.
func (m Mode) IsValid() bool {
	return m == ModeSAI || m == ModeLAR
}

// fillerMs returns the pause that follows a trimmed chunk.
func (m Mode) fillerMs(chunk *Waveform) int {
	if m == ModeLAR {
		return 2 * chunk.DurationMs()
	}
	return saiFillerMs
}

// Compose joins chunks into one playback track.
//
// Chunks are ordered by the number in their names (see package order), each is
// trimmed with DefaultTrimOpts and followed by the mode's pause, including
// the last one. In SAI mode the whole track is then shifted so its peak sits at
// exactly -3 dBFS. Trimming covers the first half of the progress range and
// concatenation the second.
//
// An empty chunk list returns an empty waveform. All chunks must share one
// sample rate and channel count.
func Compose(chunks []NamedChunk, mode Mode, progress Progress) (*Waveform, error) {
	if !mode.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	if len(chunks) == 0 {
		return Empty(DefaultSampleRate, 1), nil
	}

	sorted := slices.Clone(chunks)
	order.Sort(sorted, func(c NamedChunk) string { return c.Name })

	reporter := NewReporter(progress)
	total := len(sorted)

	trimmed := make([]*Waveform, total)
	for i, c := range sorted {
		trimmed[i] = Trim(c.Audio, DefaultTrimOpts())
		reporter.Fraction(i+1, total, 0, 50)
	}

	first := trimmed[0]
	parts := make([]*Waveform, 0, 2*total)
	for i, seg := range trimmed {
		if !first.SameFormat(seg) {
			return nil, fmt.Errorf("chunk %q: %w: %d Hz/%d ch vs %d Hz/%d ch",
				sorted[i].Name, ErrFormatMismatch,
				seg.SampleRate(), seg.Channels(), first.SampleRate(), first.Channels())
		}
		parts = append(parts, seg, Silence(mode.fillerMs(seg), seg.SampleRate(), seg.Channels()))
		reporter.Fraction(i+1, total, 50, 50)
	}

	combined, err := Empty(first.SampleRate(), first.Channels()).Append(parts...)
	if err != nil {
		return nil, fmt.Errorf("concatenate chunks: %w", err)
	}

	if mode == ModeSAI {
		if peak := combined.PeakDBFS(); !math.IsInf(peak, -1) {
			combined = combined.ApplyGain(saiPeakDBFS - peak)
		}
	}
	return combined, nil
}
