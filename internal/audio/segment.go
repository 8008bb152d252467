package audio

import (
	"github.com/maauso/audiocards/internal/transcript"
)

// NamedChunk is one segment of a recording with its display name.
// The name is "{index}-{label}-{suffix}" and carries no file extension.
type NamedChunk struct {
	Name  string
	Audio *Waveform
}

// SegmentOpts configures silence-based segmentation.
type SegmentOpts struct {
	// MinSilenceMs is the shortest pause that separates two chunks.
	MinSilenceMs int
	// SilenceThreshDB is the level in dBFS at or below which audio is a pause.
	SilenceThreshDB float64
	// PadMs of digital silence is added before and after every chunk.
	PadMs int
	// KeepSilenceMs of source audio around each span is kept before padding.
	KeepSilenceMs int
}

// DefaultSegmentOpts returns the options used for narration recordings.
func DefaultSegmentOpts() SegmentOpts {
	return SegmentOpts{
		MinSilenceMs:    1000,
		SilenceThreshDB: -50,
		PadMs:           150,
		KeepSilenceMs:   0,
	}
}

// Segment splits src at its pauses. Every non-silent span becomes one chunk,
// in chronological order, padded with opts.PadMs of silence on both sides.
// Chunk i (1-based) is labelled from lines[i-1], see transcript.Label.
// Progress is reported after each chunk.
func Segment(src *Waveform, lines []string, suffix string, opts SegmentOpts, progress Progress) []NamedChunk {
	spans := DetectNonsilent(src, SilenceOpts{
		MinSilenceMs:    opts.MinSilenceMs,
		SilenceThreshDB: opts.SilenceThreshDB,
	})

	reporter := NewReporter(progress)
	length := src.DurationMs()
	keep := max(opts.KeepSilenceMs, 0)

	chunks := make([]NamedChunk, 0, len(spans))
	for i, span := range spans {
		raw := src.Slice(max(span.StartMs-keep, 0), min(span.EndMs+keep, length))
		chunks = append(chunks, NamedChunk{
			Name:  transcript.ChunkName(lines, i+1, suffix),
			Audio: raw.Pad(opts.PadMs),
		})
		reporter.Fraction(i+1, len(spans), 0, 100)
	}
	return chunks
}
