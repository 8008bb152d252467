// Package pipeline runs the four audio card operations end to end, from
// encoded input bytes to encoded output bytes.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/maauso/audiocards/internal/anki"
	"github.com/maauso/audiocards/internal/archive"
	"github.com/maauso/audiocards/internal/audio"
	"github.com/maauso/audiocards/internal/codec"
	"github.com/maauso/audiocards/internal/loudness"
	"github.com/maauso/audiocards/internal/transcript"
)

// ChunkExt is the file extension of every exported chunk.
const ChunkExt = ".mp3"

// Processor runs operations with a codec and a loudness normalizer.
// It holds no per-call state and is safe for concurrent use.
type Processor struct {
	codec      codec.Codec
	normalizer loudness.Normalizer
	segment    audio.SegmentOpts
	logger     *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithSegmentOpts overrides the segmentation options used by Cut.
func WithSegmentOpts(opts audio.SegmentOpts) Option {
	return func(p *Processor) {
		p.segment = opts
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Processor.
func New(c codec.Codec, n loudness.Normalizer, opts ...Option) *Processor {
	p := &Processor{
		codec:      c,
		normalizer: n,
		segment:    audio.DefaultSegmentOpts(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Normalize decodes data, corrects it to target and returns it as MP3.
// Progress is 10 after decoding, 20 before the loudness pass, 70 after it and
// 100 once encoded.
func (p *Processor) Normalize(ctx context.Context, data []byte, target loudness.Target, progress audio.Progress) ([]byte, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	reporter := audio.NewReporter(progress)

	src, err := p.codec.Decode(ctx, data, codec.DecodeOpts{})
	if err != nil {
		return nil, err
	}
	reporter.Report(10)

	reporter.Report(20)
	normalized, err := p.normalizer.Normalize(ctx, src, target)
	if err != nil {
		return nil, fmt.Errorf("normalize loudness: %w", err)
	}
	reporter.Report(70)

	out, err := p.codec.Encode(ctx, normalized)
	if err != nil {
		return nil, err
	}
	reporter.Report(100)

	p.logger.Debug("normalized recording",
		slog.Float64("target_lufs", target.IntegratedLUFS),
		slog.Float64("peak_dbtp", target.TruePeakDBTP),
		slog.Int("duration_ms", normalized.DurationMs()),
	)
	return out, nil
}

// Cut splits a recording at its pauses into one MP3 per phrase, named from
// the transcript lines. Decoding is the first tenth of the progress range,
// segmentation runs to 50 and encoding the chunks fills the rest.
func (p *Processor) Cut(ctx context.Context, data, transcriptData []byte, suffix string, progress audio.Progress) ([]archive.Entry, error) {
	if err := transcript.CheckSuffix(suffix); err != nil {
		return nil, err
	}
	reporter := audio.NewReporter(progress)

	src, err := p.codec.Decode(ctx, data, codec.DecodeOpts{})
	if err != nil {
		return nil, err
	}
	reporter.Report(10)

	lines := transcript.Lines(transcriptData)
	chunks := audio.Segment(src, lines, suffix, p.segment, reporter.Sub(10, 40))
	reporter.Report(50)

	entries := make([]archive.Entry, 0, len(chunks))
	for i, c := range chunks {
		encoded, err := p.codec.Encode(ctx, c.Audio)
		if err != nil {
			return nil, fmt.Errorf("encode chunk %s: %w", c.Name, err)
		}
		entries = append(entries, archive.Entry{Name: c.Name + ChunkExt, Data: encoded})
		reporter.Fraction(i+1, len(chunks), 50, 50)
	}
	reporter.Report(100)

	p.logger.Debug("cut recording",
		slog.Int("chunks", len(entries)),
		slog.Int("transcript_lines", len(lines)),
	)
	return entries, nil
}

// Join composes chunk files into one MP3 in the given mode.
//
// Every file is decoded to the sample rate and channel count of the first one
// so that recordings from different sources can be mixed. No files produce an
// empty output.
func (p *Processor) Join(ctx context.Context, files []archive.Entry, mode audio.Mode, progress audio.Progress) ([]byte, error) {
	if !mode.IsValid() {
		return nil, fmt.Errorf("%w: %q", audio.ErrInvalidMode, mode)
	}
	reporter := audio.NewReporter(progress)

	chunks := make([]audio.NamedChunk, 0, len(files))
	var format codec.DecodeOpts
	for i, f := range files {
		w, err := p.codec.Decode(ctx, f.Data, format)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", f.Name, err)
		}
		if i == 0 {
			format = codec.DecodeOpts{SampleRate: w.SampleRate(), Channels: w.Channels()}
		}
		chunks = append(chunks, audio.NamedChunk{Name: f.Name, Audio: w})
		reporter.Fraction(i+1, len(files), 0, 40)
	}

	combined, err := audio.Compose(chunks, mode, reporter.Sub(40, 50))
	if err != nil {
		return nil, err
	}

	out, err := p.codec.Encode(ctx, combined)
	if err != nil {
		return nil, err
	}
	reporter.Report(100)

	p.logger.Debug("joined chunks",
		slog.String("mode", string(mode)),
		slog.Int("chunks", len(chunks)),
		slog.Int("duration_ms", combined.DurationMs()),
	)
	return out, nil
}

// Pair appends a sound reference for each file name to the rows of a
// tab-delimited table and returns the new table.
func (p *Processor) Pair(table []byte, names []string, progress audio.Progress) ([]byte, error) {
	rows, err := anki.ParseRows(table)
	if err != nil {
		return nil, fmt.Errorf("parse table: %w", err)
	}

	paired, err := anki.Pair(rows, names, progress)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := anki.WriteRows(&buf, paired); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
