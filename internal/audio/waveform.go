package audio

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"
)

// Static errors for waveform operations.
var (
	// ErrInvalidFormat is returned when a sample rate or channel count is not positive
	// or the sample count is not a multiple of the channel count.
	ErrInvalidFormat = errors.New("invalid waveform format")
	// ErrFormatMismatch is returned when waveforms with different sample rates or
	// channel counts are joined.
	ErrFormatMismatch = errors.New("waveform format mismatch")
)

// DefaultSampleRate is the sample rate of waveforms created without a source format.
const DefaultSampleRate = 44100

// Waveform is a decoded, immutable audio buffer.
// Samples are interleaved float32 values in [-1, 1], full scale being 1.0.
// Every method that changes audio returns a new Waveform.
type Waveform struct {
	sampleRate int
	channels   int
	samples    []float32
}

// NewWaveform creates a Waveform from interleaved samples. The samples are copied.
func NewWaveform(sampleRate, channels int, samples []float32) (*Waveform, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("%w: sample_rate=%d, channels=%d", ErrInvalidFormat, sampleRate, channels)
	}
	if len(samples)%channels != 0 {
		return nil, fmt.Errorf("%w: %d samples for %d channels", ErrInvalidFormat, len(samples), channels)
	}
	return &Waveform{
		sampleRate: sampleRate,
		channels:   channels,
		samples:    slices.Clone(samples),
	}, nil
}

// Empty returns a zero-length waveform with the given format.
func Empty(sampleRate, channels int) *Waveform {
	return &Waveform{sampleRate: sampleRate, channels: channels}
}

// Silence returns durationMs of digital silence in the given format.
func Silence(durationMs, sampleRate, channels int) *Waveform {
	frames := msToFrames(max(durationMs, 0), sampleRate)
	return &Waveform{
		sampleRate: sampleRate,
		channels:   channels,
		samples:    make([]float32, frames*channels),
	}
}

// SampleRate returns the number of frames per second.
func (w *Waveform) SampleRate() int { return w.sampleRate }

// Channels returns the number of interleaved channels.
func (w *Waveform) Channels() int { return w.channels }

// Frames returns the number of sample frames.
func (w *Waveform) Frames() int { return len(w.samples) / w.channels }

// Samples returns a copy of the interleaved samples.
func (w *Waveform) Samples() []float32 { return slices.Clone(w.samples) }

// DurationMs returns the length rounded to the nearest millisecond, halves
// to even. A trailing partial millisecond of audio is therefore addressable.
func (w *Waveform) DurationMs() int {
	return int(math.RoundToEven(float64(w.Frames()) * 1000 / float64(w.sampleRate)))
}

// Duration returns the exact length.
func (w *Waveform) Duration() time.Duration {
	return time.Duration(w.Frames()) * time.Second / time.Duration(w.sampleRate)
}

// SameFormat reports whether other has the same sample rate and channel count.
func (w *Waveform) SameFormat(other *Waveform) bool {
	return w.sampleRate == other.sampleRate && w.channels == other.channels
}

// Slice returns the audio between startMs and endMs, clamped to the waveform.
func (w *Waveform) Slice(startMs, endMs int) *Waveform {
	frames := w.Frames()
	start := min(max(msToFrames(startMs, w.sampleRate), 0), frames)
	end := min(max(msToFrames(endMs, w.sampleRate), start), frames)
	return &Waveform{
		sampleRate: w.sampleRate,
		channels:   w.channels,
		samples:    slices.Clone(w.samples[start*w.channels : end*w.channels]),
	}
}

// Append returns w followed by others. All waveforms must share one format.
func (w *Waveform) Append(others ...*Waveform) (*Waveform, error) {
	total := len(w.samples)
	for _, o := range others {
		if !w.SameFormat(o) {
			return nil, fmt.Errorf("%w: %d Hz/%d ch vs %d Hz/%d ch",
				ErrFormatMismatch, w.sampleRate, w.channels, o.sampleRate, o.channels)
		}
		total += len(o.samples)
	}

	samples := make([]float32, 0, total)
	samples = append(samples, w.samples...)
	for _, o := range others {
		samples = append(samples, o.samples...)
	}
	return &Waveform{sampleRate: w.sampleRate, channels: w.channels, samples: samples}, nil
}

// Pad returns w with padMs of silence before and after it.
func (w *Waveform) Pad(padMs int) *Waveform {
	pad := Silence(padMs, w.sampleRate, w.channels)
	padded, _ := pad.Append(w, pad) // same format by construction
	return padded
}

// PeakDBFS returns the level of the largest absolute sample in dBFS.
// Digital silence and empty waveforms return negative infinity.
func (w *Waveform) PeakDBFS() float64 {
	var peak float32
	for _, s := range w.samples {
		if a := float32(math.Abs(float64(s))); a > peak {
			peak = a
		}
	}
	return RatioToDB(float64(peak))
}

// ApplyGain returns w scaled by gainDB decibels. Samples are clipped to full scale.
func (w *Waveform) ApplyGain(gainDB float64) *Waveform {
	factor := DBToRatio(gainDB)
	samples := make([]float32, len(w.samples))
	for i, s := range w.samples {
		v := float64(s) * factor
		samples[i] = float32(min(max(v, -1), 1))
	}
	return &Waveform{sampleRate: w.sampleRate, channels: w.channels, samples: samples}
}

// DBToRatio converts decibels to an amplitude ratio.
func DBToRatio(db float64) float64 {
	return math.Pow(10, db/20)
}

// RatioToDB converts an amplitude ratio to decibels. Zero returns negative infinity.
func RatioToDB(ratio float64) float64 {
	if ratio <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(ratio)
}

// msToFrames converts a millisecond position to a frame index.
func msToFrames(ms, sampleRate int) int {
	return int(int64(ms) * int64(sampleRate) / 1000)
}
