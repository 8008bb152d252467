package audio

import "math"

// Interval is a non-silent span of a waveform in milliseconds, end exclusive.
type Interval struct {
	StartMs int
	EndMs   int
}

// DurationMs returns the length of the interval.
func (i Interval) DurationMs() int {
	return i.EndMs - i.StartMs
}

// SilenceOpts configures silence analysis.
type SilenceOpts struct {
	// MinSilenceMs is the shortest run, in milliseconds, that counts as silence.
	MinSilenceMs int
	// SilenceThreshDB is the RMS level in dBFS at or below which a window is silent.
	SilenceThreshDB float64
}

// DetectNonsilent returns the non-silent intervals of w in chronological order.
//
// A window of MinSilenceMs is evaluated at every millisecond; it is silent when
// its RMS over all channels is at or below SilenceThreshDB. Overlapping or
// adjacent silent windows merge into one silent range, and the result is the
// complement of those ranges. An entirely silent or empty waveform yields no
// intervals; a waveform without any silent window yields one interval spanning
// all of it.
func DetectNonsilent(w *Waveform, opts SilenceOpts) []Interval {
	length := w.DurationMs()
	if length == 0 {
		return nil
	}

	silent := detectSilence(w, opts)
	if len(silent) == 0 {
		return []Interval{{StartMs: 0, EndMs: length}}
	}
	if silent[0].StartMs == 0 && silent[0].EndMs == length {
		return nil
	}

	var nonsilent []Interval
	prevEnd := 0
	for _, s := range silent {
		if s.StartMs > prevEnd {
			nonsilent = append(nonsilent, Interval{StartMs: prevEnd, EndMs: s.StartMs})
		}
		prevEnd = s.EndMs
	}
	if prevEnd < length {
		nonsilent = append(nonsilent, Interval{StartMs: prevEnd, EndMs: length})
	}
	return nonsilent
}

// detectSilence returns the silent ranges of w. Ranges are built from the start
// positions of silent windows; consecutive or overlapping windows merge.
func detectSilence(w *Waveform, opts SilenceOpts) []Interval {
	minLen := max(opts.MinSilenceMs, 1)
	length := w.DurationMs()
	if length < minLen {
		return nil
	}

	energy := newEnergyIndex(w)
	threshold := DBToRatio(opts.SilenceThreshDB)

	var ranges []Interval
	open := false
	var current Interval
	prev := 0

	for start := 0; start <= length-minLen; start++ {
		if energy.rms(start, start+minLen) > threshold {
			continue
		}
		switch {
		case !open:
			current = Interval{StartMs: start}
			open = true
		case start > prev+minLen:
			// A gap longer than one window separates the two silent runs.
			current.EndMs = prev + minLen
			ranges = append(ranges, current)
			current = Interval{StartMs: start}
		}
		prev = start
	}
	if open {
		current.EndMs = prev + minLen
		ranges = append(ranges, current)
	}
	return ranges
}

// energyIndex answers RMS queries over millisecond windows in constant time.
type energyIndex struct {
	sampleRate int
	channels   int
	frames     int
	prefix     []float64 // prefix[f] is the sum of squared samples of frames [0, f)
}

func newEnergyIndex(w *Waveform) *energyIndex {
	frames := w.Frames()
	prefix := make([]float64, frames+1)
	for f := range frames {
		var sum float64
		for c := range w.channels {
			s := float64(w.samples[f*w.channels+c])
			sum += s * s
		}
		prefix[f+1] = prefix[f] + sum
	}
	return &energyIndex{
		sampleRate: w.sampleRate,
		channels:   w.channels,
		frames:     frames,
		prefix:     prefix,
	}
}

// rms returns the root mean square of the samples between startMs and endMs.
func (e *energyIndex) rms(startMs, endMs int) float64 {
	start := min(msToFrames(startMs, e.sampleRate), e.frames)
	end := min(msToFrames(endMs, e.sampleRate), e.frames)
	n := (end - start) * e.channels
	if n <= 0 {
		return 0
	}
	mean := (e.prefix[end] - e.prefix[start]) / float64(n)
	return math.Sqrt(max(mean, 0))
}
