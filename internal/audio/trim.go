package audio

// TrimOpts configures trimming of leading and trailing silence.
type TrimOpts struct {
	// MinSilenceMs is the shortest run treated as silence.
	MinSilenceMs int
	// SilenceThreshDB is the level in dBFS at or below which audio is silent.
	SilenceThreshDB float64
	// GuardMs of audio is kept on each side of the non-silent span.
	GuardMs int
}

// DefaultTrimOpts returns the looser thresholds used when joining chunks.
func DefaultTrimOpts() TrimOpts {
	return TrimOpts{
		MinSilenceMs:    25,
		SilenceThreshDB: -40,
		GuardMs:         100,
	}
}

// Trim clips w to its first through last non-silent interval widened by
// opts.GuardMs, clamped to the waveform. A waveform with no non-silent
// interval is returned unchanged.
func Trim(w *Waveform, opts TrimOpts) *Waveform {
	spans := DetectNonsilent(w, SilenceOpts{
		MinSilenceMs:    opts.MinSilenceMs,
		SilenceThreshDB: opts.SilenceThreshDB,
	})
	if len(spans) == 0 {
		return w
	}

	start := max(spans[0].StartMs-opts.GuardMs, 0)
	end := min(spans[len(spans)-1].EndMs+opts.GuardMs, w.DurationMs())
	return w.Slice(start, end)
}
