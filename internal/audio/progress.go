package audio

// Progress receives a completion percentage in [0, 100]. A nil Progress is valid.
type Progress func(percent int)

// Reporter forwards percentages to a Progress, clamping them to [0, 100] and
// dropping any value lower than one already reported.
type Reporter struct {
	sink Progress
	last int
}

// NewReporter wraps sink. A nil sink makes Report a no-op.
func NewReporter(sink Progress) *Reporter {
	return &Reporter{sink: sink, last: -1}
}

// Report forwards percent if it does not go backwards.
func (r *Reporter) Report(percent int) {
	if r == nil || r.sink == nil {
		return
	}
	percent = min(max(percent, 0), 100)
	if percent < r.last {
		return
	}
	r.last = percent
	r.sink(percent)
}

// Fraction reports done/total scaled into [offset, offset+span].
func (r *Reporter) Fraction(done, total, offset, span int) {
	if total <= 0 {
		r.Report(offset + span)
		return
	}
	r.Report(offset + done*span/total)
}

// Sub returns a Progress that maps [0, 100] onto [offset, offset+span] of r.
func (r *Reporter) Sub(offset, span int) Progress {
	return func(percent int) {
		r.Report(offset + percent*span/100)
	}
}
