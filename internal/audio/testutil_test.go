package audio

import (
	"testing"
)

const testRate = 8000

// part describes one section of a synthetic recording.
type part struct {
	ms        int
	amplitude float32 // 0 for digital silence
}

// tone returns a loud section. The square wave keeps RMS equal to amplitude.
func tone(ms int, amplitude float32) part { return part{ms: ms, amplitude: amplitude} }

// quiet returns a silent section.
func quiet(ms int) part { return part{ms: ms} }

// buildWave concatenates parts into a mono waveform at testRate.
func buildWave(t *testing.T, parts ...part) *Waveform {
	t.Helper()
	var samples []float32
	for _, p := range parts {
		frames := p.ms * testRate / 1000
		for i := 0; i < frames; i++ {
			v := p.amplitude
			if i%2 == 1 {
				v = -v
			}
			samples = append(samples, v)
		}
	}
	w, err := NewWaveform(testRate, 1, samples)
	if err != nil {
		t.Fatalf("build waveform: %v", err)
	}
	return w
}

// recorder collects progress reports.
type recorder struct {
	values []int
}

func (r *recorder) sink(p int) { r.values = append(r.values, p) }

func (r *recorder) assertMonotonic(t *testing.T) {
	t.Helper()
	for i := 1; i < len(r.values); i++ {
		if r.values[i] < r.values[i-1] {
			t.Fatalf("progress went backwards: %v", r.values)
		}
	}
}
