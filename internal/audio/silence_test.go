package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectNonsilent(t *testing.T) {
	opts := SilenceOpts{MinSilenceMs: 1000, SilenceThreshDB: -50}

	tests := []struct {
		name  string
		parts []part
		want  []Interval
	}{
		{
			name:  "entirely silent",
			parts: []part{quiet(3000)},
			want:  nil,
		},
		{
			name:  "entirely loud",
			parts: []part{tone(2500, 0.5)},
			want:  []Interval{{0, 2500}},
		},
		{
			name:  "shorter than the minimum silence",
			parts: []part{quiet(400)},
			want:  []Interval{{0, 400}},
		},
		{
			name:  "two spans split by a long pause",
			parts: []part{tone(500, 0.5), quiet(1500), tone(700, 0.5)},
			want:  []Interval{{0, 500}, {2000, 2700}},
		},
		{
			name:  "short pause does not split",
			parts: []part{tone(500, 0.5), quiet(800), tone(700, 0.5)},
			want:  []Interval{{0, 2000}},
		},
		{
			name:  "leading and trailing silence",
			parts: []part{quiet(1200), tone(300, 0.5), quiet(1100)},
			want:  []Interval{{1200, 1500}},
		},
		{
			name:  "quiet signal below threshold counts as silence",
			parts: []part{tone(500, 0.5), tone(1500, 0.001), tone(500, 0.5)},
			want:  []Interval{{0, 500}, {2000, 2500}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectNonsilent(buildWave(t, tt.parts...), opts)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectNonsilent_Empty(t *testing.T) {
	assert.Empty(t, DetectNonsilent(Empty(testRate, 1), SilenceOpts{MinSilenceMs: 10, SilenceThreshDB: -40}))
}

func TestDetectNonsilent_SubMillisecond(t *testing.T) {
	w, err := NewWaveform(testRate, 1, []float32{0.5, -0.5, 0.5, -0.5, 0.5})
	require.NoError(t, err)

	got := DetectNonsilent(w, SilenceOpts{MinSilenceMs: 10, SilenceThreshDB: -40})
	require.Equal(t, []Interval{{0, 1}}, got)
	assert.Equal(t, 5, w.Slice(got[0].StartMs, got[0].EndMs).Frames())
}

func TestDetectNonsilent_KeepsPartialTail(t *testing.T) {
	samples := make([]float32, testRate+6)
	for i := range samples {
		samples[i] = 0.5
		if i%2 == 1 {
			samples[i] = -0.5
		}
	}
	w, err := NewWaveform(testRate, 1, samples)
	require.NoError(t, err)

	got := DetectNonsilent(w, SilenceOpts{MinSilenceMs: 100, SilenceThreshDB: -40})
	require.Equal(t, []Interval{{0, 1001}}, got)
	assert.Equal(t, len(samples), w.Slice(0, got[0].EndMs).Frames())
}

func TestDetectNonsilent_ThresholdMatters(t *testing.T) {
	w := buildWave(t, tone(500, 0.5), tone(1500, 0.01), tone(500, 0.5))

	// 0.01 full scale is -40 dBFS: silent at -30, loud at -50.
	assert.Len(t, DetectNonsilent(w, SilenceOpts{MinSilenceMs: 1000, SilenceThreshDB: -30}), 2)
	assert.Len(t, DetectNonsilent(w, SilenceOpts{MinSilenceMs: 1000, SilenceThreshDB: -50}), 1)
}

func TestDetectNonsilent_Stereo(t *testing.T) {
	// Left channel loud, right silent, then both silent.
	var samples []float32
	for i := 0; i < testRate/2; i++ {
		samples = append(samples, 0.5, 0)
	}
	for i := 0; i < testRate*2; i++ {
		samples = append(samples, 0, 0)
	}
	w, err := NewWaveform(testRate, 2, samples)
	assert.NoError(t, err)

	got := DetectNonsilent(w, SilenceOpts{MinSilenceMs: 1000, SilenceThreshDB: -50})
	assert.Equal(t, []Interval{{0, 500}}, got)
}

func TestInterval_DurationMs(t *testing.T) {
	assert.Equal(t, 250, Interval{StartMs: 100, EndMs: 350}.DurationMs())
}
