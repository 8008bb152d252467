package loudness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/maauso/audiocards/internal/audio"
	"github.com/maauso/audiocards/internal/ffmpeg"
)

// FFmpegNormalizer implements Normalizer with ffmpeg's single-pass loudnorm filter.
type FFmpegNormalizer struct {
	runner  *ffmpeg.Runner
	tempDir string
}

// Compile-time check that FFmpegNormalizer implements Normalizer.
var _ Normalizer = (*FFmpegNormalizer)(nil)

// NewFFmpegNormalizer creates a normalizer that runs ffmpeg through runner.
// Temporary files go under tempDir, or the system default if it is empty.
func NewFFmpegNormalizer(runner *ffmpeg.Runner, tempDir string) *FFmpegNormalizer {
	if runner == nil {
		runner = ffmpeg.NewRunner("")
	}
	return &FFmpegNormalizer{runner: runner, tempDir: tempDir}
}

// Normalize returns w corrected to target as 16-bit audio at 48 kHz.
// The tool runs once; failures are returned as *ffmpeg.ToolError.
func (n *FFmpegNormalizer) Normalize(ctx context.Context, w *audio.Waveform, target Target) (*audio.Waveform, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}

	if n.tempDir != "" {
		if err := os.MkdirAll(n.tempDir, 0750); err != nil {
			return nil, fmt.Errorf("create temp dir: %w", err)
		}
	}
	dir, err := os.MkdirTemp(n.tempDir, "loudnorm-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	in := filepath.Join(dir, "in.wav")
	out := filepath.Join(dir, "out.wav")
	if err := audio.WriteWAVFile(in, w); err != nil {
		return nil, fmt.Errorf("write input: %w", err)
	}

	if err := n.runner.Run(ctx, filterArgs(in, out, target)...); err != nil {
		return nil, fmt.Errorf("loudnorm: %w", err)
	}

	normalized, err := audio.ReadWAVFile(out)
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	return normalized, nil
}

// filterArgs builds the ffmpeg command line for one loudnorm pass.
func filterArgs(in, out string, target Target) []string {
	i := strconv.FormatFloat(target.IntegratedLUFS, 'f', -1, 64)
	tp := strconv.FormatFloat(target.TruePeakDBTP, 'f', -1, 64)
	return []string{
		"-y", "-hide_banner",
		"-i", in,
		"-af", fmt.Sprintf("loudnorm=I=%s:TP=%s:measured_TP=%s", i, tp, tp),
		"-ar", strconv.Itoa(OutputSampleRate),
		"-c:a", "pcm_s16le",
		out,
	}
}
