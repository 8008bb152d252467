package codec

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/maauso/audiocards/internal/audio"
	"github.com/maauso/audiocards/internal/ffmpeg"
)

// FFmpegCodec implements Codec with the ffmpeg CLI and 16-bit PCM WAV as the
// interchange format. Every call works in its own temporary directory, which
// is removed before returning.
type FFmpegCodec struct {
	runner  *ffmpeg.Runner
	tempDir string
}

// Compile-time check that FFmpegCodec implements Codec.
var _ Codec = (*FFmpegCodec)(nil)

// NewFFmpegCodec creates a codec that runs ffmpeg through runner.
// Temporary files go under tempDir, or the system default if it is empty.
func NewFFmpegCodec(runner *ffmpeg.Runner, tempDir string) *FFmpegCodec {
	if runner == nil {
		runner = ffmpeg.NewRunner("")
	}
	return &FFmpegCodec{runner: runner, tempDir: tempDir}
}

// Decode converts data to a waveform, resampling and remixing when opts asks for it.
//
// Input ffmpeg cannot read yields a *DecodeError. A missing ffmpeg binary is
// reported as the underlying *ffmpeg.ToolError.
func (c *FFmpegCodec) Decode(ctx context.Context, data []byte, opts DecodeOpts) (*audio.Waveform, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Err: ErrEmptyData}
	}

	dir, cleanup, err := c.workDir()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	in := filepath.Join(dir, "input")
	out := filepath.Join(dir, "decoded.wav")
	if err := os.WriteFile(in, data, 0600); err != nil {
		return nil, fmt.Errorf("write input: %w", err)
	}

	args := []string{"-y", "-hide_banner", "-i", in, "-vn", "-acodec", "pcm_s16le"}
	if opts.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(opts.SampleRate))
	}
	if opts.Channels > 0 {
		args = append(args, "-ac", strconv.Itoa(opts.Channels))
	}
	args = append(args, out)

	if err := c.runner.Run(ctx, args...); err != nil {
		var toolErr *ffmpeg.ToolError
		if errors.As(err, &toolErr) && !toolErr.NotFound() {
			return nil, &DecodeError{Err: err}
		}
		return nil, err
	}

	w, err := audio.ReadWAVFile(out)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return w, nil
}

// Encode converts w to MP3 at Bitrate. A waveform without frames encodes to no
// bytes and does not invoke ffmpeg.
func (c *FFmpegCodec) Encode(ctx context.Context, w *audio.Waveform) ([]byte, error) {
	if w.Frames() == 0 {
		return []byte{}, nil
	}

	dir, cleanup, err := c.workDir()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	in := filepath.Join(dir, "source.wav")
	out := filepath.Join(dir, "encoded.mp3")
	if err := audio.WriteWAVFile(in, w); err != nil {
		return nil, err
	}

	args := []string{
		"-y", "-hide_banner",
		"-i", in,
		"-codec:a", "libmp3lame",
		"-b:a", Bitrate,
		out,
	}
	if err := c.runner.Run(ctx, args...); err != nil {
		return nil, fmt.Errorf("encode mp3: %w", err)
	}

	data, err := os.ReadFile(out) // #nosec G304 - path is built inside our temp dir
	if err != nil {
		return nil, fmt.Errorf("read encoded output: %w", err)
	}
	return data, nil
}

// workDir creates a private temporary directory and returns its cleanup func.
func (c *FFmpegCodec) workDir() (string, func(), error) {
	if c.tempDir != "" {
		if err := os.MkdirAll(c.tempDir, 0750); err != nil {
			return "", nil, fmt.Errorf("create temp dir: %w", err)
		}
	}
	dir, err := os.MkdirTemp(c.tempDir, "codec-*")
	if err != nil {
		return "", nil, fmt.Errorf("create work dir: %w", err)
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}
