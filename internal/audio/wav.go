package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidWAV is returned when data is not a readable PCM WAV stream.
var ErrInvalidWAV = errors.New("invalid WAV data")

// pcmFormat is the WAVE_FORMAT_PCM tag.
const pcmFormat = 1

// ReadWAV decodes a 16, 24 or 32-bit integer PCM WAV stream.
func ReadWAV(r io.ReadSeeker) (*Waveform, error) {
	dec := wav.NewDecoder(r)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return nil, ErrInvalidWAV
	}

	divisor, err := sampleDivisor(int(dec.BitDepth))
	if err != nil {
		return nil, err
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read PCM data: %w", err)
	}

	channels := int(dec.NumChans)
	samples := make([]float32, len(buf.Data)-len(buf.Data)%channels)
	for i := range samples {
		samples[i] = float32(float64(buf.Data[i]) / divisor)
	}
	return &Waveform{
		sampleRate: int(dec.SampleRate),
		channels:   channels,
		samples:    samples,
	}, nil
}

// WriteWAV encodes w as 16-bit PCM WAV.
func WriteWAV(ws io.WriteSeeker, w *Waveform) error {
	const bitDepth = 16

	data := make([]int, len(w.samples))
	for i, s := range w.samples {
		v := math.Round(float64(s) * 32768)
		data[i] = int(min(max(v, math.MinInt16), math.MaxInt16))
	}

	enc := wav.NewEncoder(ws, w.sampleRate, bitDepth, w.channels, pcmFormat)
	if err := enc.Write(&goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{SampleRate: w.sampleRate, NumChannels: w.channels},
		SourceBitDepth: bitDepth,
	}); err != nil {
		return fmt.Errorf("write PCM data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize WAV: %w", err)
	}
	return nil
}

// ReadWAVFile decodes the WAV file at path.
func ReadWAVFile(path string) (*Waveform, error) {
	f, err := os.Open(path) // #nosec G304 - callers pass paths they created
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadWAV(f)
}

// WriteWAVFile encodes w as a 16-bit PCM WAV file at path.
func WriteWAVFile(path string, w *Waveform) error {
	f, err := os.Create(path) // #nosec G304 - callers pass paths they created
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	if err := WriteWAV(f, w); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close wav: %w", err)
	}
	return nil
}

// sampleDivisor returns the full-scale value for an integer PCM bit depth.
func sampleDivisor(bitDepth int) (float64, error) {
	switch bitDepth {
	case 16:
		return 32768.0, nil
	case 24:
		return 8388608.0, nil
	case 32:
		return 2147483648.0, nil
	default:
		return 0, fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidWAV, bitDepth)
	}
}
