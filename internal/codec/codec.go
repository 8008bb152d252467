// Package codec converts between encoded audio files and decoded waveforms.
package codec

import (
	"context"
	"errors"
	"fmt"

	"github.com/maauso/audiocards/internal/audio"
)

// Bitrate is the MP3 bitrate of every exported file.
const Bitrate = "320k"

// ErrEmptyData is returned when there are no bytes to decode.
var ErrEmptyData = errors.New("empty audio data")

// DecodeOpts selects the format of the decoded waveform.
// Zero values keep the source sample rate or channel count.
type DecodeOpts struct {
	SampleRate int
	Channels   int
}

// Decoder turns encoded audio of any supported container into a waveform.
type Decoder interface {
	Decode(ctx context.Context, data []byte, opts DecodeOpts) (*audio.Waveform, error)
}

// Encoder turns a waveform into MP3 bytes at Bitrate.
type Encoder interface {
	Encode(ctx context.Context, w *audio.Waveform) ([]byte, error)
}

// Codec decodes and encodes audio.
type Codec interface {
	Decoder
	Encoder
}

// DecodeError is returned when input bytes are not decodable audio.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode audio: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
