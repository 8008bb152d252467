// Package loudness corrects the perceived loudness of recordings.
package loudness

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/audiocards/internal/audio"
)

// ErrInvalidTarget is returned when a Target is outside the range ffmpeg's
// loudnorm filter accepts.
var ErrInvalidTarget = errors.New("invalid loudness target")

// Default targets.
const (
	DefaultIntegratedLUFS = -18.0
	DefaultTruePeakDBTP   = -3.0
)

// OutputSampleRate is the sample rate of normalized audio.
const OutputSampleRate = 48000

// Target is the integrated loudness and true-peak ceiling to normalize to.
type Target struct {
	IntegratedLUFS float64 `validate:"gte=-70,lte=-5"`
	TruePeakDBTP   float64 `validate:"gte=-9,lte=0"`
}

// DefaultTarget returns -18 LUFS with a -3 dBTP ceiling.
func DefaultTarget() Target {
	return Target{IntegratedLUFS: DefaultIntegratedLUFS, TruePeakDBTP: DefaultTruePeakDBTP}
}

var validate = validator.New()

// Validate checks the target against loudnorm's accepted ranges.
func (t Target) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("%w: I=%g TP=%g: %v", ErrInvalidTarget, t.IntegratedLUFS, t.TruePeakDBTP, err)
	}
	return nil
}

// Normalizer adjusts a waveform to a loudness target.
type Normalizer interface {
	Normalize(ctx context.Context, w *audio.Waveform, target Target) (*audio.Waveform, error)
}
