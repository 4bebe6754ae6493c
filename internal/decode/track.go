// Package decode loads audio files into the deck's in-memory sample model:
// non-interleaved float64 channels at the file's native rate.
package decode

import "errors"

// Decode failures.
var (
	// ErrInvalidFile indicates the file is not a readable WAV file.
	ErrInvalidFile = errors.New("invalid audio file")

	// ErrUnsupported indicates a sample format the decoder cannot handle.
	ErrUnsupported = errors.New("unsupported audio format")
)

// Track is a fully decoded audio file.
type Track struct {
	// Samples holds one slice per channel, all the same length.
	Samples [][]float64

	// SampleRate is the native rate in Hz.
	SampleRate int

	// BitDepth is the source PCM bit depth.
	BitDepth int

	// Path is the file the track was loaded from.
	Path string

	// Meta holds tag metadata when extraction succeeded.
	Meta Metadata
}

// Channels returns the channel count.
func (t *Track) Channels() int { return len(t.Samples) }

// Frames returns the per-channel sample count.
func (t *Track) Frames() int {
	if len(t.Samples) == 0 {
		return 0
	}
	return len(t.Samples[0])
}

// Duration returns the track length in seconds.
func (t *Track) Duration() float64 {
	if t.SampleRate <= 0 {
		return 0
	}
	return float64(t.Frames()) / float64(t.SampleRate)
}

// Mono returns an equal-weight downmix of all channels, used by the
// analysis pipeline. Mono tracks return the channel itself.
func (t *Track) Mono() []float64 {
	if len(t.Samples) == 0 {
		return nil
	}
	if len(t.Samples) == 1 {
		return t.Samples[0]
	}

	frames := t.Frames()
	mono := make([]float64, frames)
	scale := 1 / float64(len(t.Samples))
	for _, ch := range t.Samples {
		for i, s := range ch {
			mono[i] += s * scale
		}
	}
	return mono
}
