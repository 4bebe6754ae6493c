package decode

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// Supported PCM bit depths and their full-scale values.
const (
	bitDepth16 = 16
	bitDepth24 = 24
	bitDepth32 = 32

	maxInt16 = 32767.0
	maxInt24 = 8388607.0
	maxInt32 = 2147483647.0
)

// LoadWAV decodes an entire WAV file into a Track. Samples are normalized
// to [-1, 1] and deinterleaved into per-channel slices. Tag metadata is not
// read here; see ReadMetadata.
func LoadWAV(path string) (*Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFile, path)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: missing format", ErrInvalidFile)
	}

	bitDepth := int(decoder.BitDepth)
	scale, err := fullScale(bitDepth)
	if err != nil {
		return nil, err
	}

	channels := buf.Format.NumChannels
	frames := len(buf.Data) / channels

	samples := make([][]float64, channels)
	for ch := range samples {
		samples[ch] = make([]float64, frames)
	}
	for i := 0; i < frames; i++ {
		base := i * channels
		for ch := 0; ch < channels; ch++ {
			samples[ch][i] = float64(buf.Data[base+ch]) / scale
		}
	}

	return &Track{
		Samples:    samples,
		SampleRate: buf.Format.SampleRate,
		BitDepth:   bitDepth,
		Path:       path,
	}, nil
}

func fullScale(bitDepth int) (float64, error) {
	switch bitDepth {
	case bitDepth16:
		return maxInt16, nil
	case bitDepth24:
		return maxInt24, nil
	case bitDepth32:
		return maxInt32, nil
	default:
		return 0, fmt.Errorf("%w: %d-bit PCM", ErrUnsupported, bitDepth)
	}
}
