// Package stretch implements keylock time-stretching: a phase vocoder that
// changes tempo while holding pitch, wrapped in an adapter that hides the
// engine's priming and latency bookkeeping.
package stretch

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/tphakala/simd/f64"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// Profile selects the vocoder's window size, trading transient sharpness
// against CPU cost and frequency resolution.
type Profile int

const (
	// ProfileFast uses the smallest window. Best transients, roughest pitch.
	ProfileFast Profile = iota

	// ProfileBalanced is the default trade-off.
	ProfileBalanced

	// ProfileQuality uses the largest window for the cleanest pitch.
	ProfileQuality
)

// String returns the profile name.
func (p Profile) String() string {
	switch p {
	case ProfileFast:
		return "fast"
	case ProfileBalanced:
		return "balanced"
	case ProfileQuality:
		return "quality"
	default:
		return "unknown"
	}
}

// FFTSize returns the analysis window length for the profile.
func (p Profile) FFTSize() int {
	switch p {
	case ProfileFast:
		return fastFFTSize
	case ProfileQuality:
		return qualityFFTSize
	default:
		return balancedFFTSize
	}
}

// Vocoder is a multi-channel phase-vocoder time-stretcher. Tempo ratio > 1
// plays faster (fewer output samples per input sample); pitch is unchanged
// at any ratio.
//
// Input is pushed in blocks of any size; output accumulates in an internal
// FIFO per channel and is pulled with Retrieve.
type Vocoder struct {
	fftSize  int
	hop      int
	bins     int
	channels int
	ratio    float64

	fft     *fourier.FFT
	win     []float64
	outNorm float64

	chans []*vocoderChannel

	frame []float64
	spec  []complex128
	synth []complex128
	iout  []float64
}

type vocoderChannel struct {
	input    []float64
	inputPos float64

	lastPhase []float64
	sumPhase  []float64
	accum     []float64
	out       *fifo
	primed    bool
}

// NewVocoder creates a vocoder for the given channel count and profile.
func NewVocoder(channels int, profile Profile) (*Vocoder, error) {
	if channels < 1 {
		return nil, fmt.Errorf("stretch: channel count must be at least 1, got %d", channels)
	}

	fftSize := profile.FFTSize()
	hop := fftSize / hopDivisor
	bins := fftSize/2 + 1

	win := make([]float64, fftSize)
	for i := range win {
		win[i] = 1
	}
	window.Hann(win)

	v := &Vocoder{
		fftSize:  fftSize,
		hop:      hop,
		bins:     bins,
		channels: channels,
		ratio:    1,
		fft:      fourier.NewFFT(fftSize),
		win:      win,
		outNorm:  1 / hannSquaredOverlapGain,
		frame:    make([]float64, fftSize),
		spec:     make([]complex128, bins),
		synth:    make([]complex128, bins),
		iout:     make([]float64, fftSize),
	}

	v.chans = make([]*vocoderChannel, channels)
	for i := range v.chans {
		v.chans[i] = &vocoderChannel{
			lastPhase: make([]float64, bins),
			sumPhase:  make([]float64, bins),
			accum:     make([]float64, fftSize),
			out:       newFIFO(fftSize * 4),
		}
	}

	return v, nil
}

// Channels returns the configured channel count.
func (v *Vocoder) Channels() int { return v.channels }

// FFTSize returns the analysis window length.
func (v *Vocoder) FFTSize() int { return v.fftSize }

// Hop returns the synthesis hop length.
func (v *Vocoder) Hop() int { return v.hop }

// SetTempoRatio sets the tempo ratio, clamped to the playable range.
func (v *Vocoder) SetTempoRatio(ratio float64) {
	if ratio < minTempoRatio {
		ratio = minTempoRatio
	}
	if ratio > maxTempoRatio {
		ratio = maxTempoRatio
	}
	v.ratio = ratio
}

// TempoRatio returns the current tempo ratio.
func (v *Vocoder) TempoRatio() float64 { return v.ratio }

// Push appends one block of input audio (one slice per channel) and runs
// as many analysis frames as the buffered input allows.
func (v *Vocoder) Push(block [][]float64) error {
	if len(block) != v.channels {
		return fmt.Errorf("stretch: expected %d channels, got %d", v.channels, len(block))
	}

	for ch, c := range v.chans {
		c.input = append(c.input, block[ch]...)
		v.processChannel(c)
	}
	return nil
}

// PushSilence feeds n zero samples to every channel.
func (v *Vocoder) PushSilence(n int) {
	for _, c := range v.chans {
		c.input = append(c.input, make([]float64, n)...)
		v.processChannel(c)
	}
}

// processChannel consumes buffered input frame by frame. The analysis hop
// is the synthesis hop scaled by the tempo ratio, accumulated fractionally
// so arbitrary ratios stay phase-accurate over time.
func (v *Vocoder) processChannel(c *vocoderChannel) {
	analysisHop := float64(v.hop) * v.ratio

	for int(c.inputPos)+v.fftSize <= len(c.input) {
		start := int(c.inputPos)
		src := c.input[start : start+v.fftSize]

		for i, s := range src {
			v.frame[i] = s * v.win[i]
		}
		v.fft.Coefficients(v.spec, v.frame)

		if !c.primed {
			// First frame: lock phases, emit as-is.
			for k, s := range v.spec {
				ph := cmplx.Phase(s)
				c.lastPhase[k] = ph
				c.sumPhase[k] = ph
				v.synth[k] = s
			}
			c.primed = true
		} else {
			for k, s := range v.spec {
				mag := cmplx.Abs(s)
				ph := cmplx.Phase(s)

				omega := 2 * math.Pi * float64(k) / float64(v.fftSize)
				expected := omega * analysisHop
				delta := wrapPhase(ph - c.lastPhase[k] - expected)
				trueFreq := omega + delta/analysisHop

				c.sumPhase[k] += trueFreq * float64(v.hop)
				c.lastPhase[k] = ph
				v.synth[k] = cmplx.Rect(mag, c.sumPhase[k])
			}
		}

		v.fft.Sequence(v.iout, v.synth)
		scale := v.outNorm / float64(v.fftSize)
		for i := range v.iout {
			c.accum[i] += v.iout[i] * v.win[i] * scale
		}

		// The leading hop of the accumulator is complete.
		c.out.Write(c.accum[:v.hop])
		copy(c.accum, c.accum[v.hop:])
		for i := v.fftSize - v.hop; i < v.fftSize; i++ {
			c.accum[i] = 0
		}

		c.inputPos += analysisHop
	}

	// Trim consumed input so the buffer does not grow without bound.
	if drop := int(c.inputPos); drop > v.fftSize*hopDivisor {
		c.input = c.input[:copy(c.input, c.input[drop:])]
		c.inputPos -= float64(drop)
	}
}

// Available returns the number of output samples ready on every channel.
func (v *Vocoder) Available() int {
	n := v.chans[0].out.Len()
	for _, c := range v.chans[1:] {
		if l := c.out.Len(); l < n {
			n = l
		}
	}
	return n
}

// Retrieve fills dst (one slice per channel) with ready output samples and
// returns the number of samples written per channel.
func (v *Vocoder) Retrieve(dst [][]float64) int {
	if len(dst) == 0 || len(dst[0]) == 0 {
		return 0
	}
	n := len(dst[0])
	if avail := v.Available(); avail < n {
		n = avail
	}
	for ch, c := range v.chans {
		c.out.Read(dst[ch][:n])
	}
	return n
}

// Discard drops up to n ready output samples per channel, returning the
// number dropped.
func (v *Vocoder) Discard(n int) int {
	if avail := v.Available(); avail < n {
		n = avail
	}
	for _, c := range v.chans {
		c.out.Discard(n)
	}
	return n
}

// Reset clears all buffered audio and phase state.
func (v *Vocoder) Reset() {
	for _, c := range v.chans {
		c.input = c.input[:0]
		c.inputPos = 0
		c.primed = false
		c.out.Clear()
		for i := range c.lastPhase {
			c.lastPhase[i] = 0
			c.sumPhase[i] = 0
		}
		f64.Scale(c.accum, c.accum, 0)
	}
}

// wrapPhase maps a phase difference into (-π, π].
func wrapPhase(p float64) float64 {
	p = math.Mod(p+math.Pi, 2*math.Pi)
	if p < 0 {
		p += 2 * math.Pi
	}
	return p - math.Pi
}
