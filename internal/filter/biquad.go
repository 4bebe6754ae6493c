// Package filter implements the deck's tone-shaping filters: the 3-band EQ
// biquads and the sweepable state-variable filter.
package filter

import "math"

// Biquad is a direct form II transposed second-order IIR section with
// independent state per channel.
type Biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
	z1, z2     []float64
}

// NewBiquad returns a unity-gain biquad for the given channel count.
func NewBiquad(channels int) *Biquad {
	if channels < 1 {
		channels = 1
	}
	return &Biquad{
		b0: 1,
		z1: make([]float64, channels),
		z2: make([]float64, channels),
	}
}

// Reset clears the filter state for all channels.
func (f *Biquad) Reset() {
	for i := range f.z1 {
		f.z1[i] = 0
		f.z2[i] = 0
	}
}

// Process filters one channel's block in place.
func (f *Biquad) Process(ch int, block []float64) {
	z1, z2 := f.z1[ch], f.z2[ch]
	for i, x := range block {
		y := f.b0*x + z1
		z1 = f.b1*x - f.a1*y + z2
		z2 = f.b2*x - f.a2*y
		block[i] = y
	}
	f.z1[ch], f.z2[ch] = z1, z2
}

// SetLowShelf configures an RBJ low-shelf at freq with slope q and the given
// linear gain.
func (f *Biquad) SetLowShelf(sampleRate, freq, q, gainLinear float64) {
	a := math.Sqrt(gainLinear)
	w0 := 2 * math.Pi * freq / sampleRate
	cosW0 := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)
	beta := 2 * math.Sqrt(a) * alpha

	b0 := a * ((a + 1) - (a-1)*cosW0 + beta)
	b1 := 2 * a * ((a - 1) - (a+1)*cosW0)
	b2 := a * ((a + 1) - (a-1)*cosW0 - beta)
	a0 := (a + 1) + (a-1)*cosW0 + beta
	a1 := -2 * ((a - 1) + (a+1)*cosW0)
	a2 := (a + 1) + (a-1)*cosW0 - beta

	f.set(b0, b1, b2, a0, a1, a2)
}

// SetHighShelf configures an RBJ high-shelf at freq with slope q and the
// given linear gain.
func (f *Biquad) SetHighShelf(sampleRate, freq, q, gainLinear float64) {
	a := math.Sqrt(gainLinear)
	w0 := 2 * math.Pi * freq / sampleRate
	cosW0 := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)
	beta := 2 * math.Sqrt(a) * alpha

	b0 := a * ((a + 1) + (a-1)*cosW0 + beta)
	b1 := -2 * a * ((a - 1) + (a+1)*cosW0)
	b2 := a * ((a + 1) + (a-1)*cosW0 - beta)
	a0 := (a + 1) - (a-1)*cosW0 + beta
	a1 := 2 * ((a - 1) - (a+1)*cosW0)
	a2 := (a + 1) - (a-1)*cosW0 - beta

	f.set(b0, b1, b2, a0, a1, a2)
}

// SetPeak configures an RBJ peaking EQ at freq with bandwidth q and the
// given linear gain.
func (f *Biquad) SetPeak(sampleRate, freq, q, gainLinear float64) {
	a := math.Sqrt(gainLinear)
	w0 := 2 * math.Pi * freq / sampleRate
	cosW0 := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)

	b0 := 1 + alpha*a
	b1 := -2 * cosW0
	b2 := 1 - alpha*a
	a0 := 1 + alpha/a
	a1 := -2 * cosW0
	a2 := 1 - alpha/a

	f.set(b0, b1, b2, a0, a1, a2)
}

func (f *Biquad) set(b0, b1, b2, a0, a1, a2 float64) {
	inv := 1 / a0
	f.b0 = b0 * inv
	f.b1 = b1 * inv
	f.b2 = b2 * inv
	f.a1 = a1 * inv
	f.a2 = a2 * inv
}
