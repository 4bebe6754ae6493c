package filter

import "math"

// SVFMode selects the state-variable filter response.
type SVFMode int

const (
	// SVFLowpass passes frequencies below the cutoff.
	SVFLowpass SVFMode = iota

	// SVFHighpass passes frequencies above the cutoff.
	SVFHighpass
)

// SVF is a topology-preserving-transform state-variable filter with
// independent integrator state per channel. Cutoff and mode can be changed
// between blocks without clicks.
type SVF struct {
	mode       SVFMode
	sampleRate float64
	cutoff     float64
	resonance  float64

	g, k         float64
	a1, a2, a3   float64
	ic1eq, ic2eq []float64
}

// NewSVF returns a lowpass SVF at the given rate for the given channel count.
func NewSVF(sampleRate float64, channels int) *SVF {
	if channels < 1 {
		channels = 1
	}
	f := &SVF{
		mode:       SVFLowpass,
		sampleRate: sampleRate,
		resonance:  defaultSVFResonance,
		ic1eq:      make([]float64, channels),
		ic2eq:      make([]float64, channels),
	}
	f.SetCutoff(defaultSVFCutoffHz)
	return f
}

// SetMode selects lowpass or highpass response.
func (f *SVF) SetMode(mode SVFMode) { f.mode = mode }

// Mode returns the current response type.
func (f *SVF) Mode() SVFMode { return f.mode }

// SetCutoff sets the cutoff frequency in Hz and recomputes coefficients.
func (f *SVF) SetCutoff(freq float64) {
	f.cutoff = freq
	f.update()
}

// Cutoff returns the current cutoff frequency in Hz.
func (f *SVF) Cutoff() float64 { return f.cutoff }

// SetResonance sets the filter Q and recomputes coefficients.
func (f *SVF) SetResonance(q float64) {
	if q <= 0 {
		q = defaultSVFResonance
	}
	f.resonance = q
	f.update()
}

func (f *SVF) update() {
	f.g = math.Tan(math.Pi * f.cutoff / f.sampleRate)
	f.k = 1 / f.resonance
	f.a1 = 1 / (1 + f.g*(f.g+f.k))
	f.a2 = f.g * f.a1
	f.a3 = f.g * f.a2
}

// Reset clears the integrator state for all channels.
func (f *SVF) Reset() {
	for i := range f.ic1eq {
		f.ic1eq[i] = 0
		f.ic2eq[i] = 0
	}
}

// Process filters one channel's block in place.
func (f *SVF) Process(ch int, block []float64) {
	ic1, ic2 := f.ic1eq[ch], f.ic2eq[ch]
	for i, x := range block {
		v3 := x - ic2
		v1 := f.a1*ic1 + f.a2*v3
		v2 := ic2 + f.a2*ic1 + f.a3*v3
		ic1 = 2*v1 - ic1
		ic2 = 2*v2 - ic2

		if f.mode == SVFLowpass {
			block[i] = v2
		} else {
			block[i] = x - f.k*v1 - v2
		}
	}
	f.ic1eq[ch], f.ic2eq[ch] = ic1, ic2
}
