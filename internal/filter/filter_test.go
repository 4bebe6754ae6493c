package filter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsedj/go-dj-deck/internal/testutil"
)

const testSampleRate = 44100.0

// sineGain runs a steady sine through the filter and returns output/input
// RMS over the settled tail.
func sineGain(t *testing.T, process func([]float64), freq float64) float64 {
	t.Helper()
	n := 16384
	block := testutil.SineWave(freq, 0.5, int(testSampleRate), n)
	process(block)
	testutil.AssertNoNaNOrInf(t, block)

	tail := block[n/2:]
	var sum float64
	for _, v := range tail {
		sum += v * v
	}
	out := math.Sqrt(sum / float64(len(tail)))
	return out / (0.5 / math.Sqrt2)
}

func TestLowShelfBoostsBassOnly(t *testing.T) {
	f := NewBiquad(1)
	f.SetLowShelf(testSampleRate, 300, 0.707, 4.0) // +12 dB

	low := sineGain(t, func(b []float64) { f.Process(0, b) }, 60)
	f.Reset()
	high := sineGain(t, func(b []float64) { f.Process(0, b) }, 8000)

	assert.InDelta(t, 4.0, low, 0.3, "low band should see full shelf gain")
	assert.InDelta(t, 1.0, high, 0.1, "high band should be untouched")
}

func TestHighShelfCutsTrebleOnly(t *testing.T) {
	f := NewBiquad(1)
	f.SetHighShelf(testSampleRate, 8000, 0.707, 0.25) // -12 dB

	low := sineGain(t, func(b []float64) { f.Process(0, b) }, 100)
	f.Reset()
	high := sineGain(t, func(b []float64) { f.Process(0, b) }, 16000)

	assert.InDelta(t, 1.0, low, 0.1)
	assert.InDelta(t, 0.25, high, 0.1)
}

func TestPeakBoostsCenterFrequency(t *testing.T) {
	f := NewBiquad(1)
	f.SetPeak(testSampleRate, 2500, 1.0, 2.0) // +6 dB

	center := sineGain(t, func(b []float64) { f.Process(0, b) }, 2500)
	f.Reset()
	far := sineGain(t, func(b []float64) { f.Process(0, b) }, 100)

	assert.InDelta(t, 2.0, center, 0.2)
	assert.InDelta(t, 1.0, far, 0.1)
}

func TestBiquadUnityGainDefault(t *testing.T) {
	f := NewBiquad(2)
	in := testutil.SineWave(440, 0.5, int(testSampleRate), 512)
	block := make([]float64, len(in))
	copy(block, in)
	f.Process(1, block)
	assert.Equal(t, in, block, "default biquad must pass audio unchanged")
}

func TestBiquadChannelStateIsIndependent(t *testing.T) {
	f := NewBiquad(2)
	f.SetLowShelf(testSampleRate, 300, 0.707, 2.0)

	a := testutil.SineWave(60, 0.5, int(testSampleRate), 2048)
	b := make([]float64, len(a))
	copy(b, a)

	f.Process(0, a)
	f.Process(1, b)

	// Same input, same fresh state per channel: identical output.
	for i := range a {
		require.Equal(t, a[i], b[i])
	}
}

func TestSVFLowpassAttenuatesHighs(t *testing.T) {
	f := NewSVF(testSampleRate, 1)
	f.SetMode(SVFLowpass)
	f.SetCutoff(500)

	pass := sineGain(t, func(b []float64) { f.Process(0, b) }, 100)
	f.Reset()
	stop := sineGain(t, func(b []float64) { f.Process(0, b) }, 8000)

	assert.Greater(t, pass, 0.9)
	assert.Less(t, stop, 0.1)
}

func TestSVFHighpassAttenuatesLows(t *testing.T) {
	f := NewSVF(testSampleRate, 1)
	f.SetMode(SVFHighpass)
	f.SetCutoff(2000)

	stop := sineGain(t, func(b []float64) { f.Process(0, b) }, 100)
	f.Reset()
	pass := sineGain(t, func(b []float64) { f.Process(0, b) }, 10000)

	assert.Less(t, stop, 0.1)
	assert.Greater(t, pass, 0.9)
}

func TestSVFCutoffSweepIsStable(t *testing.T) {
	f := NewSVF(testSampleRate, 2)
	block := testutil.SineWave(440, 0.9, int(testSampleRate), 256)

	// Sweep the cutoff across the full musical range between blocks.
	for cutoff := 200.0; cutoff <= 20000; cutoff *= 1.5 {
		f.SetCutoff(cutoff)
		b := make([]float64, len(block))
		copy(b, block)
		f.Process(0, b)
		testutil.AssertNoNaNOrInf(t, b)
		testutil.AssertAllInRange(t, b, -4, 4)
	}
}
