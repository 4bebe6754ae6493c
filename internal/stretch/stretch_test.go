package stretch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsedj/go-dj-deck/internal/testutil"
)

const testSampleRate = 44100

// feed pushes mono audio through the vocoder in render-sized blocks and
// collects everything it produces.
func feed(t *testing.T, v *Vocoder, input []float64) []float64 {
	t.Helper()
	var out []float64
	buf := make([]float64, 512)
	for start := 0; start < len(input); start += 512 {
		end := start + 512
		if end > len(input) {
			end = len(input)
		}
		require.NoError(t, v.Push([][]float64{input[start:end]}))
		for v.Available() > 0 {
			n := v.Retrieve([][]float64{buf})
			out = append(out, buf[:n]...)
		}
	}
	return out
}

// zeroCrossingFreq estimates the dominant frequency from positive-going
// zero crossings.
func zeroCrossingFreq(s []float64, sampleRate int) float64 {
	first, last, count := -1, -1, 0
	for i := 1; i < len(s); i++ {
		if s[i-1] <= 0 && s[i] > 0 {
			if first < 0 {
				first = i
			}
			last = i
			count++
		}
	}
	if count < 2 {
		return 0
	}
	return float64(count-1) * float64(sampleRate) / float64(last-first)
}

func TestProfileFFTSizes(t *testing.T) {
	assert.Equal(t, 1024, ProfileFast.FFTSize())
	assert.Equal(t, 2048, ProfileBalanced.FFTSize())
	assert.Equal(t, 4096, ProfileQuality.FFTSize())
	assert.Equal(t, "balanced", ProfileBalanced.String())
}

func TestVocoderRejectsInvalidChannels(t *testing.T) {
	_, err := NewVocoder(0, ProfileBalanced)
	assert.Error(t, err)
}

func TestVocoderUnityRatioOutputLength(t *testing.T) {
	v, err := NewVocoder(1, ProfileBalanced)
	require.NoError(t, err)

	input := testutil.SineWave(440, 0.5, testSampleRate, testSampleRate)
	out := feed(t, v, input)

	// One window of startup latency, otherwise sample-for-sample.
	assert.InDelta(t, len(input), len(out), float64(v.FFTSize()))
	testutil.AssertNoNaNOrInf(t, out)
	testutil.AssertAllInRange(t, out, -1.5, 1.5)
}

func TestVocoderFasterTempoShortensOutput(t *testing.T) {
	v, err := NewVocoder(1, ProfileBalanced)
	require.NoError(t, err)
	v.SetTempoRatio(2.0)

	input := testutil.SineWave(440, 0.5, testSampleRate, 2*testSampleRate)
	out := feed(t, v, input)

	want := len(input) / 2
	assert.InDelta(t, want, len(out), float64(v.FFTSize()))
}

func TestVocoderSlowerTempoLengthensOutput(t *testing.T) {
	v, err := NewVocoder(1, ProfileBalanced)
	require.NoError(t, err)
	v.SetTempoRatio(0.5)

	input := testutil.SineWave(440, 0.5, testSampleRate, testSampleRate)
	out := feed(t, v, input)

	want := len(input) * 2
	assert.InDelta(t, want, len(out), float64(2*v.FFTSize()))
}

func TestVocoderPreservesPitch(t *testing.T) {
	for _, ratio := range []float64{0.75, 1.25, 1.5} {
		v, err := NewVocoder(1, ProfileBalanced)
		require.NoError(t, err)
		v.SetTempoRatio(ratio)

		input := testutil.SineWave(440, 0.5, testSampleRate, 2*testSampleRate)
		out := feed(t, v, input)
		require.Greater(t, len(out), testSampleRate/2)

		// Skip the startup transient, measure the settled region.
		settled := out[v.FFTSize() : len(out)-v.FFTSize()]
		freq := zeroCrossingFreq(settled, testSampleRate)
		assert.InDelta(t, 440.0, freq, 440*0.05, "ratio %v shifted pitch", ratio)
	}
}

func TestVocoderRatioClamped(t *testing.T) {
	v, err := NewVocoder(1, ProfileFast)
	require.NoError(t, err)

	v.SetTempoRatio(100)
	assert.Equal(t, maxTempoRatio, v.TempoRatio())
	v.SetTempoRatio(0)
	assert.Equal(t, minTempoRatio, v.TempoRatio())
}

func TestVocoderStereoChannelsStayAligned(t *testing.T) {
	v, err := NewVocoder(2, ProfileFast)
	require.NoError(t, err)

	left := testutil.SineWave(440, 0.5, testSampleRate, testSampleRate/2)
	right := testutil.SineWave(440, 0.5, testSampleRate, testSampleRate/2)
	require.NoError(t, v.Push([][]float64{left, right}))

	n := v.Available()
	require.Positive(t, n)
	dst := [][]float64{make([]float64, n), make([]float64, n)}
	require.Equal(t, n, v.Retrieve(dst))

	// Identical input on both channels must give identical output.
	for i := range dst[0] {
		require.Equal(t, dst[0][i], dst[1][i])
	}
}

func TestVocoderPushChannelMismatch(t *testing.T) {
	v, err := NewVocoder(2, ProfileFast)
	require.NoError(t, err)
	assert.Error(t, v.Push([][]float64{make([]float64, 64)}))
}

func TestVocoderReset(t *testing.T) {
	v, err := NewVocoder(1, ProfileFast)
	require.NoError(t, err)

	require.NoError(t, v.Push([][]float64{testutil.SineWave(440, 0.5, testSampleRate, 8192)}))
	require.Positive(t, v.Available())

	v.Reset()
	assert.Zero(t, v.Available())
}

func TestAdapterLifecycle(t *testing.T) {
	a := NewAdapter()
	assert.False(t, a.Ready())

	require.NoError(t, a.Reconfigure(testSampleRate, 2, ProfileBalanced))
	assert.True(t, a.Ready())
	assert.Equal(t, 2048, a.StartDelay())
	assert.Equal(t, 1024, a.PreferredStartPad())
	assert.Equal(t, ProfileBalanced, a.Profile())

	wantLatency := float64(a.StartDelay()) / float64(testSampleRate)
	assert.InDelta(t, wantLatency, a.Latency().Seconds(), 1e-9)
}

func TestAdapterRejectsBadConfig(t *testing.T) {
	a := NewAdapter()
	assert.ErrorIs(t, a.Reconfigure(0, 2, ProfileFast), ErrEngineFault)
	assert.Error(t, a.Reconfigure(testSampleRate, 0, ProfileFast))
}

func TestAdapterDiscardsStartDelayOnce(t *testing.T) {
	a := NewAdapter()
	require.NoError(t, a.Reconfigure(testSampleRate, 1, ProfileFast))

	input := testutil.SineWave(440, 0.5, testSampleRate, testSampleRate)
	var total int
	buf := [][]float64{make([]float64, 512)}
	for start := 0; start < len(input); start += 512 {
		end := start + 512
		if end > len(input) {
			end = len(input)
		}
		_, err := a.Process([][]float64{input[start:end]})
		require.NoError(t, err)
		for {
			n := a.Retrieve(buf)
			if n == 0 {
				break
			}
			total += n
		}
	}

	// Pad and start delay are absorbed; the rest flows through.
	lost := len(input) - total
	assert.Less(t, lost, 2*a.StartDelay())
	assert.Positive(t, total)
}

func TestAdapterNotReadyAfterFault(t *testing.T) {
	a := NewAdapter()
	require.NoError(t, a.Reconfigure(testSampleRate, 2, ProfileFast))

	// Wrong channel count is an engine fault, not a crash.
	_, err := a.Process([][]float64{make([]float64, 64)})
	require.ErrorIs(t, err, ErrEngineFault)
	assert.False(t, a.Ready())

	_, err = a.Process([][]float64{make([]float64, 64), make([]float64, 64)})
	assert.ErrorIs(t, err, ErrEngineFault)
}

func TestAdapterStaysReadyAcrossUse(t *testing.T) {
	// Toggling keylock off and on again must not re-trigger priming: the
	// adapter is simply left alone while unused.
	a := NewAdapter()
	require.NoError(t, a.Reconfigure(testSampleRate, 1, ProfileFast))

	block := [][]float64{testutil.SineWave(440, 0.5, testSampleRate, 4096)}
	_, err := a.Process(block)
	require.NoError(t, err)
	drainAdapter(a)

	// Keylock off: adapter idle. Keylock on again: output resumes without
	// the start-delay discard repeating.
	_, err = a.Process(block)
	require.NoError(t, err)
	n := drainAdapter(a)
	assert.Greater(t, n, 2048, "output should resume immediately after idle period")
	assert.True(t, a.Ready())
}

func drainAdapter(a *Adapter) int {
	buf := [][]float64{make([]float64, 512)}
	total := 0
	for {
		n := a.Retrieve(buf)
		if n == 0 {
			return total
		}
		total += n
	}
}

func TestAdapterResetRePrimes(t *testing.T) {
	a := NewAdapter()
	require.NoError(t, a.Reconfigure(testSampleRate, 1, ProfileFast))

	block := [][]float64{testutil.SineWave(440, 0.5, testSampleRate, 8192)}
	_, err := a.Process(block)
	require.NoError(t, err)
	require.Positive(t, drainAdapter(a))

	a.Reset()
	assert.Zero(t, drainAdapter(a), "reset must clear pending output")

	// After reset the start delay is discarded again before output flows.
	avail, err := a.Process([][]float64{make([]float64, 256)})
	require.NoError(t, err)
	assert.Zero(t, avail)
}
