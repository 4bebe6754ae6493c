package render

// Speed limits and the keylock bypass window.
const (
	minSpeedFactor = 0.05
	maxSpeedFactor = 8.0

	// Within this distance of unity the stretcher is bypassed even with
	// keylock on; the pitch error is inaudible and the resampler is cleaner.
	nearUnityDelta = 0.01
)

// Loop crossfade tuning. The full equal-power path needs at least
// minCrossfadeSamples of runway before the loop end; shorter runways fall
// back to a Hann fade-in, and a missed boundary gets the two-stage late fade.
const (
	maxCrossfadeSamples = 1024
	minCrossfadeSamples = 16
	shortFadeSamples    = 64
	lateFadeSamples     = 128
	preJumpSamples      = 32

	dcCompensationGain  = 0.1
	dcCompensationFloor = 0.001
)

// 3-band EQ. Knobs are normalized [-1, 1] and map to a dB gain; bands whose
// gain rounds to neutral are skipped entirely.
const (
	lowShelfFreqHz  = 300.0
	peakFreqHz      = 2500.0
	highShelfFreqHz = 8000.0

	shelfQ = 0.7071067811865476
	peakQ  = 1.0

	eqGainRangeDB = 12.0
	eqSkipGainDB  = 0.01
)

// Sweepable filter. The knob is normalized [-1, 1] with a dead zone around
// center; negative sweeps a lowpass down from 20 kHz, positive sweeps a
// highpass up from 20 Hz, both exponentially.
const (
	filterBypassZone = 0.15

	lowpassTopHz      = 20000.0
	lowpassFloorHz    = 200.0
	lowpassCurveBase  = 0.01
	highpassFloorHz   = 20.0
	highpassTopHz     = 5000.0
	highpassCurveBase = 250.0

	filterResonance = 0.7
)

// Level metering: RMS mapped to percent over a -60..0 dBFS window with
// exponential smoothing for stable display.
const (
	levelFloorDB   = -60.0
	levelSmoothing = 0.3
)

// Bound on the stretcher feed loop so a misbehaving engine cannot stall the
// audio callback.
const feedLoopMaxIterations = 64

// Starting playback this close to the end restarts from zero instead.
const endRestartEpsilonSec = 0.1
