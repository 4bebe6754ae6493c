package stretch

// Tempo ratio limits. Matches the deck's playable speed range with headroom.
const (
	minTempoRatio = 0.25
	maxTempoRatio = 4.0
)

// Profile FFT sizes. Synthesis hop is always a quarter window (75% overlap),
// which keeps the squared-Hann overlap-add flat.
const (
	fastFFTSize     = 1024
	balancedFFTSize = 2048
	qualityFFTSize  = 4096

	hopDivisor = 4
)

// hannSquaredOverlapGain is the constant sum of squared Hann windows at 75%
// overlap, used to normalize the overlap-add output.
const hannSquaredOverlapGain = 1.5
