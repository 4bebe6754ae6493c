// Package testutil provides reusable test helper functions for the deck
// engine tests.
package testutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Default tolerances for various test scenarios.
const (
	DefaultTolerance = 1e-10
	SpacingTolerance = 1e-9
	LevelTolerance   = 0.5
)

// AssertNoNaNOrInf verifies that no elements in the slice are NaN or Inf.
func AssertNoNaNOrInf(t *testing.T, s []float64, msgAndArgs ...any) bool {
	t.Helper()
	for i, v := range s {
		if math.IsNaN(v) {
			return assert.Fail(t, "found NaN", "s[%d] is NaN", i)
		}
		if math.IsInf(v, 0) {
			return assert.Fail(t, "found Inf", "s[%d] is Inf", i)
		}
	}
	return true
}

// AssertAllInRange verifies that all elements are within [min, max].
func AssertAllInRange(t *testing.T, s []float64, minVal, maxVal float64, msgAndArgs ...any) bool {
	t.Helper()
	for i, v := range s {
		if v < minVal || v > maxVal {
			return assert.Fail(t, "value out of range",
				"s[%d]=%f is outside range [%f, %f]", i, v, minVal, maxVal)
		}
	}
	return true
}

// AssertStrictlyIncreasing verifies that a slice is strictly increasing.
func AssertStrictlyIncreasing(t *testing.T, s []float64, msgAndArgs ...any) bool {
	t.Helper()
	for i := 1; i < len(s); i++ {
		if s[i] <= s[i-1] {
			return assert.Fail(t, "not strictly increasing",
				"s[%d]=%f <= s[%d]=%f", i, s[i], i-1, s[i-1])
		}
	}
	return true
}

// AssertConstantSpacing verifies that consecutive elements differ by spacing
// within the given tolerance.
func AssertConstantSpacing(t *testing.T, s []float64, spacing, tolerance float64, msgAndArgs ...any) bool {
	t.Helper()
	for i := 1; i < len(s); i++ {
		got := s[i] - s[i-1]
		if math.Abs(got-spacing) > tolerance {
			return assert.Fail(t, "spacing mismatch",
				"s[%d]-s[%d]=%f, want %f (±%e)", i, i-1, got, spacing, tolerance)
		}
	}
	return true
}

// AssertInRange verifies that a value is within [min, max].
func AssertInRange(t *testing.T, value, minVal, maxVal float64, msgAndArgs ...any) bool {
	t.Helper()
	if value < minVal || value > maxVal {
		return assert.Fail(t, "value out of range",
			"value %f is outside range [%f, %f]", value, minVal, maxVal)
	}
	return true
}

// AssertRelativeError verifies that the relative error between actual and
// expected is within tolerance.
func AssertRelativeError(t *testing.T, expected, actual, tolerance float64, msgAndArgs ...any) bool {
	t.Helper()
	if expected == 0 {
		return assert.InDelta(t, expected, actual, tolerance, msgAndArgs...)
	}
	relError := math.Abs(actual-expected) / math.Abs(expected)
	return assert.LessOrEqual(t, relError, tolerance,
		"relative error %e exceeds tolerance %e (expected=%f, actual=%f)",
		relError, tolerance, expected, actual)
}

// SineWave generates amplitude*sin(2π*freq*t) at the given sample rate.
func SineWave(freq float64, amplitude float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	w := 2 * math.Pi * freq / float64(sampleRate)
	for i := range out {
		out[i] = amplitude * math.Sin(w*float64(i))
	}
	return out
}

// ClickTrack generates n samples of silence with short unit impulses at the
// given period in seconds, starting at offset. Used to synthesize material
// with a known tempo.
func ClickTrack(periodSec, offsetSec float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	clickLen := sampleRate / 100
	if clickLen < 1 {
		clickLen = 1
	}
	for t := offsetSec; ; t += periodSec {
		start := int(t * float64(sampleRate))
		if start >= n {
			break
		}
		if start < 0 {
			continue
		}
		for i := 0; i < clickLen && start+i < n; i++ {
			// Decaying click rather than a bare impulse so spectral
			// detectors see energy across bins.
			out[start+i] = math.Exp(-float64(i) / float64(clickLen) * 4)
		}
	}
	return out
}
