package mathutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-1, 0, 1))
	assert.Equal(t, 1.0, Clamp(2, 0, 1))
	assert.Equal(t, 0.5, Clamp(0.5, 0, 1))
}

func TestClampInt(t *testing.T) {
	assert.Equal(t, 3, ClampInt(1, 3, 9))
	assert.Equal(t, 9, ClampInt(12, 3, 9))
	assert.Equal(t, 5, ClampInt(5, 3, 9))
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 0.0, Median(nil))
	assert.Equal(t, 2.0, Median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 2, 3}))

	// Input must stay untouched.
	s := []float64{3, 1, 2}
	Median(s)
	assert.Equal(t, []float64{3, 1, 2}, s)
}

func TestMeanAndVariance(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 2.0, Mean([]float64{1, 2, 3}))

	assert.Equal(t, 0.0, Variance([]float64{5}))
	assert.InDelta(t, 0.0, Variance([]float64{2, 2, 2}), 1e-12)
	// Population variance of {1,2,3} is 2/3.
	assert.InDelta(t, 2.0/3.0, Variance([]float64{1, 2, 3}), 1e-12)
}

func TestRMS(t *testing.T) {
	assert.Equal(t, 0.0, RMS(nil))
	assert.InDelta(t, 1.0, RMS([]float64{1, -1, 1, -1}), 1e-12)
	assert.InDelta(t, math.Sqrt(0.5), RMS([]float64{1, 0, -1, 0}), 1e-12)
}

func TestDBConversion(t *testing.T) {
	assert.InDelta(t, 0.0, LinearToDB(1.0), 1e-12)
	assert.InDelta(t, -20.0, LinearToDB(0.1), 1e-9)
	assert.Equal(t, -120.0, LinearToDB(0))
	assert.Equal(t, -120.0, LinearToDB(-1))

	assert.InDelta(t, 1.0, DBToLinear(0), 1e-12)
	assert.InDelta(t, 0.1, DBToLinear(-20), 1e-9)

	// Round trip over the audible range.
	for _, v := range []float64{1e-3, 0.05, 0.25, 0.9, 1.0} {
		assert.InDelta(t, v, DBToLinear(LinearToDB(v)), 1e-9)
	}
}
