package render

import (
	"math"

	"github.com/pulsedj/go-dj-deck/internal/mathutil"

	"github.com/tphakala/simd/f64"
)

// updateLevels measures the block's per-channel RMS, maps it onto a
// -60..0 dBFS window as a 0-100 percentage and folds it into the published
// levels with exponential smoothing. Mono tracks report the same level on
// both meters.
func (r *Renderer) updateLevels(block [][]float64, n int) {
	left := blockRMS(block[0][:n])
	right := left
	if len(block) >= 2 {
		right = blockRMS(block[1][:n])
	}

	leftPct := levelPercent(left)
	rightPct := levelPercent(right)

	curLeft, curRight := r.params.Levels()
	r.params.levelLeft.Store(curLeft*(1-levelSmoothing) + leftPct*levelSmoothing)
	r.params.levelRight.Store(curRight*(1-levelSmoothing) + rightPct*levelSmoothing)
}

func blockRMS(block []float64) float64 {
	if len(block) == 0 {
		return 0
	}
	sumSquares := f64.DotProduct(block, block)
	return math.Sqrt(sumSquares / float64(len(block)))
}

func levelPercent(rms float64) float64 {
	db := mathutil.Clamp(mathutil.LinearToDB(rms), levelFloorDB, 0)
	return (db - levelFloorDB) / -levelFloorDB * 100
}
