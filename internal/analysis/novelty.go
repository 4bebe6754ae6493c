package analysis

import (
	"math"

	"github.com/pulsedj/go-dj-deck/internal/mathutil"
)

// noveltyResult carries the autocorrelation tempo estimate derived from the
// global spectral-flux novelty curve, with its beat phase.
type noveltyResult struct {
	bpm    float64
	period float64
	phase  float64
	score  float64
}

// computeNoveltyCurve builds the global novelty curve: the half-wave
// rectified frame-to-frame change of the spectral-flux detection function,
// lightly smoothed and normalized to unit variance.
func computeNoveltyCurve(s *stft, mono []float64, sampleRate int) (novelty, times []float64) {
	prevFlux := 0.0
	prev := make([]float64, stftWindowSize/2+1)
	havePrev := false

	s.run(mono, sampleRate, 0, len(mono), func(timeSec float64, mags []float64) {
		var flux float64
		if havePrev {
			for k, m := range mags {
				if d := m - prev[k]; d > 0 {
					flux += d
				}
			}
		}
		copy(prev, mags)
		havePrev = true

		diff := flux - prevFlux
		if diff < 0 {
			diff = 0
		}
		novelty = append(novelty, diff)
		times = append(times, timeSec)
		prevFlux = flux
	})

	if len(novelty) >= smoothingTaps {
		smoothed := make([]float64, len(novelty))
		smoothed[0] = novelty[0]
		for k := 1; k+1 < len(novelty); k++ {
			smoothed[k] = (novelty[k-1] + novelty[k] + novelty[k+1]) / smoothingTaps
		}
		smoothed[len(smoothed)-1] = novelty[len(novelty)-1]
		novelty = smoothed
	}

	if len(novelty) > 1 {
		mean := mathutil.Mean(novelty)
		var variance float64
		for _, v := range novelty {
			d := v - mean
			variance += d * d
		}
		variance /= float64(len(novelty) - 1)
		std := 1.0
		if variance > 1e-12 {
			std = math.Sqrt(variance)
		}
		for i := range novelty {
			novelty[i] = (novelty[i] - mean) / std
		}
	}
	return novelty, times
}

// noveltyTempo estimates tempo from the novelty curve's autocorrelation over
// the candidate lag range, refines the peak lag by parabolic interpolation
// and searches 32 phase positions for the offset whose pulse train lands on
// the strongest novelty.
func noveltyTempo(novelty, times []float64, sampleRate int, minTempoBPM, maxTempoBPM float64) noveltyResult {
	var res noveltyResult
	if len(novelty) < noveltyMinFrames {
		return res
	}

	hopSec := float64(stftHopSize) / float64(sampleRate)
	minLag := int(math.Round(60 / maxTempoBPM / hopSec))
	maxLag := int(math.Round(60 / minTempoBPM / hopSec))
	if minLag < 2 {
		minLag = 2
	}
	if maxLag > len(novelty)-2 {
		maxLag = len(novelty) - 2
	}
	if minLag >= maxLag {
		return res
	}

	acf := make([]float64, maxLag+1)
	for lag := minLag; lag <= maxLag; lag++ {
		var s float64
		for t := lag; t < len(novelty); t++ {
			s += novelty[t] * novelty[t-lag]
		}
		acf[lag] = s / float64(len(novelty)-lag)
	}

	bestLag := minLag
	bestVal := math.Inf(-1)
	for lag := minLag; lag <= maxLag; lag++ {
		if acf[lag] > bestVal {
			bestVal = acf[lag]
			bestLag = lag
		}
	}

	refined := float64(bestLag)
	if bestLag > minLag && bestLag < maxLag {
		y1, y2, y3 := acf[bestLag-1], acf[bestLag], acf[bestLag+1]
		denom := y1 - 2*y2 + y3
		if math.Abs(denom) > 1e-12 {
			delta := 0.5 * (y1 - y3) / denom
			if math.Abs(delta) <= 1 {
				refined = float64(bestLag) + delta
			}
		}
	}

	period := refined * hopSec
	if period <= 1e-6 {
		return res
	}
	bpm := 60 / period
	if bpm < minTempoBPM || bpm > maxTempoBPM {
		return res
	}

	// Phase search over the middle of the curve; the edges are often
	// silence or fades.
	startIdx := int(float64(len(novelty)) * noveltyEdgeFrac)
	endIdx := int(float64(len(novelty)) * (1 - noveltyEdgeFrac))
	if minEnd := startIdx + bestLag*4; endIdx < minEnd {
		endIdx = minEnd
	}
	if endIdx > len(novelty) {
		endIdx = len(novelty)
	}
	if startIdx >= endIdx {
		return res
	}

	bestPhase, bestScore := 0.0, math.Inf(-1)
	for p := 0; p < phaseSearchSteps; p++ {
		phase := period * float64(p) / phaseSearchSteps
		var sum float64
		count := 0
		for t := times[startIdx] + phase; t < times[endIdx-1]; t += period {
			idx := int(math.Round(t / hopSec))
			if idx >= 0 && idx < len(novelty) {
				sum += novelty[idx]
				count++
			}
		}
		score := 0.0
		if count > 0 {
			score = sum / float64(count)
		}
		if score > bestScore {
			bestScore = score
			bestPhase = phase
		}
	}

	res.bpm = bpm
	res.period = period
	res.phase = bestPhase
	res.score = bestScore
	return res
}
