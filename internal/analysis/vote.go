package analysis

import (
	"math"
	"sort"
)

// analyzePreciseBPM turns one detector's onset sequence into weighted BPM
// candidate votes. Votes are returned as repeated values so the histogram
// can simply count them.
func analyzePreciseBPM(beats []float64, sectionQuality float64) []float64 {
	if len(beats) < minBeatsForAnalysis {
		return nil
	}

	var intervals []float64
	for i := 1; i < len(beats); i++ {
		interval := beats[i] - beats[i-1]
		if interval >= minIntervalSec && interval <= maxIntervalSec {
			intervals = append(intervals, interval)
		}
	}
	if len(intervals) < minIntervalsForVoting {
		return nil
	}

	sort.Float64s(intervals)
	median := intervals[len(intervals)/2]

	filtered := filterByTolerance(intervals, median, median*medianTolerance)
	if len(filtered) < minFilteredIntervals {
		filtered = filterByTolerance(intervals, median, median*relaxedTolerance)
	}
	if len(filtered) == 0 {
		filtered = intervals
	}

	// Weighted mean interval: intervals close to the median dominate.
	var sum, weightSum float64
	for _, interval := range filtered {
		weight := 1 / (1 + math.Abs(interval-median)*intervalWeightSlope)
		sum += interval * weight
		weightSum += weight
	}
	avgInterval := sum / weightSum
	primaryBPM := 60.0 / avgInterval

	var variance float64
	for _, interval := range filtered {
		d := interval - avgInterval
		variance += d * d
	}
	variance /= float64(len(filtered))
	consistency := 1 / (1 + variance*varianceSlope)

	totalWeight := sectionQuality * consistency * float64(len(filtered))
	baseVotes := int(totalWeight / votesPerWeightUnit)
	if baseVotes < 1 {
		baseVotes = 1
	}

	harmonics := []float64{
		primaryBPM,
		primaryBPM * 2,
		primaryBPM / 2,
		primaryBPM * 4,
		primaryBPM / 4,
		primaryBPM * 1.5,
		primaryBPM / 1.5,
		primaryBPM * 3,
		primaryBPM / 3,
	}

	var candidates []float64
	for i, bpm := range harmonics {
		bpm = foldIntoRange(bpm)
		if bpm < minBPM || bpm > maxBPM {
			continue
		}

		var harmonicWeight float64
		switch {
		case i == 0:
			harmonicWeight = primaryHarmonicWeight
		case i <= 2:
			harmonicWeight = mainHarmonicWeight
		case i <= 4:
			harmonicWeight = secondaryHarmonicWeight
		default:
			harmonicWeight = tertiaryHarmonicWeight
		}

		votes := int(float64(baseVotes) * harmonicWeight)
		if votes < 1 {
			votes = 1
		}
		for v := 0; v < votes; v++ {
			candidates = append(candidates, bpm)
		}
	}
	return candidates
}

func filterByTolerance(intervals []float64, median, tolerance float64) []float64 {
	var out []float64
	for _, interval := range intervals {
		if math.Abs(interval-median) <= tolerance {
			out = append(out, interval)
		}
	}
	return out
}

// foldIntoRange halves or doubles a tempo until it lies in [minBPM, maxBPM].
func foldIntoRange(bpm float64) float64 {
	for bpm < minBPM && bpm > 0 {
		bpm *= 2
	}
	for bpm > maxBPM {
		bpm /= 2
	}
	return bpm
}

// buildHistogram clusters candidates into 0.1 BPM bins.
func buildHistogram(candidates []float64) map[int]int {
	histogram := make(map[int]int)
	for _, bpm := range candidates {
		if bpm >= minBPM && bpm <= maxBPM {
			bin := int(bpm*histogramBinsPerBPM + 0.5)
			histogram[bin]++
		}
	}
	return histogram
}

// histogramPeak finds the best-supported bin using Gaussian-weighted
// neighborhood scores and returns the corresponding BPM.
func histogramPeak(histogram map[int]int) float64 {
	bestBin := 0
	maxScore := 0.0

	for bin, votes := range histogram {
		score := float64(votes) * histogramBaseScore
		for delta := -histogramNeighborSpan; delta <= histogramNeighborSpan; delta++ {
			if delta == 0 {
				continue
			}
			if neighbor, ok := histogram[bin+delta]; ok {
				weight := math.Exp(-float64(delta*delta) / gaussianWidth)
				score += float64(neighbor) * weight * histogramNeighborGain
			}
		}
		if score > maxScore {
			maxScore = score
			bestBin = bin
		}
	}
	return float64(bestBin) / histogramBinsPerBPM
}

// evaluateGridAlignment tests how well a pulse train at the given tempo
// matches a section's onsets, trying 16 phase offsets and keeping the best
// match ratio. Tolerance adapts to the beat period and tightens for fast
// tempos.
func evaluateGridAlignment(onsets []float64, bpm, start, end float64) float64 {
	if len(onsets) == 0 || bpm < 1 {
		return 0
	}

	period := 60.0 / bpm
	tolerance := math.Min(alignmentToleranceCap, period*alignmentToleranceFrac)
	if bpm > fastBPMThreshold {
		tolerance *= fastBPMTightening
	}

	bestAlignment := 0.0
	for phase := 0; phase < alignmentPhaseSteps; phase++ {
		offset := start + period*float64(phase)/alignmentPhaseSteps
		matches, totalBeats := 0, 0

		for t := offset; t < end; t += period {
			totalBeats++
			minDistance := tolerance + 1
			for _, onset := range onsets {
				if onset < start || onset > end {
					continue
				}
				if d := math.Abs(onset - t); d < minDistance {
					minDistance = d
				}
			}
			if minDistance <= tolerance {
				matches++
			}
		}

		if totalBeats > 0 {
			alignment := float64(matches) / float64(totalBeats)
			if matches >= matchBonusThreshold {
				alignment *= 1 + matchBonusGain*float64(matches)
			}
			if alignment > bestAlignment {
				bestAlignment = alignment
			}
		}
	}
	return bestAlignment
}
