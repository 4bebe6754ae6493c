// Package analysis implements offline BPM and beat-grid estimation: a
// multi-section onset scanner with harmonic candidate voting, validated
// against a global novelty autocorrelation estimate.
package analysis

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
)

// Estimation failures. The deck reports BPM 0 and leaves the beat grid
// empty; neither aborts anything.
var (
	// ErrNoAudio indicates the input buffer is empty or too short.
	ErrNoAudio = errors.New("no usable audio")

	// ErrNoCandidates indicates that no tempo candidates survived the scan.
	ErrNoCandidates = errors.New("no bpm candidates")
)

// ProgressFn receives analysis progress in [0, 1].
type ProgressFn func(fraction float64)

// Result is the outcome of one estimation run.
type Result struct {
	// BPM is the estimated tempo, 0 on failure.
	BPM float64

	// Beats holds beat timestamps in seconds covering the analyzed range.
	Beats []float64

	// FirstBeatOffset is the grid phase anchor in seconds, >= 0.
	FirstBeatOffset float64

	// Algorithm describes the detection path that produced the result.
	Algorithm string
}

// Estimator runs the analysis pipeline. The zero value is usable; Progress
// and Logger are optional.
type Estimator struct {
	// Progress, when set, receives milestone updates during Estimate.
	Progress ProgressFn

	// Logger, when set, receives diagnostic messages. Nil is silent.
	Logger *log.Logger
}

func (e *Estimator) report(fraction float64) {
	if e.Progress != nil {
		e.Progress(fraction)
	}
}

func (e *Estimator) logf(format string, args ...any) {
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
	}
}

// Estimate analyzes up to maxSeconds of the mono buffer and returns the
// tempo, beat timestamps and grid anchor. On failure the Result carries
// BPM 0, no beats and a degraded algorithm label alongside the error.
func (e *Estimator) Estimate(mono []float64, sampleRate int, maxSeconds float64) (Result, error) {
	e.report(0)

	if sampleRate <= 0 || len(mono) == 0 {
		return Result{Algorithm: "Multi-Section Scanner (no data)"}, ErrNoAudio
	}

	if maxSeconds > 0 {
		if limit := int(maxSeconds * float64(sampleRate)); limit < len(mono) {
			mono = mono[:limit]
		}
	}
	totalDuration := float64(len(mono)) / float64(sampleRate)
	if len(mono) < stftWindowSize {
		return Result{Algorithm: "Multi-Section Scanner (no data)"}, ErrNoAudio
	}

	e.report(progressLoad)
	sections := createScanSections(totalDuration)
	e.report(progressSections)

	s := newSTFT()

	// Per-section onset detection and candidate voting.
	var globalCandidates []float64
	for si := range sections {
		section := &sections[si]
		startSample := int(section.start * float64(sampleRate))
		endSample := int(section.end * float64(sampleRate))
		if endSample > len(mono) {
			endSample = len(mono)
		}

		curves := computeDetectionCurves(s, mono, sampleRate, startSample, endSample)
		tempoBeats := pickOnsets(curves.energy, curves.times, tempoThreshold, tempoMinIOISec)
		complexOnsets := pickOnsets(curves.flux, curves.times, complexThreshold, onsetMinIOISec)
		hfcOnsets := pickOnsets(curves.hfc, curves.times, hfcThreshold, onsetMinIOISec)
		mklOnsets := pickOnsets(curves.mkl, curves.times, mklThreshold, onsetMinIOISec)

		quality := evaluateSectionQuality(*section, mono, sampleRate)

		globalCandidates = append(globalCandidates, analyzePreciseBPM(tempoBeats, quality*tempoQualityBoost)...)
		globalCandidates = append(globalCandidates, analyzePreciseBPM(complexOnsets, quality*complexQualityBoost)...)
		globalCandidates = append(globalCandidates, analyzePreciseBPM(hfcOnsets, quality*hfcQualityBoost)...)
		globalCandidates = append(globalCandidates, analyzePreciseBPM(mklOnsets, quality*mklQualityBoost)...)

		section.onsets = append(section.onsets, complexOnsets...)
		section.onsets = append(section.onsets, hfcOnsets...)
		section.onsets = append(section.onsets, mklOnsets...)
		sort.Float64s(section.onsets)
		section.energy = quality

		frac := float64(si+1) / float64(len(sections))
		e.report(progressSectionsBase + progressSectionsSpan*frac)
	}

	e.report(progressNovelty)
	novelty, noveltyTimes := computeNoveltyCurve(s, mono, sampleRate)

	if len(globalCandidates) == 0 {
		e.logf("analysis found no bpm candidates (%d sections, %.1fs)", len(sections), totalDuration)
		return Result{Algorithm: "Multi-Section Scanner (no data)"}, ErrNoCandidates
	}

	histogram := buildHistogram(globalCandidates)
	estimatedBPM := histogramPeak(histogram)

	e.report(progressACF)
	acf := noveltyTempo(novelty, noveltyTimes, sampleRate, acfMinBPM, acfMaxBPM)

	finalBPM := e.validateOctaves(estimatedBPM, histogram, sections)
	chosenBPM, choseACF := reconcile(finalBPM, acf, sections)
	chosenBPM = refineLocally(chosenBPM, sections)

	algorithm := fmt.Sprintf("Precision Multi-Section Scanner (%d sections, %d candidates)",
		len(sections), len(globalCandidates))
	if acf.bpm > 0 {
		algorithm += " + SpecFlux ACF"
		if choseACF {
			algorithm += " [ACF-preferred]"
		}
		algorithm += ", refined +-3 BPM"
	}

	result := Result{
		BPM:       chosenBPM,
		Algorithm: algorithm,
	}
	if chosenBPM > 0 {
		result.FirstBeatOffset, result.Beats = buildBeats(chosenBPM, acf, sections, totalDuration)
	}

	e.report(progressDone)
	return result, nil
}

// validateOctaves scores the histogram peak's harmonic family against the
// histogram itself, genre tempo preferences and the onset grid alignment of
// every energetic section, returning the best-scoring harmonic.
func (e *Estimator) validateOctaves(estimatedBPM float64, histogram map[int]int, sections []scanSection) float64 {
	candidates := []float64{
		estimatedBPM, estimatedBPM * 2, estimatedBPM / 2,
		estimatedBPM * 4, estimatedBPM / 4,
		estimatedBPM * 1.5, estimatedBPM / 1.5,
		estimatedBPM * 3, estimatedBPM / 3,
	}

	finalBPM := estimatedBPM
	bestScore := 0.0

	for _, bpm := range candidates {
		if bpm < minBPM || bpm > maxBPM {
			continue
		}

		score := 0.0
		bin := int(bpm*histogramBinsPerBPM + 0.5)
		if votes, ok := histogram[bin]; ok {
			score += float64(votes) * octaveBinScore
		}
		for delta := -octaveNeighborSpan; delta <= octaveNeighborSpan; delta++ {
			if neighbor, ok := histogram[bin+delta]; ok {
				weight := 1 - math.Abs(float64(delta))/octaveNeighborDivisor
				score += float64(neighbor) * weight * octaveNeighborGain
			}
		}

		score *= genrePreference(bpm)

		var totalAlignment, weightSum float64
		for _, section := range sections {
			if len(section.onsets) == 0 || section.energy <= minOnsetSectionEnergy {
				continue
			}
			alignment := evaluateGridAlignment(section.onsets, bpm, section.start, section.end)
			sectionWeight := section.energy / 100
			totalAlignment += alignment * sectionWeight
			weightSum += sectionWeight
		}
		if weightSum > 0 {
			avgAlignment := totalAlignment / weightSum
			score += avgAlignment * alignmentGain
			if avgAlignment > alignmentBonusFloor {
				score *= 1 + avgAlignment*alignmentBonusGain
			}
		}

		if score > bestScore {
			bestScore = score
			finalBPM = bpm
		}
	}
	return finalBPM
}

func genrePreference(bpm float64) float64 {
	switch {
	case bpm >= edmLowBPM && bpm <= edmHighBPM:
		boost := edmBoost
		if bpm >= bigRoomLowBPM && bpm <= bigRoomHighBPM {
			boost *= bigRoomBoost
		}
		return boost
	case bpm >= technoLowBPM && bpm <= technoHighBPM:
		return technoBoost
	case bpm >= deepLowBPM && bpm <= deepHighBPM:
		return deepBoost
	default:
		return 1
	}
}

// alignmentScore averages a candidate's grid alignment over all sections
// with onsets, weighted by section energy.
func alignmentScore(bpm float64, sections []scanSection) float64 {
	if bpm <= 0 {
		return 0
	}
	var totalAlignment, weightSum float64
	for _, section := range sections {
		if len(section.onsets) == 0 || section.energy <= 1 {
			continue
		}
		a := evaluateGridAlignment(section.onsets, bpm, section.start, section.end)
		w := math.Max(0.1, section.energy/100)
		totalAlignment += a * w
		weightSum += w
	}
	if weightSum <= 0 {
		return 0
	}
	return totalAlignment / weightSum
}

// reconcile compares the histogram winner with the autocorrelation estimate
// by their alignment scores. The autocorrelation value wins when clearly
// better, or on a slight edge when the two already agree within 3 BPM.
func reconcile(histogramBPM float64, acf noveltyResult, sections []scanSection) (float64, bool) {
	candA := histogramBPM
	candB := candA
	if acf.bpm > 0 {
		candB = acf.bpm
	}

	scoreA := alignmentScore(candA, sections)
	scoreB := alignmentScore(candB, sections)

	if scoreB > scoreA*acfPreferenceRatio || math.Abs(candB-candA) <= acfAgreementBPM {
		if scoreB >= scoreA {
			return candB, candB != candA
		}
	}
	return candA, false
}

// refineLocally scans ±3 BPM in 0.05 steps around the chosen tempo and
// keeps the alignment-maximizing value.
func refineLocally(bpm float64, sections []scanSection) float64 {
	best := bpm
	bestScore := alignmentScore(bpm, sections)
	for delta := -refineRangeBPM; delta <= refineRangeBPM+1e-4; delta += refineStepBPM {
		test := bpm + delta
		if test < minBPM || test > maxBPM {
			continue
		}
		if s := alignmentScore(test, sections); s > bestScore {
			bestScore = s
			best = test
		}
	}
	return best
}

// buildBeats derives the grid anchor and generates beat timestamps. The
// anchor prefers the autocorrelation phase; otherwise the best-fit onset in
// the strongest section. It is walked back by whole periods to >= 0.
func buildBeats(bpm float64, acf noveltyResult, sections []scanSection, totalDuration float64) (float64, []float64) {
	period := 60 / bpm

	anchor := 0.0
	haveAnchor := false
	if acf.bpm > 0 {
		phase := math.Mod(acf.phase, period)
		if phase < 0 {
			phase += period
		}
		anchor = phase
		haveAnchor = true
	}
	if !haveAnchor {
		maxEnergy := 0.0
		for _, section := range sections {
			if section.energy <= maxEnergy || len(section.onsets) == 0 {
				continue
			}
			maxEnergy = section.energy
			bestFit := math.Inf(1)
			for _, onset := range section.onsets {
				gridPos := math.Mod(onset, period)
				fit := math.Min(gridPos, period-gridPos)
				if fit < bestFit {
					bestFit = fit
					anchor = onset - gridPos
				}
			}
			haveAnchor = true
		}
	}

	for anchor-period >= 0 {
		anchor -= period
	}
	if anchor < 0 {
		anchor = 0
	}

	var beats []float64
	for t := anchor; t < totalDuration; t += period {
		if t >= 0 {
			beats = append(beats, t)
		}
	}
	return anchor, beats
}
