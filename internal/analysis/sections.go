package analysis

import (
	"math"

	"github.com/tphakala/simd/f64"

	"github.com/pulsedj/go-dj-deck/internal/mathutil"
)

// scanSection is one analysis window over the track. Created and discarded
// within a single estimator run.
type scanSection struct {
	start, end float64
	energy     float64
	onsets     []float64
}

// createScanSections places analysis windows according to the track length:
// short tracks get overlapping windows, longer tracks get strategically
// positioned ones with intros and outros skipped. When the duration-based
// scheme yields nothing (very short input) the whole range is one section.
func createScanSections(totalDuration float64) []scanSection {
	var sections []scanSection

	switch {
	case totalDuration <= shortTrackMaxSec:
		sectionLength := totalDuration * shortSectionFraction
		overlap := sectionLength * shortOverlapFraction

		for i := 0; i < shortSectionCount; i++ {
			start := float64(i) * (sectionLength - overlap)
			end := start + sectionLength
			if end > totalDuration {
				end = totalDuration
			}
			if end-start >= shortMinSectionSec {
				sections = append(sections, scanSection{start: start, end: end})
			}
		}

	case totalDuration <= mediumTrackMaxSec:
		skip := math.Min(mediumSkipCapSec, totalDuration*mediumSkipFraction)
		usable := totalDuration - 2*skip

		for _, pos := range []float64{0.1, 0.3, 0.5, 0.7, 0.9} {
			center := skip + pos*usable
			start := math.Max(0, center-mediumSectionLenSec/2)
			end := math.Min(totalDuration, center+mediumSectionLenSec/2)
			if end-start >= mediumMinSectionSec {
				sections = append(sections, scanSection{start: start, end: end})
			}
		}

	default:
		skip := math.Min(longSkipCapSec, totalDuration*longSkipFraction)
		usable := totalDuration - 2*skip

		for _, pos := range []float64{0.15, 0.3, 0.45, 0.6, 0.75, 0.9} {
			center := skip + pos*usable
			start := center - longSectionLenSec/2
			end := center + longSectionLenSec/2
			if start >= 0 && end <= totalDuration && end-start >= longMinSectionSec {
				sections = append(sections, scanSection{start: start, end: end})
			}
		}
	}

	if len(sections) == 0 && totalDuration > 0 {
		sections = append(sections, scanSection{start: 0, end: totalDuration})
	}
	return sections
}

// evaluateSectionQuality scores a section by RMS energy, short-frame
// dynamic-range variance and a bonus for sections in the middle of the
// track. The score weights the section's candidate votes and its grid
// alignment later.
func evaluateSectionQuality(section scanSection, audio []float64, sampleRate int) float64 {
	startSample := int(section.start * float64(sampleRate))
	endSample := int(section.end * float64(sampleRate))
	if endSample > len(audio) {
		endSample = len(audio)
	}
	length := endSample - startSample
	if float64(length) < minSectionQualityLen*float64(sampleRate) {
		return 0
	}

	span := audio[startSample:endSample]
	energy := math.Sqrt(f64.DotProduct(span, span) / float64(length))

	frameSize := int(qualityFrameSec * float64(sampleRate))
	if frameSize < 1 {
		frameSize = 1
	}
	var frameEnergies []float64
	for i := 0; i+frameSize < len(span); i += frameSize / 2 {
		frame := span[i : i+frameSize]
		frameEnergies = append(frameEnergies, math.Sqrt(f64.DotProduct(frame, frame)/float64(frameSize)))
	}
	dynamicRange := math.Sqrt(mathutil.Variance(frameEnergies))

	quality := math.Min(energyScoreCap, energy*energyScoreScale)
	quality += math.Min(dynamicsScoreCap, dynamicRange*dynamicsScoreScale)

	center := (section.start + section.end) / 2
	approxDuration := section.start + section.end
	if approxDuration > 0 {
		relative := center / approxDuration
		if relative > middlePositionLow && relative < middlePositionHigh {
			quality += middlePositionBonus
		}
	}
	return quality
}
