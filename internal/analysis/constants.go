package analysis

// Plausible tempo range. Intervals outside it are ignored everywhere.
const (
	minBPM = 40.0
	maxBPM = 260.0

	minIntervalSec = 0.23 // 260 BPM
	maxIntervalSec = 1.5  // 40 BPM
)

// Section selection. Strategy switches on total duration so intros and
// outros do not bias the estimate.
const (
	shortTrackMaxSec  = 90.0
	mediumTrackMaxSec = 240.0

	shortSectionCount    = 4
	shortSectionFraction = 0.4
	shortOverlapFraction = 0.2
	shortMinSectionSec   = 15.0

	mediumSkipCapSec      = 25.0
	mediumSkipFraction    = 0.12
	mediumSectionLenSec   = 35.0
	mediumMinSectionSec   = 20.0

	longSkipCapSec    = 45.0
	longSkipFraction  = 0.1
	longSectionLenSec = 40.0
	longMinSectionSec = 25.0
)

// STFT geometry shared by all detectors: a large window for frequency
// resolution with a small hop for time resolution.
const (
	stftWindowSize = 2048
	stftHopSize    = 256
)

// Detector sensitivity. Thresholds are multiples of the moving mean of the
// detection function; minimum inter-onset intervals de-duplicate ringing.
const (
	tempoThreshold    = 0.15
	complexThreshold  = 0.15
	hfcThreshold      = 0.20
	mklThreshold      = 0.18

	tempoMinIOISec = 0.025
	onsetMinIOISec = 0.012

	peakWindowFrames      = 3
	thresholdWindowFrames = 86 // ~0.5 s of history at hop 256 / 44.1 kHz
)

// Detector quality multipliers applied to the section quality before
// candidate voting.
const (
	tempoQualityBoost   = 1.5
	complexQualityBoost = 1.2
	hfcQualityBoost     = 1.0
	mklQualityBoost     = 1.1
)

// Interval statistics for per-section BPM candidates.
const (
	minBeatsForAnalysis   = 6
	minIntervalsForVoting = 4
	medianTolerance       = 0.25
	relaxedTolerance      = 0.40
	minFilteredIntervals  = 3
	intervalWeightSlope   = 5.0
	varianceSlope         = 50.0
	votesPerWeightUnit    = 5.0
)

// Harmonic-tier vote weights.
const (
	primaryHarmonicWeight   = 3.0
	mainHarmonicWeight      = 2.0
	secondaryHarmonicWeight = 1.5
	tertiaryHarmonicWeight  = 1.0
)

// Section quality scoring.
const (
	qualityFrameSec      = 0.01 // 10 ms frames for the dynamics analysis
	energyScoreScale     = 20000.0
	energyScoreCap       = 50.0
	dynamicsScoreScale   = 10000.0
	dynamicsScoreCap     = 30.0
	middlePositionBonus  = 20.0
	middlePositionLow    = 0.2
	middlePositionHigh   = 0.8
	minSectionQualityLen = 1.0 // seconds of audio needed to score a section
)

// Histogram clustering at 0.1 BPM resolution with Gaussian neighborhoods.
const (
	histogramBinsPerBPM   = 10
	histogramBaseScore    = 20.0
	histogramNeighborSpan = 15
	histogramNeighborGain = 8.0
	gaussianWidth         = 50.0
)

// Octave validation scoring.
const (
	octaveBinScore        = 25.0
	octaveNeighborSpan    = 8
	octaveNeighborDivisor = 10.0
	octaveNeighborGain    = 8.0
	minOnsetSectionEnergy = 10.0
	alignmentGain         = 120.0
	alignmentBonusFloor   = 0.3
	alignmentBonusGain    = 0.5
)

// Genre preference multipliers.
const (
	edmLowBPM, edmHighBPM         = 120.0, 170.0
	edmBoost                      = 1.3
	bigRoomLowBPM, bigRoomHighBPM = 140.0, 155.0
	bigRoomBoost                  = 1.25
	technoLowBPM, technoHighBPM   = 170.0, 200.0
	technoBoost                   = 1.2
	deepLowBPM, deepHighBPM       = 85.0, 110.0
	deepBoost                     = 1.15
)

// Grid alignment testing.
const (
	alignmentPhaseSteps    = 16
	alignmentToleranceCap  = 0.05
	alignmentToleranceFrac = 0.08
	fastBPMThreshold       = 140.0
	fastBPMTightening      = 0.8
	matchBonusThreshold    = 8
	matchBonusGain         = 0.02
)

// Novelty autocorrelation (global spectral-flux curve).
const (
	noveltyMinFrames   = 64
	acfMinBPM          = 60.0
	acfMaxBPM          = 180.0
	phaseSearchSteps   = 32
	noveltyEdgeFrac    = 0.1 // skip 10% at each end during phase search
	smoothingTaps      = 3
)

// Reconciliation and refinement.
const (
	acfPreferenceRatio = 1.03
	acfAgreementBPM    = 3.0
	refineRangeBPM     = 3.0
	refineStepBPM      = 0.05
)

// Progress milestones reported through ProgressFn.
const (
	progressLoad         = 0.05
	progressSections     = 0.15
	progressSectionsBase = 0.2
	progressSectionsSpan = 0.5
	progressNovelty      = 0.75
	progressACF          = 0.85
	progressDone         = 1.0
)
