// Package render implements the real-time block renderer: transport,
// resampling, pitch-preserving tempo via the stretch adapter, loop
// wraparound, tone filters and level metering. Render is single-threaded
// (the audio callback); all control flows in through Params and the
// renderer's atomic transport state.
package render

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/tphakala/simd/f64"

	"github.com/pulsedj/go-dj-deck/internal/filter"
	"github.com/pulsedj/go-dj-deck/internal/mathutil"
	"github.com/pulsedj/go-dj-deck/internal/stretch"
)

// Renderer configuration errors.
var (
	// ErrNoTrack indicates the renderer was given no audio.
	ErrNoTrack = errors.New("no track loaded")

	// ErrBadTrack indicates malformed track data.
	ErrBadTrack = errors.New("invalid track data")
)

// Renderer pulls blocks of playback audio from a decoded track. All methods
// except Render may be called from any goroutine; Render must be driven by
// exactly one.
type Renderer struct {
	samples    [][]float64
	sampleRate int
	channels   int
	frames     int

	params *Params

	stretcher *stretch.Adapter

	// Audio-thread state.
	pos            float64
	keylockOn      bool
	stretchStarted bool
	lastLow        float64
	lastMid        float64
	lastHigh       float64

	eqLow  *filter.Biquad
	eqMid  *filter.Biquad
	eqHigh *filter.Biquad
	sweep  *filter.SVF

	// Scratch buffers reused across blocks, grown on demand.
	feedBuf  [][]float64
	drainBuf [][]float64
	endBuf   [][]float64
	startBuf [][]float64
	preBuf   [][]float64

	// Transport state shared with the control thread.
	playing      atomic.Bool
	posSec       atomicFloat64
	pausedPosSec atomicFloat64
	seekSec      atomicFloat64
	seekArmed    atomic.Bool
	resetPending atomic.Bool

	closed atomic.Bool
}

// NewRenderer builds a renderer over non-interleaved track audio. The track
// slices must be non-empty and of equal length.
func NewRenderer(samples [][]float64, sampleRate int, profile stretch.Profile) (*Renderer, error) {
	if len(samples) == 0 {
		return nil, ErrNoTrack
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrBadTrack, sampleRate)
	}
	frames := len(samples[0])
	if frames == 0 {
		return nil, fmt.Errorf("%w: empty channel", ErrBadTrack)
	}
	for ch, s := range samples {
		if len(s) != frames {
			return nil, fmt.Errorf("%w: channel %d length %d, expected %d", ErrBadTrack, ch, len(s), frames)
		}
	}
	channels := len(samples)

	r := &Renderer{
		samples:    samples,
		sampleRate: sampleRate,
		channels:   channels,
		frames:     frames,
		params:     NewParams(),
		stretcher:  stretch.NewAdapter(),
		eqLow:      filter.NewBiquad(channels),
		eqMid:      filter.NewBiquad(channels),
		eqHigh:     filter.NewBiquad(channels),
		sweep:      filter.NewSVF(float64(sampleRate), channels),
		lastLow:    math.NaN(),
		lastMid:    math.NaN(),
		lastHigh:   math.NaN(),
	}
	if err := r.stretcher.Reconfigure(sampleRate, channels, profile); err != nil {
		return nil, err
	}
	return r, nil
}

// Params returns the shared control surface.
func (r *Renderer) Params() *Params { return r.params }

// SampleRate returns the track sample rate in Hz.
func (r *Renderer) SampleRate() int { return r.sampleRate }

// Channels returns the track channel count.
func (r *Renderer) Channels() int { return r.channels }

// Duration returns the track length in seconds.
func (r *Renderer) Duration() float64 {
	return float64(r.frames) / float64(r.sampleRate)
}

// Position returns the transport position in seconds.
func (r *Renderer) Position() float64 { return r.posSec.Load() }

// IsPlaying reports whether the transport is running. A soft pause keeps
// the transport running while muting output.
func (r *Renderer) IsPlaying() bool { return r.playing.Load() }

// SetKeylockQuality swaps the stretch profile. The stretcher re-primes, so
// a short fallback-to-resampler gap is expected.
func (r *Renderer) SetKeylockQuality(profile stretch.Profile) error {
	return r.stretcher.Reconfigure(r.sampleRate, r.channels, profile)
}

// PipelineLatency returns the extra output latency introduced by the
// stretcher when keylock is active.
func (r *Renderer) PipelineLatency() time.Duration {
	if !r.keylockOn || !r.stretcher.Ready() {
		return 0
	}
	return r.stretcher.Latency()
}

// SetPositionSeconds seeks the transport. While paused the seek also becomes
// the resume position.
func (r *Renderer) SetPositionSeconds(sec float64) {
	sec = mathutil.Clamp(sec, 0, r.Duration())
	r.seekSec.Store(sec)
	r.seekArmed.Store(true)
	r.posSec.Store(sec)
	if !r.playing.Load() || r.params.softPaused.Load() {
		r.pausedPosSec.Store(sec)
	}
}

// SetPositionRelative seeks to a fraction [0, 1] of the track length.
func (r *Renderer) SetPositionRelative(fraction float64) {
	r.SetPositionSeconds(mathutil.Clamp(fraction, 0, 1) * r.Duration())
}

// PositionRelative returns the transport position as a fraction of the
// track length.
func (r *Renderer) PositionRelative() float64 {
	d := r.Duration()
	if d == 0 {
		return 0
	}
	return r.Position() / d
}

// Start begins or resumes playback. A stored pause position is restored;
// starting at the very end restarts from zero.
func (r *Renderer) Start() {
	if r.closed.Load() {
		return
	}
	dur := r.Duration()
	if r.Position() >= dur-endRestartEpsilonSec {
		r.SetPositionSeconds(0)
		r.pausedPosSec.Store(0)
	}
	if pp := r.pausedPosSec.Load(); pp > 0 && pp <= dur {
		r.SetPositionSeconds(pp)
	}
	r.params.softPaused.Store(false)
	r.params.forceSilent.Store(false)
	r.resetPending.Store(false)
	r.playing.Store(true)
}

// Stop soft-pauses playback: the transport keeps its position, output goes
// silent and the exact position is stored for resume.
func (r *Renderer) Stop() {
	r.params.softPaused.Store(true)
	r.pausedPosSec.Store(r.Position())
	r.resetPending.Store(true)
}

// EnableScratch toggles scratch mode. Stale buffered audio is flushed on
// the next idle block.
func (r *Renderer) EnableScratch(enabled bool) {
	r.params.SetScratchMode(enabled)
	r.resetPending.Store(true)
}

// Close tears the renderer down: playback stops, the stretch engine and the
// track data are released. Each step proceeds even if an earlier one finds
// nothing to release. Render calls after Close emit silence.
func (r *Renderer) Close() error {
	r.playing.Store(false)
	r.params.forceSilent.Store(true)

	if r.stretcher != nil {
		r.stretcher.Reset()
	}

	r.samples = nil
	r.closed.Store(true)
	return nil
}

// Render fills dst, one slice per channel, with the next block of playback
// audio. Every slice must have the same length; that length is the block
// size. Audio thread only.
func (r *Renderer) Render(dst [][]float64) {
	n := blockLen(dst)
	if n == 0 {
		return
	}
	if r.closed.Load() || r.samples == nil || len(dst) != r.channels {
		clearBlock(dst, n)
		return
	}

	// Keylock toggles land here so the stretcher state only ever changes
	// between blocks.
	if pending := r.params.claimKeylockChange(); pending != keylockNoChange {
		r.keylockOn = pending == keylockEnable
		if r.keylockOn {
			r.stretchStarted = true
		}
	}

	if r.seekArmed.CompareAndSwap(true, false) {
		r.pos = r.seekSec.Load() * float64(r.sampleRate)
		r.pos = mathutil.Clamp(r.pos, 0, float64(r.frames))
	}

	if r.params.forceSilent.Load() || r.params.softPaused.Load() {
		clearBlock(dst, n)
		return
	}

	if !r.playing.Load() {
		clearBlock(dst, n)
		if r.resetPending.CompareAndSwap(true, false) {
			r.stretcher.Reset()
		}
		return
	}

	speed := mathutil.Clamp(r.params.Speed(), minSpeedFactor, maxSpeedFactor)
	gain := r.params.Gain()
	rate := float64(r.sampleRate)

	// Loop boundaries are checked every block for sample-accurate wraps.
	if loopStart, loopEnd, enabled := r.params.Loop(); enabled && loopEnd > loopStart {
		posSec := r.pos / rate
		nextSec := posSec + float64(n)/rate

		// The stretcher is bypassed for crossfade blocks; they read at
		// unity so the spliced audio stays phase-coherent.
		ratio := speed
		if r.keylockOn {
			ratio = 1
		}

		switch {
		case posSec < loopEnd && nextSec >= loopEnd:
			r.renderLoopStraddle(dst, n, ratio, gain, posSec, loopStart, loopEnd)
			r.publishPosition()
			return
		case posSec >= loopEnd:
			r.renderLateLoopJump(dst, n, ratio, gain, loopStart)
			r.publishPosition()
			return
		}
	}

	switch {
	case r.stretchStarted && r.stretcher.Ready() && !r.keylockOn:
		r.renderPassThrough(dst, n, speed, gain)
	case r.stretchStarted && r.stretcher.Ready() && math.Abs(speed-1) <= nearUnityDelta:
		// Near unity the pitch error is inaudible; the resampler wins on
		// transparency.
		r.readResampled(dst, n, speed, gain)
	case r.stretchStarted && r.stretcher.Ready():
		r.renderStretched(dst, n, speed, gain)
	default:
		r.readResampled(dst, n, speed, gain)
	}

	r.applyEQ(dst, n)
	r.applySweepFilter(dst, n)
	r.updateLevels(dst, n)
	r.publishPosition()
}

// renderStretched feeds unity-rate audio through the stretcher at
// timeRatio = 1/speed and retrieves exactly one block. Any engine fault
// falls back to plain resampling for this and subsequent blocks.
func (r *Renderer) renderStretched(dst [][]float64, n int, speed, gain float64) {
	r.stretcher.SetTempoRatio(1 / speed)

	feed := r.ensureBlock(&r.feedBuf, n)
	for iter := 0; iter < feedLoopMaxIterations && r.stretcher.Available() < n; iter++ {
		r.readResampled(feed, n, 1, gain)
		if _, err := r.stretcher.Process(sliceBlock(feed, n)); err != nil {
			r.readResampled(dst, n, speed, gain)
			return
		}
	}

	got := r.stretcher.Retrieve(sliceBlock(dst, n))
	if got < n {
		for ch := range dst {
			zero(dst[ch][got:n])
		}
	}
}

// renderPassThrough runs while keylock is off but the stretcher has been
// started before: output comes straight from the resampler while the same
// audio keeps the stretcher primed for an instant re-enable.
func (r *Renderer) renderPassThrough(dst [][]float64, n int, speed, gain float64) {
	r.stretcher.SetTempoRatio(1)
	r.readResampled(dst, n, speed, gain)

	feed := r.ensureBlock(&r.feedBuf, n)
	for ch := range feed {
		copy(feed[ch][:n], dst[ch][:n])
	}
	if _, err := r.stretcher.Process(sliceBlock(feed, n)); err != nil {
		return
	}

	// Discard the stretcher output to keep its queue fresh.
	drain := r.ensureBlock(&r.drainBuf, n)
	for r.stretcher.Retrieve(sliceBlock(drain, n)) > 0 {
	}
}

// applyEQ runs the three tone bands, skipping any band whose gain is
// effectively neutral. Coefficients are recomputed only when a knob moved.
func (r *Renderer) applyEQ(dst [][]float64, n int) {
	low := r.params.LowGain()
	mid := r.params.MidGain()
	high := r.params.HighGain()

	if low != r.lastLow {
		r.eqLow.SetLowShelf(float64(r.sampleRate), lowShelfFreqHz, shelfQ, knobGainLinear(low))
		r.lastLow = low
	}
	if mid != r.lastMid {
		r.eqMid.SetPeak(float64(r.sampleRate), peakFreqHz, peakQ, knobGainLinear(mid))
		r.lastMid = mid
	}
	if high != r.lastHigh {
		r.eqHigh.SetHighShelf(float64(r.sampleRate), highShelfFreqHz, shelfQ, knobGainLinear(high))
		r.lastHigh = high
	}

	for ch := range dst {
		block := dst[ch][:n]
		if math.Abs(low*eqGainRangeDB) > eqSkipGainDB {
			r.eqLow.Process(ch, block)
		}
		if math.Abs(mid*eqGainRangeDB) > eqSkipGainDB {
			r.eqMid.Process(ch, block)
		}
		if math.Abs(high*eqGainRangeDB) > eqSkipGainDB {
			r.eqHigh.Process(ch, block)
		}
	}
}

func knobGainLinear(knob float64) float64 {
	db := mathutil.Clamp(knob*eqGainRangeDB, -eqGainRangeDB, eqGainRangeDB)
	return mathutil.DBToLinear(db)
}

// applySweepFilter maps the bipolar knob onto an exponential cutoff sweep:
// negative pulls a lowpass down from 20 kHz, positive pushes a highpass up
// from 20 Hz. The center zone bypasses entirely.
func (r *Renderer) applySweepFilter(dst [][]float64, n int) {
	knob := r.params.FilterCutoff()
	if math.Abs(knob) <= filterBypassZone {
		return
	}

	norm := (math.Abs(knob) - filterBypassZone) / (1 - filterBypassZone)
	if knob < 0 {
		cutoff := lowpassTopHz * math.Pow(lowpassCurveBase, norm)
		r.sweep.SetMode(filter.SVFLowpass)
		r.sweep.SetCutoff(mathutil.Clamp(cutoff, lowpassFloorHz, lowpassTopHz))
	} else {
		cutoff := highpassFloorHz * math.Pow(highpassCurveBase, norm)
		r.sweep.SetMode(filter.SVFHighpass)
		r.sweep.SetCutoff(mathutil.Clamp(cutoff, highpassFloorHz, highpassTopHz))
	}
	r.sweep.SetResonance(filterResonance)

	for ch := range dst {
		r.sweep.Process(ch, dst[ch][:n])
	}
}

func (r *Renderer) publishPosition() {
	r.posSec.Store(r.pos / float64(r.sampleRate))
}

// ensureBlock returns a per-channel scratch buffer of at least n frames,
// growing the cached one when needed.
func (r *Renderer) ensureBlock(buf *[][]float64, n int) [][]float64 {
	b := *buf
	if len(b) != r.channels || (len(b) > 0 && len(b[0]) < n) {
		b = make([][]float64, r.channels)
		for ch := range b {
			b[ch] = make([]float64, n)
		}
		*buf = b
	}
	return b
}

func blockLen(dst [][]float64) int {
	if len(dst) == 0 {
		return 0
	}
	n := len(dst[0])
	for _, ch := range dst[1:] {
		if len(ch) < n {
			n = len(ch)
		}
	}
	return n
}

func sliceBlock(block [][]float64, n int) [][]float64 {
	out := make([][]float64, len(block))
	for ch := range block {
		out[ch] = block[ch][:n]
	}
	return out
}

func clearBlock(dst [][]float64, n int) {
	for ch := range dst {
		zero(dst[ch][:n])
	}
}

func zero(s []float64) {
	if len(s) == 0 {
		return
	}
	f64.Scale(s, s, 0)
}
