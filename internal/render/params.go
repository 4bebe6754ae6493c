package render

import (
	"math"
	"sync/atomic"

	"github.com/pulsedj/go-dj-deck/internal/mathutil"
)

// atomicFloat64 is a float64 published through a Uint64 bit cast.
type atomicFloat64 struct {
	bits atomic.Uint64
}

func (f *atomicFloat64) Store(v float64) { f.bits.Store(math.Float64bits(v)) }
func (f *atomicFloat64) Load() float64   { return math.Float64frombits(f.bits.Load()) }

// Params is the lock-free control surface shared between the control thread
// and the audio callback. Setters may be called from any goroutine; the
// renderer reads every value at most once per block.
type Params struct {
	speed      atomicFloat64
	gain       atomicFloat64
	lowGain    atomicFloat64
	midGain    atomicFloat64
	highGain   atomicFloat64
	filterKnob atomicFloat64

	// Keylock toggles are deferred to the audio thread through a tri-state
	// mailbox: -1 none, 0 disable, 1 enable. The renderer claims the value
	// once per block.
	keylockMailbox atomic.Int32

	forceSilent atomic.Bool
	softPaused  atomic.Bool

	loopEnabled atomic.Bool
	loopStart   atomicFloat64
	loopEnd     atomicFloat64

	scratchMode     atomic.Bool
	scratchVelocity atomicFloat64

	levelLeft  atomicFloat64
	levelRight atomicFloat64
}

// NewParams returns a parameter block at unity speed and gain with every
// band neutral and the keylock mailbox empty.
func NewParams() *Params {
	p := &Params{}
	p.speed.Store(1)
	p.gain.Store(1)
	p.keylockMailbox.Store(keylockNoChange)
	return p
}

const (
	keylockNoChange int32 = -1
	keylockDisable  int32 = 0
	keylockEnable   int32 = 1
)

// SetSpeed sets the playback rate multiplier. Values are clamped to the
// range the engine can track.
func (p *Params) SetSpeed(ratio float64) {
	p.speed.Store(mathutil.Clamp(ratio, minSpeedFactor, maxSpeedFactor))
}

// Speed returns the current playback rate multiplier.
func (p *Params) Speed() float64 { return p.speed.Load() }

// SetGain sets the output gain in [0, 1].
func (p *Params) SetGain(gain float64) {
	p.gain.Store(mathutil.Clamp(gain, 0, 1))
}

// Gain returns the current output gain.
func (p *Params) Gain() float64 { return p.gain.Load() }

// SetLowGain sets the low-shelf knob in [-1, 1].
func (p *Params) SetLowGain(v float64) { p.lowGain.Store(mathutil.Clamp(v, -1, 1)) }

// SetMidGain sets the mid-peak knob in [-1, 1].
func (p *Params) SetMidGain(v float64) { p.midGain.Store(mathutil.Clamp(v, -1, 1)) }

// SetHighGain sets the high-shelf knob in [-1, 1].
func (p *Params) SetHighGain(v float64) { p.highGain.Store(mathutil.Clamp(v, -1, 1)) }

// LowGain returns the low-shelf knob.
func (p *Params) LowGain() float64 { return p.lowGain.Load() }

// MidGain returns the mid-peak knob.
func (p *Params) MidGain() float64 { return p.midGain.Load() }

// HighGain returns the high-shelf knob.
func (p *Params) HighGain() float64 { return p.highGain.Load() }

// SetFilterCutoff sets the sweep filter knob in [-1, 1]; negative values
// sweep a lowpass, positive a highpass, the center zone bypasses.
func (p *Params) SetFilterCutoff(v float64) { p.filterKnob.Store(mathutil.Clamp(v, -1, 1)) }

// FilterCutoff returns the sweep filter knob.
func (p *Params) FilterCutoff() float64 { return p.filterKnob.Load() }

// RequestKeylock asks the audio thread to toggle pitch-preserving playback
// at the next block boundary.
func (p *Params) RequestKeylock(enabled bool) {
	if enabled {
		p.keylockMailbox.Store(keylockEnable)
	} else {
		p.keylockMailbox.Store(keylockDisable)
	}
}

// claimKeylockChange empties the mailbox, returning keylockNoChange when no
// toggle is pending. Audio thread only.
func (p *Params) claimKeylockChange() int32 {
	return p.keylockMailbox.Swap(keylockNoChange)
}

// SetLoop arms a loop over [startSec, endSec). The window must already be
// validated and clamped by the caller.
func (p *Params) SetLoop(startSec, endSec float64) {
	p.loopStart.Store(startSec)
	p.loopEnd.Store(endSec)
	p.loopEnabled.Store(endSec > startSec)
}

// ClearLoop disables looping.
func (p *Params) ClearLoop() {
	p.loopEnabled.Store(false)
	p.loopStart.Store(0)
	p.loopEnd.Store(0)
}

// Loop returns the loop window and whether it is armed.
func (p *Params) Loop() (startSec, endSec float64, enabled bool) {
	return p.loopStart.Load(), p.loopEnd.Load(), p.loopEnabled.Load()
}

// SetScratchMode toggles scratch mode. While scratching the UI drives the
// position directly and playback keeps flowing.
func (p *Params) SetScratchMode(enabled bool) { p.scratchMode.Store(enabled) }

// ScratchMode reports whether scratch mode is active.
func (p *Params) ScratchMode() bool { return p.scratchMode.Load() }

// SetScratchVelocity records the scratch surface velocity for inertia
// modelling. It does not drive the transport.
func (p *Params) SetScratchVelocity(v float64) { p.scratchVelocity.Store(v) }

// ScratchVelocity returns the last recorded scratch velocity.
func (p *Params) ScratchVelocity() float64 { return p.scratchVelocity.Load() }

// Levels returns the smoothed per-channel output levels in percent [0, 100].
func (p *Params) Levels() (left, right float64) {
	return p.levelLeft.Load(), p.levelRight.Load()
}
