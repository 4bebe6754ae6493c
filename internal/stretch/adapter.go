package stretch

import (
	"errors"
	"fmt"
	"time"
)

// ErrEngineFault reports a failure inside the stretch engine. The adapter
// marks itself not-ready; the renderer falls back to plain resampling.
var ErrEngineFault = errors.New("stretch engine fault")

// Adapter wraps the vocoder with the deck's lifecycle semantics: it primes
// the engine with a silence pad, discards the engine's inherent start delay
// exactly once per (re)initialization, and degrades to not-ready on any
// internal fault instead of propagating a crash into the audio callback.
type Adapter struct {
	voc        *Vocoder
	sampleRate int
	channels   int
	profile    Profile

	ready      bool
	startDelay int
	startPad   int
	discard    int
}

// NewAdapter returns an unconfigured adapter. Call Reconfigure before use.
func NewAdapter() *Adapter {
	return &Adapter{}
}

// Reconfigure rebuilds the stretch engine for a new sample rate, channel
// count or quality profile. Safe to call whenever a newly loaded track
// differs from the previous one. The engine is primed immediately.
func (a *Adapter) Reconfigure(sampleRate, channels int, profile Profile) error {
	if sampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive, got %d", ErrEngineFault, sampleRate)
	}

	voc, err := NewVocoder(channels, profile)
	if err != nil {
		a.ready = false
		return err
	}

	a.voc = voc
	a.sampleRate = sampleRate
	a.channels = channels
	a.profile = profile
	a.startDelay = voc.FFTSize()
	a.startPad = voc.FFTSize() / 2

	a.prime()
	a.ready = true
	return nil
}

// prime feeds the preferred start pad as silence and arms the start-delay
// discard counter.
func (a *Adapter) prime() {
	a.voc.PushSilence(a.startPad)
	a.discard = a.startDelay
}

// Profile returns the active quality profile.
func (a *Adapter) Profile() Profile { return a.profile }

// Ready reports whether the engine is usable. False after a fault or
// before the first Reconfigure.
func (a *Adapter) Ready() bool { return a.ready && a.voc != nil }

// SetTempoRatio forwards the tempo ratio. Pitch stays at 1.0 always; that
// is what keylock means.
func (a *Adapter) SetTempoRatio(ratio float64) {
	if a.voc != nil {
		a.voc.SetTempoRatio(ratio)
	}
}

// StartDelay returns the engine's inherent start latency in samples.
func (a *Adapter) StartDelay() int { return a.startDelay }

// PreferredStartPad returns the silence pad length fed before real audio.
func (a *Adapter) PreferredStartPad() int { return a.startPad }

// Latency returns the start delay as a duration at the configured rate.
func (a *Adapter) Latency() time.Duration {
	if a.sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(a.startDelay) / float64(a.sampleRate) * float64(time.Second))
}

// Process feeds one input block and returns the number of output samples
// available per channel after discarding any remaining start delay.
// A fault inside the engine returns ErrEngineFault and marks the adapter
// not-ready; the caller renders silence for this block and falls back to
// resampling on subsequent blocks.
func (a *Adapter) Process(block [][]float64) (available int, err error) {
	if !a.Ready() {
		return 0, fmt.Errorf("%w: adapter not ready", ErrEngineFault)
	}

	defer func() {
		if r := recover(); r != nil {
			a.ready = false
			available = 0
			err = fmt.Errorf("%w: %v", ErrEngineFault, r)
		}
	}()

	if err := a.voc.Push(block); err != nil {
		a.ready = false
		return 0, fmt.Errorf("%w: %v", ErrEngineFault, err)
	}

	if a.discard > 0 {
		a.discard -= a.voc.Discard(a.discard)
	}
	if a.discard > 0 {
		return 0, nil
	}
	return a.voc.Available(), nil
}

// Available returns the number of output samples ready per channel.
func (a *Adapter) Available() int {
	if !a.Ready() || a.discard > 0 {
		return 0
	}
	return a.voc.Available()
}

// Retrieve fills dst with ready output samples, returning the count per
// channel.
func (a *Adapter) Retrieve(dst [][]float64) int {
	if !a.Ready() || a.discard > 0 {
		return 0
	}
	return a.voc.Retrieve(dst)
}

// Reset clears buffered audio and re-primes the engine. Used on seeks so
// stale audio from the previous position is not flushed into the new one.
func (a *Adapter) Reset() {
	if a.voc == nil {
		return
	}
	a.voc.Reset()
	a.prime()
}
