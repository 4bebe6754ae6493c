package deck

import (
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pulsedj/go-dj-deck/internal/analysis"
	"github.com/pulsedj/go-dj-deck/internal/beatgrid"
	"github.com/pulsedj/go-dj-deck/internal/decode"
	"github.com/pulsedj/go-dj-deck/internal/mathutil"
	"github.com/pulsedj/go-dj-deck/internal/render"
	"github.com/pulsedj/go-dj-deck/internal/settings"
	"github.com/pulsedj/go-dj-deck/internal/worker"
)

// AnalysisResult is the outcome of one background BPM analysis.
type AnalysisResult struct {
	BPM             float64
	FirstBeatOffset float64
	Beats           []float64
	Algorithm       string
}

// TrackInfo describes the loaded track.
type TrackInfo struct {
	Path       string
	SampleRate int
	Channels   int
	Duration   float64
	Meta       decode.Metadata
}

// Observer receives deck events. Methods may be invoked from background
// goroutines; implementations must tolerate that.
type Observer interface {
	// BeatGridUpdated fires when the beat grid changes, from analysis or
	// SetBeatInfo.
	BeatGridUpdated(bpm, firstBeatOffset float64, beats []float64)

	// AnalysisProgress reports background analysis progress in [0, 1].
	AnalysisProgress(fraction float64)

	// AnalysisDone fires when analysis for the current track finishes.
	// Results for a track that was replaced mid-analysis are discarded and
	// never delivered.
	AnalysisDone(result AnalysisResult, err error)

	// LevelsChanged reports smoothed output levels in percent, fired on
	// each Levels poll.
	LevelsChanged(left, right float64)
}

// Deck is one playback deck: a loaded track, its beat grid, the real-time
// renderer and the background analysis machinery. All methods except Render
// are safe for concurrent use.
type Deck struct {
	cfg    Config
	logger *log.Logger
	pool   *worker.Pool

	// current is the renderer the audio thread reads, swapped on load.
	current atomic.Pointer[render.Renderer]

	mu             sync.RWMutex
	closed         bool
	track          *decode.Track
	renderer       *render.Renderer
	grid           *beatgrid.Grid
	prefs          settings.Settings
	quantizeOn     bool
	keylockOn      bool
	keylockQuality KeylockQuality
	generation     uint64
	observers      []Observer
}

// New constructs a deck from the configuration. Persisted settings, when
// configured, are loaded immediately.
func New(cfg Config) (*Deck, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	d := &Deck{
		cfg:            cfg,
		logger:         logger,
		grid:           beatgrid.New(),
		prefs:          settings.Default(),
		keylockQuality: cfg.KeylockQuality,
	}

	if cfg.SettingsPath != "" {
		s, err := settings.Load(cfg.SettingsPath)
		if err != nil {
			logger.Printf("settings load failed, using defaults: %v", err)
		}
		d.prefs = s
		d.quantizeOn = s.QuantizeEnabled
		d.keylockOn = s.KeylockEnabled
		d.keylockQuality = keylockQualityFromName(s.KeylockProfile)
	}

	d.pool = worker.NewPool(cfg.AnalysisWorkers, logger)
	return d, nil
}

// AddObserver registers an event observer.
func (d *Deck) AddObserver(o Observer) {
	if o == nil {
		return
	}
	d.mu.Lock()
	d.observers = append(d.observers, o)
	d.mu.Unlock()
}

func (d *Deck) notify(fn func(Observer)) {
	d.mu.RLock()
	obs := make([]Observer, len(d.observers))
	copy(obs, d.observers)
	d.mu.RUnlock()
	for _, o := range obs {
		fn(o)
	}
}

// Load decodes a file and makes it the deck's track. On failure the prior
// track stays loaded and playable. A successful load clears the beat grid
// and schedules BPM analysis and tag extraction in the background.
func (d *Deck) Load(path string) error {
	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	track, err := decode.LoadWAV(path)
	if err != nil {
		d.logger.Printf("load failed %s: %v", path, err)
		return err
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	r, err := render.NewRenderer(track.Samples, track.SampleRate, d.keylockQuality.profile())
	if err != nil {
		d.mu.Unlock()
		return fmt.Errorf("load %s: %w", path, err)
	}

	old := d.renderer
	d.renderer = r
	d.track = track
	d.generation++
	gen := d.generation
	d.grid.SetParams(0, 0, 0)

	p := r.Params()
	p.SetGain(d.prefs.Gain)
	p.SetLowGain(d.prefs.LowGain)
	p.SetMidGain(d.prefs.MidGain)
	p.SetHighGain(d.prefs.HighGain)
	if d.keylockOn {
		p.RequestKeylock(true)
	}

	mono := track.Mono()
	rate := track.SampleRate
	d.mu.Unlock()

	d.current.Store(r)
	if old != nil {
		_ = old.Close()
	}

	d.submitAnalysis(gen, mono, rate)
	d.submitMetadata(gen, path)
	return nil
}

func (d *Deck) submitAnalysis(gen uint64, mono []float64, sampleRate int) {
	est := &analysis.Estimator{
		Logger: d.logger,
		Progress: func(fraction float64) {
			if d.currentGeneration() != gen {
				return
			}
			d.notify(func(o Observer) { o.AnalysisProgress(fraction) })
		},
	}

	var result analysis.Result
	_, err := d.pool.Submit("bpm-analysis", func() error {
		r, err := est.Estimate(mono, sampleRate, d.cfg.AnalysisMaxSeconds)
		result = r
		return err
	}, func(err error) {
		d.deliverAnalysis(gen, result, err)
	})
	if err != nil {
		d.logger.Printf("analysis not queued: %v", err)
	}
}

// deliverAnalysis applies an analysis result if the track that produced it
// is still loaded; stale results are dropped.
func (d *Deck) deliverAnalysis(gen uint64, res analysis.Result, err error) {
	d.mu.Lock()
	if d.closed || gen != d.generation {
		d.mu.Unlock()
		return
	}

	gridUpdated := false
	if err == nil && res.BPM > 0 && d.track != nil {
		d.grid.SetParams(res.BPM, res.FirstBeatOffset, d.track.Duration())
		gridUpdated = true
	}
	bpm := d.grid.BPM()
	offset := d.grid.FirstBeatOffset()
	beats := copyBeats(d.grid.Beats())
	d.mu.Unlock()

	if err != nil {
		d.logger.Printf("analysis failed: %v", err)
	}

	out := AnalysisResult{
		BPM:             res.BPM,
		FirstBeatOffset: res.FirstBeatOffset,
		Beats:           res.Beats,
		Algorithm:       res.Algorithm,
	}
	d.notify(func(o Observer) {
		if gridUpdated {
			o.BeatGridUpdated(bpm, offset, beats)
		}
		o.AnalysisDone(out, err)
	})
}

func (d *Deck) submitMetadata(gen uint64, path string) {
	var meta decode.Metadata
	_, err := d.pool.Submit("tag-metadata", func() error {
		m, err := decode.ReadMetadata(path)
		meta = m
		return err
	}, func(err error) {
		if err != nil {
			d.logger.Printf("no tags for %s: %v", path, err)
			return
		}
		d.mu.Lock()
		if !d.closed && gen == d.generation && d.track != nil {
			d.track.Meta = meta
		}
		d.mu.Unlock()
	})
	if err != nil {
		d.logger.Printf("metadata not queued: %v", err)
	}
}

func (d *Deck) currentGeneration() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.generation
}

// Info returns the loaded track's description.
func (d *Deck) Info() (TrackInfo, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.track == nil {
		return TrackInfo{}, ErrNoTrack
	}
	return TrackInfo{
		Path:       d.track.Path,
		SampleRate: d.track.SampleRate,
		Channels:   d.track.Channels(),
		Duration:   d.track.Duration(),
		Meta:       d.track.Meta,
	}, nil
}

// Render fills one audio block. Audio thread only; with no track loaded it
// emits silence.
func (d *Deck) Render(dst [][]float64) {
	r := d.current.Load()
	if r == nil {
		for ch := range dst {
			for i := range dst[ch] {
				dst[ch][i] = 0
			}
		}
		return
	}
	r.Render(dst)
}

// Start begins or resumes playback.
func (d *Deck) Start() {
	if r := d.liveRenderer(); r != nil {
		r.Start()
	}
}

// Stop soft-pauses playback, keeping the exact position for resume.
func (d *Deck) Stop() {
	if r := d.liveRenderer(); r != nil {
		r.Stop()
	}
}

// IsPlaying reports whether the transport is running.
func (d *Deck) IsPlaying() bool {
	r := d.liveRenderer()
	return r != nil && r.IsPlaying()
}

// Position returns the playhead in seconds.
func (d *Deck) Position() float64 {
	if r := d.liveRenderer(); r != nil {
		return r.Position()
	}
	return 0
}

// Duration returns the track length in seconds.
func (d *Deck) Duration() float64 {
	if r := d.liveRenderer(); r != nil {
		return r.Duration()
	}
	return 0
}

func (d *Deck) liveRenderer() *render.Renderer {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.renderer
}

// SetSpeed sets the playback rate multiplier. Out-of-range requests are
// rejected with a logged warning.
func (d *Deck) SetSpeed(ratio float64) {
	if ratio < 0 || ratio > 100 {
		d.logger.Printf("speed %v out of range, ignored", ratio)
		return
	}
	if r := d.liveRenderer(); r != nil {
		r.Params().SetSpeed(ratio)
	}
}

// SetGain sets the output gain. Values outside [0, 1] are rejected with a
// logged warning.
func (d *Deck) SetGain(gain float64) {
	if gain < 0 || gain > 1 {
		d.logger.Printf("gain %v out of range, ignored", gain)
		return
	}
	d.mu.Lock()
	d.prefs.Gain = gain
	r := d.renderer
	d.mu.Unlock()
	if r != nil {
		r.Params().SetGain(gain)
	}
}

// SetLowGain sets the low-shelf knob in [-1, 1].
func (d *Deck) SetLowGain(v float64) {
	v = mathutil.Clamp(v, -1, 1)
	d.mu.Lock()
	d.prefs.LowGain = v
	r := d.renderer
	d.mu.Unlock()
	if r != nil {
		r.Params().SetLowGain(v)
	}
}

// SetMidGain sets the mid-peak knob in [-1, 1].
func (d *Deck) SetMidGain(v float64) {
	v = mathutil.Clamp(v, -1, 1)
	d.mu.Lock()
	d.prefs.MidGain = v
	r := d.renderer
	d.mu.Unlock()
	if r != nil {
		r.Params().SetMidGain(v)
	}
}

// SetHighGain sets the high-shelf knob in [-1, 1].
func (d *Deck) SetHighGain(v float64) {
	v = mathutil.Clamp(v, -1, 1)
	d.mu.Lock()
	d.prefs.HighGain = v
	r := d.renderer
	d.mu.Unlock()
	if r != nil {
		r.Params().SetHighGain(v)
	}
}

// SetFilterCutoff sets the sweep filter knob in [-1, 1].
func (d *Deck) SetFilterCutoff(v float64) {
	if r := d.liveRenderer(); r != nil {
		r.Params().SetFilterCutoff(v)
	}
}

// EnableLoop arms a loop of lengthSec starting at startSec. The start
// position honors the quantize setting; a non-positive length disables the
// loop.
func (d *Deck) EnableLoop(startSec, lengthSec float64) error {
	r := d.liveRenderer()
	if r == nil {
		return ErrNoTrack
	}
	if lengthSec <= 0 {
		d.DisableLoop()
		return nil
	}

	dur := r.Duration()
	start := mathutil.Clamp(d.quantizePosition(startSec), 0, dur)
	end := mathutil.Clamp(start+lengthSec, start, dur)
	if end <= start {
		d.DisableLoop()
		return nil
	}
	r.Params().SetLoop(start, end)
	return nil
}

// DisableLoop disarms the loop.
func (d *Deck) DisableLoop() {
	if r := d.liveRenderer(); r != nil {
		r.Params().ClearLoop()
	}
}

// SetKeylockEnabled toggles pitch-preserving playback. The change is
// applied by the audio thread at the next block boundary.
func (d *Deck) SetKeylockEnabled(enabled bool) {
	d.mu.Lock()
	d.keylockOn = enabled
	d.prefs.KeylockEnabled = enabled
	r := d.renderer
	d.mu.Unlock()
	if r != nil {
		r.Params().RequestKeylock(enabled)
	}
}

// SetKeylockQuality switches the time-stretch profile.
func (d *Deck) SetKeylockQuality(q KeylockQuality) error {
	if q < KeylockFast || q > KeylockHighQuality {
		return fmt.Errorf("%w: keylock quality %d", ErrInvalidConfig, q)
	}
	d.mu.Lock()
	d.keylockQuality = q
	d.prefs.KeylockProfile = q.String()
	r := d.renderer
	d.mu.Unlock()
	if r == nil {
		return nil
	}
	return r.SetKeylockQuality(q.profile())
}

// SetQuantizeEnabled toggles beat snapping for cue, loop and seek requests.
func (d *Deck) SetQuantizeEnabled(enabled bool) {
	d.mu.Lock()
	d.quantizeOn = enabled
	d.prefs.QuantizeEnabled = enabled
	d.mu.Unlock()
}

// SetBeatInfo overrides the beat grid, for externally supplied tempo data.
func (d *Deck) SetBeatInfo(bpm, firstBeatOffset, trackLength float64) {
	d.mu.Lock()
	d.grid.SetParams(bpm, firstBeatOffset, trackLength)
	gridBPM := d.grid.BPM()
	offset := d.grid.FirstBeatOffset()
	beats := copyBeats(d.grid.Beats())
	d.mu.Unlock()

	d.notify(func(o Observer) { o.BeatGridUpdated(gridBPM, offset, beats) })
}

// BPM returns the beat grid tempo, 0 when unknown.
func (d *Deck) BPM() float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.grid.BPM()
}

// Beats returns a copy of the beat grid timestamps.
func (d *Deck) Beats() []float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return copyBeats(d.grid.Beats())
}

// FirstBeatOffset returns the beat grid anchor in seconds.
func (d *Deck) FirstBeatOffset() float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.grid.FirstBeatOffset()
}

// quantizePosition snaps a position to the beat grid when quantize is on.
func (d *Deck) quantizePosition(sec float64) float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.quantizeOn {
		return sec
	}
	return d.grid.Quantize(sec)
}

// SetPositionSeconds seeks, honoring the quantize setting.
func (d *Deck) SetPositionSeconds(sec float64) {
	if r := d.liveRenderer(); r != nil {
		r.SetPositionSeconds(d.quantizePosition(sec))
	}
}

// SetPositionRelative seeks to a fraction [0, 1] of the track.
func (d *Deck) SetPositionRelative(fraction float64) {
	if r := d.liveRenderer(); r != nil {
		sec := mathutil.Clamp(fraction, 0, 1) * r.Duration()
		r.SetPositionSeconds(d.quantizePosition(sec))
	}
}

// EnableScratch toggles scratch mode; while active the controller drives
// the position through SetPositionRelative.
func (d *Deck) EnableScratch(enabled bool) {
	if r := d.liveRenderer(); r != nil {
		r.EnableScratch(enabled)
	}
}

// SetScratchVelocity records the scratch surface velocity.
func (d *Deck) SetScratchVelocity(v float64) {
	if r := d.liveRenderer(); r != nil {
		r.Params().SetScratchVelocity(v)
	}
}

// SetCuePoint stores a cue at the given position, honoring the quantize
// setting at store time.
func (d *Deck) SetCuePoint(slot int, sec float64) error {
	if slot < 0 || slot >= NumCueSlots {
		return fmt.Errorf("%w: %d", ErrInvalidCueIndex, slot)
	}
	r := d.liveRenderer()
	if r == nil {
		return ErrNoTrack
	}
	pos := mathutil.Clamp(d.quantizePosition(sec), 0, r.Duration())

	d.mu.Lock()
	d.prefs.CuePoints[slot] = pos
	d.mu.Unlock()
	return nil
}

// ClearCuePoint empties a cue slot.
func (d *Deck) ClearCuePoint(slot int) error {
	if slot < 0 || slot >= NumCueSlots {
		return fmt.Errorf("%w: %d", ErrInvalidCueIndex, slot)
	}
	d.mu.Lock()
	d.prefs.CuePoints[slot] = settings.CueUnset
	d.mu.Unlock()
	return nil
}

// CuePoint returns a stored cue position and whether the slot is set.
func (d *Deck) CuePoint(slot int) (float64, bool) {
	if slot < 0 || slot >= NumCueSlots {
		return 0, false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	cue := d.prefs.CuePoints[slot]
	return cue, cue >= 0
}

// JumpToCue seeks to a stored cue point.
func (d *Deck) JumpToCue(slot int) error {
	cue, ok := d.CuePoint(slot)
	if !ok {
		if slot < 0 || slot >= NumCueSlots {
			return fmt.Errorf("%w: %d", ErrInvalidCueIndex, slot)
		}
		return fmt.Errorf("%w: slot %d", ErrCueUnset, slot)
	}
	r := d.liveRenderer()
	if r == nil {
		return ErrNoTrack
	}
	r.SetPositionSeconds(cue)
	return nil
}

// Levels returns the smoothed output levels in percent and fans them out to
// observers; UI code polls this at its repaint rate.
func (d *Deck) Levels() (left, right float64) {
	if r := d.liveRenderer(); r != nil {
		left, right = r.Params().Levels()
	}
	d.notify(func(o Observer) { o.LevelsChanged(left, right) })
	return left, right
}

// PipelineLatency returns the stretch engine latency, non-zero only while
// keylock is active.
func (d *Deck) PipelineLatency() time.Duration {
	if r := d.liveRenderer(); r != nil {
		return r.PipelineLatency()
	}
	return 0
}

// SaveSettings persists cue points and playback preferences when a settings
// path is configured.
func (d *Deck) SaveSettings() error {
	if d.cfg.SettingsPath == "" {
		return nil
	}
	d.mu.RLock()
	prefs := d.prefs
	prefs.CuePoints = copyBeats(d.prefs.CuePoints)
	d.mu.RUnlock()
	return settings.Save(d.cfg.SettingsPath, prefs)
}

// Close shuts the deck down: background jobs drain, the renderer releases
// its resources and settings are persisted. The deck is unusable afterwards.
func (d *Deck) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	r := d.renderer
	d.renderer = nil
	d.track = nil
	d.observers = nil
	prefs := d.prefs
	prefs.CuePoints = copyBeats(d.prefs.CuePoints)
	d.mu.Unlock()

	d.current.Store(nil)
	d.pool.Close()

	var firstErr error
	if r != nil {
		if err := r.Close(); err != nil {
			firstErr = err
		}
	}
	if d.cfg.SettingsPath != "" {
		if err := settings.Save(d.cfg.SettingsPath, prefs); err != nil {
			d.logger.Printf("settings save failed: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func copyBeats(beats []float64) []float64 {
	out := make([]float64, len(beats))
	copy(out, beats)
	return out
}
