package deck

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsedj/go-dj-deck/internal/settings"
	"github.com/pulsedj/go-dj-deck/internal/testutil"
)

const testRate = 44100

// writeWAV encodes mono float samples as a 16-bit WAV file.
func writeWAV(t *testing.T, dir string, samples []float64) string {
	t.Helper()

	path := filepath.Join(dir, "track.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s * 32000)
	}
	enc := wav.NewEncoder(f, testRate, 16, 1, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: testRate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
	return path
}

// recordingObserver captures deck events for assertions.
type recordingObserver struct {
	mu       sync.Mutex
	progress []float64
	gridBPM  float64
	gridHits int
	done     chan AnalysisResult
	doneErr  error
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{done: make(chan AnalysisResult, 4)}
}

func (r *recordingObserver) BeatGridUpdated(bpm, firstBeatOffset float64, beats []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gridBPM = bpm
	r.gridHits++
}

func (r *recordingObserver) AnalysisProgress(fraction float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, fraction)
}

func (r *recordingObserver) AnalysisDone(result AnalysisResult, err error) {
	r.mu.Lock()
	r.doneErr = err
	r.mu.Unlock()
	r.done <- result
}

func (r *recordingObserver) LevelsChanged(left, right float64) {}

func waitForAnalysis(t *testing.T, obs *recordingObserver) AnalysisResult {
	t.Helper()
	select {
	case res := <-obs.done:
		return res
	case <-time.After(60 * time.Second):
		t.Fatal("analysis never completed")
		return AnalysisResult{}
	}
}

func TestNewValidatesConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AnalysisWorkers = 0
	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.AnalysisMaxSeconds = -1
	_, err = New(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadAndPlayback(t *testing.T) {
	path := writeWAV(t, t.TempDir(), testutil.SineWave(440, 0.8, testRate, testRate))

	d, err := New(DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	require.NoError(t, d.Load(path))

	info, err := d.Info()
	require.NoError(t, err)
	assert.Equal(t, path, info.Path)
	assert.Equal(t, testRate, info.SampleRate)
	assert.Equal(t, 1, info.Channels)
	assert.InDelta(t, 1.0, info.Duration, 1e-6)

	block := [][]float64{make([]float64, 512)}
	d.Render(block)
	assert.Zero(t, block[0][100], "silent before start")

	d.Start()
	require.True(t, d.IsPlaying())
	d.Render(block)
	assert.NotZero(t, block[0][100])
	assert.Greater(t, d.Position(), 0.0)

	d.Stop()
	d.Render(block)
	assert.Zero(t, block[0][100], "soft pause mutes output")
}

func TestLoadFailureKeepsPriorTrack(t *testing.T) {
	dir := t.TempDir()
	good := writeWAV(t, dir, testutil.SineWave(440, 0.8, testRate, testRate/2))
	bad := filepath.Join(dir, "bad.wav")
	require.NoError(t, os.WriteFile(bad, []byte("not audio"), 0o644))

	d, err := New(DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	require.NoError(t, d.Load(good))
	require.Error(t, d.Load(bad))

	info, err := d.Info()
	require.NoError(t, err)
	assert.Equal(t, good, info.Path)

	d.Start()
	block := [][]float64{make([]float64, 256)}
	d.Render(block)
	assert.NotZero(t, block[0][100], "prior track still plays")
}

func TestAnalysisDeliveredToObserver(t *testing.T) {
	// 10 s click track at 128 BPM.
	mono := testutil.ClickTrack(0.46875, 0, testRate, 10*testRate)
	path := writeWAV(t, t.TempDir(), mono)

	d, err := New(DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	obs := newRecordingObserver()
	d.AddObserver(obs)

	require.NoError(t, d.Load(path))
	result := waitForAnalysis(t, obs)

	assert.InDelta(t, 128.0, result.BPM, 1.0)
	assert.NotEmpty(t, result.Beats)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.NoError(t, obs.doneErr)
	assert.Equal(t, 1, obs.gridHits)
	assert.InDelta(t, 128.0, obs.gridBPM, 1.0)
	require.NotEmpty(t, obs.progress)
	assert.Equal(t, 1.0, obs.progress[len(obs.progress)-1])

	assert.InDelta(t, 128.0, d.BPM(), 1.0)
	assert.NotEmpty(t, d.Beats())
}

func TestAnalysisFailureLeavesGridEmpty(t *testing.T) {
	path := writeWAV(t, t.TempDir(), make([]float64, 5*testRate))

	d, err := New(DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	obs := newRecordingObserver()
	d.AddObserver(obs)

	require.NoError(t, d.Load(path))
	result := waitForAnalysis(t, obs)

	assert.Zero(t, result.BPM)
	obs.mu.Lock()
	assert.Error(t, obs.doneErr)
	assert.Zero(t, obs.gridHits)
	obs.mu.Unlock()

	assert.Zero(t, d.BPM())
	assert.Empty(t, d.Beats())
}

func TestCuePoints(t *testing.T) {
	path := writeWAV(t, t.TempDir(), testutil.SineWave(440, 0.5, testRate, testRate))

	d, err := New(DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	assert.ErrorIs(t, d.SetCuePoint(0, 0.5), ErrNoTrack)
	require.NoError(t, d.Load(path))

	assert.ErrorIs(t, d.SetCuePoint(-1, 0.5), ErrInvalidCueIndex)
	assert.ErrorIs(t, d.SetCuePoint(NumCueSlots, 0.5), ErrInvalidCueIndex)
	assert.ErrorIs(t, d.JumpToCue(3), ErrCueUnset)

	// Quantize off: the stored position is the raw request, exactly.
	require.NoError(t, d.SetCuePoint(0, 0.437))
	cue, ok := d.CuePoint(0)
	require.True(t, ok)
	assert.Equal(t, 0.437, cue)

	require.NoError(t, d.JumpToCue(0))
	assert.InDelta(t, 0.437, d.Position(), 1e-9)

	require.NoError(t, d.ClearCuePoint(0))
	_, ok = d.CuePoint(0)
	assert.False(t, ok)
}

func TestQuantizeSnapsStoredPositions(t *testing.T) {
	path := writeWAV(t, t.TempDir(), testutil.SineWave(440, 0.5, testRate, 10*testRate))

	d, err := New(DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	require.NoError(t, d.Load(path))
	d.SetBeatInfo(120, 0, 10)

	d.SetQuantizeEnabled(true)
	require.NoError(t, d.SetCuePoint(0, 1.6))
	cue, _ := d.CuePoint(0)
	assert.InDelta(t, 1.5, cue, 1e-9, "cue snaps to the nearest beat")

	d.SetQuantizeEnabled(false)
	require.NoError(t, d.SetCuePoint(1, 1.6))
	cue, _ = d.CuePoint(1)
	assert.Equal(t, 1.6, cue)
}

func TestSetBeatInfoNotifies(t *testing.T) {
	d, err := New(DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	obs := newRecordingObserver()
	d.AddObserver(obs)

	d.SetBeatInfo(120, 0.25, 10)

	obs.mu.Lock()
	assert.Equal(t, 1, obs.gridHits)
	assert.Equal(t, 120.0, obs.gridBPM)
	obs.mu.Unlock()

	beats := d.Beats()
	require.NotEmpty(t, beats)
	testutil.AssertConstantSpacing(t, beats, 0.5, 1e-9)
	assert.Equal(t, 0.25, d.FirstBeatOffset())
}

func TestLoopCommands(t *testing.T) {
	d, err := New(DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	assert.ErrorIs(t, d.EnableLoop(0, 1), ErrNoTrack)

	path := writeWAV(t, t.TempDir(), testutil.SineWave(440, 0.5, testRate, testRate))
	require.NoError(t, d.Load(path))

	assert.NoError(t, d.EnableLoop(0.2, 0.3))
	assert.NoError(t, d.EnableLoop(0.2, 0))
	d.DisableLoop()
}

func TestOutOfRangeRequestsIgnored(t *testing.T) {
	path := writeWAV(t, t.TempDir(), testutil.SineWave(440, 0.5, testRate, testRate))

	d, err := New(DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = d.Close() }()
	require.NoError(t, d.Load(path))

	d.SetSpeed(-1)
	d.SetSpeed(200)
	d.SetGain(2)
	d.SetGain(-0.5)

	assert.ErrorIs(t, d.SetKeylockQuality(KeylockQuality(99)), ErrInvalidConfig)
	assert.NoError(t, d.SetKeylockQuality(KeylockHighQuality))
}

func TestSettingsPersistAcrossSessions(t *testing.T) {
	dir := t.TempDir()
	path := writeWAV(t, dir, testutil.SineWave(440, 0.5, testRate, testRate))
	settingsPath := filepath.Join(dir, "deck.toml")

	cfg := DefaultConfig()
	cfg.SettingsPath = settingsPath

	d, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, d.Load(path))

	require.NoError(t, d.SetCuePoint(2, 0.75))
	d.SetQuantizeEnabled(true)
	require.NoError(t, d.SetKeylockQuality(KeylockHighQuality))
	require.NoError(t, d.Close())

	saved, err := settings.Load(settingsPath)
	require.NoError(t, err)
	assert.Equal(t, 0.75, saved.CuePoints[2])
	assert.True(t, saved.QuantizeEnabled)
	assert.Equal(t, settings.KeylockQuality, saved.KeylockProfile)

	d2, err := New(cfg)
	require.NoError(t, err)
	defer func() { _ = d2.Close() }()

	cue, ok := d2.CuePoint(2)
	require.True(t, ok)
	assert.Equal(t, 0.75, cue)
}

func TestRenderWithoutTrackIsSilent(t *testing.T) {
	d, err := New(DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	block := [][]float64{make([]float64, 64)}
	block[0][10] = 0.5
	d.Render(block)
	assert.Zero(t, block[0][10])

	left, right := d.Levels()
	assert.Zero(t, left)
	assert.Zero(t, right)
	assert.Zero(t, d.PipelineLatency())
}

func TestCloseIsIdempotent(t *testing.T) {
	d, err := New(DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	assert.ErrorIs(t, d.Load("whatever.wav"), ErrClosed)
}
