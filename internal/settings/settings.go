// Package settings persists per-deck state between sessions: cue points,
// keylock configuration, quantize mode and the tone defaults.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// NumCueSlots is the number of cue point slots per deck.
const NumCueSlots = 8

// CueUnset marks an empty cue slot.
const CueUnset = -1.0

// Keylock quality names as stored on disk.
const (
	KeylockFast     = "fast"
	KeylockBalanced = "balanced"
	KeylockQuality  = "quality"
)

// ErrInvalidSettings indicates a settings file that parsed but holds
// unusable values.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings is one deck's persisted state.
type Settings struct {
	// CuePoints holds cue positions in seconds, CueUnset for empty slots.
	CuePoints []float64 `toml:"cue_points"`

	KeylockEnabled  bool   `toml:"keylock_enabled"`
	KeylockProfile  string `toml:"keylock_profile"`
	QuantizeEnabled bool   `toml:"quantize_enabled"`

	Gain     float64 `toml:"gain"`
	LowGain  float64 `toml:"low_gain"`
	MidGain  float64 `toml:"mid_gain"`
	HighGain float64 `toml:"high_gain"`
}

// Default returns factory settings: every cue slot empty, balanced keylock
// profile, unity gain, flat EQ.
func Default() Settings {
	cues := make([]float64, NumCueSlots)
	for i := range cues {
		cues[i] = CueUnset
	}
	return Settings{
		CuePoints:      cues,
		KeylockProfile: KeylockBalanced,
		Gain:           1,
	}
}

// normalize pads or trims the cue slots to NumCueSlots and falls back to
// defaults for out-of-range values.
func (s *Settings) normalize() {
	for len(s.CuePoints) < NumCueSlots {
		s.CuePoints = append(s.CuePoints, CueUnset)
	}
	s.CuePoints = s.CuePoints[:NumCueSlots]
	for i, cue := range s.CuePoints {
		if cue < 0 {
			s.CuePoints[i] = CueUnset
		}
	}

	switch s.KeylockProfile {
	case KeylockFast, KeylockBalanced, KeylockQuality:
	default:
		s.KeylockProfile = KeylockBalanced
	}

	if s.Gain < 0 || s.Gain > 1 {
		s.Gain = 1
	}
	s.LowGain = clampKnob(s.LowGain)
	s.MidGain = clampKnob(s.MidGain)
	s.HighGain = clampKnob(s.HighGain)
}

func clampKnob(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

// Load reads settings from a TOML file. A missing file is not an error and
// yields the defaults.
func Load(path string) (Settings, error) {
	s := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return Default(), fmt.Errorf("read settings %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &s); err != nil {
		return Default(), fmt.Errorf("%w: %s: %v", ErrInvalidSettings, path, err)
	}
	s.normalize()
	return s, nil
}

// Save writes settings as TOML, creating parent directories as needed.
func Save(path string, s Settings) error {
	s.normalize()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create settings %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if err := toml.NewEncoder(f).Encode(s); err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return nil
}
