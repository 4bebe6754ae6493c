package deck

import (
	"errors"
	"fmt"
	"log"

	"github.com/pulsedj/go-dj-deck/internal/settings"
	"github.com/pulsedj/go-dj-deck/internal/stretch"
)

// Deck errors.
var (
	// ErrInvalidConfig indicates an unusable Config.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrNoTrack indicates an operation that needs a loaded track.
	ErrNoTrack = errors.New("no track loaded")

	// ErrInvalidCueIndex indicates a cue slot outside [0, NumCueSlots).
	ErrInvalidCueIndex = errors.New("invalid cue index")

	// ErrCueUnset indicates a jump to an empty cue slot.
	ErrCueUnset = errors.New("cue point not set")

	// ErrClosed indicates use of a closed deck.
	ErrClosed = errors.New("deck closed")
)

// NumCueSlots is the number of cue point slots per deck.
const NumCueSlots = settings.NumCueSlots

// KeylockQuality selects the time-stretch quality profile.
type KeylockQuality int

const (
	// KeylockFast favors low latency and crisp transients.
	KeylockFast KeylockQuality = iota

	// KeylockBalanced is the default trade-off.
	KeylockBalanced

	// KeylockHighQuality favors pitch fidelity over latency.
	KeylockHighQuality
)

// String returns the profile name.
func (q KeylockQuality) String() string {
	switch q {
	case KeylockFast:
		return settings.KeylockFast
	case KeylockHighQuality:
		return settings.KeylockQuality
	default:
		return settings.KeylockBalanced
	}
}

func (q KeylockQuality) profile() stretch.Profile {
	switch q {
	case KeylockFast:
		return stretch.ProfileFast
	case KeylockHighQuality:
		return stretch.ProfileQuality
	default:
		return stretch.ProfileBalanced
	}
}

func keylockQualityFromName(name string) KeylockQuality {
	switch name {
	case settings.KeylockFast:
		return KeylockFast
	case settings.KeylockQuality:
		return KeylockHighQuality
	default:
		return KeylockBalanced
	}
}

// Config configures a Deck.
type Config struct {
	// KeylockQuality is the initial time-stretch profile.
	KeylockQuality KeylockQuality

	// AnalysisMaxSeconds caps how much audio the BPM estimator scans.
	// Zero analyzes the whole track.
	AnalysisMaxSeconds float64

	// AnalysisWorkers bounds the background job pool.
	AnalysisWorkers int

	// SettingsPath, when set, persists cue points and playback preferences
	// as TOML at that path. Empty disables persistence.
	SettingsPath string

	// Logger receives control-path diagnostics. Nil is silent. The render
	// path never logs.
	Logger *log.Logger
}

// DefaultConfig returns a balanced single-worker configuration without
// persistence.
func DefaultConfig() Config {
	return Config{
		KeylockQuality:  KeylockBalanced,
		AnalysisWorkers: 1,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.KeylockQuality < KeylockFast || c.KeylockQuality > KeylockHighQuality {
		return fmt.Errorf("%w: unknown keylock quality %d", ErrInvalidConfig, c.KeylockQuality)
	}
	if c.AnalysisMaxSeconds < 0 {
		return fmt.Errorf("%w: negative analysis limit %v", ErrInvalidConfig, c.AnalysisMaxSeconds)
	}
	if c.AnalysisWorkers < 1 {
		return fmt.Errorf("%w: analysis workers %d", ErrInvalidConfig, c.AnalysisWorkers)
	}
	return nil
}
