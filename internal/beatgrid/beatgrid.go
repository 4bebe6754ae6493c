// Package beatgrid derives beat timestamp sequences from a tempo estimate
// and snaps positions onto them.
package beatgrid

import (
	"math"

	"github.com/pulsedj/go-dj-deck/internal/mathutil"
)

// secondsPerMinute converts BPM to a beat period in seconds.
const secondsPerMinute = 60.0

// Grid holds the beat grid for one track: tempo, phase anchor and the
// eagerly generated beat timestamps.
type Grid struct {
	bpm         float64
	firstBeat   float64
	trackLength float64
	beats       []float64
}

// New returns an empty grid. Call SetParams to populate it.
func New() *Grid {
	return &Grid{}
}

// SetParams replaces the grid parameters and regenerates the beat sequence.
// The sequence is empty when bpm <= 0 or trackLength <= 0.
func (g *Grid) SetParams(bpm, firstBeatOffset, trackLength float64) {
	g.bpm = bpm
	g.firstBeat = firstBeatOffset
	g.trackLength = trackLength
	g.regenerate()
}

func (g *Grid) regenerate() {
	g.beats = g.beats[:0]

	if g.bpm <= 0 || g.trackLength <= 0 {
		return
	}

	period := secondsPerMinute / g.bpm

	// Leading partial-bar beats between track start and the anchor.
	for t := g.firstBeat - period; t >= 0; t -= period {
		g.beats = append(g.beats, t)
	}
	reverse(g.beats)

	for t := g.firstBeat; t <= g.trackLength; t += period {
		if t >= 0 {
			g.beats = append(g.beats, t)
		}
	}
}

func reverse(s []float64) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// BPM returns the grid tempo, 0 when unset.
func (g *Grid) BPM() float64 { return g.bpm }

// FirstBeatOffset returns the phase anchor in seconds.
func (g *Grid) FirstBeatOffset() float64 { return g.firstBeat }

// TrackLength returns the track length in seconds.
func (g *Grid) TrackLength() float64 { return g.trackLength }

// Beats returns the generated beat timestamps. The slice is owned by the
// grid; callers must not modify it.
func (g *Grid) Beats() []float64 { return g.beats }

// PositionToBeatIndex converts a time to a fractional beat index relative
// to the anchor. The result is unclamped; callers clamp as needed.
// Returns 0 when no tempo is set.
func (g *Grid) PositionToBeatIndex(timeSec float64) float64 {
	if g.bpm <= 0 {
		return 0
	}
	period := secondsPerMinute / g.bpm
	return (timeSec - g.firstBeat) / period
}

// Quantize snaps timeSec to the nearest beat timestamp. When the sequence
// is empty it falls back to rounding onto an ideal grid anchored at the
// first-beat offset. The result is clamped into [0, trackLength].
func (g *Grid) Quantize(timeSec float64) float64 {
	if g.bpm <= 0 {
		return timeSec
	}

	snapped := timeSec
	if len(g.beats) > 0 {
		best := g.beats[0]
		bestDist := math.Abs(timeSec - best)
		for _, b := range g.beats[1:] {
			if d := math.Abs(timeSec - b); d < bestDist {
				best = b
				bestDist = d
			}
		}
		snapped = best
	} else {
		period := secondsPerMinute / g.bpm
		snapped = g.firstBeat + math.Round((timeSec-g.firstBeat)/period)*period
	}

	if g.trackLength > 0 {
		snapped = mathutil.Clamp(snapped, 0, g.trackLength)
	}
	return snapped
}
