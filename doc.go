// Package deck implements a DJ deck playback engine: block-based audio
// rendering with pitch-preserving tempo control (keylock), click-free
// looping, beat-grid quantization and offline BPM analysis.
//
// A Deck is constructed from a Config, loads one track at a time and renders
// audio on demand:
//
//	d, err := deck.New(deck.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer d.Close()
//
//	if err := d.Load("track.wav"); err != nil {
//		log.Fatal(err)
//	}
//	d.Start()
//
//	block := [][]float64{make([]float64, 512)}
//	d.Render(block) // called per device tick
//
// Control methods are safe to call from any goroutine; Render must be
// driven by a single audio goroutine. Loading a track kicks off background
// BPM analysis whose results arrive through the Observer interface.
package deck
