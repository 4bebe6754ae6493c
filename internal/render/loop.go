package render

import (
	"math"

	"github.com/pulsedj/go-dj-deck/internal/mathutil"
)

// Click-free loop wraparound. Three strategies, exactly one per block:
//
//   - A block that straddles the loop end with enough runway gets a full
//     equal-power crossfade between pre-read end audio and loop-start audio.
//   - Too little runway falls back to a short Hann fade-in after the jump,
//     with a small DC compensation derived from the last pre-jump sample.
//   - A position already past the loop end jumps immediately and fades in
//     over two stages: a quick quadratic ramp to kill the click, then a
//     cosine ramp to full level.
//
// Every strategy fills the whole block and bypasses the tone filters for
// that block.

// renderLoopStraddle handles a block whose span crosses the loop end.
func (r *Renderer) renderLoopStraddle(dst [][]float64, n int, ratio, gain, posSec, loopStart, loopEnd float64) {
	rate := float64(r.sampleRate)

	samplesToLoopEnd := int((loopEnd - posSec) * rate)
	samplesToLoopEnd = mathutil.ClampInt(samplesToLoopEnd, 0, n)

	crossfade := min(maxCrossfadeSamples, min(samplesToLoopEnd, n/2))

	if crossfade < minCrossfadeSamples || samplesToLoopEnd < crossfade {
		r.renderShortLoopFade(dst, n, ratio, gain, loopStart)
		return
	}

	endBuf := r.ensureBlock(&r.endBuf, n)
	r.readResampled(endBuf, n, ratio, gain)

	r.pos = loopStart * rate

	startLen := max(2*crossfade, n)
	startBuf := r.ensureBlock(&r.startBuf, startLen)
	r.readResampled(startBuf, startLen, ratio, gain)

	fadeStart := samplesToLoopEnd - crossfade

	for ch := range dst {
		out := dst[ch][:n]
		copy(out, endBuf[ch][:n])

		for i := 0; i < crossfade; i++ {
			idx := fadeStart + i
			if idx < 0 || idx >= n {
				continue
			}
			fadeProgress := float64(i) / float64(crossfade-1)
			hann := 0.5 * (1 - math.Cos(fadeProgress*math.Pi))
			endGain := math.Cos(hann * math.Pi * 0.5)
			startGain := math.Sin(hann * math.Pi * 0.5)
			out[idx] = endBuf[ch][idx]*endGain + startBuf[ch][i]*startGain
		}

		// Past the crossfade the block continues with pure loop-start audio.
		remainderStart := fadeStart + crossfade
		for i := 0; remainderStart+i < n && crossfade+i < startLen; i++ {
			out[remainderStart+i] = startBuf[ch][crossfade+i]
		}
	}
}

// renderShortLoopFade jumps with too little runway for a crossfade: it reads
// a few pre-jump frames for continuity reference, jumps, then Hann-fades the
// new audio in with a decaying DC offset bridging the discontinuity.
func (r *Renderer) renderShortLoopFade(dst [][]float64, n int, ratio, gain, loopStart float64) {
	pre := r.ensureBlock(&r.preBuf, preJumpSamples)
	r.readResampled(pre, preJumpSamples, ratio, gain)

	r.pos = loopStart * float64(r.sampleRate)
	r.readResampled(dst, n, ratio, gain)

	fadeLen := min(shortFadeSamples, n/2)
	if fadeLen <= 0 {
		return
	}
	for ch := range dst {
		lastSample := pre[ch][preJumpSamples-1]
		for i := 0; i < fadeLen; i++ {
			fadeProgress := float64(i) / float64(fadeLen)
			hann := 0.5 * (1 - math.Cos(fadeProgress*math.Pi))

			sample := dst[ch][i]
			if i == 0 && math.Abs(lastSample) > dcCompensationFloor {
				sample += lastSample * dcCompensationGain * (1 - hann)
			}
			dst[ch][i] = sample * hann
		}
	}
}

// renderLateLoopJump recovers from a position that already overshot the loop
// end.
func (r *Renderer) renderLateLoopJump(dst [][]float64, n int, ratio, gain, loopStart float64) {
	r.pos = loopStart * float64(r.sampleRate)
	r.readResampled(dst, n, ratio, gain)

	total := min(lateFadeSamples, n/2)
	if total <= 0 {
		return
	}
	quick := total / 4

	for ch := range dst {
		for i := 0; i < total; i++ {
			var fade float64
			if i < quick {
				p := float64(i) / float64(quick)
				fade = p * p
			} else {
				p := float64(i-quick) / float64(total-quick)
				fade = 0.5 * (1 - math.Cos(p*math.Pi))
			}
			dst[ch][i] *= fade
		}
	}
}
