package render

// Cubic (4-point, 3rd order) Hermite interpolation over the decoded track.
// The transport position is a fractional frame index; each output sample
// interpolates the four frames around it and advances by the rate ratio.

// Hermite basis coefficients.
const (
	hermiteHalf        = 0.5
	hermiteThreeHalves = 1.5
	hermiteFiveHalves  = 2.5
)

func hermiteAt(src []float64, pos float64) float64 {
	n := len(src)
	if n == 0 {
		return 0
	}
	i := int(pos)
	x := pos - float64(i)

	y0 := src[clampIndex(i-1, n)]
	y1 := src[clampIndex(i, n)]
	y2 := src[clampIndex(i+1, n)]
	y3 := src[clampIndex(i+2, n)]

	coefA := -hermiteHalf*y0 + hermiteThreeHalves*y1 - hermiteThreeHalves*y2 + hermiteHalf*y3
	coefB := y0 - hermiteFiveHalves*y1 + 2*y2 - hermiteHalf*y3
	coefC := -hermiteHalf*y0 + hermiteHalf*y2
	coefD := y1

	return ((coefA*x+coefB)*x+coefC)*x + coefD
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// readResampled pulls n frames per channel from the transport at the given
// rate ratio, applying the output gain, and advances the position. When the
// position runs off the end of the track it wraps to the start.
func (r *Renderer) readResampled(dst [][]float64, n int, ratio, gain float64) {
	if len(dst) == 0 || n <= 0 {
		return
	}
	var advanced float64
	for ch := range dst {
		src := r.samples[ch]
		buf := dst[ch][:n]
		p := r.pos
		for i := range buf {
			buf[i] = hermiteAt(src, p) * gain
			p += ratio
		}
		advanced = p
	}
	r.pos = advanced

	if r.pos >= float64(r.frames) {
		r.pos = 0
	}
}
