package analysis

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// detectionCurves holds the per-frame detection functions produced by one
// STFT pass: an energy envelope for the tempo tracker and three spectral
// novelty functions with different sensitivity profiles.
type detectionCurves struct {
	times  []float64
	energy []float64
	flux   []float64
	hfc    []float64
	mkl    []float64
}

// stft drives one short-time Fourier pass over [startSample, endSample) and
// feeds every frame's magnitude spectrum to fn along with the frame time.
type stft struct {
	fft   *fourier.FFT
	win   []float64
	frame []float64
	spec  []complex128
	mags  []float64
}

func newSTFT() *stft {
	win := make([]float64, stftWindowSize)
	for i := range win {
		win[i] = 1
	}
	window.Hann(win)

	return &stft{
		fft:   fourier.NewFFT(stftWindowSize),
		win:   win,
		frame: make([]float64, stftWindowSize),
		spec:  make([]complex128, stftWindowSize/2+1),
		mags:  make([]float64, stftWindowSize/2+1),
	}
}

func (s *stft) run(mono []float64, sampleRate, startSample, endSample int, fn func(timeSec float64, mags []float64)) {
	for i := startSample; i+stftWindowSize <= endSample; i += stftHopSize {
		for j := 0; j < stftWindowSize; j++ {
			s.frame[j] = mono[i+j] * s.win[j]
		}
		s.fft.Coefficients(s.spec, s.frame)
		for k, c := range s.spec {
			s.mags[k] = math.Hypot(real(c), imag(c))
		}
		fn(float64(i)/float64(sampleRate), s.mags)
	}
}

// computeDetectionCurves runs the STFT over a section and derives the four
// detection functions in one pass.
func computeDetectionCurves(s *stft, mono []float64, sampleRate, startSample, endSample int) detectionCurves {
	var c detectionCurves
	prev := make([]float64, stftWindowSize/2+1)
	havePrev := false
	prevHFC := 0.0

	s.run(mono, sampleRate, startSample, endSample, func(timeSec float64, mags []float64) {
		var energy, flux, hfc, mkl float64
		for k, m := range mags {
			energy += m * m
			hfc += float64(k) * m * m
			if havePrev {
				if d := m - prev[k]; d > 0 {
					flux += d
				}
				mkl += math.Log1p(m / (prev[k] + 1e-9))
			}
		}
		if !havePrev {
			flux, mkl = 0, 0
		}

		hfcRise := hfc - prevHFC
		if hfcRise < 0 {
			hfcRise = 0
		}
		prevHFC = hfc

		c.times = append(c.times, timeSec)
		c.energy = append(c.energy, math.Sqrt(energy))
		c.flux = append(c.flux, flux)
		c.hfc = append(c.hfc, hfcRise)
		c.mkl = append(c.mkl, mkl)

		copy(prev, mags)
		havePrev = true
	})
	return c
}

// pickOnsets peak-picks a detection function: a frame is an onset when it
// is the local maximum within a small neighborhood and exceeds the moving
// mean by the detector's sensitivity factor. Detected times closer than
// minIOI to the previous onset are dropped.
func pickOnsets(curve, times []float64, threshold, minIOI float64) []float64 {
	n := len(curve)
	if n == 0 {
		return nil
	}

	var onsets []float64
	var sum float64
	var window int

	for i := 0; i < n; i++ {
		sum += curve[i]
		window++
		if window > thresholdWindowFrames {
			sum -= curve[i-thresholdWindowFrames]
			window = thresholdWindowFrames
		}
		mean := sum / float64(window)

		if curve[i] <= mean*(1+threshold) || curve[i] <= 1e-12 {
			continue
		}

		localMax := true
		for d := -peakWindowFrames; d <= peakWindowFrames; d++ {
			j := i + d
			if j < 0 || j >= n || j == i {
				continue
			}
			if curve[j] > curve[i] {
				localMax = false
				break
			}
		}
		if !localMax {
			continue
		}

		t := times[i]
		if len(onsets) > 0 && t-onsets[len(onsets)-1] <= minIOI {
			continue
		}
		onsets = append(onsets, t)
	}
	return onsets
}
