// Command deck-render renders a WAV file offline through the deck playback
// pipeline and writes the result as 16-bit WAV. It applies the same speed,
// keylock, loop and tone controls a live deck would.
//
// Usage:
//
//	deck-render -speed 1.06 input.wav output.wav
//	deck-render -speed 1.5 -keylock -quality high input.wav output.wav
//	deck-render -loop-start 16 -loop-length 4 -seconds 30 input.wav out.wav
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/pulsedj/go-dj-deck/internal/decode"
	"github.com/pulsedj/go-dj-deck/internal/render"
	"github.com/pulsedj/go-dj-deck/internal/stretch"
)

const (
	minRequiredArgs = 2
	blockFrames     = 512
	outputBitDepth  = 16
	maxInt16        = 32767.0
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	speed := flag.Float64("speed", 1.0, "Playback rate multiplier")
	keylock := flag.Bool("keylock", false, "Preserve pitch while changing tempo")
	quality := flag.String("quality", "balanced", "Keylock quality: fast, balanced, high")
	gain := flag.Float64("gain", 1.0, "Output gain in [0, 1]")
	lowGain := flag.Float64("low", 0, "Low shelf knob in [-1, 1]")
	midGain := flag.Float64("mid", 0, "Mid peak knob in [-1, 1]")
	highGain := flag.Float64("high", 0, "High shelf knob in [-1, 1]")
	filterKnob := flag.Float64("filter", 0, "Sweep filter knob in [-1, 1]")
	loopStart := flag.Float64("loop-start", 0, "Loop start in seconds")
	loopLength := flag.Float64("loop-length", 0, "Loop length in seconds (0 = no loop)")
	seconds := flag.Float64("seconds", 0, "Output duration in seconds (0 = one pass at the given speed)")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	args := flag.Args()
	if len(args) < minRequiredArgs {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] input.wav output.wav\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		return fmt.Errorf("insufficient arguments")
	}
	inputPath := args[0]
	outputPath := args[1]

	track, err := decode.LoadWAV(inputPath)
	if err != nil {
		return fmt.Errorf("load %s: %w", inputPath, err)
	}

	r, err := render.NewRenderer(track.Samples, track.SampleRate, parseQuality(*quality))
	if err != nil {
		return fmt.Errorf("renderer: %w", err)
	}
	defer func() { _ = r.Close() }()

	p := r.Params()
	p.SetSpeed(*speed)
	p.SetGain(*gain)
	p.SetLowGain(*lowGain)
	p.SetMidGain(*midGain)
	p.SetHighGain(*highGain)
	p.SetFilterCutoff(*filterKnob)
	if *keylock {
		p.RequestKeylock(true)
	}
	if *loopLength > 0 {
		p.SetLoop(*loopStart, *loopStart+*loopLength)
	}

	outSeconds := *seconds
	if outSeconds <= 0 {
		outSeconds = track.Duration() / *speed
	}
	totalFrames := int(outSeconds * float64(track.SampleRate))

	if *verbose {
		log.Printf("Input: %s (%.2fs, %d Hz, %d channels)",
			inputPath, track.Duration(), track.SampleRate, track.Channels())
		log.Printf("Speed: %.3f, keylock: %v (%s)", *speed, *keylock, *quality)
		log.Printf("Rendering %.2fs (%d frames)", outSeconds, totalFrames)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outputPath, err)
	}
	defer func() { _ = f.Close() }()

	enc := wav.NewEncoder(f, track.SampleRate, outputBitDepth, track.Channels(), 1)

	start := time.Now()
	channels := track.Channels()
	block := make([][]float64, channels)
	for ch := range block {
		block[ch] = make([]float64, blockFrames)
	}
	interleaved := make([]int, blockFrames*channels)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: track.SampleRate},
		SourceBitDepth: outputBitDepth,
	}

	r.Start()
	for rendered := 0; rendered < totalFrames; rendered += blockFrames {
		n := blockFrames
		if remaining := totalFrames - rendered; remaining < n {
			n = remaining
		}
		dst := block
		if n < blockFrames {
			dst = make([][]float64, channels)
			for ch := range dst {
				dst[ch] = block[ch][:n]
			}
		}
		r.Render(dst)

		buf.Data = interleaveInt16(dst, interleaved[:n*channels])
		if err := enc.Write(buf); err != nil {
			return fmt.Errorf("write audio data: %w", err)
		}
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize %s: %w", outputPath, err)
	}
	elapsed := time.Since(start)

	fmt.Printf("Rendered %s -> %s\n", filepath.Base(inputPath), filepath.Base(outputPath))
	fmt.Printf("  %.2fs at speed %.3f (%d channels, %d-bit)\n",
		outSeconds, *speed, channels, outputBitDepth)
	fmt.Printf("  Duration: %.2fs, Speed: %.1fx realtime\n",
		elapsed.Seconds(), outSeconds/elapsed.Seconds())
	return nil
}

func parseQuality(q string) stretch.Profile {
	switch strings.ToLower(q) {
	case "fast":
		return stretch.ProfileFast
	case "high", "quality":
		return stretch.ProfileQuality
	default:
		return stretch.ProfileBalanced
	}
}

// interleaveInt16 clamps per-channel floats to [-1, 1] and interleaves them
// as 16-bit sample values.
func interleaveInt16(channels [][]float64, dst []int) []int {
	if len(channels) == 0 {
		return dst[:0]
	}
	n := len(channels[0])
	for i := 0; i < n; i++ {
		base := i * len(channels)
		for ch := range channels {
			s := channels[ch][i]
			if s > 1.0 {
				s = 1.0
			} else if s < -1.0 {
				s = -1.0
			}
			dst[base+ch] = int(s * maxInt16)
		}
	}
	return dst[:n*len(channels)]
}
