// Command deck-analyze estimates the tempo and beat grid of a WAV file.
//
// Usage:
//
//	deck-analyze track.wav
//	deck-analyze -max 120 -beats track.wav
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/pulsedj/go-dj-deck/internal/analysis"
	"github.com/pulsedj/go-dj-deck/internal/decode"
)

const (
	minRequiredArgs = 1
	percentScale    = 100
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	maxSeconds := flag.Float64("max", 0, "Analyze at most this many seconds (0 = whole track)")
	showBeats := flag.Bool("beats", false, "Print every beat timestamp")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	args := flag.Args()
	if len(args) < minRequiredArgs {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] input.wav\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		return fmt.Errorf("insufficient arguments")
	}
	inputPath := args[0]

	track, err := decode.LoadWAV(inputPath)
	if err != nil {
		return fmt.Errorf("load %s: %w", inputPath, err)
	}

	if *verbose {
		log.Printf("Input: %s", inputPath)
		log.Printf("Rate: %d Hz, %d channels, %d-bit", track.SampleRate, track.Channels(), track.BitDepth)
		log.Printf("Duration: %.2fs", track.Duration())
	}

	bar := progressbar.NewOptions(percentScale,
		progressbar.OptionSetDescription("analyzing"),
		progressbar.OptionClearOnFinish(),
	)

	est := &analysis.Estimator{
		Progress: func(fraction float64) {
			_ = bar.Set(int(fraction * percentScale))
		},
	}
	if *verbose {
		est.Logger = log.Default()
	}

	start := time.Now()
	result, err := est.Estimate(track.Mono(), track.SampleRate, *maxSeconds)
	_ = bar.Finish()
	if err != nil {
		return fmt.Errorf("analyze %s: %w", inputPath, err)
	}
	elapsed := time.Since(start)

	fmt.Printf("Analyzed %s\n", filepath.Base(inputPath))
	fmt.Printf("  BPM: %.2f\n", result.BPM)
	fmt.Printf("  First beat: %.3fs\n", result.FirstBeatOffset)
	fmt.Printf("  Beats: %d\n", len(result.Beats))
	fmt.Printf("  Algorithm: %s\n", result.Algorithm)
	fmt.Printf("  Duration: %.2fs, Speed: %.1fx realtime\n",
		elapsed.Seconds(), track.Duration()/elapsed.Seconds())

	if *showBeats {
		for i, beat := range result.Beats {
			fmt.Printf("  beat %4d  %9.3fs\n", i, beat)
		}
	}
	return nil
}
