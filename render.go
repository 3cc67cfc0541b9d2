package main

import (
	"fmt"
	"time"

	"metro/audio"
	"metro/encoder"
	"metro/log"
	"metro/metronome"
	"metro/tempo"
)

// runRender writes a click track of n beats to a FLAC file. A zero seed
// draws from the global source.
func runRender(path string, bounds tempo.Bounds, n int, seed uint64) error {
	if n < 1 {
		return fmt.Errorf("render: beats must be at least 1, got %d", n)
	}
	var src tempo.Source
	if seed != 0 {
		src = tempo.NewSeeded(seed)
	}

	start := time.Now()
	pcm, beats := metronome.Track(bounds, src, n, audio.SampleRate)
	if err := encoder.WriteFlacFile(path, pcm); err != nil {
		return fmt.Errorf("render: %w", err)
	}

	c := bounds.Clamp()
	log.Render(path, len(beats), c.Low, c.High, len(pcm), time.Since(start))

	secs := float64(len(pcm)) / float64(audio.SampleRate)
	fmt.Printf("Wrote %s: %d beats, %.1fs, %d-%d BPM\n", path, len(beats), secs, c.Low, c.High)
	return nil
}
