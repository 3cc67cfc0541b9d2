package metronome

import (
	"math"
	"time"

	"metro/click"
	"metro/tempo"
)

// Track renders n beats offline: the same tempo draws and accent pattern the
// live scheduler produces, with each click placed at its onset sample. The
// buffer runs to the end of the last beat period.
func Track(bounds tempo.Bounds, src tempo.Source, n, sampleRate int) ([]int16, []Beat) {
	if src == nil {
		src = tempo.Global
	}
	accentPulse := click.Render(sampleRate, true)
	plainPulse := click.Render(sampleRate, false)

	beats := make([]Beat, 0, n)
	var pcm []int16
	var elapsed float64 // seconds since the first onset
	accent := false
	for i := 0; i < n; i++ {
		bpm := bounds.Draw(src)
		accent = !accent
		period := 60 / float64(bpm)
		beats = append(beats, Beat{
			Seq:      uint64(i + 1),
			Tempo:    bpm,
			Accented: accent,
			Interval: time.Duration(period * float64(time.Second)),
			At:       time.Unix(0, 0).Add(time.Duration(elapsed * float64(time.Second))),
		})

		onset := int(math.Round(elapsed * float64(sampleRate)))
		elapsed += period
		end := int(math.Round(elapsed * float64(sampleRate)))
		if end > len(pcm) {
			pcm = append(pcm, make([]int16, end-len(pcm))...)
		}
		pulse := plainPulse
		if accent {
			pulse = accentPulse
		}
		copy(pcm[onset:], pulse)
	}
	return pcm, beats
}
