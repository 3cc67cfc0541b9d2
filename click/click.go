// Package click renders the metronome pulse: a short square-wave burst with
// an exponential attack and release.
package click

import (
	"math"
	"time"

	"metro/audio"
)

const (
	Duration = 30 * time.Millisecond
	Attack   = 5 * time.Millisecond

	// Floor is the resting gain. Exponential ramps cannot start or end at zero.
	Floor = 0.0001

	accentFreq = 1200
	accentPeak = 0.6

	plainFreq = 900
	plainPeak = 0.45
)

// Voice is the pitch and peak gain of one pulse.
type Voice struct {
	Freq float64
	Peak float64
}

func VoiceFor(accented bool) Voice {
	if accented {
		return Voice{Freq: accentFreq, Peak: accentPeak}
	}
	return Voice{Freq: plainFreq, Peak: plainPeak}
}

// Gain is the envelope value t into the pulse: Floor at 0, peak at Attack,
// back to Floor at Duration, with exponential interpolation between.
func Gain(t time.Duration, peak float64) float64 {
	switch {
	case t <= 0:
		return Floor
	case t <= Attack:
		return expRamp(Floor, peak, float64(t)/float64(Attack))
	case t < Duration:
		return expRamp(peak, Floor, float64(t-Attack)/float64(Duration-Attack))
	default:
		return Floor
	}
}

func expRamp(from, to, frac float64) float64 {
	return from * math.Pow(to/from, frac)
}

// Samples is the length of every rendered pulse.
func Samples(sampleRate int) int {
	return int(float64(sampleRate) * Duration.Seconds())
}

// Render synthesizes one pulse as mono 16-bit PCM. The buffer ends when the
// pulse does, so the output falls silent without being told to.
func Render(sampleRate int, accented bool) []int16 {
	v := VoiceFor(accented)
	n := Samples(sampleRate)
	buf := make([]int16, n)
	for i := range buf {
		t := float64(i) / float64(sampleRate)
		_, phase := math.Modf(v.Freq * float64(i) / float64(sampleRate))
		sq := 1.0
		if phase >= 0.5 {
			sq = -1.0
		}
		g := Gain(time.Duration(t*float64(time.Second)), v.Peak)
		buf[i] = int16(sq * g * 32767)
	}
	return buf
}

// Play renders a pulse and hands it to out. A nil output is skipped.
func Play(out audio.Output, accented bool) {
	if out == nil {
		return
	}
	out.Play(Render(audio.SampleRate, accented))
}
