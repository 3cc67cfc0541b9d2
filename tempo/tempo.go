package tempo

import (
	"math/rand/v2"
	"strconv"
	"strings"
)

const (
	MinBPM = 20
	MaxBPM = 300

	DefaultLow  = 60
	DefaultHigh = 120
)

// Bounds is a BPM range. Raw bounds come straight from user input and may be
// inverted or out of range; call Clamp before drawing from them.
type Bounds struct {
	Low  int
	High int
}

// Clamp returns bounds satisfying MinBPM <= Low <= High <= MaxBPM.
// High is raised to Low when the input is inverted.
func (b Bounds) Clamp() Bounds {
	low := max(MinBPM, min(MaxBPM, b.Low))
	high := max(low, min(MaxBPM, b.High))
	return Bounds{Low: low, High: high}
}

// Parse converts a text field value to a raw bound. Anything that is not an
// number counts as 0, which Clamp later lifts into range. Decimals truncate.
func Parse(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= -1e9 && f <= 1e9 {
		return int(f)
	}
	return 0
}

// Source draws integers in [0, n). *rand.Rand satisfies it.
type Source interface {
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// Global draws from the process-wide generator.
var Global Source = globalSource{}

// NewSeeded returns a deterministic source, used for offline renders.
func NewSeeded(seed uint64) Source {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Draw returns a uniformly distributed tempo in [Low, High] inclusive.
// The bounds are clamped first so the draw is always valid.
func (b Bounds) Draw(src Source) int {
	c := b.Clamp()
	if src == nil {
		src = Global
	}
	return c.Low + src.IntN(c.High-c.Low+1)
}
