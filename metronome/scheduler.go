// Package metronome drives the random-tempo beat loop: every beat draws a new
// tempo, flips the accent, clicks, and sleeps for one beat period.
package metronome

import (
	"context"
	"fmt"
	"sync"
	"time"

	"metro/audio"
	"metro/click"
	"metro/tempo"
)

type State int

const (
	Stopped State = iota
	Playing
)

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "stopped"
}

// Beat is what one scheduling step produced.
type Beat struct {
	Seq      uint64
	Tempo    int
	Accented bool
	Interval time.Duration
	At       time.Time
}

// Status is the read-only surface shown to the user. CurrentBPM is 0 when
// nothing is playing.
type Status struct {
	State      State
	CurrentBPM int
	Range      tempo.Bounds
	Beats      uint64
}

// OutputFactory acquires the sound engine on first Start.
type OutputFactory func() (audio.Output, error)

type Options struct {
	Bounds tempo.Bounds
	Source tempo.Source
	Clock  Clock

	// OnBeat runs after each beat's click has been queued.
	OnBeat func(Beat)
	// OnState runs after every Playing/Stopped transition. Events arrive in
	// transition order. Observers must not call Start or Stop.
	OnState func(State)
}

type Scheduler struct {
	newOutput OutputFactory
	src       tempo.Source
	clock     Clock
	onBeat    func(Beat)
	onState   func(State)

	// emitMu is taken before mu and held until a transition's events have
	// been delivered.
	emitMu sync.Mutex

	mu       sync.Mutex
	out      audio.Output
	bounds   tempo.Bounds
	state    State
	starting bool
	gen      uint64
	accent   bool
	timer    Timer
	current  int
	seq      uint64
}

func New(newOutput OutputFactory, opts Options) *Scheduler {
	s := &Scheduler{
		newOutput: newOutput,
		src:       opts.Source,
		clock:     opts.Clock,
		onBeat:    opts.OnBeat,
		onState:   opts.OnState,
		bounds:    opts.Bounds,
	}
	if s.src == nil {
		s.src = tempo.Global
	}
	if s.clock == nil {
		s.clock = RealClock
	}
	if s.bounds == (tempo.Bounds{}) {
		s.bounds = tempo.Bounds{Low: tempo.DefaultLow, High: tempo.DefaultHigh}
	}
	return s
}

// Start begins playback with a beat fired before it returns. It is a no-op
// while playing. The output is acquired on first use and resumed before the
// first click; a resume error is returned but playback still starts.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state == Playing || s.starting {
		s.mu.Unlock()
		return nil
	}
	if s.out == nil {
		if s.newOutput == nil {
			s.mu.Unlock()
			return fmt.Errorf("acquire sound engine: no output factory")
		}
		out, err := s.newOutput()
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("acquire sound engine: %w", err)
		}
		s.out = out
	}
	out := s.out
	gen := s.gen
	s.starting = true
	s.mu.Unlock()

	resumeErr := out.Resume(ctx)

	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Lock()
	s.starting = false
	if gen != s.gen {
		// Stop or Close arrived while resuming.
		s.mu.Unlock()
		if resumeErr != nil {
			return fmt.Errorf("resume sound engine: %w", resumeErr)
		}
		return nil
	}
	s.state = Playing
	s.gen++
	s.accent = false
	b := s.stepLocked()
	s.mu.Unlock()

	s.emitState(Playing)
	s.emitBeat(b)
	if resumeErr != nil {
		return fmt.Errorf("resume sound engine: %w", resumeErr)
	}
	return nil
}

// Stop halts playback and cancels the pending wake-up. Safe to call when stopped.
func (s *Scheduler) Stop() {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Lock()
	was := s.state
	s.stopLocked()
	s.mu.Unlock()
	if was == Playing {
		s.emitState(Stopped)
	}
}

func (s *Scheduler) stopLocked() {
	s.state = Stopped
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.current = 0
	s.accent = false
}

// Close stops playback and releases the sound engine.
func (s *Scheduler) Close() {
	s.Stop()
	s.mu.Lock()
	out := s.out
	s.out = nil
	s.mu.Unlock()
	if out != nil {
		_ = out.Close()
	}
}

// SetBounds replaces the raw bounds. The beat in flight keeps its interval;
// the next beat draws from the new range.
func (s *Scheduler) SetBounds(b tempo.Bounds) {
	s.mu.Lock()
	s.bounds = b
	s.mu.Unlock()
}

// Bounds returns the raw bounds as last set.
func (s *Scheduler) Bounds() tempo.Bounds {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bounds
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		State:      s.state,
		CurrentBPM: s.current,
		Range:      s.bounds.Clamp(),
		Beats:      s.seq,
	}
}

// stepLocked fires one beat and arms the next wake-up.
func (s *Scheduler) stepLocked() Beat {
	bpm := s.bounds.Draw(s.src)
	s.current = bpm
	interval := time.Duration(float64(time.Minute) / float64(bpm))
	s.accent = !s.accent

	click.Play(s.out, s.accent)

	s.seq++
	b := Beat{
		Seq:      s.seq,
		Tempo:    bpm,
		Accented: s.accent,
		Interval: interval,
		At:       s.clock.Now(),
	}

	gen := s.gen
	s.timer = s.clock.AfterFunc(interval, func() { s.wake(gen) })
	return b
}

// wake is the timer callback. A callback that was already queued when Stop
// ran sees a different generation and does nothing.
func (s *Scheduler) wake(gen uint64) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Lock()
	if s.state != Playing || gen != s.gen {
		s.mu.Unlock()
		return
	}
	b := s.stepLocked()
	s.mu.Unlock()
	s.emitBeat(b)
}

func (s *Scheduler) emitBeat(b Beat) {
	if s.onBeat != nil {
		s.onBeat(b)
	}
}

func (s *Scheduler) emitState(st State) {
	if s.onState != nil {
		s.onState(st)
	}
}
