package metronome

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"metro/audio"
	"metro/tempo"
)

type harness struct {
	s      *Scheduler
	clock  *ManualClock
	ctx    *audio.FakeContext
	beats  []Beat
	states []State
}

func newHarness(t *testing.T, b tempo.Bounds) *harness {
	t.Helper()
	h := &harness{clock: NewManualClock(), ctx: audio.NewFakeContext()}
	h.s = New(func() (audio.Output, error) { return h.ctx.NewOutput(nil) }, Options{
		Bounds:  b,
		Source:  rand.New(rand.NewPCG(7, 11)),
		Clock:   h.clock,
		OnBeat:  func(b Beat) { h.beats = append(h.beats, b) },
		OnState: func(st State) { h.states = append(h.states, st) },
	})
	t.Cleanup(h.s.Close)
	return h
}

func (h *harness) pulses() int {
	outs := h.ctx.Outputs()
	if len(outs) == 0 {
		return 0
	}
	return len(outs[0].Pulses())
}

func mustStart(t *testing.T, s *Scheduler) {
	t.Helper()
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func TestStartFiresFirstBeatImmediately(t *testing.T) {
	h := newHarness(t, tempo.Bounds{Low: 60, High: 120})
	mustStart(t, h.s)

	if len(h.beats) != 1 {
		t.Fatalf("beats after Start = %d, want 1", len(h.beats))
	}
	b := h.beats[0]
	if b.Tempo < 60 || b.Tempo > 120 {
		t.Errorf("first tempo %d outside [60,120]", b.Tempo)
	}
	if !b.Accented {
		t.Error("first beat should be accented")
	}
	if h.pulses() != 1 {
		t.Errorf("pulses = %d, want 1", h.pulses())
	}
	if h.clock.Pending() != 1 {
		t.Errorf("pending timers = %d, want 1", h.clock.Pending())
	}
	next, _ := h.clock.NextIn()
	if want := time.Duration(float64(time.Minute) / float64(b.Tempo)); next != want {
		t.Errorf("next wake-up in %v, want %v", next, want)
	}
	if st := h.s.Status(); st.State != Playing || st.CurrentBPM != b.Tempo {
		t.Errorf("status = %+v", st)
	}
	if len(h.states) != 1 || h.states[0] != Playing {
		t.Errorf("states = %v, want [playing]", h.states)
	}
}

func TestFixedTempoTickTock(t *testing.T) {
	h := newHarness(t, tempo.Bounds{Low: 60, High: 60})
	mustStart(t, h.s)
	for i := 0; i < 5; i++ {
		h.clock.Advance(time.Second)
	}

	if len(h.beats) != 6 {
		t.Fatalf("beats = %d, want 6", len(h.beats))
	}
	for i, b := range h.beats {
		if b.Tempo != 60 {
			t.Errorf("beat %d tempo = %d, want 60", i, b.Tempo)
		}
		if b.Interval != time.Second {
			t.Errorf("beat %d interval = %v, want 1s", i, b.Interval)
		}
		if want := i%2 == 0; b.Accented != want {
			t.Errorf("beat %d accented = %v, want %v", i, b.Accented, want)
		}
		if b.Seq != uint64(i+1) {
			t.Errorf("beat %d seq = %d", i, b.Seq)
		}
	}
	if h.pulses() != 6 {
		t.Errorf("pulses = %d, want 6", h.pulses())
	}
}

func TestAccentAlternatesAcrossTempoJumps(t *testing.T) {
	h := newHarness(t, tempo.Bounds{Low: 20, High: 300})
	mustStart(t, h.s)
	for i := 0; i < 50; i++ {
		next, ok := h.clock.NextIn()
		if !ok {
			t.Fatal("no pending wake-up while playing")
		}
		h.clock.Advance(next)
	}
	for i := 1; i < len(h.beats); i++ {
		if h.beats[i].Accented == h.beats[i-1].Accented {
			t.Fatalf("beats %d and %d share accent", i-1, i)
		}
	}
}

func TestStopRightAfterStart(t *testing.T) {
	h := newHarness(t, tempo.Bounds{Low: 60, High: 120})
	mustStart(t, h.s)
	h.s.Stop()
	h.clock.Advance(10 * time.Second)

	if len(h.beats) != 1 || h.pulses() != 1 {
		t.Errorf("beats=%d pulses=%d after stop, want 1/1", len(h.beats), h.pulses())
	}
	if h.clock.Pending() != 0 {
		t.Errorf("pending timers = %d after stop", h.clock.Pending())
	}
	if st := h.s.Status(); st.State != Stopped || st.CurrentBPM != 0 {
		t.Errorf("status after stop = %+v", st)
	}
}

func TestQueuedCallbackAfterStopIsIgnored(t *testing.T) {
	h := newHarness(t, tempo.Bounds{Low: 60, High: 60})
	mustStart(t, h.s)
	stale := h.s.gen

	h.s.Stop()
	h.s.wake(stale)
	if len(h.beats) != 1 {
		t.Fatalf("stale wake fired a beat while stopped")
	}

	mustStart(t, h.s)
	h.s.wake(stale)
	if len(h.beats) != 2 {
		t.Fatalf("beats = %d, want 2 (stale wake fired after restart)", len(h.beats))
	}
	if h.clock.Pending() != 1 {
		t.Errorf("pending timers = %d, want 1", h.clock.Pending())
	}
}

func TestStartWhilePlayingIsNoop(t *testing.T) {
	h := newHarness(t, tempo.Bounds{Low: 60, High: 120})
	mustStart(t, h.s)
	before := h.s.Status()
	mustStart(t, h.s)

	if len(h.beats) != 1 {
		t.Errorf("beats = %d, want 1", len(h.beats))
	}
	if h.clock.Pending() != 1 {
		t.Errorf("pending timers = %d, want 1", h.clock.Pending())
	}
	if after := h.s.Status(); after != before {
		t.Errorf("status changed: %+v -> %+v", before, after)
	}
}

func TestStopWhenStoppedIsNoop(t *testing.T) {
	h := newHarness(t, tempo.Bounds{Low: 60, High: 120})
	h.s.Stop()
	h.s.Stop()
	if len(h.states) != 0 {
		t.Errorf("states = %v, want none", h.states)
	}
	if len(h.ctx.Outputs()) != 0 {
		t.Error("Stop acquired an output")
	}
}

func TestBoundsChangeAppliesToNextBeat(t *testing.T) {
	h := newHarness(t, tempo.Bounds{Low: 60, High: 60})
	mustStart(t, h.s)

	h.s.SetBounds(tempo.Bounds{Low: 120, High: 120})
	if next, _ := h.clock.NextIn(); next != time.Second {
		t.Fatalf("in-flight interval changed to %v", next)
	}
	h.clock.Advance(time.Second)

	if got := h.beats[1].Tempo; got != 120 {
		t.Errorf("second beat tempo = %d, want 120", got)
	}
	if next, _ := h.clock.NextIn(); next != 500*time.Millisecond {
		t.Errorf("next interval = %v, want 500ms", next)
	}
}

func TestInvertedBoundsClampUp(t *testing.T) {
	h := newHarness(t, tempo.Bounds{Low: 150, High: 100})
	mustStart(t, h.s)
	for i := 0; i < 4; i++ {
		h.clock.Advance(400 * time.Millisecond)
	}
	for i, b := range h.beats {
		if b.Tempo != 150 {
			t.Errorf("beat %d tempo = %d, want 150", i, b.Tempo)
		}
	}
	if r := h.s.Status().Range; r != (tempo.Bounds{Low: 150, High: 150}) {
		t.Errorf("range = %+v", r)
	}
	if raw := h.s.Bounds(); raw != (tempo.Bounds{Low: 150, High: 100}) {
		t.Errorf("raw bounds = %+v", raw)
	}
}

func TestAcquireFailureLeavesStopped(t *testing.T) {
	h := newHarness(t, tempo.Bounds{Low: 60, High: 120})
	h.ctx.OutputErr = errors.New("no sound server")

	err := h.s.Start(context.Background())
	if err == nil || !errors.Is(err, h.ctx.OutputErr) {
		t.Fatalf("Start err = %v, want wrapped OutputErr", err)
	}
	if st := h.s.Status(); st.State != Stopped {
		t.Errorf("state = %v, want stopped", st.State)
	}
	if len(h.beats) != 0 || h.clock.Pending() != 0 {
		t.Errorf("beats=%d pending=%d after failed start", len(h.beats), h.clock.Pending())
	}
}

func TestResumeFailureStillPlays(t *testing.T) {
	h := newHarness(t, tempo.Bounds{Low: 60, High: 120})
	h.ctx.ResumeErr = errors.New("resume rejected")

	err := h.s.Start(context.Background())
	if !errors.Is(err, h.ctx.ResumeErr) {
		t.Fatalf("Start err = %v, want wrapped ResumeErr", err)
	}
	if st := h.s.Status(); st.State != Playing {
		t.Errorf("state = %v, want playing", st.State)
	}
	if len(h.beats) != 1 {
		t.Errorf("beats = %d, want 1", len(h.beats))
	}
}

func TestOutputAcquiredOnceAndResumedEachStart(t *testing.T) {
	h := newHarness(t, tempo.Bounds{Low: 60, High: 120})
	mustStart(t, h.s)
	h.s.Stop()
	mustStart(t, h.s)

	outs := h.ctx.Outputs()
	if len(outs) != 1 {
		t.Fatalf("outputs = %d, want 1", len(outs))
	}
	if outs[0].Resumed() != 2 {
		t.Errorf("resumed = %d, want 2", outs[0].Resumed())
	}
}

func TestAccentRestartsAfterStop(t *testing.T) {
	h := newHarness(t, tempo.Bounds{Low: 60, High: 60})
	mustStart(t, h.s)
	h.clock.Advance(time.Second)
	h.s.Stop()
	mustStart(t, h.s)

	if len(h.beats) != 3 {
		t.Fatalf("beats = %d, want 3", len(h.beats))
	}
	if !h.beats[2].Accented {
		t.Error("first beat after restart should be accented")
	}
}

func TestCloseReleasesOutput(t *testing.T) {
	h := newHarness(t, tempo.Bounds{Low: 60, High: 120})
	mustStart(t, h.s)
	h.s.Close()

	if h.clock.Pending() != 0 {
		t.Errorf("pending timers = %d after close", h.clock.Pending())
	}
	if !h.ctx.Outputs()[0].Closed() {
		t.Error("output not closed")
	}
	if len(h.states) != 2 || h.states[1] != Stopped {
		t.Errorf("states = %v", h.states)
	}
}

func TestStateEventsKeepTransitionOrder(t *testing.T) {
	ctx := audio.NewFakeContext()
	var (
		mu      sync.Mutex
		states  []State
		stopped = make(chan struct{})
	)
	var s *Scheduler
	s = New(func() (audio.Output, error) { return ctx.NewOutput(nil) }, Options{
		Bounds: tempo.Bounds{Low: 60, High: 60},
		Clock:  NewManualClock(),
		OnState: func(st State) {
			mu.Lock()
			states = append(states, st)
			mu.Unlock()
			if st == Playing {
				// A Stop racing the start must wait for this event.
				go func() {
					s.Stop()
					close(stopped)
				}()
				time.Sleep(50 * time.Millisecond)
			}
		},
	})
	defer s.Close()

	mustStart(t, s)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop never returned")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(states) != 2 || states[0] != Playing || states[1] != Stopped {
		t.Errorf("states = %v, want [playing stopped]", states)
	}
	if st := s.Status().State; st != Stopped {
		t.Errorf("final state = %v, want stopped", st)
	}
}

func TestStopDuringResumeCancelsStart(t *testing.T) {
	h := newHarness(t, tempo.Bounds{Low: 60, High: 120})
	block := &blockingOutput{entered: make(chan struct{}), release: make(chan struct{})}
	h.s.newOutput = func() (audio.Output, error) { return block, nil }

	errc := make(chan error, 1)
	go func() { errc <- h.s.Start(context.Background()) }()
	<-block.entered
	h.s.Stop()
	close(block.release)

	if err := <-errc; err != nil {
		t.Fatalf("Start: %v", err)
	}
	if st := h.s.Status(); st.State != Stopped {
		t.Errorf("state = %v, want stopped", st.State)
	}
	if block.played != 0 {
		t.Errorf("played = %d, want 0", block.played)
	}
}

type blockingOutput struct {
	entered chan struct{}
	release chan struct{}
	played  int
}

func (b *blockingOutput) Resume(ctx context.Context) error {
	close(b.entered)
	<-b.release
	return nil
}

func (b *blockingOutput) Play([]int16) { b.played++ }
func (b *blockingOutput) Close() error  { return nil }

func TestRealClockStopSuppressesNextBeat(t *testing.T) {
	ctx := audio.NewFakeContext()
	s := New(func() (audio.Output, error) { return ctx.NewOutput(nil) }, Options{
		Bounds: tempo.Bounds{Low: 300, High: 300},
	})
	defer s.Close()

	mustStart(t, s)
	s.Stop()
	time.Sleep(400 * time.Millisecond)

	if n := len(ctx.Outputs()[0].Pulses()); n != 1 {
		t.Errorf("pulses = %d, want 1", n)
	}
}

func TestRealClockKeepsBeating(t *testing.T) {
	ctx := audio.NewFakeContext()
	s := New(func() (audio.Output, error) { return ctx.NewOutput(nil) }, Options{
		Bounds: tempo.Bounds{Low: 300, High: 300},
	})
	defer s.Close()

	mustStart(t, s)
	deadline := time.After(2 * time.Second)
	for len(ctx.Outputs()[0].Pulses()) < 3 {
		select {
		case <-ctx.Outputs()[0].Played():
		case <-deadline:
			t.Fatalf("only %d pulses after 2s at 300 BPM", len(ctx.Outputs()[0].Pulses()))
		}
	}
}
