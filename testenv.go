package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"metro/audio"
	"metro/log"
	"metro/metronome"
	"metro/tempo"
)

// beatCounter lets WAIT block until a number of further beats has fired.
type beatCounter struct {
	mu   sync.Mutex
	n    uint64
	tick chan struct{}
}

func newBeatCounter() *beatCounter {
	return &beatCounter{tick: make(chan struct{})}
}

func (c *beatCounter) add() {
	c.mu.Lock()
	c.n++
	close(c.tick)
	c.tick = make(chan struct{})
	c.mu.Unlock()
}

func (c *beatCounter) snapshot() (uint64, <-chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n, c.tick
}

// wait returns once n beats beyond the current count have fired, or false
// after timeout.
func (c *beatCounter) wait(n uint64, timeout time.Duration) bool {
	target, _ := c.snapshot()
	target += n
	deadline := time.After(timeout)
	for {
		cur, tick := c.snapshot()
		if cur >= target {
			return true
		}
		select {
		case <-tick:
		case <-deadline:
			return false
		}
	}
}

const waitTimeout = 30 * time.Second

// testSession executes test-mode commands against a player. It writes one
// line per beat and one line per STATUS.
type testSession struct {
	p     *player
	out   io.Writer
	outMu sync.Mutex
	beats *beatCounter
	raw   tempo.Bounds
}

func newTestSession(p *player, out io.Writer, bounds tempo.Bounds) *testSession {
	ts := &testSession{p: p, out: out, beats: newBeatCounter(), raw: bounds}
	p.onBeat = func(b metronome.Beat) {
		accent := "-"
		if b.Accented {
			accent = "accent"
		}
		ts.printf("beat %d %d %s\n", b.Seq, b.Tempo, accent)
		ts.beats.add()
	}
	return ts
}

func (ts *testSession) printf(format string, args ...any) {
	ts.outMu.Lock()
	fmt.Fprintf(ts.out, format, args...)
	ts.outMu.Unlock()
}

// exec runs one command and reports whether the session should end.
func (ts *testSession) exec(line string) (quit bool) {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToUpper(cmd) {
	case "":
	case "START":
		if err := ts.p.Start(); err != nil {
			ts.printf("error %v\n", err)
		}
	case "STOP":
		ts.p.Stop()
	case "LOW":
		ts.raw.Low = tempo.Parse(arg)
		ts.p.SetBounds(ts.raw)
	case "HIGH":
		ts.raw.High = tempo.Parse(arg)
		ts.p.SetBounds(ts.raw)
	case "SLEEP":
		if ms, err := strconv.Atoi(arg); err == nil {
			time.Sleep(time.Duration(ms) * time.Millisecond)
		}
	case "WAIT":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			n = 1
		}
		if !ts.beats.wait(uint64(n), waitTimeout) {
			ts.printf("error wait timed out\n")
		}
	case "STATUS":
		st := ts.p.Status()
		current := "-"
		if st.CurrentBPM > 0 {
			current = strconv.Itoa(st.CurrentBPM)
		}
		ts.printf("status %s %s %d-%d %d\n", st.State, current, st.Range.Low, st.Range.High, st.Beats)
	case "QUIT":
		return true
	default:
		ts.printf("error unknown command %q\n", cmd)
	}
	return false
}

func (ts *testSession) run(in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ts.exec(scanner.Text()) {
			return
		}
	}
}

// runTestMode drives a player from stdin with no sound device attached.
func runTestMode(bounds tempo.Bounds) {
	defer log.Close()

	fakeCtx := audio.NewFakeContext()
	c := bounds.Clamp()
	log.SessionStart("fake", c.Low, c.High)

	p := newPlayer(outputFactory(fakeCtx, nil), bounds, nil)
	ts := newTestSession(p, os.Stdout, bounds)
	ts.run(os.Stdin)

	beats := p.Status().Beats
	p.Close()
	log.SessionEnd(beats)
}
