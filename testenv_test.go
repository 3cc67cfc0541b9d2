package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"metro/audio"
	"metro/metronome"
	"metro/tempo"
)

func newSession(t *testing.T, b tempo.Bounds, clock metronome.Clock) (*testSession, *bytes.Buffer) {
	t.Helper()
	p := newPlayer(outputFactory(audio.NewFakeContext(), nil), b, clock)
	t.Cleanup(p.Close)
	var out bytes.Buffer
	return newTestSession(p, &out, b), &out
}

func TestTestSessionCommands(t *testing.T) {
	clock := metronome.NewManualClock()
	ts, out := newSession(t, tempo.Bounds{Low: 150, High: 150}, clock)

	ts.run(strings.NewReader("START\nSTATUS\nSTOP\nSTATUS\nQUIT\nSTART\n"))

	want := "beat 1 150 accent\n" +
		"status playing 150 150-150 1\n" +
		"status stopped - 150-150 1\n"
	if got := out.String(); got != want {
		t.Errorf("output:\n%s\nwant:\n%s", got, want)
	}
}

func TestTestSessionBounds(t *testing.T) {
	ts, out := newSession(t, tempo.Bounds{Low: 60, High: 120}, metronome.NewManualClock())

	ts.exec("LOW 400")
	ts.exec("STATUS")
	ts.exec("HIGH nope")
	ts.exec("low 90")
	ts.exec("STATUS")

	want := "status stopped - 300-300 0\n" +
		"status stopped - 90-90 0\n"
	if got := out.String(); got != want {
		t.Errorf("output:\n%s\nwant:\n%s", got, want)
	}
}

func TestTestSessionUnknownCommand(t *testing.T) {
	ts, out := newSession(t, tempo.Bounds{}, metronome.NewManualClock())
	if ts.exec("JUMP") {
		t.Fatal("unknown command ended the session")
	}
	if !strings.HasPrefix(out.String(), "error unknown command") {
		t.Errorf("output = %q", out.String())
	}
}

func TestTestSessionWait(t *testing.T) {
	ts, out := newSession(t, tempo.Bounds{Low: 300, High: 300}, nil)

	ts.exec("START")
	ts.exec("WAIT 2")
	ts.exec("STOP")

	ts.outMu.Lock()
	text := out.String()
	ts.outMu.Unlock()
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) < 3 {
		t.Fatalf("got %d lines, want at least 3:\n%s", len(lines), text)
	}
	if lines[0] != "beat 1 300 accent" || lines[1] != "beat 2 300 -" {
		t.Errorf("lines = %q", lines[:2])
	}
}

func TestBeatCounterTimeout(t *testing.T) {
	c := newBeatCounter()
	if c.wait(1, 10*time.Millisecond) {
		t.Fatal("wait succeeded with no beats")
	}
	go func() {
		time.Sleep(5 * time.Millisecond)
		c.add()
	}()
	if !c.wait(1, time.Second) {
		t.Fatal("wait missed a beat")
	}
}
