package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	return tmp
}

func TestResolveDirFlag(t *testing.T) {
	got, err := ResolveDir("/tmp/mylog")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/mylog" {
		t.Errorf("got %q, want /tmp/mylog", got)
	}
}

func TestResolveDirFlagRelative(t *testing.T) {
	got, err := ResolveDir("logs")
	if err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(wd, "logs")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveDirEnv(t *testing.T) {
	t.Setenv("METRO_LOG_PATH", "/tmp/metro-env-log")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/metro-env-log" {
		t.Errorf("got %q, want /tmp/metro-env-log", got)
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv("METRO_LOG_PATH", "")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "metro") {
		t.Errorf("default dir %q does not mention metro", got)
	}
}

func TestInitCreatesFiles(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{diagFileName, beatFileName} {
		if _, err := os.Stat(filepath.Join(tmp, name)); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
}

func TestBeatLine(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	Beat(3, 120, true, 500*time.Millisecond)
	Beat(4, 90, false, 666666666)

	data, err := os.ReadFile(filepath.Join(tmp, beatFileName))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), data)
	}
	fields := strings.Split(lines[0], "\t")
	if len(fields) != 6 {
		t.Fatalf("expected 6 tab-separated fields, got %q", lines[0])
	}
	if fields[2] != "3" || fields[3] != "120" || fields[4] != "accent" || fields[5] != "500.0ms" {
		t.Errorf("unexpected fields %q", fields)
	}
	if !strings.Contains(lines[1], "\t90\t-\t666.7ms") {
		t.Errorf("unexpected second line %q", lines[1])
	}
}

func TestEventsReachDiagnostics(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	SessionStart("fake", 60, 120)
	BoundsChange(150, 100, 150, 150)
	PlaybackStart(150, 150)
	PlaybackStop(7)
	Render("/tmp/track.flac", 8, 120, 120, 176400, 12*time.Millisecond)
	SessionEnd(7)
	Close()

	data, err := os.ReadFile(filepath.Join(tmp, diagFileName))
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{"session_start", "bounds_change", "raw_high=100", "playback_start", "playback_stop", "beats=7", "render", "path=/tmp/track.flac", "samples=176400", "session_end"} {
		if !strings.Contains(out, want) {
			t.Errorf("diagnostics missing %q:\n%s", want, out)
		}
	}
}

func TestNoopBeforeInit(t *testing.T) {
	setupLogDir(t)
	Info("ignored")
	Beat(1, 60, true, time.Second)
	SessionEnd(0)
}

func TestCloseIdempotent(t *testing.T) {
	setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Close()
	Close() // should not panic
}
