package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	diagFileName = "diagnostics_log.txt"
	beatFileName = "beats_log.txt"
)

var (
	diagLog  zerolog.Logger
	diagFile *os.File
	beatFile *os.File
	logMu    sync.Mutex
	logReady bool
	pid      int
	dir      string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absPath(flagPath)
	}

	// Priority 2: METRO_LOG_PATH environment variable
	if envPath := os.Getenv("METRO_LOG_PATH"); envPath != "" {
		return absPath(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagFile, err = os.OpenFile(filepath.Join(dir, diagFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	beatFile, err = os.OpenFile(filepath.Join(dir, beatFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if beatFile != nil {
		beatFile.Close()
		beatFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func SessionStart(device string, low, high int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("device", device).
		Int("low", low).
		Int("high", high).
		Msg("session_start")
}

func SessionEnd(beats uint64) {
	if !logReady {
		return
	}
	diagLog.Info().
		Uint64("beats", beats).
		Msg("session_end")
}

func PlaybackStart(low, high int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("low", low).
		Int("high", high).
		Msg("playback_start")
}

func PlaybackStop(beats uint64) {
	if !logReady {
		return
	}
	diagLog.Info().
		Uint64("beats", beats).
		Msg("playback_stop")
}

// Render records an offline click-track export.
func Render(path string, beats, low, high, samples int, elapsed time.Duration) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("path", path).
		Int("beats", beats).
		Int("low", low).
		Int("high", high).
		Int("samples", samples).
		Dur("elapsed", elapsed).
		Msg("render")
}

// BoundsChange records an edit to the tempo fields, raw and as clamped.
func BoundsChange(rawLow, rawHigh, low, high int) {
	if !logReady {
		return
	}
	ev := diagLog.Info().
		Int("low", low).
		Int("high", high)
	if rawLow != low || rawHigh != high {
		ev = ev.Int("raw_low", rawLow).Int("raw_high", rawHigh)
	}
	ev.Msg("bounds_change")
}

// Beat appends one line to the beat log: time, pid, sequence, BPM and
// accent, tab separated.
func Beat(seq uint64, bpm int, accented bool, interval time.Duration) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	if beatFile == nil {
		return
	}
	accent := "-"
	if accented {
		accent = "accent"
	}
	line := fmt.Sprintf("%s\t[%d]\t%d\t%d\t%s\t%.1fms\n",
		time.Now().Format("2006-01-02 15:04:05.000"), pid, seq, bpm, accent,
		float64(interval)/float64(time.Millisecond))
	beatFile.WriteString(line)
}
