package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"metro/audio"
	"metro/doctor"
	"metro/hotkey"
	"metro/log"
	"metro/metronome"
	"metro/shutdown"
	"metro/tempo"
)

var version = "dev"

var activePlayer *player
var shutdownOnce sync.Once

func gracefulShutdown() {
	shutdownOnce.Do(func() {
		if activePlayer != nil {
			beats := activePlayer.Status().Beats
			activePlayer.Close()
			log.SessionEnd(beats)
		}
		log.Close()
		tuiMu.Lock()
		p := tuiProgram
		tuiMu.Unlock()
		if p != nil {
			p.Quit()
		}
		os.Exit(0)
	})
}

func deviceLineText(dev *audio.DeviceInfo) string {
	name := "system default"
	suffix := ""
	if dev != nil {
		name = dev.Name
		if audio.IsBluetooth(dev.Name) {
			suffix = " (BT! clicks will lag)"
		}
	}
	return "output: " + name + suffix
}

func deviceName(dev *audio.DeviceInfo) string {
	if dev == nil {
		return "default"
	}
	return dev.Name
}

func initCrashLog() {
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}

func run() {
	lowFlag := flag.Int("low", tempo.DefaultLow, "Lowest BPM (clamped to 20-300)")
	highFlag := flag.Int("high", tempo.DefaultHigh, "Highest BPM (clamped to low-300)")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven, no sound device)")
	setupFlag := flag.Bool("setup", false, "Select output device (otherwise uses system default)")
	deviceFlag := flag.String("device", "", "Use named output device")
	hotkeyFlag := flag.Bool("hotkey", false, "Toggle play/stop with global "+hotkey.Chord)
	renderFlag := flag.String("render", "", "Render a click track to this FLAC file and exit")
	beatsFlag := flag.Int("beats", 32, "Number of beats for -render")
	seedFlag := flag.Uint64("seed", 0, "Seed for -render tempo draws (0 = random)")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic for testing crash logging")
	flag.Parse()

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)

	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	initCrashLog()

	if *crashFlag {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	if *versionFlag {
		fmt.Printf("metro %s\n", version)
		os.Exit(0)
	}

	if *doctorFlag {
		os.Exit(doctor.Run(*deviceFlag))
	}

	bounds := tempo.Bounds{Low: *lowFlag, High: *highFlag}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	if *renderFlag != "" {
		err := runRender(*renderFlag, bounds, *beatsFlag, *seedFlag)
		log.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if *testFlag {
		runTestMode(bounds)
		return
	}

	ctx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Printf("Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer ctx.Close()

	var selectedDevice *audio.DeviceInfo
	if *deviceFlag != "" {
		selectedDevice = audio.FindDevice(ctx, *deviceFlag)
		if selectedDevice == nil {
			log.Warnf("device not found: %s", *deviceFlag)
			fmt.Printf("Warning: device %q not found, using default\n", *deviceFlag)
		}
	} else if *setupFlag {
		selectedDevice, err = audio.SelectDevice(ctx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
			selectedDevice = nil
		}
	}

	c := bounds.Clamp()
	log.SessionStart(deviceName(selectedDevice), c.Low, c.High)

	activePlayer = newPlayer(outputFactory(ctx, selectedDevice), bounds, nil)

	sigCtx, stopSignals := shutdown.Context(context.Background())
	defer stopSignals()
	go func() {
		<-sigCtx.Done()
		gracefulShutdown()
	}()

	if *hotkeyFlag {
		hk := hotkey.New()
		if err := hk.Register(); err != nil {
			log.Errorf("hotkey register error: %v", err)
			fmt.Printf("Warning: hotkey unavailable: %v\n", err)
		} else {
			defer hk.Unregister()
			go watchHotkey(hotkey.NewToggle(hk), activePlayer)
		}
	}

	if !*tuiFlag {
		runPlain(sigCtx, activePlayer)
		return
	}

	tuiMu.Lock()
	tuiProgram = NewTUIProgram(activePlayer, bounds)
	tuiMu.Unlock()

	go func() {
		<-tuiReady
		tuiSend(DeviceLineMsg{Text: deviceLineText(selectedDevice)})
		if *hotkeyFlag {
			tuiSend(HotkeyLineMsg{Text: "hotkey: " + hotkey.Chord + " toggles play/stop"})
		}
	}()

	if _, err := tuiProgram.Run(); err != nil {
		log.Errorf("TUI error: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	gracefulShutdown()
}

// watchHotkey toggles playback on every chord press.
func watchHotkey(tg *hotkey.Toggle, p *player) {
	for range tg.C() {
		log.Info("hotkey_toggle")
		if err := p.Toggle(); err != nil {
			tuiSend(startResultMsg{err: err})
		}
	}
}

// runPlain starts playback right away and prints each tempo on its own line
// until ctx is cancelled.
func runPlain(ctx context.Context, p *player) {
	p.onBeat = func(b metronome.Beat) {
		fmt.Println(b.Tempo)
	}
	r := p.Status().Range
	fmt.Printf("metro %s: %d-%d BPM, Ctrl+C to quit\n", version, r.Low, r.High)
	if err := p.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		if p.Status().State != metronome.Playing {
			os.Exit(1)
		}
	}
	<-ctx.Done()
	gracefulShutdown()
}
