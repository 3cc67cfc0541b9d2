package doctor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"metro/audio"
	"metro/click"
	"metro/hotkey"
)

type checker struct {
	in  *bufio.Reader
	out io.Writer

	newContext   func() (audio.Context, error)
	newHotkey    func() hotkey.Hotkey
	diagnose     func() (string, error)
	device       string
	resumeWait   time.Duration
	hotkeyWait   time.Duration
	pulseSpacing time.Duration
}

// Run executes interactive diagnostic checks and returns an exit code (0=all pass, 1=any fail).
func Run(device string) int {
	resetTerminal()
	setupInterruptHandler()

	c := &checker{
		in:           bufio.NewReader(os.Stdin),
		out:          os.Stdout,
		newContext:   audio.NewContext,
		newHotkey:    hotkey.New,
		diagnose:     hotkey.Diagnose,
		device:       device,
		resumeWait:   5 * time.Second,
		hotkeyWait:   10 * time.Second,
		pulseSpacing: 500 * time.Millisecond,
	}
	return c.run()
}

func (c *checker) run() int {
	fmt.Fprintln(c.out, "metro doctor - interactive system diagnostics")
	fmt.Fprintln(c.out, "==============================================")

	allPass := c.checkOutput()
	if !c.checkHotkey() {
		allPass = false
	}

	fmt.Fprintln(c.out)
	if allPass {
		fmt.Fprintln(c.out, "All checks passed!")
		return 0
	}
	fmt.Fprintln(c.out, "Some checks failed. See details above.")
	return 1
}

func (c *checker) checkOutput() bool {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "[1/2] Audio output")

	actx, err := c.newContext()
	if err != nil {
		fmt.Fprintf(c.out, "  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer actx.Close()

	devices, err := actx.Devices()
	if err != nil {
		fmt.Fprintf(c.out, "  FAIL: cannot list devices: %v\n", err)
		return false
	}
	if len(devices) == 0 {
		fmt.Fprintln(c.out, "  FAIL: no output devices found")
		return false
	}
	for _, d := range devices {
		tag := ""
		if audio.IsBluetooth(d.Name) {
			tag = " (Bluetooth: clicks will lag)"
		}
		fmt.Fprintf(c.out, "  found: %s%s\n", d.Name, tag)
	}

	device := audio.FindDevice(actx, c.device)
	out, err := actx.NewOutput(device)
	if err != nil {
		fmt.Fprintf(c.out, "  FAIL: cannot open output: %v\n", err)
		return false
	}
	defer out.Close()

	ctx, cancel := context.WithTimeout(context.Background(), c.resumeWait)
	defer cancel()
	if err := out.Resume(ctx); err != nil {
		fmt.Fprintf(c.out, "  FAIL: output did not resume: %v\n", err)
		return false
	}

	fmt.Fprint(c.out, "Press Enter to hear four clicks (tick, tock, tick, tock)...")
	c.in.ReadString('\n')

	accented := true
	for i := 0; i < 4; i++ {
		click.Play(out, accented)
		accented = !accented
		time.Sleep(c.pulseSpacing)
	}

	fmt.Fprint(c.out, "Did you hear them, the first and third higher? [y/n]: ")
	answer, _ := c.in.ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	if answer == "y" || answer == "yes" {
		fmt.Fprintln(c.out, "  PASS: clicks confirmed by user")
		return true
	}
	fmt.Fprintln(c.out, "  FAIL: clicks not confirmed")
	return false
}

func (c *checker) checkHotkey() bool {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "[2/2] Hotkey detection")

	info, err := c.diagnose()
	if err != nil {
		fmt.Fprintf(c.out, "  FAIL: %v\n", err)
		return false
	}
	fmt.Fprintf(c.out, "  %s\n", info)

	hk := c.newHotkey()
	if err := hk.Register(); err != nil {
		fmt.Fprintf(c.out, "  FAIL: could not register hotkey: %v\n", err)
		return false
	}
	defer hk.Unregister()

	fmt.Fprintf(c.out, "Press %s...\n", hotkey.Chord)
	select {
	case <-hk.Keydown():
		fmt.Fprintln(c.out, "  PASS: hotkey detected")
		select {
		case <-hk.Keyup():
		case <-time.After(5 * time.Second):
		}
		// Reading evdev can leave the terminal in raw mode
		resetTerminal()
		return true
	case <-time.After(c.hotkeyWait):
		fmt.Fprintln(c.out, "  FAIL: timeout waiting for hotkey")
		return false
	}
}
