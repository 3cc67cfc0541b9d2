package audio

import (
	"context"
	"strings"
)

const (
	SampleRate = 44100
	Channels   = 1
)

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth guesses from the device name whether output goes over
// Bluetooth, where clicks arrive late by the codec delay.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

// Context is a connection to the platform sound server.
type Context interface {
	Devices() ([]DeviceInfo, error)
	NewOutput(device *DeviceInfo) (Output, error)
	Close()
}

// Output is a live playback stream. It starts suspended: nothing is heard
// until Resume returns. Play queues a mono 16-bit pulse at SampleRate and
// never blocks on the device; a new pulse replaces one still sounding.
type Output interface {
	Resume(ctx context.Context) error
	Play(samples []int16)
	Close() error
}
