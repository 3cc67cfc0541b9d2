//go:build windows

package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process, so every output shares it.
var (
	otoOnce  sync.Once
	otoCtx   *oto.Context
	otoReady chan struct{}
	otoErr   error
)

type otoContext struct{}

func NewContext() (Context, error) {
	return otoContext{}, nil
}

func (otoContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "default", Name: "system default"}}, nil
}

func (otoContext) NewOutput(_ *DeviceInfo) (Output, error) {
	otoOnce.Do(func() {
		otoCtx, otoReady, otoErr = oto.NewContext(&oto.NewContextOptions{
			SampleRate:   SampleRate,
			ChannelCount: Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   20 * time.Millisecond,
		})
	})
	if otoErr != nil {
		return nil, fmt.Errorf("oto: %w", otoErr)
	}
	return &otoOutput{}, nil
}

func (otoContext) Close() {}

type otoOutput struct {
	voice  voice
	mu     sync.Mutex
	player *oto.Player
	closed bool
}

// Read streams the current pulse followed by endless silence.
func (o *otoOutput) Read(p []byte) (int, error) {
	o.voice.readBytes(p)
	return len(p) &^ 1, nil
}

func (o *otoOutput) Resume(ctx context.Context) error {
	select {
	case <-otoReady:
	case <-ctx.Done():
		return ctx.Err()
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return fmt.Errorf("oto: output closed")
	}
	if err := otoCtx.Resume(); err != nil {
		return fmt.Errorf("oto resume: %w", err)
	}
	if o.player == nil {
		o.player = otoCtx.NewPlayer(o)
		o.player.SetBufferSize(SampleRate / 50 * 2)
		o.player.Play()
	}
	return nil
}

func (o *otoOutput) Play(samples []int16) {
	o.voice.load(samples)
}

func (o *otoOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	if o.player != nil {
		o.player.Pause()
		return o.player.Close()
	}
	return nil
}
