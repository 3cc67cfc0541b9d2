//go:build linux

package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

type pulseContext struct {
	client *pulse.Client
}

func NewContext() (Context, error) {
	c, err := pulse.NewClient(pulse.ClientApplicationName("metro"))
	if err != nil {
		return nil, fmt.Errorf("pulse: %w", err)
	}
	return &pulseContext{client: c}, nil
}

func (p *pulseContext) Devices() ([]DeviceInfo, error) {
	sinks, err := p.client.ListSinks()
	if err != nil {
		return nil, fmt.Errorf("pulse list sinks: %w", err)
	}
	var devices []DeviceInfo
	for _, s := range sinks {
		devices = append(devices, DeviceInfo{
			ID:   s.ID(),
			Name: s.Name(),
		})
	}
	return devices, nil
}

func (p *pulseContext) NewOutput(device *DeviceInfo) (Output, error) {
	out := &pulseOutput{}

	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		out.voice.readInt16(buf)
		return len(buf), nil
	})

	opts := []pulse.PlaybackOption{
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(SampleRate),
		pulse.PlaybackLatency(0.03),
		pulse.PlaybackRawOption(func(s *proto.CreatePlaybackStream) {
			s.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm)}
		}),
	}
	if device != nil {
		sink, err := p.client.SinkByID(device.ID)
		if err == nil && sink != nil {
			opts = append(opts, pulse.PlaybackSink(sink))
		}
	}

	stream, err := p.client.NewPlayback(reader, opts...)
	if err != nil {
		return nil, fmt.Errorf("pulse playback: %w", err)
	}
	out.stream = stream
	return out, nil
}

func (p *pulseContext) Close() {
	p.client.Close()
}

type pulseOutput struct {
	voice  voice
	mu     sync.Mutex
	stream *pulse.PlaybackStream
	closed bool
}

// Resume uncorks the stream. The server keeps pulling silence between clicks
// so Play never has to restart it.
func (o *pulseOutput) Resume(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return fmt.Errorf("pulse: output closed")
	}
	if !o.stream.Running() {
		o.stream.Start()
	}
	if err := o.stream.Error(); err != nil {
		return fmt.Errorf("pulse resume: %w", err)
	}
	return nil
}

func (o *pulseOutput) Play(samples []int16) {
	o.voice.load(samples)
}

func (o *pulseOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	o.stream.Stop()
	o.stream.Close()
	return nil
}
