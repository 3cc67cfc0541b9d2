package audio

import (
	"context"
	"sync"
	"time"
)

// FakeContext stands in for the sound server in tests and headless mode.
type FakeContext struct {
	// ResumeErr, when set, is returned by every Resume.
	ResumeErr error
	// OutputErr, when set, makes NewOutput fail.
	OutputErr error

	mu      sync.Mutex
	outputs []*FakeOutput
}

func NewFakeContext() *FakeContext {
	return &FakeContext{}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewOutput(_ *DeviceInfo) (Output, error) {
	if f.OutputErr != nil {
		return nil, f.OutputErr
	}
	o := &FakeOutput{resumeErr: f.ResumeErr, played: make(chan struct{}, 1)}
	f.mu.Lock()
	f.outputs = append(f.outputs, o)
	f.mu.Unlock()
	return o, nil
}

// Outputs returns every output created so far.
func (f *FakeContext) Outputs() []*FakeOutput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeOutput(nil), f.outputs...)
}

type Pulse struct {
	Samples []int16
	At      time.Time
}

type FakeOutput struct {
	resumeErr error
	played    chan struct{}

	mu      sync.Mutex
	resumed int
	closed  bool
	pulses  []Pulse
}

func (o *FakeOutput) Resume(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.mu.Lock()
	o.resumed++
	o.mu.Unlock()
	return o.resumeErr
}

func (o *FakeOutput) Play(samples []int16) {
	o.mu.Lock()
	o.pulses = append(o.pulses, Pulse{Samples: samples, At: time.Now()})
	o.mu.Unlock()
	select {
	case o.played <- struct{}{}:
	default:
	}
}

func (o *FakeOutput) Close() error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	return nil
}

// Played is signaled after each Play; signals coalesce.
func (o *FakeOutput) Played() <-chan struct{} { return o.played }

func (o *FakeOutput) Pulses() []Pulse {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Pulse(nil), o.pulses...)
}

func (o *FakeOutput) Resumed() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.resumed
}

func (o *FakeOutput) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
