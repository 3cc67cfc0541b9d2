//go:build darwin

package audio

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

type malgoContext struct {
	ctx *malgo.AllocatedContext
}

func NewContext() (Context, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, err
	}
	return &malgoContext{ctx: ctx}, nil
}

func (m *malgoContext) Devices() ([]DeviceInfo, error) {
	devices, err := m.ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("malgo devices: %w", err)
	}
	var result []DeviceInfo
	for _, d := range devices {
		result = append(result, DeviceInfo{
			ID:   hex.EncodeToString(d.ID[:]),
			Name: d.Name(),
		})
	}
	return result, nil
}

func (m *malgoContext) NewOutput(device *DeviceInfo) (Output, error) {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = Channels
	deviceConfig.SampleRate = SampleRate

	if device != nil {
		idBytes, err := hex.DecodeString(device.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid device ID: %w", err)
		}
		var devID malgo.DeviceID
		copy(devID[:], idBytes)
		deviceConfig.Playback.DeviceID = devID.Pointer()
	}

	out := &malgoOutput{ctx: m.ctx, config: deviceConfig}
	if err := out.initDevice(); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *malgoContext) Close() {
	m.ctx.Uninit()
	m.ctx.Free()
}

type malgoOutput struct {
	voice  voice
	ctx    *malgo.AllocatedContext
	config malgo.DeviceConfig

	mu     sync.Mutex
	device *malgo.Device
}

func (o *malgoOutput) initDevice() error {
	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, _ uint32) {
			o.voice.readBytes(pOutput)
		},
	}
	dev, err := malgo.InitDevice(o.ctx.Context, o.config, callbacks)
	if err != nil {
		return fmt.Errorf("malgo init device: %w", err)
	}
	o.device = dev
	return nil
}

func (o *malgoOutput) Resume(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.device == nil {
		return fmt.Errorf("malgo: output closed")
	}
	if o.device.IsStarted() {
		return nil
	}
	if err := o.device.Start(); err != nil {
		// Recreate once; the device goes stale across sleep/wake.
		o.device.Uninit()
		if err := o.initDevice(); err != nil {
			o.device = nil
			return err
		}
		if err := o.device.Start(); err != nil {
			return fmt.Errorf("malgo start: %w", err)
		}
	}
	return nil
}

func (o *malgoOutput) Play(samples []int16) {
	o.voice.load(samples)
}

func (o *malgoOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.device == nil {
		return nil
	}
	o.device.Uninit()
	o.device = nil
	return nil
}
