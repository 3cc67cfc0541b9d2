package main

import (
	"context"
	"time"

	"metro/audio"
	"metro/log"
	"metro/metronome"
	"metro/tempo"
)

const resumeTimeout = 5 * time.Second

// player is what the TUI, the hotkey and test mode drive. It owns the
// scheduler and mirrors its events into the logs and the TUI.
type player struct {
	sched *metronome.Scheduler

	// onBeat, when set, sees every beat after it is logged.
	onBeat func(metronome.Beat)
}

func newPlayer(newOutput metronome.OutputFactory, bounds tempo.Bounds, clock metronome.Clock) *player {
	p := &player{}
	p.sched = metronome.New(newOutput, metronome.Options{
		Bounds:  bounds,
		Clock:   clock,
		OnBeat:  p.beat,
		OnState: p.state,
	})
	return p
}

// outputFactory opens the chosen device on the first Start.
func outputFactory(ctx audio.Context, device *audio.DeviceInfo) metronome.OutputFactory {
	return func() (audio.Output, error) {
		return ctx.NewOutput(device)
	}
}

func (p *player) beat(b metronome.Beat) {
	log.Beat(b.Seq, b.Tempo, b.Accented, b.Interval)
	tuiSend(BeatMsg{Tempo: b.Tempo})
	if p.onBeat != nil {
		p.onBeat(b)
	}
}

func (p *player) state(st metronome.State) {
	status := p.sched.Status()
	switch st {
	case metronome.Playing:
		log.PlaybackStart(status.Range.Low, status.Range.High)
	case metronome.Stopped:
		log.PlaybackStop(status.Beats)
	}
	tuiSend(StateMsg{State: st})
}

func (p *player) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), resumeTimeout)
	defer cancel()
	if err := p.sched.Start(ctx); err != nil {
		log.Errorf("start error: %v", err)
		return err
	}
	return nil
}

func (p *player) Stop() {
	p.sched.Stop()
}

func (p *player) Toggle() error {
	if p.sched.Status().State == metronome.Playing {
		p.Stop()
		return nil
	}
	return p.Start()
}

func (p *player) SetBounds(raw tempo.Bounds) {
	if raw == p.sched.Bounds() {
		return
	}
	p.sched.SetBounds(raw)
	c := raw.Clamp()
	log.BoundsChange(raw.Low, raw.High, c.Low, c.High)
}

func (p *player) Status() metronome.Status {
	return p.sched.Status()
}

func (p *player) Close() {
	p.sched.Close()
}
