package main

import (
	"context"
	"time"

	"github.com/EngoEngine/ecs"
	"github.com/EngoEngine/engo"
)

// runTicker steps one frame per interval until ctx is done or the host
// reports it is finished
func runTicker(ctx context.Context, h *host, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !h.step(ctx) {
				return
			}
		}
	}
}

// raceScene lets engo own the frame cadence. engo runs headless, so no
// window or GL context is created.
type raceScene struct {
	ctx  context.Context
	host *host
}

func (s *raceScene) Type() string { return "RaceScene" }

func (s *raceScene) Preload() {}

func (s *raceScene) Setup(u engo.Updater) {
	world, _ := u.(*ecs.World)
	world.AddSystem(&frameDriver{ctx: s.ctx, host: s.host})
}

// frameDriver steps the host once per engo frame
type frameDriver struct {
	ctx  context.Context
	host *host
	done bool
}

func (d *frameDriver) Update(float32) {
	if d.done {
		return
	}
	if d.ctx.Err() != nil || !d.host.step(d.ctx) {
		d.done = true
		engo.Exit()
	}
}

func (d *frameDriver) Remove(ecs.BasicEntity) {}

func runEngo(ctx context.Context, h *host, fps int) {
	engo.Run(engo.RunOptions{
		Title:        "gaterace",
		Width:        800,
		Height:       600,
		HeadlessMode: true,
		FPSLimit:     fps,
	}, &raceScene{ctx: ctx, host: h})
}
