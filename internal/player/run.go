package player

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"

	"pkt.systems/agentrec/schema"
)

// Run plays the recording on a display until it finishes, the user quits or
// ctx is canceled. The display is released on every return path.
func (p *Player) Run(ctx context.Context) error {
	display, err := p.opts.Display()
	if err != nil {
		return &schema.PlaybackError{Msg: "open terminal", Err: err}
	}
	if err := display.Init(); err != nil {
		return &schema.PlaybackError{Msg: "initialise terminal", Err: err}
	}
	defer display.Fini()

	done := make(chan struct{})
	defer close(done)
	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := display.PollEvent()
			select {
			case events <- ev:
			case <-done:
				return
			}
			if ev == nil {
				return
			}
		}
	}()

	p.log.Info("playback started", "duration", p.duration, "events", len(p.times), "speed", p.speed)
	p.Start(p.opts.Now())
	p.Paint(display)
	timer := time.NewTimer(p.NextWait())
	defer timer.Stop()

	for p.state != StateFinished {
		select {
		case <-ctx.Done():
			p.log.Info("playback canceled", "position", p.clock)
			return nil
		case ev := <-events:
			if ev == nil {
				return &schema.PlaybackError{Msg: "terminal device lost"}
			}
			switch ev := ev.(type) {
			case *tcell.EventKey:
				p.Tick(p.opts.Now())
				p.Do(KeyAction(ev))
			case *tcell.EventResize:
				display.Sync()
			}
		case <-timer.C:
		}
		p.Tick(p.opts.Now())
		p.Paint(display)
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(p.NextWait())
	}
	p.log.Info("playback finished", "position", p.clock, "duration", p.duration)
	return nil
}
