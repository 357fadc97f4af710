// Package player replays a recording against the virtual terminal on a
// virtual clock that runs at a variable speed.
package player

import (
	"context"
	"sort"
	"time"

	"pkt.systems/agentrec/internal/marker"
	"pkt.systems/agentrec/internal/vt"
	"pkt.systems/agentrec/schema"
	"pkt.systems/pslog"
)

// State is the playback state.
type State int

const (
	StateLoading State = iota
	StatePlaying
	StatePaused
	StateSeeking
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateSeeking:
		return "seeking"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

const (
	// MinSpeed and MaxSpeed bound the speed multiplier.
	MinSpeed = 1.0 / 16
	MaxSpeed = 16.0
)

// Options tunes a Player. Zero values take the package defaults.
type Options struct {
	Speed              float64
	SpeedStep          float64
	SeekStep           float64
	CheckpointInterval int
	MaxCheckpoints     int
	MaxTick            time.Duration
	Display            func() (Display, error)
	Now                func() time.Time
	Logger             pslog.Logger
}

// OptionsFromConfig converts the service player settings.
func OptionsFromConfig(cfg schema.PlayerConfig) Options {
	return Options{
		Speed:              cfg.Speed,
		SpeedStep:          cfg.SpeedStep,
		SeekStep:           cfg.SeekStep,
		CheckpointInterval: cfg.CheckpointInterval,
		MaxCheckpoints:     cfg.MaxCheckpoints,
		MaxTick:            time.Duration(cfg.MaxTickMillis) * time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	if o.Speed <= 0 {
		o.Speed = 1
	}
	o.Speed = clampSpeed(o.Speed)
	if o.SpeedStep <= 1 {
		o.SpeedStep = schema.DefaultSpeedStep
	}
	if o.SeekStep <= 0 {
		o.SeekStep = schema.DefaultSeekStep
	}
	if o.CheckpointInterval == 0 {
		o.CheckpointInterval = schema.DefaultCheckpointInterval
	}
	if o.MaxCheckpoints <= 0 {
		o.MaxCheckpoints = schema.DefaultMaxCheckpoints
	}
	if o.MaxTick <= 0 {
		o.MaxTick = schema.DefaultMaxTickMillis * time.Millisecond
	}
	if o.Display == nil {
		o.Display = newScreenDisplay
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = pslog.Ctx(context.Background())
	}
	return o
}

type checkpoint struct {
	// index is the number of events applied when the snapshot was taken.
	index int
	term  *vt.Terminal
}

// Player drives a recording through the terminal emulator. It is not safe
// for concurrent use; Run owns it for the whole session.
type Player struct {
	rec         *schema.Recording
	times       []float64
	duration    float64
	markers     []schema.MarkerEntry
	term        *vt.Terminal
	next        int
	clock       float64
	speed       float64
	state       State
	lastWall    time.Time
	checkpoints []checkpoint
	interval    int // checkpoint spacing; doubles when the table is thinned
	opts        Options
	log         pslog.Logger
}

// New prepares a player for rec. The recording must not be modified while
// the player uses it.
func New(rec *schema.Recording, opts Options) *Player {
	opts = opts.withDefaults()
	p := &Player{
		rec:      rec,
		times:    make([]float64, len(rec.Events)),
		speed:    opts.Speed,
		state:    StateLoading,
		opts:     opts,
		log:      opts.Logger,
		interval: opts.CheckpointInterval,
	}
	var cum float64
	for i := range rec.Events {
		cum += rec.Events[i].Time
		p.times[i] = cum
	}
	p.duration = cum
	p.markers = marker.List(rec)
	p.term = vt.New(rec.Header.Width, rec.Header.Height)
	return p
}

// Start begins playback at now.
func (p *Player) Start(now time.Time) {
	p.lastWall = now
	p.setState(StatePlaying)
	p.Tick(now)
}

// Tick advances the virtual clock to now and applies every due event.
func (p *Player) Tick(now time.Time) {
	if p.state == StatePlaying && !p.lastWall.IsZero() {
		if d := now.Sub(p.lastWall); d > 0 {
			p.clock = min(p.clock+d.Seconds()*p.speed, p.duration)
		}
	}
	p.lastWall = now
	if p.state != StatePlaying {
		return
	}
	p.applyThrough(p.clock)
	if p.next >= len(p.times) {
		p.clock = p.duration
		p.setState(StateFinished)
	}
}

// NextWait returns how long the caller may sleep before the next Tick.
func (p *Player) NextWait() time.Duration {
	if p.state != StatePlaying || p.next >= len(p.times) {
		return p.opts.MaxTick
	}
	due := time.Duration((p.times[p.next] - p.clock) / p.speed * float64(time.Second))
	if due < 0 {
		return 0
	}
	return min(due, p.opts.MaxTick)
}

// applyThrough applies events whose cumulative time is <= t.
func (p *Player) applyThrough(t float64) {
	for p.next < len(p.times) && p.times[p.next] <= t {
		p.apply(p.next)
		p.next++
	}
}

func (p *Player) apply(i int) {
	ev := &p.rec.Events[i]
	switch ev.Kind {
	case schema.KindOutput:
		p.term.Feed([]byte(ev.Data))
	case schema.KindResize:
		cols, rows, err := schema.ParseResize(ev.Data)
		if err != nil {
			p.log.Debug("resize ignored", "index", i, "err", err)
			break
		}
		p.term.Resize(cols, rows)
	}
	if p.interval <= 0 || (i+1)%p.interval != 0 {
		return
	}
	if n := len(p.checkpoints); n > 0 && p.checkpoints[n-1].index >= i+1 {
		return
	}
	p.checkpoints = append(p.checkpoints, checkpoint{index: i + 1, term: p.term.Clone()})
	if len(p.checkpoints) > p.opts.MaxCheckpoints {
		p.thinCheckpoints()
	}
}

// thinCheckpoints keeps the checkpoints on multiples of twice the current
// interval and doubles the interval.
func (p *Player) thinCheckpoints() {
	p.interval *= 2
	kept := p.checkpoints[:0]
	for _, cp := range p.checkpoints {
		if cp.index%p.interval == 0 {
			kept = append(kept, cp)
		}
	}
	clear(p.checkpoints[len(kept):])
	p.checkpoints = kept
	p.log.Debug("checkpoints thinned", "interval", p.interval, "kept", len(kept))
}

// Seek moves playback to target seconds. Events up to and including target
// are applied; earlier positions are rebuilt from the nearest checkpoint.
// Playing and Paused are kept; a finished session resumes paused.
func (p *Player) Seek(target float64) {
	target = max(0, min(target, p.duration))
	resume := p.state
	if resume != StatePlaying {
		resume = StatePaused
	}
	p.setState(StateSeeking)
	idx := sort.Search(len(p.times), func(i int) bool { return p.times[i] > target })
	from := p.next
	if idx < p.next {
		from = p.restore(idx)
	}
	for p.next < idx {
		p.apply(p.next)
		p.next++
	}
	p.clock = target
	p.log.Debug("seek", "target", target, "index", idx, "replayed", idx-from)
	p.setState(resume)
}

// restore rewinds the emulator to the latest state at or before idx and
// returns the index replay starts from.
func (p *Player) restore(idx int) int {
	i := sort.Search(len(p.checkpoints), func(i int) bool { return p.checkpoints[i].index > idx }) - 1
	if i >= 0 {
		cp := p.checkpoints[i]
		p.term = cp.term.Clone()
		p.next = cp.index
		return p.next
	}
	p.term = vt.New(p.rec.Header.Width, p.rec.Header.Height)
	p.next = 0
	return 0
}

// SeekBy seeks relative to the current position.
func (p *Player) SeekBy(delta float64) {
	p.Seek(p.clock + delta)
}

// Restart seeks to the beginning.
func (p *Player) Restart() {
	p.Seek(0)
}

// TogglePause switches between Playing and Paused.
func (p *Player) TogglePause() {
	switch p.state {
	case StatePlaying:
		p.setState(StatePaused)
	case StatePaused:
		p.setState(StatePlaying)
	}
}

// Step applies the next event while paused.
func (p *Player) Step() {
	if p.state != StatePaused || p.next >= len(p.times) {
		return
	}
	p.clock = p.times[p.next]
	p.apply(p.next)
	p.next++
}

// Faster multiplies the speed by the configured step.
func (p *Player) Faster() {
	p.speed = clampSpeed(p.speed * p.opts.SpeedStep)
}

// Slower divides the speed by the configured step.
func (p *Player) Slower() {
	p.speed = clampSpeed(p.speed / p.opts.SpeedStep)
}

func clampSpeed(v float64) float64 {
	return max(MinSpeed, min(v, MaxSpeed))
}

// NextMarker seeks to the first marker after the current position.
func (p *Player) NextMarker() bool {
	m, ok := marker.Next(p.markers, p.clock)
	if ok {
		p.Seek(m.Time)
	}
	return ok
}

// PrevMarker seeks to the last marker before the current position.
func (p *Player) PrevMarker() bool {
	m, ok := marker.Prev(p.markers, p.clock)
	if ok {
		p.Seek(m.Time)
	}
	return ok
}

// Quit ends the session.
func (p *Player) Quit() {
	p.setState(StateFinished)
}

// Do performs a key action.
func (p *Player) Do(a Action) {
	switch a {
	case ActionQuit:
		p.Quit()
	case ActionTogglePause:
		p.TogglePause()
	case ActionFaster:
		p.Faster()
	case ActionSlower:
		p.Slower()
	case ActionNextMarker:
		p.NextMarker()
	case ActionPrevMarker:
		p.PrevMarker()
	case ActionSeekForward:
		p.SeekBy(p.opts.SeekStep)
	case ActionSeekBackward:
		p.SeekBy(-p.opts.SeekStep)
	case ActionStep:
		p.Step()
	case ActionRestart:
		p.Restart()
	}
}

func (p *Player) setState(s State) {
	if p.state == s {
		return
	}
	p.log.Debug("player state", "from", p.state.String(), "to", s.String(), "position", p.clock)
	p.state = s
}

// State returns the current state.
func (p *Player) State() State { return p.state }

// Position returns the virtual clock in seconds.
func (p *Player) Position() float64 { return p.clock }

// Duration returns the recording length in seconds.
func (p *Player) Duration() float64 { return p.duration }

// Speed returns the current multiplier.
func (p *Player) Speed() float64 { return p.speed }

// Applied returns how many events have been applied.
func (p *Player) Applied() int { return p.next }

// Terminal returns the emulator holding the current screen.
func (p *Player) Terminal() *vt.Terminal { return p.term }

// CurrentMarker returns the label of the latest marker at or before the
// current position.
func (p *Player) CurrentMarker() string {
	label := ""
	for _, m := range p.markers {
		if m.Time > p.clock+marker.Epsilon {
			break
		}
		label = m.Label
	}
	return label
}
