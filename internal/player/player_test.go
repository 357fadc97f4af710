package player

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"pkt.systems/agentrec/internal/vt"
	"pkt.systems/agentrec/schema"
)

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func recording(cols, rows int, events ...schema.Event) *schema.Recording {
	return &schema.Recording{
		Header: schema.Header{Version: schema.CurrentVersion, Width: cols, Height: rows},
		Events: events,
	}
}

func out(dt float64, data string) schema.Event {
	return schema.Event{Time: dt, Kind: schema.KindOutput, Data: data}
}

func mark(dt float64, label string) schema.Event {
	return schema.Event{Time: dt, Kind: schema.KindMarker, Data: label}
}

func at(d time.Duration) time.Time {
	return epoch.Add(d)
}

func TestTickAppliesDueEvents(t *testing.T) {
	rec := recording(10, 2, out(0.5, "a"), out(0.5, "b"), out(1, "c"))
	p := New(rec, Options{})
	p.Start(at(0))
	if p.Applied() != 0 || p.State() != StatePlaying {
		t.Fatalf("after start: applied=%d state=%s", p.Applied(), p.State())
	}
	p.Tick(at(600 * time.Millisecond))
	if got := p.Terminal().Lines()[0]; got != "a" {
		t.Fatalf("at 0.6s: got %q", got)
	}
	p.Tick(at(time.Second))
	if got := p.Terminal().Lines()[0]; got != "ab" {
		t.Fatalf("at 1s: got %q", got)
	}
	p.Tick(at(5 * time.Second))
	if got := p.Terminal().Lines()[0]; got != "abc" {
		t.Fatalf("at 5s: got %q", got)
	}
	if p.State() != StateFinished {
		t.Fatalf("expected finished, got %s", p.State())
	}
	if p.Position() != 2 {
		t.Fatalf("position should stop at duration, got %v", p.Position())
	}
}

func TestSpeedScalesClock(t *testing.T) {
	rec := recording(10, 2, out(10, "x"))
	p := New(rec, Options{Speed: 2})
	p.Start(at(0))
	p.Tick(at(time.Second))
	if p.Position() != 2 {
		t.Fatalf("expected 2s of virtual time, got %v", p.Position())
	}
	p.Faster()
	p.Tick(at(2 * time.Second))
	if p.Position() != 4.5 {
		t.Fatalf("expected 4.5s after speeding up, got %v", p.Position())
	}
	if got := p.Terminal().Lines()[0]; got != "" {
		t.Fatalf("speed must not apply events early, got %q", got)
	}
}

func TestSpeedClamp(t *testing.T) {
	p := New(recording(10, 2), Options{})
	for range 100 {
		p.Faster()
	}
	if p.Speed() != MaxSpeed {
		t.Fatalf("expected max speed, got %v", p.Speed())
	}
	for range 200 {
		p.Slower()
	}
	if p.Speed() != MinSpeed {
		t.Fatalf("expected min speed, got %v", p.Speed())
	}
}

func TestPauseStopsClock(t *testing.T) {
	rec := recording(10, 2, out(3, "x"))
	p := New(rec, Options{})
	p.Start(at(0))
	p.Tick(at(time.Second))
	p.TogglePause()
	p.Tick(at(10 * time.Second))
	if p.Position() != 1 || p.State() != StatePaused {
		t.Fatalf("paused clock moved: position=%v state=%s", p.Position(), p.State())
	}
	p.TogglePause()
	p.Tick(at(11 * time.Second))
	if p.Position() != 2 {
		t.Fatalf("expected clock to resume from 1s, got %v", p.Position())
	}
}

func TestEmptyRecordingFinishes(t *testing.T) {
	p := New(recording(10, 2), Options{})
	p.Start(at(0))
	if p.State() != StateFinished {
		t.Fatalf("expected finished, got %s", p.State())
	}
}

func TestNextWait(t *testing.T) {
	rec := recording(10, 2, out(0.01, "a"), out(5, "b"))
	p := New(rec, Options{MaxTick: 50 * time.Millisecond})
	if got := p.NextWait(); got != 50*time.Millisecond {
		t.Fatalf("before start: got %v", got)
	}
	p.Start(at(0))
	if got := p.NextWait(); got != 10*time.Millisecond {
		t.Fatalf("expected wait until next event, got %v", got)
	}
	p.Tick(at(20 * time.Millisecond))
	if got := p.NextWait(); got != 50*time.Millisecond {
		t.Fatalf("expected wait capped at max tick, got %v", got)
	}
}

func TestStepWhilePaused(t *testing.T) {
	rec := recording(10, 2, out(1, "a"), out(1, "b"))
	p := New(rec, Options{})
	p.Start(at(0))
	p.Step()
	if p.Applied() != 0 {
		t.Fatalf("step must be ignored while playing")
	}
	p.TogglePause()
	p.Step()
	if p.Applied() != 1 || p.Position() != 1 || p.Terminal().Lines()[0] != "a" {
		t.Fatalf("unexpected step result: applied=%d position=%v", p.Applied(), p.Position())
	}
	p.Step()
	p.Step()
	if p.Applied() != 2 || p.State() != StatePaused {
		t.Fatalf("unexpected state after stepping past the end: applied=%d state=%s", p.Applied(), p.State())
	}
}

func TestSeekStates(t *testing.T) {
	rec := recording(10, 2, out(1, "a"), out(1, "b"))
	p := New(rec, Options{})
	p.Start(at(0))
	p.Seek(1.5)
	if p.State() != StatePlaying || p.Terminal().Lines()[0] != "a" {
		t.Fatalf("seek while playing: state=%s screen=%q", p.State(), p.Terminal().String())
	}
	p.TogglePause()
	p.Seek(0)
	if p.State() != StatePaused || p.Terminal().Lines()[0] != "" {
		t.Fatalf("seek while paused: state=%s screen=%q", p.State(), p.Terminal().String())
	}
	p.TogglePause()
	p.Tick(at(10 * time.Second))
	if p.State() != StateFinished {
		t.Fatalf("expected finished, got %s", p.State())
	}
	p.Seek(-4)
	if p.State() != StatePaused || p.Position() != 0 {
		t.Fatalf("seek after finish: state=%s position=%v", p.State(), p.Position())
	}
	p.Seek(99)
	if p.Position() != 2 || p.Terminal().Lines()[0] != "ab" {
		t.Fatalf("seek past end: position=%v screen=%q", p.Position(), p.Terminal().String())
	}
}

var fragments = []string{
	"hello ", "world", "\r\n", "\x1b[", "31m", "\x1b[0m", "\x1b[2J", "\x1b[H",
	"\x1b[5;3H", "é", "\xe2\x94", "\x80", "wrap this text across the line ",
	"\t", "\x1b[?1049h", "\x1b[?1049l", "\x1b[K", "\x1b[1;44m", "\x1b]0;ti", "tle\a",
	"\x1b[2;5r", "\x1b[3L", "\x1b[M", "日本", "\b",
}

func randomRecording(seed uint64, n int) *schema.Recording {
	rng := rand.New(rand.NewPCG(seed, 7))
	rec := recording(20, 5)
	for i := 0; i < n; i++ {
		dt := float64(rng.IntN(200)) / 1000
		switch rng.IntN(40) {
		case 0:
			sizes := []string{"20x5", "30x6", "12x3"}
			rec.Events = append(rec.Events, schema.Event{Time: dt, Kind: schema.KindResize, Data: sizes[rng.IntN(len(sizes))]})
		case 1:
			rec.Events = append(rec.Events, mark(dt, "m"))
		case 2:
			rec.Events = append(rec.Events, schema.Event{Time: dt, Kind: schema.KindInput, Data: "ls\r"})
		default:
			var b strings.Builder
			for k := rng.IntN(4); k >= 0; k-- {
				b.WriteString(fragments[rng.IntN(len(fragments))])
			}
			rec.Events = append(rec.Events, out(dt, b.String()))
		}
	}
	return rec
}

// replay builds the screen at time through from an empty terminal.
func replay(t *testing.T, rec *schema.Recording, through float64) *vt.Terminal {
	t.Helper()
	term := vt.New(rec.Header.Width, rec.Header.Height)
	var cum float64
	for _, ev := range rec.Events {
		cum += ev.Time
		if cum > through {
			break
		}
		switch ev.Kind {
		case schema.KindOutput:
			term.Feed([]byte(ev.Data))
		case schema.KindResize:
			cols, rows, err := schema.ParseResize(ev.Data)
			if err != nil {
				t.Fatalf("resize: %v", err)
			}
			term.Resize(cols, rows)
		}
	}
	return term
}

func TestSeekMatchesReplayFromZero(t *testing.T) {
	for _, interval := range []int{-1, 1, 7, 1000} {
		rec := randomRecording(uint64(interval+10), 400)
		p := New(rec, Options{CheckpointInterval: interval})
		p.Start(at(0))
		p.TogglePause()
		p.Seek(p.Duration())
		rng := rand.New(rand.NewPCG(99, uint64(interval+10)))
		for i := 0; i < 60; i++ {
			target := rng.Float64() * p.Duration()
			if i%3 == 0 {
				target = p.times[rng.IntN(len(p.times))]
			}
			p.Seek(target)
			want := replay(t, rec, target)
			if !p.Terminal().Equal(want) {
				t.Fatalf("interval %d seek %v: screen differs\ngot:\n%s\nwant:\n%s", interval, target, p.Terminal(), want)
			}
		}
	}
}

func TestCheckpointTableStaysBounded(t *testing.T) {
	rec := randomRecording(42, 400)
	p := New(rec, Options{CheckpointInterval: 1, MaxCheckpoints: 8})
	p.Start(at(0))
	p.TogglePause()
	p.Seek(p.Duration())
	if n := len(p.checkpoints); n > 8 {
		t.Fatalf("expected at most 8 checkpoints, got %d", n)
	}
	if p.interval < 400/8 {
		t.Fatalf("expected interval to grow past %d, got %d", 400/8, p.interval)
	}
	for i, cp := range p.checkpoints {
		if cp.index%p.interval != 0 {
			t.Fatalf("checkpoint %d at index %d is off the %d grid", i, cp.index, p.interval)
		}
		if i > 0 && cp.index <= p.checkpoints[i-1].index {
			t.Fatalf("checkpoints out of order: %d after %d", cp.index, p.checkpoints[i-1].index)
		}
	}
	rng := rand.New(rand.NewPCG(5, 8))
	for i := 0; i < 40; i++ {
		target := rng.Float64() * p.Duration()
		p.Seek(target)
		if want := replay(t, rec, target); !p.Terminal().Equal(want) {
			t.Fatalf("seek %v with thinned checkpoints: screen differs", target)
		}
		if n := len(p.checkpoints); n > 8 {
			t.Fatalf("table grew to %d after seeking", n)
		}
	}
}

func TestOptionsFromConfigCarriesCheckpointCap(t *testing.T) {
	opts := OptionsFromConfig(schema.PlayerConfig{CheckpointInterval: 10, MaxCheckpoints: 3}).withDefaults()
	if opts.CheckpointInterval != 10 || opts.MaxCheckpoints != 3 {
		t.Fatalf("unexpected options %+v", opts)
	}
	if d := (Options{}).withDefaults(); d.MaxCheckpoints != schema.DefaultMaxCheckpoints {
		t.Fatalf("expected default cap %d, got %d", schema.DefaultMaxCheckpoints, d.MaxCheckpoints)
	}
}

func TestSeekRoundTripIsDeterministic(t *testing.T) {
	rec := randomRecording(3, 300)
	p := New(rec, Options{CheckpointInterval: 16})
	p.Start(at(0))
	p.TogglePause()
	for _, target := range []float64{p.Duration() / 3, p.Duration() / 2, p.Duration()} {
		p.Seek(target)
		first := p.Terminal().Clone()
		p.Seek(0)
		p.Seek(target)
		if !p.Terminal().Equal(first) {
			t.Fatalf("seek to %v after rewinding produced a different screen", target)
		}
	}
}

func TestSeekDoesNotAliasCheckpoints(t *testing.T) {
	rec := recording(10, 2, out(1, "a"), out(1, "b"), out(1, "c"), out(1, "d"))
	p := New(rec, Options{CheckpointInterval: 2})
	p.Start(at(0))
	p.TogglePause()
	p.Seek(4)
	p.Seek(2)
	p.Seek(4)
	p.Seek(2)
	if got := p.Terminal().Lines()[0]; got != "ab" {
		t.Fatalf("checkpoint was modified by later playback: %q", got)
	}
}

func TestMarkerNavigation(t *testing.T) {
	rec := recording(10, 2, out(0, "a"), mark(2, "build"), out(1, "b"), mark(2, "test"), out(1, "c"))
	p := New(rec, Options{})
	p.Start(at(0))
	p.TogglePause()
	if p.CurrentMarker() != "" {
		t.Fatalf("no marker expected at start, got %q", p.CurrentMarker())
	}
	if !p.NextMarker() || p.Position() != 2 || p.CurrentMarker() != "build" {
		t.Fatalf("first jump: position=%v marker=%q", p.Position(), p.CurrentMarker())
	}
	if !p.NextMarker() || p.Position() != 5 || p.CurrentMarker() != "test" {
		t.Fatalf("second jump: position=%v marker=%q", p.Position(), p.CurrentMarker())
	}
	if p.NextMarker() {
		t.Fatalf("no marker after the last one")
	}
	if got := p.Terminal().Lines()[0]; got != "ab" {
		t.Fatalf("screen at second marker: %q", got)
	}
	if !p.PrevMarker() || p.Position() != 2 {
		t.Fatalf("previous jump: position=%v", p.Position())
	}
	if p.PrevMarker() {
		t.Fatalf("no marker before the first one")
	}
	if p.State() != StatePaused {
		t.Fatalf("marker jumps should keep the paused state, got %s", p.State())
	}
}

func TestKeyAction(t *testing.T) {
	tests := []struct {
		key  tcell.Key
		r    rune
		mod  tcell.ModMask
		want Action
	}{
		{tcell.KeyRune, 'q', tcell.ModNone, ActionQuit},
		{tcell.KeyEscape, 0, tcell.ModNone, ActionQuit},
		{tcell.KeyCtrlC, 0, tcell.ModCtrl, ActionQuit},
		{tcell.KeyRune, ' ', tcell.ModNone, ActionTogglePause},
		{tcell.KeyRune, '+', tcell.ModNone, ActionFaster},
		{tcell.KeyRune, '=', tcell.ModNone, ActionFaster},
		{tcell.KeyRune, '-', tcell.ModNone, ActionSlower},
		{tcell.KeyRune, ']', tcell.ModNone, ActionNextMarker},
		{tcell.KeyRune, '[', tcell.ModNone, ActionPrevMarker},
		{tcell.KeyRight, 0, tcell.ModNone, ActionSeekForward},
		{tcell.KeyLeft, 0, tcell.ModNone, ActionSeekBackward},
		{tcell.KeyRune, '.', tcell.ModNone, ActionStep},
		{tcell.KeyRune, '0', tcell.ModNone, ActionRestart},
		{tcell.KeyHome, 0, tcell.ModNone, ActionRestart},
		{tcell.KeyRune, 'x', tcell.ModNone, ActionNone},
		{tcell.KeyEnter, 0, tcell.ModNone, ActionNone},
	}
	for _, tt := range tests {
		if got := KeyAction(tcell.NewEventKey(tt.key, tt.r, tt.mod)); got != tt.want {
			t.Fatalf("key %v rune %q: got %d want %d", tt.key, tt.r, got, tt.want)
		}
	}
}

func TestSeekKeys(t *testing.T) {
	rec := recording(10, 2, out(10, "a"), out(10, "b"))
	p := New(rec, Options{SeekStep: 15})
	p.Start(at(0))
	p.Do(ActionSeekForward)
	if p.Position() != 15 || p.Terminal().Lines()[0] != "a" {
		t.Fatalf("forward: position=%v", p.Position())
	}
	p.Do(ActionSeekBackward)
	p.Do(ActionSeekBackward)
	if p.Position() != 0 || p.Terminal().Lines()[0] != "" {
		t.Fatalf("backward: position=%v", p.Position())
	}
	p.Do(ActionQuit)
	if p.State() != StateFinished {
		t.Fatalf("quit: state=%s", p.State())
	}
}

func newSimScreen(t *testing.T, w, h int) tcell.SimulationScreen {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("init screen: %v", err)
	}
	screen.SetSize(w, h)
	t.Cleanup(screen.Fini)
	return screen
}

func TestPaintDrawsGridAndStatus(t *testing.T) {
	rec := recording(10, 2, out(0, "\x1b[1;31mhi\x1b[0m"), mark(1, "deploy"), out(1, "\r\n\x1b[38;2;1;2;3mx"))
	p := New(rec, Options{})
	p.Start(at(0))
	p.TogglePause()
	p.Seek(1)

	screen := newSimScreen(t, 20, 4)
	p.Paint(screen)

	r, _, style, _ := screen.GetContent(0, 0)
	fg, _, attrs := style.Decompose()
	if r != 'h' || fg != tcell.PaletteColor(1) || attrs&tcell.AttrBold == 0 {
		t.Fatalf("cell (0,0): rune %q fg %v attrs %v", r, fg, attrs)
	}
	r, _, style, _ = screen.GetContent(2, 0)
	if fg, _, _ := style.Decompose(); r != ' ' || fg != tcell.ColorDefault {
		t.Fatalf("cell (2,0): rune %q fg %v", r, fg)
	}
	var status strings.Builder
	for x := 0; x < 20; x++ {
		r, _, _, _ := screen.GetContent(x, 2)
		status.WriteRune(r)
	}
	if got := status.String(); !strings.HasPrefix(got, " paused 00:01.0 / 00") {
		t.Fatalf("status line: %q", got)
	}
	cx, cy, visible := screen.GetCursor()
	if !visible || cx != 2 || cy != 0 {
		t.Fatalf("cursor: %d,%d visible=%v", cx, cy, visible)
	}

	p.Seek(2)
	p.Paint(screen)
	r, _, style, _ = screen.GetContent(0, 1)
	if fg, _, _ := style.Decompose(); r != 'x' || fg != tcell.NewRGBColor(1, 2, 3) {
		t.Fatalf("cell (0,1): rune %q fg %v", r, fg)
	}
}

func TestStatusLineShowsMarker(t *testing.T) {
	rec := recording(10, 2, mark(61.25, "deploy"), out(1, "x"))
	p := New(rec, Options{Speed: 1.25})
	p.Start(at(0))
	p.TogglePause()
	p.Seek(61.25)
	if got, want := p.statusLine(), " paused 01:01.3 / 01:02.3  x1.25  [deploy]"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

// scriptedScreen injects keys once initialised and records shutdown.
type scriptedScreen struct {
	tcell.SimulationScreen
	keys   []rune
	lost   bool
	closed bool
}

func (s *scriptedScreen) Init() error {
	if err := s.SimulationScreen.Init(); err != nil {
		return err
	}
	for _, r := range s.keys {
		s.InjectKey(tcell.KeyRune, r, tcell.ModNone)
	}
	return nil
}

func (s *scriptedScreen) PollEvent() tcell.Event {
	if s.lost {
		return nil
	}
	return s.SimulationScreen.PollEvent()
}

func (s *scriptedScreen) Fini() {
	s.closed = true
	s.SimulationScreen.Fini()
}

func runWith(t *testing.T, ctx context.Context, screen *scriptedScreen, rec *schema.Recording) (*Player, error) {
	t.Helper()
	p := New(rec, Options{
		Display: func() (Display, error) { return screen, nil },
		Now:     func() time.Time { return epoch },
		MaxTick: time.Millisecond,
	})
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()
	select {
	case err := <-errCh:
		return p, err
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not return")
		return nil, nil
	}
}

func TestRunQuitsOnKey(t *testing.T) {
	screen := &scriptedScreen{SimulationScreen: tcell.NewSimulationScreen("UTF-8"), keys: []rune{' ', 'q'}}
	rec := recording(10, 2, out(0, "ready"), out(100, "late"))
	p, err := runWith(t, context.Background(), screen, rec)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if p.State() != StateFinished || !screen.closed {
		t.Fatalf("state=%s closed=%v", p.State(), screen.closed)
	}
	if got := p.Terminal().Lines()[0]; got != "ready" {
		t.Fatalf("screen: %q", got)
	}
}

func TestRunFinishesAtEnd(t *testing.T) {
	screen := &scriptedScreen{SimulationScreen: tcell.NewSimulationScreen("UTF-8")}
	rec := recording(10, 2, out(0, "only"))
	p, err := runWith(t, context.Background(), screen, rec)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if p.State() != StateFinished || !screen.closed {
		t.Fatalf("state=%s closed=%v", p.State(), screen.closed)
	}
}

func TestRunCanceled(t *testing.T) {
	screen := &scriptedScreen{SimulationScreen: tcell.NewSimulationScreen("UTF-8")}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := runWith(t, ctx, screen, recording(10, 2, out(100, "late")))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !screen.closed {
		t.Fatalf("display not released")
	}
}

func TestRunDeviceLost(t *testing.T) {
	screen := &scriptedScreen{SimulationScreen: tcell.NewSimulationScreen("UTF-8"), lost: true}
	_, err := runWith(t, context.Background(), screen, recording(10, 2, out(100, "late")))
	if !errors.Is(err, schema.ErrPlayback) {
		t.Fatalf("expected playback error, got %v", err)
	}
	if !screen.closed {
		t.Fatalf("display not released")
	}
}

func TestRunDisplayUnavailable(t *testing.T) {
	p := New(recording(10, 2), Options{
		Display: func() (Display, error) { return nil, errors.New("no tty") },
	})
	err := p.Run(context.Background())
	var perr *schema.PlaybackError
	if !errors.As(err, &perr) || !strings.Contains(err.Error(), "no tty") {
		t.Fatalf("expected playback error, got %v", err)
	}
}

func TestTcellColorMapping(t *testing.T) {
	tests := []struct {
		name string
		in   vt.Color
		want tcell.Color
	}{
		{name: "default", in: vt.ColorDefault, want: tcell.ColorDefault},
		{name: "palette-black", in: vt.PaletteColor(0), want: tcell.PaletteColor(0)},
		{name: "palette-high", in: vt.PaletteColor(196), want: tcell.PaletteColor(196)},
		{name: "rgb", in: vt.RGBColor(10, 20, 30), want: tcell.NewRGBColor(10, 20, 30)},
	}
	for _, tc := range tests {
		if got := tcellColor(tc.in); got != tc.want {
			t.Fatalf("%s: tcellColor = %v, want %v", tc.name, got, tc.want)
		}
	}
}
