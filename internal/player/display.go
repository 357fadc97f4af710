package player

import (
	"fmt"
	"math"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"pkt.systems/agentrec/internal/vt"
)

// Display is the part of tcell.Screen the player draws on.
type Display interface {
	Init() error
	Fini()
	Size() (width, height int)
	Clear()
	SetContent(x, y int, primary rune, combining []rune, style tcell.Style)
	ShowCursor(x, y int)
	HideCursor()
	Show()
	Sync()
	PollEvent() tcell.Event
}

func newScreenDisplay() (Display, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return screen, nil
}

var statusWidths = &runewidth.Condition{StrictEmojiNeutral: true}

var statusStyle = tcell.StyleDefault.Reverse(true)

// Paint draws the current screen and, when a spare row exists, the status
// line below it.
func (p *Player) Paint(d Display) {
	d.Clear()
	w, h := d.Size()
	cols, rows := p.term.Size()
	for y := 0; y < rows && y < h; y++ {
		for x := 0; x < cols && x < w; x++ {
			c := p.term.Cell(x, y)
			if c.Continuation() {
				continue
			}
			r := c.Rune
			if c.Attrs&vt.AttrHidden != 0 {
				r = ' '
			}
			d.SetContent(x, y, r, nil, cellStyle(c))
		}
	}
	if rows < h {
		drawText(d, 0, rows, w, p.statusLine(), statusStyle)
	}
	cx, cy := p.term.Cursor()
	if p.term.CursorVisible() && cx < w && cy < h {
		d.ShowCursor(cx, cy)
	} else {
		d.HideCursor()
	}
	d.Show()
}

func (p *Player) statusLine() string {
	line := fmt.Sprintf(" %s %s / %s  x%s", p.state, clockText(p.clock), clockText(p.duration), speedText(p.speed))
	if label := p.CurrentMarker(); label != "" {
		line += "  [" + label + "]"
	}
	return line
}

// drawText writes s from (x, y), padding the rest of the row to width.
func drawText(d Display, x, y, width int, s string, style tcell.Style) {
	for _, r := range s {
		rw := statusWidths.RuneWidth(r)
		if rw == 0 {
			continue
		}
		if x+rw > width {
			break
		}
		d.SetContent(x, y, r, nil, style)
		x += rw
	}
	for ; x < width; x++ {
		d.SetContent(x, y, ' ', nil, style)
	}
}

func clockText(sec float64) string {
	tenths := int64(math.Round(sec * 10))
	return fmt.Sprintf("%02d:%02d.%d", tenths/600, tenths/10%60, tenths%10)
}

func speedText(v float64) string {
	return fmt.Sprintf("%.4g", v)
}

func cellStyle(c vt.Cell) tcell.Style {
	st := tcell.StyleDefault.
		Foreground(tcellColor(c.Fg)).
		Background(tcellColor(c.Bg)).
		Bold(c.Attrs&vt.AttrBold != 0).
		Dim(c.Attrs&vt.AttrDim != 0).
		Italic(c.Attrs&vt.AttrItalic != 0).
		Blink(c.Attrs&vt.AttrBlink != 0).
		Reverse(c.Attrs&vt.AttrReverse != 0).
		StrikeThrough(c.Attrs&vt.AttrStrike != 0)
	if c.Attrs&vt.AttrUnderline != 0 {
		st = st.Underline(true)
	}
	return st
}

func tcellColor(c vt.Color) tcell.Color {
	if c.IsDefault() {
		return tcell.ColorDefault
	}
	if idx, ok := c.Palette(); ok {
		return tcell.PaletteColor(int(idx))
	}
	if r, g, b, ok := c.RGB(); ok {
		return tcell.NewRGBColor(int32(r), int32(g), int32(b))
	}
	return tcell.ColorDefault
}
