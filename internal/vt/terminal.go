// Package vt is a virtual terminal: it interprets output bytes and escape
// sequences into a grid of styled cells.
//
// The emulator covers what shells and agent CLIs commonly emit: cursor
// movement, erase, SGR colors and styles, scroll regions, the alternate
// screen, line wrap, and tabs. Unknown sequences are consumed and ignored.
package vt

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

const tabWidth = 8

// widths ignores the locale so replays are identical on every host.
var widths = &runewidth.Condition{StrictEmojiNeutral: true}

type cursor struct {
	x, y        int
	pen         Cell
	wrapPending bool
	origin      bool
}

// Terminal holds the screen state for one emulated terminal.
type Terminal struct {
	cols, rows int

	primary   []Cell
	alternate []Cell
	altActive bool
	cells     []Cell

	cur   cursor
	saved cursor
	// Separate save slot for the 1049 alternate screen switch.
	altSaved cursor

	top, bottom   int
	autowrap      bool
	cursorVisible bool
	tabs          []bool
	title         string

	parser Parser
	emit   func(*Token)
}

// New returns a terminal of the given size with a blank screen. Sizes below
// 1 are raised to 1.
func New(cols, rows int) *Terminal {
	t := &Terminal{}
	t.emit = t.dispatch
	t.init(cols, rows)
	return t
}

func (t *Terminal) init(cols, rows int) {
	cols, rows = max(cols, 1), max(rows, 1)
	t.cols, t.rows = cols, rows
	t.primary = newGrid(cols, rows)
	t.alternate = newGrid(cols, rows)
	t.cells = t.primary
	t.altActive = false
	t.cur = cursor{pen: blankCell(ColorDefault)}
	t.saved = t.cur
	t.altSaved = t.cur
	t.top, t.bottom = 0, rows-1
	t.autowrap = true
	t.cursorVisible = true
	t.tabs = defaultTabs(cols)
	t.title = ""
	t.parser.Reset()
}

func newGrid(cols, rows int) []Cell {
	g := make([]Cell, cols*rows)
	blank := blankCell(ColorDefault)
	for i := range g {
		g[i] = blank
	}
	return g
}

func defaultTabs(cols int) []bool {
	tabs := make([]bool, cols)
	for x := tabWidth; x < cols; x += tabWidth {
		tabs[x] = true
	}
	return tabs
}

// Feed interprets data. Incomplete sequences at the end of data are kept and
// completed by the next call.
func (t *Terminal) Feed(data []byte) {
	t.parser.Feed(data, t.emit)
}

// Write implements io.Writer; it never fails.
func (t *Terminal) Write(p []byte) (int, error) {
	t.Feed(p)
	return len(p), nil
}

// Reset returns the terminal to its initial state, keeping its size.
func (t *Terminal) Reset() {
	t.init(t.cols, t.rows)
}

// Size returns the grid dimensions.
func (t *Terminal) Size() (cols, rows int) {
	return t.cols, t.rows
}

// Cell returns the cell at column x, row y. Out-of-range positions return a
// blank cell.
func (t *Terminal) Cell(x, y int) Cell {
	if x < 0 || y < 0 || x >= t.cols || y >= t.rows {
		return blankCell(ColorDefault)
	}
	return t.cells[y*t.cols+x]
}

// Cursor returns the cursor column and row.
func (t *Terminal) Cursor() (x, y int) {
	return t.cur.x, t.cur.y
}

// CursorVisible reports whether the program asked for a visible cursor.
func (t *Terminal) CursorVisible() bool {
	return t.cursorVisible
}

// AltScreen reports whether the alternate screen is active.
func (t *Terminal) AltScreen() bool {
	return t.altActive
}

// Title returns the window title set through OSC 0 or 2.
func (t *Terminal) Title() string {
	return t.title
}

// Lines returns the visible text, one string per row, with trailing blanks
// removed.
func (t *Terminal) Lines() []string {
	out := make([]string, t.rows)
	var b strings.Builder
	for y := 0; y < t.rows; y++ {
		b.Reset()
		row := t.cells[y*t.cols : (y+1)*t.cols]
		for x, c := range row {
			if c.Continuation() {
				if x > 0 && row[x-1].Wide {
					continue
				}
				b.WriteByte(' ')
				continue
			}
			b.WriteRune(c.Rune)
		}
		out[y] = strings.TrimRight(b.String(), " ")
	}
	return out
}

// String returns Lines joined by newlines.
func (t *Terminal) String() string {
	return strings.Join(t.Lines(), "\n")
}

// Clone returns an independent copy, including any partially parsed
// sequence.
func (t *Terminal) Clone() *Terminal {
	c := *t
	c.primary = append([]Cell(nil), t.primary...)
	c.alternate = append([]Cell(nil), t.alternate...)
	if t.altActive {
		c.cells = c.alternate
	} else {
		c.cells = c.primary
	}
	c.tabs = append([]bool(nil), t.tabs...)
	c.parser = t.parser.clone()
	c.emit = c.dispatch
	return &c
}

// Equal reports whether two terminals show the same screen: size, cells of
// both buffers, cursor, and modes.
func (t *Terminal) Equal(o *Terminal) bool {
	if t.cols != o.cols || t.rows != o.rows || t.altActive != o.altActive {
		return false
	}
	if t.cur != o.cur || t.cursorVisible != o.cursorVisible || t.title != o.title {
		return false
	}
	if t.top != o.top || t.bottom != o.bottom || t.autowrap != o.autowrap {
		return false
	}
	for i := range t.primary {
		if t.primary[i] != o.primary[i] || t.alternate[i] != o.alternate[i] {
			return false
		}
	}
	return true
}

// Resize changes the grid size, keeping the top-left content. The scroll
// region is reset to the full screen.
func (t *Terminal) Resize(cols, rows int) {
	cols, rows = max(cols, 1), max(rows, 1)
	if cols == t.cols && rows == t.rows {
		return
	}
	t.primary = resizeGrid(t.primary, t.cols, t.rows, cols, rows)
	t.alternate = resizeGrid(t.alternate, t.cols, t.rows, cols, rows)
	if t.altActive {
		t.cells = t.alternate
	} else {
		t.cells = t.primary
	}
	tabs := defaultTabs(cols)
	copy(tabs, t.tabs)
	t.tabs = tabs
	t.cols, t.rows = cols, rows
	t.top, t.bottom = 0, rows-1
	t.cur.x, t.cur.y = min(t.cur.x, cols-1), min(t.cur.y, rows-1)
	t.cur.wrapPending = false
	t.saved.x, t.saved.y = min(t.saved.x, cols-1), min(t.saved.y, rows-1)
	t.altSaved.x, t.altSaved.y = min(t.altSaved.x, cols-1), min(t.altSaved.y, rows-1)
}

func resizeGrid(old []Cell, oldCols, oldRows, cols, rows int) []Cell {
	g := newGrid(cols, rows)
	w, h := min(oldCols, cols), min(oldRows, rows)
	for y := 0; y < h; y++ {
		copy(g[y*cols:y*cols+w], old[y*oldCols:y*oldCols+w])
		// A wide rune cut at the new right edge loses its right half.
		if w > 0 && g[y*cols+w-1].Wide {
			g[y*cols+w-1] = blankCell(g[y*cols+w-1].Bg)
		}
	}
	return g
}

func (t *Terminal) dispatch(tok *Token) {
	switch tok.Kind {
	case TokenPrint:
		t.print(tok.Rune)
	case TokenExecute:
		t.execute(tok.Byte)
	case TokenCSI:
		t.csi(tok)
	case TokenESC:
		t.esc(tok)
	case TokenOSC:
		t.osc(tok.Data)
	}
}

func (t *Terminal) print(r rune) {
	w := widths.RuneWidth(r)
	if w == 0 {
		return
	}
	if w == 2 && t.cols < 2 {
		return
	}
	if t.cur.wrapPending {
		t.cur.wrapPending = false
		if t.autowrap {
			t.cur.x = 0
			t.lineFeed()
		}
	}
	if w == 2 && t.cur.x == t.cols-1 {
		if !t.autowrap {
			t.cur.x = t.cols - 2
		} else {
			t.eraseCells(t.cur.y, t.cur.x, t.cur.x+1)
			t.cur.x = 0
			t.lineFeed()
		}
	}
	x, y := t.cur.x, t.cur.y
	t.clearWide(x, y)
	if w == 2 {
		t.clearWide(x+1, y)
	}
	cell := t.cur.pen
	cell.Rune = r
	cell.Wide = w == 2
	t.cells[y*t.cols+x] = cell
	if w == 2 {
		cont := t.cur.pen
		cont.Rune = 0
		t.cells[y*t.cols+x+1] = cont
	}
	x += w
	if x >= t.cols {
		t.cur.x = t.cols - 1
		t.cur.wrapPending = true
		return
	}
	t.cur.x = x
}

// clearWide blanks the other half of a wide rune overlapping (x, y).
func (t *Terminal) clearWide(x, y int) {
	if x < 0 || x >= t.cols {
		return
	}
	i := y*t.cols + x
	c := t.cells[i]
	switch {
	case c.Wide && x+1 < t.cols:
		t.cells[i+1] = blankCell(c.Bg)
		t.cells[i].Wide = false
	case c.Continuation() && x > 0 && t.cells[i-1].Wide:
		t.cells[i-1] = blankCell(t.cells[i-1].Bg)
		t.cells[i] = blankCell(c.Bg)
	}
}

func (t *Terminal) execute(b byte) {
	switch b {
	case '\b':
		t.cur.wrapPending = false
		if t.cur.x > 0 {
			t.cur.x--
		}
	case '\t':
		t.cur.wrapPending = false
		t.cur.x = t.nextTab(t.cur.x)
	case '\n', '\v', '\f':
		t.lineFeed()
	case '\r':
		t.cur.wrapPending = false
		t.cur.x = 0
	}
}

func (t *Terminal) nextTab(x int) int {
	for x++; x < t.cols; x++ {
		if t.tabs[x] {
			return x
		}
	}
	return t.cols - 1
}

func (t *Terminal) prevTab(x int) int {
	for x--; x > 0; x-- {
		if t.tabs[x] {
			return x
		}
	}
	return 0
}

func (t *Terminal) lineFeed() {
	t.cur.wrapPending = false
	switch {
	case t.cur.y == t.bottom:
		t.scrollUp(1)
	case t.cur.y < t.rows-1:
		t.cur.y++
	}
}

func (t *Terminal) reverseIndex() {
	t.cur.wrapPending = false
	switch {
	case t.cur.y == t.top:
		t.scrollDown(1)
	case t.cur.y > 0:
		t.cur.y--
	}
}

// scrollUp moves the scroll region up by n lines, blanking the bottom.
func (t *Terminal) scrollUp(n int) {
	t.scrollRegionUp(t.top, n)
}

func (t *Terminal) scrollRegionUp(from, n int) {
	height := t.bottom - from + 1
	if n <= 0 || height <= 0 {
		return
	}
	n = min(n, height)
	copy(t.cells[from*t.cols:(t.bottom+1)*t.cols], t.cells[(from+n)*t.cols:(t.bottom+1)*t.cols])
	t.eraseRows(t.bottom-n+1, t.bottom)
}

// scrollDown moves the scroll region down by n lines, blanking the top.
func (t *Terminal) scrollDown(n int) {
	t.scrollRegionDown(t.top, n)
}

func (t *Terminal) scrollRegionDown(from, n int) {
	height := t.bottom - from + 1
	if n <= 0 || height <= 0 {
		return
	}
	n = min(n, height)
	copy(t.cells[(from+n)*t.cols:(t.bottom+1)*t.cols], t.cells[from*t.cols:(t.bottom+1-n)*t.cols])
	t.eraseRows(from, from+n-1)
}

func (t *Terminal) eraseRows(from, to int) {
	blank := blankCell(t.cur.pen.Bg)
	for i := from * t.cols; i < (to+1)*t.cols; i++ {
		t.cells[i] = blank
	}
}

// eraseCells blanks columns [from, to) of row y.
func (t *Terminal) eraseCells(y, from, to int) {
	from, to = max(from, 0), min(to, t.cols)
	if from >= to {
		return
	}
	t.clearWide(from, y)
	t.clearWide(to-1, y)
	blank := blankCell(t.cur.pen.Bg)
	row := t.cells[y*t.cols : (y+1)*t.cols]
	for x := from; x < to; x++ {
		row[x] = blank
	}
}

func (t *Terminal) moveTo(x, y int) {
	t.cur.wrapPending = false
	t.cur.x = clamp(x, 0, t.cols-1)
	if t.cur.origin {
		t.cur.y = clamp(y+t.top, t.top, t.bottom)
		return
	}
	t.cur.y = clamp(y, 0, t.rows-1)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (t *Terminal) saveCursor(slot *cursor) {
	*slot = t.cur
}

func (t *Terminal) restoreCursor(slot *cursor) {
	t.cur = *slot
	t.cur.x = min(t.cur.x, t.cols-1)
	t.cur.y = min(t.cur.y, t.rows-1)
}

func (t *Terminal) setAltScreen(on, clear bool) {
	if on == t.altActive {
		return
	}
	t.altActive = on
	if on {
		t.cells = t.alternate
		if clear {
			t.eraseRows(0, t.rows-1)
		}
		return
	}
	t.cells = t.primary
}

func (t *Terminal) esc(tok *Token) {
	if tok.Intermediate != 0 {
		// Charset designation and other intermediates are accepted and
		// ignored.
		return
	}
	switch tok.Final {
	case '7':
		t.saveCursor(&t.saved)
	case '8':
		t.restoreCursor(&t.saved)
	case 'D':
		t.lineFeed()
	case 'E':
		t.cur.x = 0
		t.lineFeed()
	case 'M':
		t.reverseIndex()
	case 'H':
		t.tabs[t.cur.x] = true
	case 'c':
		t.init(t.cols, t.rows)
	}
}

func (t *Terminal) osc(data []byte) {
	code, text, ok := strings.Cut(string(data), ";")
	if !ok {
		return
	}
	switch code {
	case "0", "2":
		t.title = text
	}
}
