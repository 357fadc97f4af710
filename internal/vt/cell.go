package vt

// Attr is a bitmask of text styles.
type Attr uint8

const (
	AttrNone      Attr = 0
	AttrBold      Attr = 1 << 0
	AttrDim       Attr = 1 << 1
	AttrItalic    Attr = 1 << 2
	AttrUnderline Attr = 1 << 3
	AttrBlink     Attr = 1 << 4
	AttrReverse   Attr = 1 << 5
	AttrHidden    Attr = 1 << 6
	AttrStrike    Attr = 1 << 7
)

// Color is either the terminal default, a 256-color palette index, or a
// 24-bit RGB value. The top byte selects the mode.
type Color uint32

const (
	// ColorDefault leaves the choice to the rendering terminal.
	ColorDefault Color = 0

	colorPalette Color = 1 << 24
	colorRGB     Color = 2 << 24
	colorMode    Color = 0xff << 24
)

// PaletteColor returns palette entry idx.
func PaletteColor(idx uint8) Color {
	return colorPalette | Color(idx)
}

// RGBColor returns a 24-bit color.
func RGBColor(r, g, b uint8) Color {
	return colorRGB | Color(r)<<16 | Color(g)<<8 | Color(b)
}

// IsDefault reports whether c is the terminal default color.
func (c Color) IsDefault() bool {
	return c == ColorDefault
}

// Palette returns the palette index when c is a palette color.
func (c Color) Palette() (uint8, bool) {
	if c&colorMode != colorPalette {
		return 0, false
	}
	return uint8(c), true
}

// RGB returns the components when c is a 24-bit color.
func (c Color) RGB() (r, g, b uint8, ok bool) {
	if c&colorMode != colorRGB {
		return 0, 0, 0, false
	}
	return uint8(c >> 16), uint8(c >> 8), uint8(c), true
}

// Cell is one grid position. A wide rune occupies its own cell (Wide set)
// and the cell to its right, which holds Rune 0.
type Cell struct {
	Rune  rune
	Fg    Color
	Bg    Color
	Attrs Attr
	Wide  bool
}

// Continuation reports whether c is the right half of a wide rune.
func (c Cell) Continuation() bool {
	return c.Rune == 0
}

func blankCell(bg Color) Cell {
	return Cell{Rune: ' ', Bg: bg}
}
