package vt

// sgr applies Select Graphic Rendition parameters to the pen.
func (t *Terminal) sgr(tok *Token) {
	pen := &t.cur.pen
	params := tok.Params
	if len(params) == 0 {
		t.resetPen()
		return
	}
	for i := 0; i < len(params); i++ {
		p := params[i]
		switch {
		case p == 0:
			t.resetPen()
		case p == 1:
			pen.Attrs |= AttrBold
		case p == 2:
			pen.Attrs |= AttrDim
		case p == 3:
			pen.Attrs |= AttrItalic
		case p == 4 || p == 21:
			pen.Attrs |= AttrUnderline
		case p == 5 || p == 6:
			pen.Attrs |= AttrBlink
		case p == 7:
			pen.Attrs |= AttrReverse
		case p == 8:
			pen.Attrs |= AttrHidden
		case p == 9:
			pen.Attrs |= AttrStrike
		case p == 22:
			pen.Attrs &^= AttrBold | AttrDim
		case p == 23:
			pen.Attrs &^= AttrItalic
		case p == 24:
			pen.Attrs &^= AttrUnderline
		case p == 25:
			pen.Attrs &^= AttrBlink
		case p == 27:
			pen.Attrs &^= AttrReverse
		case p == 28:
			pen.Attrs &^= AttrHidden
		case p == 29:
			pen.Attrs &^= AttrStrike
		case p >= 30 && p <= 37:
			pen.Fg = PaletteColor(uint8(p - 30))
		case p == 38:
			c, next, ok := extendedColor(tok, i)
			if ok {
				pen.Fg = c
			}
			i = next
		case p == 39:
			pen.Fg = ColorDefault
		case p >= 40 && p <= 47:
			pen.Bg = PaletteColor(uint8(p - 40))
		case p == 48:
			c, next, ok := extendedColor(tok, i)
			if ok {
				pen.Bg = c
			}
			i = next
		case p == 49:
			pen.Bg = ColorDefault
		case p >= 90 && p <= 97:
			pen.Fg = PaletteColor(uint8(p - 90 + 8))
		case p >= 100 && p <= 107:
			pen.Bg = PaletteColor(uint8(p - 100 + 8))
		}
	}
}

func (t *Terminal) resetPen() {
	t.cur.pen = blankCell(ColorDefault)
}

func (tok *Token) colonAt(i int) bool {
	return i < 32 && tok.Colon&(1<<uint(i)) != 0
}

// extendedColor decodes a 38/48 color starting at params[i]. It returns the
// index of the last parameter consumed.
//
// Both forms are accepted: "38;5;N", "38;2;R;G;B" and the colon forms
// "38:5:N", "38:2:R:G:B", "38:2:CS:R:G:B".
func extendedColor(tok *Token, i int) (Color, int, bool) {
	params := tok.Params
	if tok.colonAt(i + 1) {
		end := i + 1
		for end+1 < len(params) && tok.colonAt(end+1) {
			end++
		}
		sub := params[i+1 : end+1]
		if len(sub) == 0 {
			return 0, end, false
		}
		switch sub[0] {
		case 5:
			if len(sub) >= 2 {
				return PaletteColor(uint8(min(sub[1], 255))), end, true
			}
		case 2:
			if len(sub) >= 5 {
				sub = sub[len(sub)-3:]
				return rgb(sub[0], sub[1], sub[2]), end, true
			}
			if len(sub) == 4 {
				return rgb(sub[1], sub[2], sub[3]), end, true
			}
		}
		return 0, end, false
	}
	if i+1 >= len(params) {
		return 0, len(params) - 1, false
	}
	switch params[i+1] {
	case 5:
		if i+2 < len(params) {
			return PaletteColor(uint8(min(params[i+2], 255))), i + 2, true
		}
		return 0, len(params) - 1, false
	case 2:
		if i+4 < len(params) {
			return rgb(params[i+2], params[i+3], params[i+4]), i + 4, true
		}
		return 0, len(params) - 1, false
	}
	return 0, i + 1, false
}

func rgb(r, g, b int) Color {
	return RGBColor(uint8(min(r, 255)), uint8(min(g, 255)), uint8(min(b, 255)))
}
