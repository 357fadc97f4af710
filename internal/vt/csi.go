package vt

func (t *Terminal) csi(tok *Token) {
	switch tok.Private {
	case 0:
	case '?':
		switch tok.Final {
		case 'h':
			t.setPrivateModes(tok.Params, true)
		case 'l':
			t.setPrivateModes(tok.Params, false)
		}
		return
	default:
		return
	}
	if tok.Intermediate != 0 {
		return
	}
	n := tok.Param(0, 1)
	switch tok.Final {
	case 'A':
		t.cursorUp(n)
	case 'B', 'e':
		t.cursorDown(n)
	case 'C', 'a':
		t.cur.wrapPending = false
		t.cur.x = min(t.cur.x+n, t.cols-1)
	case 'D':
		t.cur.wrapPending = false
		t.cur.x = max(t.cur.x-n, 0)
	case 'E':
		t.cursorDown(n)
		t.cur.x = 0
	case 'F':
		t.cursorUp(n)
		t.cur.x = 0
	case 'G', '`':
		t.cur.wrapPending = false
		t.cur.x = clamp(n-1, 0, t.cols-1)
	case 'H', 'f':
		t.moveTo(tok.Param(1, 1)-1, n-1)
	case 'd':
		t.cur.wrapPending = false
		if t.cur.origin {
			t.cur.y = clamp(n-1+t.top, t.top, t.bottom)
		} else {
			t.cur.y = clamp(n-1, 0, t.rows-1)
		}
	case 'I':
		for ; n > 0; n-- {
			t.cur.x = t.nextTab(t.cur.x)
		}
	case 'Z':
		for ; n > 0; n-- {
			t.cur.x = t.prevTab(t.cur.x)
		}
	case 'J':
		t.eraseDisplay(tok.Param(0, 0))
	case 'K':
		t.eraseLine(tok.Param(0, 0))
	case '@':
		t.insertChars(n)
	case 'P':
		t.deleteChars(n)
	case 'X':
		t.cur.wrapPending = false
		t.eraseCells(t.cur.y, t.cur.x, t.cur.x+n)
	case 'L':
		t.insertLines(n)
	case 'M':
		t.deleteLines(n)
	case 'S':
		t.scrollUp(n)
	case 'T':
		// Five parameters is mouse highlight tracking, not a scroll.
		if len(tok.Params) <= 1 {
			t.scrollDown(n)
		}
	case 'g':
		switch tok.Param(0, 0) {
		case 0:
			t.tabs[t.cur.x] = false
		case 3:
			for i := range t.tabs {
				t.tabs[i] = false
			}
		}
	case 'r':
		t.setScrollRegion(tok.Param(0, 1)-1, tok.Param(1, t.rows)-1)
	case 's':
		t.saveCursor(&t.saved)
	case 'u':
		t.restoreCursor(&t.saved)
	case 'm':
		t.sgr(tok)
	}
}

// cursorUp stops at the top margin when starting inside the scroll region.
func (t *Terminal) cursorUp(n int) {
	t.cur.wrapPending = false
	limit := 0
	if t.cur.y >= t.top {
		limit = t.top
	}
	t.cur.y = max(t.cur.y-n, limit)
}

func (t *Terminal) cursorDown(n int) {
	t.cur.wrapPending = false
	limit := t.rows - 1
	if t.cur.y <= t.bottom {
		limit = t.bottom
	}
	t.cur.y = min(t.cur.y+n, limit)
}

func (t *Terminal) eraseDisplay(mode int) {
	t.cur.wrapPending = false
	switch mode {
	case 0:
		t.eraseCells(t.cur.y, t.cur.x, t.cols)
		if t.cur.y+1 < t.rows {
			t.eraseRows(t.cur.y+1, t.rows-1)
		}
	case 1:
		if t.cur.y > 0 {
			t.eraseRows(0, t.cur.y-1)
		}
		t.eraseCells(t.cur.y, 0, t.cur.x+1)
	case 2:
		t.eraseRows(0, t.rows-1)
	}
}

func (t *Terminal) eraseLine(mode int) {
	t.cur.wrapPending = false
	switch mode {
	case 0:
		t.eraseCells(t.cur.y, t.cur.x, t.cols)
	case 1:
		t.eraseCells(t.cur.y, 0, t.cur.x+1)
	case 2:
		t.eraseCells(t.cur.y, 0, t.cols)
	}
}

func (t *Terminal) insertChars(n int) {
	t.cur.wrapPending = false
	x, y := t.cur.x, t.cur.y
	n = min(n, t.cols-x)
	t.clearWide(x, y)
	row := t.cells[y*t.cols : (y+1)*t.cols]
	copy(row[x+n:], row[x:t.cols-n])
	blank := blankCell(t.cur.pen.Bg)
	for i := x; i < x+n; i++ {
		row[i] = blank
	}
	if row[t.cols-1].Wide {
		row[t.cols-1] = blank
	}
}

func (t *Terminal) deleteChars(n int) {
	t.cur.wrapPending = false
	x, y := t.cur.x, t.cur.y
	n = min(n, t.cols-x)
	t.clearWide(x, y)
	t.clearWide(x+n-1, y)
	row := t.cells[y*t.cols : (y+1)*t.cols]
	copy(row[x:], row[x+n:])
	blank := blankCell(t.cur.pen.Bg)
	for i := t.cols - n; i < t.cols; i++ {
		row[i] = blank
	}
}

func (t *Terminal) insertLines(n int) {
	if t.cur.y < t.top || t.cur.y > t.bottom {
		return
	}
	t.scrollRegionDown(t.cur.y, n)
	t.cur.x = 0
	t.cur.wrapPending = false
}

func (t *Terminal) deleteLines(n int) {
	if t.cur.y < t.top || t.cur.y > t.bottom {
		return
	}
	t.scrollRegionUp(t.cur.y, n)
	t.cur.x = 0
	t.cur.wrapPending = false
}

func (t *Terminal) setScrollRegion(top, bottom int) {
	top = clamp(top, 0, t.rows-1)
	bottom = clamp(bottom, 0, t.rows-1)
	if top >= bottom {
		return
	}
	t.top, t.bottom = top, bottom
	t.moveTo(0, 0)
}

func (t *Terminal) setPrivateModes(params []int, on bool) {
	for _, mode := range params {
		switch mode {
		case 6:
			t.cur.origin = on
			t.moveTo(0, 0)
		case 7:
			t.autowrap = on
			if !on {
				t.cur.wrapPending = false
			}
		case 25:
			t.cursorVisible = on
		case 47:
			t.setAltScreen(on, false)
		case 1047:
			if !on && t.altActive {
				t.eraseRows(0, t.rows-1)
			}
			t.setAltScreen(on, false)
		case 1049:
			if on {
				if !t.altActive {
					t.saveCursor(&t.altSaved)
				}
				t.setAltScreen(true, true)
			} else if t.altActive {
				t.setAltScreen(false, false)
				t.restoreCursor(&t.altSaved)
			}
		}
	}
}
