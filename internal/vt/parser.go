package vt

import "unicode/utf8"

// TokenKind is the closed set of actions the parser emits.
type TokenKind uint8

const (
	// TokenPrint carries one printable rune.
	TokenPrint TokenKind = iota + 1
	// TokenExecute carries a C0 control byte.
	TokenExecute
	// TokenCSI carries a complete control sequence.
	TokenCSI
	// TokenESC carries a complete escape sequence.
	TokenESC
	// TokenOSC carries an operating system command payload.
	TokenOSC
)

const (
	maxParams   = 16
	maxParamVal = 65535
	maxOSC      = 4096
)

// Token is one parsed action. Params and Data alias parser storage and are
// only valid during the callback.
type Token struct {
	Kind         TokenKind
	Rune         rune
	Byte         byte
	Params       []int
	Colon        uint32 // bit i set when Params[i] followed a ':' separator
	Private      byte
	Intermediate byte
	Final        byte
	Data         []byte
}

// Param returns parameter i, or def when it is missing or zero.
func (tok *Token) Param(i, def int) int {
	if i >= len(tok.Params) || tok.Params[i] == 0 {
		return def
	}
	return tok.Params[i]
}

type parserState uint8

const (
	stateGround parserState = iota
	stateEscape
	stateEscapeIntermediate
	stateCSIParam
	stateCSIIntermediate
	stateCSIIgnore
	stateOSC
	stateOSCEscape
	stateString
	stateStringEscape
)

// Parser is a byte-level escape sequence state machine. All state survives
// between Feed calls, so a stream produces the same tokens however it is
// split.
type Parser struct {
	state parserState

	utf8Buf  [utf8.UTFMax]byte
	utf8Len  int
	utf8Need int

	params       [maxParams]int
	nParams      int
	colon        uint32
	overflow     bool
	private      byte
	intermediate byte

	osc []byte

	tok Token
}

// Reset returns the parser to its initial state.
func (p *Parser) Reset() {
	osc := p.osc[:0]
	*p = Parser{}
	p.osc = osc
}

func (p *Parser) clone() Parser {
	c := *p
	c.osc = append([]byte(nil), p.osc...)
	return c
}

// Feed parses data and calls emit for each completed token.
func (p *Parser) Feed(data []byte, emit func(*Token)) {
	for i := 0; i < len(data); i++ {
		p.step(data[i], emit)
	}
}

func (p *Parser) step(b byte, emit func(*Token)) {
	// CAN and SUB abort any sequence in progress.
	if b == 0x18 || b == 0x1a {
		p.flushUTF8(emit)
		p.state = stateGround
		return
	}
	switch p.state {
	case stateGround:
		p.ground(b, emit)
	case stateEscape:
		p.escape(b, emit)
	case stateEscapeIntermediate:
		switch {
		case b == 0x1b:
			p.enterEscape()
		case b < 0x20:
			p.execute(b, emit)
		case b < 0x30:
			if p.intermediate == 0 {
				p.intermediate = b
			}
		case b < 0x7f:
			p.emitESC(b, emit)
		}
	case stateCSIParam:
		p.csiParam(b, emit)
	case stateCSIIntermediate:
		switch {
		case b == 0x1b:
			p.enterEscape()
		case b < 0x20:
			p.execute(b, emit)
		case b < 0x30:
			if p.intermediate == 0 {
				p.intermediate = b
			}
		case b < 0x40:
			p.state = stateCSIIgnore
		case b < 0x7f:
			p.emitCSI(b, emit)
		}
	case stateCSIIgnore:
		switch {
		case b == 0x1b:
			p.enterEscape()
		case b < 0x20:
			p.execute(b, emit)
		case b >= 0x40 && b < 0x7f:
			p.state = stateGround
		}
	case stateOSC:
		switch {
		case b == 0x07:
			p.emitOSC(emit)
		case b == 0x1b:
			p.state = stateOSCEscape
		case b < 0x20:
		default:
			if len(p.osc) < maxOSC {
				p.osc = append(p.osc, b)
			}
		}
	case stateOSCEscape:
		p.emitOSC(emit)
		if b != '\\' {
			p.enterEscape()
			p.escape(b, emit)
		}
	case stateString:
		switch b {
		case 0x07:
			p.state = stateGround
		case 0x1b:
			p.state = stateStringEscape
		}
	case stateStringEscape:
		if b == '\\' {
			p.state = stateGround
			return
		}
		p.enterEscape()
		p.escape(b, emit)
	}
}

func (p *Parser) ground(b byte, emit func(*Token)) {
	if p.utf8Need > 0 {
		if b&0xc0 == 0x80 {
			p.utf8Buf[p.utf8Len] = b
			p.utf8Len++
			if p.utf8Len == p.utf8Need {
				r, size := utf8.DecodeRune(p.utf8Buf[:p.utf8Len])
				if size != p.utf8Len {
					r = utf8.RuneError
				}
				p.utf8Len, p.utf8Need = 0, 0
				p.print(r, emit)
			}
			return
		}
		p.flushUTF8(emit)
	}
	switch {
	case b == 0x1b:
		p.enterEscape()
	case b < 0x20:
		p.execute(b, emit)
	case b < 0x7f:
		p.print(rune(b), emit)
	case b == 0x7f:
	default:
		need := utf8SeqLen(b)
		if need == 0 {
			p.print(utf8.RuneError, emit)
			return
		}
		p.utf8Buf[0] = b
		p.utf8Len = 1
		p.utf8Need = need
	}
}

func utf8SeqLen(b byte) int {
	switch {
	case b >= 0xc2 && b <= 0xdf:
		return 2
	case b >= 0xe0 && b <= 0xef:
		return 3
	case b >= 0xf0 && b <= 0xf4:
		return 4
	default:
		return 0
	}
}

// flushUTF8 replaces an interrupted multi-byte sequence with U+FFFD.
func (p *Parser) flushUTF8(emit func(*Token)) {
	if p.utf8Need == 0 {
		return
	}
	p.utf8Len, p.utf8Need = 0, 0
	p.print(utf8.RuneError, emit)
}

func (p *Parser) escape(b byte, emit func(*Token)) {
	switch {
	case b == 0x1b:
		p.enterEscape()
	case b < 0x20:
		p.execute(b, emit)
	case b < 0x30:
		p.intermediate = b
		p.state = stateEscapeIntermediate
	case b == '[':
		p.state = stateCSIParam
	case b == ']':
		p.osc = p.osc[:0]
		p.state = stateOSC
	case b == 'P' || b == 'X' || b == '^' || b == '_':
		p.state = stateString
	case b < 0x7f:
		p.emitESC(b, emit)
	}
}

func (p *Parser) csiParam(b byte, emit func(*Token)) {
	switch {
	case b >= '0' && b <= '9':
		if p.overflow {
			return
		}
		if p.nParams == 0 {
			p.nParams = 1
		}
		v := &p.params[p.nParams-1]
		*v = *v*10 + int(b-'0')
		if *v > maxParamVal {
			*v = maxParamVal
		}
	case b == ';' || b == ':':
		if p.overflow {
			return
		}
		if p.nParams == 0 {
			p.nParams = 1
		}
		if p.nParams == maxParams {
			p.overflow = true
			return
		}
		if b == ':' {
			p.colon |= 1 << uint(p.nParams)
		}
		p.params[p.nParams] = 0
		p.nParams++
	case b >= '<' && b <= '?':
		if p.nParams == 0 && p.private == 0 {
			p.private = b
			return
		}
		p.state = stateCSIIgnore
	case b == 0x1b:
		p.enterEscape()
	case b < 0x20:
		p.execute(b, emit)
	case b < 0x30:
		p.intermediate = b
		p.state = stateCSIIntermediate
	case b >= 0x40 && b < 0x7f:
		p.emitCSI(b, emit)
	}
}

func (p *Parser) enterEscape() {
	p.state = stateEscape
	p.nParams = 0
	p.colon = 0
	p.overflow = false
	p.private = 0
	p.intermediate = 0
	for i := range p.params {
		p.params[i] = 0
	}
}

func (p *Parser) print(r rune, emit func(*Token)) {
	p.tok = Token{Kind: TokenPrint, Rune: r}
	emit(&p.tok)
}

func (p *Parser) execute(b byte, emit func(*Token)) {
	p.flushUTF8(emit)
	p.tok = Token{Kind: TokenExecute, Byte: b}
	emit(&p.tok)
}

func (p *Parser) emitESC(final byte, emit func(*Token)) {
	p.state = stateGround
	p.tok = Token{Kind: TokenESC, Intermediate: p.intermediate, Final: final}
	emit(&p.tok)
}

func (p *Parser) emitCSI(final byte, emit func(*Token)) {
	p.state = stateGround
	p.tok = Token{
		Kind:         TokenCSI,
		Params:       p.params[:p.nParams],
		Colon:        p.colon,
		Private:      p.private,
		Intermediate: p.intermediate,
		Final:        final,
	}
	emit(&p.tok)
}

func (p *Parser) emitOSC(emit func(*Token)) {
	p.state = stateGround
	p.tok = Token{Kind: TokenOSC, Data: p.osc}
	emit(&p.tok)
}
