package castfile

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"pkt.systems/agentrec/schema"
)

var jsonNull = []byte("null")

// Warning records a skipped line that was not fatal to decoding.
type Warning struct {
	Line int
	Code string
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d: skipped event with unknown kind %q", w.Line, w.Code)
}

// Decoder reads a recording one line at a time.
type Decoder struct {
	reader   *bufio.Reader
	line     int
	header   *schema.Header
	legacy   bool
	elapsed  float64
	carry    float64
	warnings []Warning
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{reader: bufio.NewReaderSize(r, 64*1024)}
}

// Warnings returns the non-fatal problems seen so far.
func (d *Decoder) Warnings() []Warning {
	return d.warnings
}

// Header reads and validates the header record. Subsequent calls return the
// cached header.
func (d *Decoder) Header() (schema.Header, error) {
	if d.header != nil {
		return *d.header, nil
	}
	line, err := d.nextLine()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return schema.Header{}, &schema.ParseError{Line: d.line, Msg: "missing header"}
		}
		return schema.Header{}, err
	}
	if line[0] != '{' {
		return schema.Header{}, &schema.ParseError{Line: d.line, Msg: "first record must be a header object"}
	}
	var hdr schema.Header
	if err := json.Unmarshal(line, &hdr); err != nil {
		return schema.Header{}, &schema.ParseError{Line: d.line, Msg: "malformed header", Err: err}
	}
	if hdr.Version == 2 {
		d.legacy = true
		hdr.Version = schema.CurrentVersion
	}
	if err := hdr.Validate(); err != nil {
		var perr *schema.ParseError
		if errors.As(err, &perr) {
			perr.Line = d.line
		}
		return schema.Header{}, err
	}
	d.header = &hdr
	return hdr, nil
}

// Next returns the next event, skipping unknown kinds. It returns io.EOF
// once the input is exhausted.
func (d *Decoder) Next() (schema.Event, error) {
	if d.header == nil {
		if _, err := d.Header(); err != nil {
			return schema.Event{}, err
		}
	}
	for {
		line, err := d.nextLine()
		if err != nil {
			return schema.Event{}, err
		}
		ev, known, err := d.decodeEvent(line)
		if err != nil {
			return schema.Event{}, err
		}
		if !known {
			// Keep the skipped delta on the timeline.
			d.carry += ev.Time
			d.warnings = append(d.warnings, Warning{Line: d.line, Code: string(ev.Kind)})
			continue
		}
		ev.Time += d.carry
		d.carry = 0
		return ev, nil
	}
}

func (d *Decoder) nextLine() ([]byte, error) {
	for {
		line, err := d.reader.ReadBytes('\n')
		if len(line) == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, err
		}
		d.line++
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil, io.EOF
				}
				return nil, err
			}
			continue
		}
		return line, nil
	}
}

func (d *Decoder) decodeEvent(line []byte) (schema.Event, bool, error) {
	var fields []json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return schema.Event{}, false, &schema.ParseError{Line: d.line, Msg: "malformed event", Err: err}
	}
	if len(fields) != 3 {
		return schema.Event{}, false, &schema.ParseError{Line: d.line, Msg: fmt.Sprintf("event must be [time, kind, data], got %d fields", len(fields))}
	}
	for i, field := range fields {
		if bytes.Equal(field, jsonNull) {
			return schema.Event{}, false, &schema.ParseError{Line: d.line, Msg: fmt.Sprintf("event field %d is null", i)}
		}
	}
	var ev schema.Event
	if err := json.Unmarshal(fields[0], &ev.Time); err != nil {
		return schema.Event{}, false, &schema.ParseError{Line: d.line, Msg: "event time must be a number", Err: err}
	}
	var code string
	if err := json.Unmarshal(fields[1], &code); err != nil {
		return schema.Event{}, false, &schema.ParseError{Line: d.line, Msg: "event kind must be a string", Err: err}
	}
	ev.Kind = schema.EventKind(code)
	if err := json.Unmarshal(fields[2], &ev.Data); err != nil {
		return schema.Event{}, false, &schema.ParseError{Line: d.line, Msg: "event data must be a string", Err: err}
	}
	if d.legacy {
		// Legacy files store absolute times.
		abs := ev.Time
		ev.Time = abs - d.elapsed
		if ev.Time >= 0 {
			d.elapsed = abs
		}
	}
	if ev.Time < 0 {
		return schema.Event{}, false, &schema.ParseError{Line: d.line, Msg: fmt.Sprintf("cumulative time would become negative (delta %g)", ev.Time)}
	}
	if !ev.Kind.Known() {
		return ev, false, nil
	}
	if err := ev.Validate(); err != nil {
		return schema.Event{}, false, &schema.ParseError{Line: d.line, Msg: err.Error()}
	}
	return ev, true, nil
}

// ReadAll reads the header, if not yet read, and every remaining event.
func (d *Decoder) ReadAll() (*schema.Recording, error) {
	hdr, err := d.Header()
	if err != nil {
		return nil, err
	}
	rec := &schema.Recording{Header: hdr}
	for {
		ev, err := d.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return rec, nil
			}
			return nil, err
		}
		rec.Events = append(rec.Events, ev)
	}
}

// Decode reads a whole recording from r.
func Decode(r io.Reader) (*schema.Recording, []Warning, error) {
	dec := NewDecoder(r)
	rec, err := dec.ReadAll()
	return rec, dec.Warnings(), err
}

// Parse decodes a recording held in memory.
func Parse(data []byte) (*schema.Recording, []Warning, error) {
	return Decode(bytes.NewReader(data))
}
