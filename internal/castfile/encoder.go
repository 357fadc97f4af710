package castfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"pkt.systems/agentrec/schema"
)

// Encoder writes a recording as a header line followed by one line per event.
type Encoder struct {
	enc         *json.Encoder
	wroteHeader bool
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Encoder{enc: enc}
}

// WriteHeader writes the header record. It must be called exactly once,
// before any event.
func (e *Encoder) WriteHeader(h schema.Header) error {
	if e.wroteHeader {
		return errors.New("header already written")
	}
	if err := h.Validate(); err != nil {
		return err
	}
	if err := e.enc.Encode(h); err != nil {
		return err
	}
	e.wroteHeader = true
	return nil
}

// WriteEvent writes a single event line.
func (e *Encoder) WriteEvent(ev schema.Event) error {
	if !e.wroteHeader {
		return errors.New("header must be written before events")
	}
	if err := ev.Validate(); err != nil {
		return &schema.ParseError{Msg: err.Error()}
	}
	return e.enc.Encode([3]any{ev.Time, string(ev.Kind), ev.Data})
}

// Encode writes rec to w.
func Encode(w io.Writer, rec *schema.Recording) error {
	if rec == nil {
		return errors.New("recording is nil")
	}
	enc := NewEncoder(w)
	if err := enc.WriteHeader(rec.Header); err != nil {
		return err
	}
	for i := range rec.Events {
		if err := rec.Events[i].Validate(); err != nil {
			return &schema.ParseError{Msg: fmt.Sprintf("event %d: %v", i, err)}
		}
		if err := enc.WriteEvent(rec.Events[i]); err != nil {
			return err
		}
	}
	return nil
}

// Serialize encodes rec into memory.
func Serialize(rec *schema.Recording) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
