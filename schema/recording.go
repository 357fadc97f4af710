package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// CurrentVersion is the event-log format version written by the encoder.
const CurrentVersion = 3

// EventKind tags the payload carried by an Event.
type EventKind string

const (
	// KindOutput is data written by the recorded program to the terminal.
	KindOutput EventKind = "o"
	// KindInput is data typed by the user.
	KindInput EventKind = "i"
	// KindMarker is a labeled point on the timeline.
	KindMarker EventKind = "m"
	// KindResize carries a "COLSxROWS" terminal size change.
	KindResize EventKind = "r"
	// KindExit carries the exit status of the recorded program.
	KindExit EventKind = "x"
)

// Known reports whether k belongs to the closed set of event kinds.
func (k EventKind) Known() bool {
	switch k {
	case KindOutput, KindInput, KindMarker, KindResize, KindExit:
		return true
	default:
		return false
	}
}

// String returns a readable name for the kind.
func (k EventKind) String() string {
	switch k {
	case KindOutput:
		return "output"
	case KindInput:
		return "input"
	case KindMarker:
		return "marker"
	case KindResize:
		return "resize"
	case KindExit:
		return "exit"
	default:
		return "unknown(" + string(k) + ")"
	}
}

// Header describes a recording.
type Header struct {
	Version       int               `json:"version"`
	Width         int               `json:"width"`
	Height        int               `json:"height"`
	Timestamp     int64             `json:"timestamp,omitempty"`
	IdleTimeLimit *float64          `json:"idle_time_limit,omitempty"`
	Command       string            `json:"command,omitempty"`
	Title         string            `json:"title,omitempty"`
	Env           map[string]string `json:"env,omitempty"`
}

// Event is a single timestamped record. Time is the delta in seconds since
// the previous event.
type Event struct {
	Time float64
	Kind EventKind
	Data string
}

// Recording is a header plus its ordered events.
type Recording struct {
	Header Header
	Events []Event
}

// MarkerEntry is a marker resolved to its cumulative time.
type MarkerEntry struct {
	Time  float64
	Label string
	Index int
}

// Duration returns the sum of all event deltas.
func (r *Recording) Duration() float64 {
	if r == nil {
		return 0
	}
	var total float64
	for i := range r.Events {
		total += r.Events[i].Time
	}
	return total
}

// Validate checks the header and every event against the format rules.
func (r *Recording) Validate() error {
	if r == nil {
		return &ParseError{Msg: "recording is nil"}
	}
	if err := r.Header.Validate(); err != nil {
		return err
	}
	for i, ev := range r.Events {
		if err := ev.Validate(); err != nil {
			return &ParseError{Msg: fmt.Sprintf("event %d: %v", i, err)}
		}
	}
	return nil
}

// Validate checks that the required header fields are present.
func (h Header) Validate() error {
	if h.Version == 0 {
		return &ParseError{Line: 1, Msg: "header is missing required field \"version\""}
	}
	if h.Version != CurrentVersion {
		return &ParseError{Line: 1, Msg: fmt.Sprintf("unsupported format version %d; expected %d", h.Version, CurrentVersion)}
	}
	if h.Width <= 0 {
		return &ParseError{Line: 1, Msg: "header is missing required field \"width\""}
	}
	if h.Height <= 0 {
		return &ParseError{Line: 1, Msg: "header is missing required field \"height\""}
	}
	if h.IdleTimeLimit != nil {
		v := *h.IdleTimeLimit
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return &ParseError{Line: 1, Msg: "idle_time_limit must be a positive number of seconds"}
		}
	}
	return nil
}

// Validate checks a single event in isolation.
func (e Event) Validate() error {
	if math.IsNaN(e.Time) || math.IsInf(e.Time, 0) {
		return fmt.Errorf("time must be a finite number")
	}
	if e.Time < 0 {
		return fmt.Errorf("negative delta %g would move cumulative time backwards", e.Time)
	}
	if !e.Kind.Known() {
		return fmt.Errorf("unknown event kind %q", string(e.Kind))
	}
	if !utf8.ValidString(e.Data) {
		return fmt.Errorf("%s data is not valid UTF-8", e.Kind)
	}
	if e.Kind == KindResize {
		if _, _, err := ParseResize(e.Data); err != nil {
			return err
		}
	}
	return nil
}

// ParseResize parses a "COLSxROWS" resize payload.
func ParseResize(data string) (int, int, error) {
	colsText, rowsText, ok := strings.Cut(strings.TrimSpace(data), "x")
	if !ok {
		return 0, 0, fmt.Errorf("resize payload %q must be COLSxROWS", data)
	}
	cols, err := strconv.Atoi(colsText)
	if err != nil || cols <= 0 {
		return 0, 0, fmt.Errorf("resize payload %q has invalid column count", data)
	}
	rows, err := strconv.Atoi(rowsText)
	if err != nil || rows <= 0 {
		return 0, 0, fmt.Errorf("resize payload %q has invalid row count", data)
	}
	return cols, rows, nil
}

// FormatResize renders a resize payload.
func FormatResize(cols, rows int) string {
	return strconv.Itoa(cols) + "x" + strconv.Itoa(rows)
}

// Equal reports whether two headers carry the same fields.
func (h Header) Equal(other Header) bool {
	if h.Version != other.Version || h.Width != other.Width || h.Height != other.Height {
		return false
	}
	if h.Timestamp != other.Timestamp || h.Command != other.Command || h.Title != other.Title {
		return false
	}
	if (h.IdleTimeLimit == nil) != (other.IdleTimeLimit == nil) {
		return false
	}
	if h.IdleTimeLimit != nil && *h.IdleTimeLimit != *other.IdleTimeLimit {
		return false
	}
	if len(h.Env) != len(other.Env) {
		return false
	}
	for k, v := range h.Env {
		if ov, ok := other.Env[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Equal reports whether two recordings have equal headers and event sequences.
func (r *Recording) Equal(other *Recording) bool {
	if r == nil || other == nil {
		return r == other
	}
	if !r.Header.Equal(other.Header) {
		return false
	}
	if len(r.Events) != len(other.Events) {
		return false
	}
	for i := range r.Events {
		if r.Events[i] != other.Events[i] {
			return false
		}
	}
	return true
}
