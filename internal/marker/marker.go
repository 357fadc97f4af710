// Package marker derives and inserts labeled timeline markers.
package marker

import (
	"math"
	"strconv"
	"strings"

	"pkt.systems/agentrec/schema"
)

// Epsilon is the tolerance used when comparing a playback position with a
// marker time.
const Epsilon = 1e-6

// List returns every marker in rec in ascending time order.
func List(rec *schema.Recording) []schema.MarkerEntry {
	if rec == nil {
		return nil
	}
	var out []schema.MarkerEntry
	var cum float64
	for i := range rec.Events {
		ev := &rec.Events[i]
		cum += ev.Time
		if ev.Kind == schema.KindMarker {
			out = append(out, schema.MarkerEntry{Time: cum, Label: ev.Data, Index: i})
		}
	}
	return out
}

// Add inserts a marker at time at without changing the recording's total
// duration. The event spanning at has its delta split around the marker.
// When at coincides with the cumulative time of existing events, the marker
// is placed after all of them. Nothing is modified when validation fails.
//
// The split is exact when the deltas and at are representable in binary
// (integers, halves, quarters and so on). For decimal fractions the new
// deltas are rounded, so the duration summed in float64 may differ from the
// original by a few ulps.
func Add(rec *schema.Recording, at float64, label string) (schema.MarkerEntry, error) {
	if rec == nil {
		return schema.MarkerEntry{}, &schema.ValidationError{Param: "recording", Msg: "recording is nil"}
	}
	if strings.TrimSpace(label) == "" {
		return schema.MarkerEntry{}, &schema.ValidationError{Param: "label", Msg: "label must not be empty"}
	}
	if math.IsNaN(at) || math.IsInf(at, 0) {
		return schema.MarkerEntry{}, &schema.ValidationError{
			Param: "marker time",
			Value: formatSeconds(at),
			Msg:   "time must be a finite number of seconds",
		}
	}
	if at < 0 {
		return schema.MarkerEntry{}, &schema.ValidationError{
			Param: "marker time",
			Value: formatSeconds(at),
			Msg:   "time must not be negative",
		}
	}
	total := rec.Duration()
	if at > total {
		return schema.MarkerEntry{}, &schema.ValidationError{
			Param: "marker time",
			Value: formatSeconds(at),
			Msg:   "time is past the end of the recording",
			Hint:  "recording lasts " + formatSeconds(total) + "s",
		}
	}

	idx := len(rec.Events)
	var cum float64
	for i := range rec.Events {
		if cum+rec.Events[i].Time > at {
			idx = i
			break
		}
		cum += rec.Events[i].Time
	}
	delta := at - cum
	if delta < 0 {
		delta = 0
	}
	if idx < len(rec.Events) {
		rest := rec.Events[idx].Time - delta
		if rest < 0 {
			rest = 0
		}
		rec.Events[idx].Time = rest
	}
	rec.Events = append(rec.Events, schema.Event{})
	copy(rec.Events[idx+1:], rec.Events[idx:])
	rec.Events[idx] = schema.Event{Time: delta, Kind: schema.KindMarker, Data: label}
	return schema.MarkerEntry{Time: cum + delta, Label: label, Index: idx}, nil
}

// Next returns the first entry strictly after t.
func Next(entries []schema.MarkerEntry, t float64) (schema.MarkerEntry, bool) {
	for _, m := range entries {
		if m.Time > t+Epsilon {
			return m, true
		}
	}
	return schema.MarkerEntry{}, false
}

// Prev returns the last entry strictly before t.
func Prev(entries []schema.MarkerEntry, t float64) (schema.MarkerEntry, bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Time < t-Epsilon {
			return entries[i], true
		}
	}
	return schema.MarkerEntry{}, false
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
