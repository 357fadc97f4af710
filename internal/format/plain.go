// Package format renders service responses as plain text lines for the CLI.
package format

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"pkt.systems/agentrec/schema"
)

// PlainRenderer formats responses as plain text lines.
type PlainRenderer struct{}

// NewPlainRenderer returns a default plain-text renderer.
func NewPlainRenderer() *PlainRenderer {
	return &PlainRenderer{}
}

// FormatMarkers renders one "TIME  LABEL" line per marker.
func (p *PlainRenderer) FormatMarkers(markers []schema.MarkerEntry) []string {
	if len(markers) == 0 {
		return []string{"no markers"}
	}
	lines := make([]string, 0, len(markers))
	for _, m := range markers {
		lines = append(lines, fmt.Sprintf("%s  %s", Seconds(m.Time), m.Label))
	}
	return lines
}

// FormatAddMarker describes an inserted marker.
func (p *PlainRenderer) FormatAddMarker(resp schema.AddMarkerResponse) []string {
	return []string{fmt.Sprintf("marker %q added at %s in %s", resp.Marker.Label, Seconds(resp.Marker.Time), resp.Output)}
}

// FormatTransform summarises a transform run.
func (p *PlainRenderer) FormatTransform(resp schema.TransformResponse) []string {
	lines := []string{fmt.Sprintf("wrote %s (%d events)", resp.Output, resp.Events)}
	if resp.Threshold > 0 {
		lines = append(lines, fmt.Sprintf("silence capped at %s: %d gaps shortened", Seconds(resp.Threshold), resp.Clamped))
	}
	lines = append(lines, fmt.Sprintf("duration %s -> %s", Clock(resp.DurationBefore), Clock(resp.DurationAfter)))
	return lines
}

// FormatInfo renders a recording summary.
func (p *PlainRenderer) FormatInfo(resp schema.InfoResponse) []string {
	h := resp.Header
	lines := []string{
		fmt.Sprintf("version:   %d", h.Version),
		fmt.Sprintf("size:      %dx%d", h.Width, h.Height),
	}
	if h.Timestamp > 0 {
		lines = append(lines, "recorded:  "+time.Unix(h.Timestamp, 0).UTC().Format(time.RFC3339))
	}
	if h.Command != "" {
		lines = append(lines, "command:   "+h.Command)
	}
	if h.Title != "" {
		lines = append(lines, "title:     "+h.Title)
	}
	if h.IdleTimeLimit != nil {
		lines = append(lines, "idle cap:  "+Seconds(*h.IdleTimeLimit))
	}
	lines = append(lines,
		"duration:  "+Clock(resp.Duration),
		fmt.Sprintf("events:    %d%s", resp.Events, countsSuffix(resp.Counts)),
	)
	if len(h.Env) > 0 {
		keys := make([]string, 0, len(h.Env))
		for k := range h.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("env:       %s=%s", k, h.Env[k]))
		}
	}
	if len(resp.Markers) > 0 {
		lines = append(lines, "markers:")
		for _, line := range p.FormatMarkers(resp.Markers) {
			lines = append(lines, "  "+line)
		}
	}
	for _, w := range resp.Warnings {
		lines = append(lines, "warning:   "+w)
	}
	return lines
}

var kindOrder = []schema.EventKind{
	schema.KindOutput, schema.KindInput, schema.KindMarker, schema.KindResize, schema.KindExit,
}

func countsSuffix(counts map[schema.EventKind]int) string {
	var parts []string
	for _, kind := range kindOrder {
		if n := counts[kind]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", kind, n))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

// Seconds renders v with the shortest exact decimal and an "s" suffix.
func Seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "s"
}

// Clock renders v as H:MM:SS.t, dropping the hour when it is zero.
func Clock(v float64) string {
	tenths := int64(math.Round(v * 10))
	h := tenths / 36000
	m := tenths / 600 % 60
	s := tenths / 10 % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d.%d", h, m, s, tenths%10)
	}
	return fmt.Sprintf("%02d:%02d.%d", m, s, tenths%10)
}
