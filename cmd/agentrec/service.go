package main

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"pkt.systems/agentrec/core"
	"pkt.systems/agentrec/internal/appconfig"
	"pkt.systems/agentrec/schema"
)

// newService loads the config at cfgPath and builds the service from it.
func newService(cfgPath string) (core.Service, error) {
	cfg, err := appconfig.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return core.NewService(cfg.ServiceConfig(), core.ServiceDeps{})
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// parseTimestamp accepts plain seconds ("45.2") or clock notation
// ("1:02.5", "1:00:00").
func parseTimestamp(raw string) (float64, error) {
	invalid := &schema.ValidationError{
		Param: "time",
		Value: strconv.Quote(raw),
		Msg:   "expected seconds or [HH:]MM:SS[.f]",
	}
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, invalid
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, invalid
	}
	var total float64
	for i, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, invalid
		}
		last := i == len(parts)-1
		if !last && v != math.Trunc(v) {
			return 0, invalid
		}
		if i > 0 && v >= 60 {
			return 0, invalid
		}
		total = total*60 + v
	}
	return total, nil
}

// parseNumber parses a float flag value; range checks are left to the
// service so errors carry the operation and file.
func parseNumber(param, raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, &schema.ValidationError{
			Param: param,
			Value: strconv.Quote(raw),
			Msg:   "not a number",
		}
	}
	return v, nil
}
