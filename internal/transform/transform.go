// Package transform rewrites event timing in place.
//
// Transforms validate their parameters when constructed and cannot fail
// while applying. They never reorder, insert, or drop events.
package transform

import (
	"math"
	"strconv"

	"pkt.systems/agentrec/schema"
)

// DefaultThreshold is the silence cap used when neither the caller nor the
// header supplies one.
const DefaultThreshold = schema.DefaultSilenceThreshold

// Transform mutates an exclusively held event slice in place.
type Transform interface {
	Apply(events []schema.Event)
}

// Elementwise marks transforms whose effect on an event depends only on that
// event, so disjoint ranges may be processed independently.
type Elementwise interface {
	Transform
	elementwise()
}

// Chain applies transforms in order to the same slice.
type Chain []Transform

// Apply runs every transform in sequence.
func (c Chain) Apply(events []schema.Event) {
	for _, t := range c {
		t.Apply(events)
	}
}

// SilenceRemoval caps every delta at a threshold.
type SilenceRemoval struct {
	threshold float64
}

// NewSilenceRemoval validates threshold and returns the transform.
func NewSilenceRemoval(threshold float64) (*SilenceRemoval, error) {
	if err := checkSeconds("threshold", threshold); err != nil {
		return nil, err
	}
	return &SilenceRemoval{threshold: threshold}, nil
}

// Threshold returns the configured cap.
func (s *SilenceRemoval) Threshold() float64 {
	return s.threshold
}

// Apply clamps each delta to the threshold.
func (s *SilenceRemoval) Apply(events []schema.Event) {
	limit := s.threshold
	for i := range events {
		if events[i].Time > limit {
			events[i].Time = limit
		}
	}
}

// Count reports how many events Apply would clamp.
func (s *SilenceRemoval) Count(events []schema.Event) int {
	n := 0
	for i := range events {
		if events[i].Time > s.threshold {
			n++
		}
	}
	return n
}

func (*SilenceRemoval) elementwise() {}

// TimeScale divides every delta by a speed factor.
type TimeScale struct {
	factor float64
}

// NewTimeScale validates factor and returns the transform.
func NewTimeScale(factor float64) (*TimeScale, error) {
	if math.IsNaN(factor) || math.IsInf(factor, 0) || factor <= 0 {
		return nil, &schema.ValidationError{
			Param: "speed",
			Value: strconv.FormatFloat(factor, 'g', -1, 64),
			Msg:   "speed must be a positive finite multiplier",
			Hint:  "use 2 to halve every delay, 0.5 to double it",
		}
	}
	return &TimeScale{factor: factor}, nil
}

// Factor returns the configured speed factor.
func (s *TimeScale) Factor() float64 {
	return s.factor
}

// Apply scales every delta.
func (s *TimeScale) Apply(events []schema.Event) {
	if s.factor == 1 {
		return
	}
	for i := range events {
		events[i].Time /= s.factor
	}
}

func (*TimeScale) elementwise() {}

// ResolveThreshold picks the silence cap: an explicit value wins, then the
// header idle_time_limit, then fallback. A non-positive fallback means
// DefaultThreshold.
func ResolveThreshold(explicit *float64, header schema.Header, fallback float64) float64 {
	if explicit != nil {
		return *explicit
	}
	if header.IdleTimeLimit != nil {
		return *header.IdleTimeLimit
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultThreshold
}

func checkSeconds(param string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return &schema.ValidationError{
			Param: param,
			Value: strconv.FormatFloat(v, 'g', -1, 64),
			Msg:   param + " must be a positive finite number of seconds",
		}
	}
	return nil
}
