package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"pkt.systems/agentrec/internal/castfile"
	"pkt.systems/agentrec/internal/logx"
	"pkt.systems/agentrec/internal/marker"
	"pkt.systems/agentrec/internal/player"
	"pkt.systems/agentrec/internal/transform"
	"pkt.systems/agentrec/schema"
	"pkt.systems/pslog"
)

// service implements the core service behavior.
type service struct {
	cfg  schema.ServiceConfig
	deps ServiceDeps
}

// NewService constructs the core service implementation.
func NewService(cfg schema.ServiceConfig, deps ServiceDeps) (Service, error) {
	normalized, err := schema.NormalizeServiceConfig(cfg)
	if err != nil {
		return nil, err
	}
	if deps.IsTerminal == nil {
		deps.IsTerminal = stdioIsTerminal
	}
	return &service{cfg: normalized, deps: deps}, nil
}

// begin binds an operation logger to ctx. An injected logger replaces the
// context logger.
func (s *service) begin(ctx context.Context, op, path string) (context.Context, pslog.Logger) {
	if s.deps.Logger != nil {
		ctx = pslog.ContextWithLogger(ctx, s.deps.Logger)
	}
	return logx.ContextWithOpLogger(ctx, op, path)
}

func (s *service) Transform(ctx context.Context, req schema.TransformRequest) (schema.TransformResponse, error) {
	if ctx == nil {
		return schema.TransformResponse{}, errors.New("missing context")
	}
	ctx, log := s.begin(ctx, "transform", req.Path)
	resp, err := s.transform(ctx, log, req)
	if err != nil {
		log.Warn("service transform failed", "err", err)
		return schema.TransformResponse{}, schema.WrapOp("transform", req.Path, err)
	}
	return resp, nil
}

func (s *service) transform(ctx context.Context, log pslog.Logger, req schema.TransformRequest) (schema.TransformResponse, error) {
	if !req.RemoveSilence && req.Speed == nil {
		return schema.TransformResponse{}, &schema.ValidationError{
			Param: "transform",
			Msg:   "no transform requested",
			Hint:  "pass --remove-silence and/or --speed",
		}
	}
	var scale *transform.TimeScale
	if req.Threshold != nil {
		if _, err := transform.NewSilenceRemoval(*req.Threshold); err != nil {
			return schema.TransformResponse{}, err
		}
	}
	if req.Speed != nil {
		var err error
		if scale, err = transform.NewTimeScale(*req.Speed); err != nil {
			return schema.TransformResponse{}, err
		}
	}
	rec, _, err := castfile.Load(ctx, req.Path)
	if err != nil {
		return schema.TransformResponse{}, err
	}

	var stages transform.Chain
	var silence *transform.SilenceRemoval
	if req.RemoveSilence {
		threshold := transform.ResolveThreshold(req.Threshold, rec.Header, s.cfg.DefaultThreshold)
		if silence, err = transform.NewSilenceRemoval(threshold); err != nil {
			return schema.TransformResponse{}, err
		}
		stages = append(stages, silence)
	}
	if scale != nil {
		stages = append(stages, scale)
	}

	resp := schema.TransformResponse{
		Output:         req.Output,
		Events:         len(rec.Events),
		DurationBefore: rec.Duration(),
	}
	if resp.Output == "" {
		resp.Output = req.Path
	}
	if silence != nil {
		resp.Threshold = silence.Threshold()
		resp.Clamped = silence.Count(rec.Events)
	}
	for _, stage := range stages {
		if err := transform.ApplyParallel(ctx, rec.Events, stage, s.cfg.TransformWorkers); err != nil {
			return schema.TransformResponse{}, err
		}
	}
	if scale != nil && rec.Header.IdleTimeLimit != nil {
		limit := *rec.Header.IdleTimeLimit / scale.Factor()
		rec.Header.IdleTimeLimit = &limit
	}
	resp.DurationAfter = rec.Duration()

	if err := castfile.Save(ctx, resp.Output, rec); err != nil {
		return schema.TransformResponse{}, err
	}
	log.Info("service transform applied",
		"output", resp.Output,
		"events", resp.Events,
		"clamped", resp.Clamped,
		"duration_before", resp.DurationBefore,
		"duration_after", resp.DurationAfter,
	)
	return resp, nil
}

func (s *service) AddMarker(ctx context.Context, req schema.AddMarkerRequest) (schema.AddMarkerResponse, error) {
	if ctx == nil {
		return schema.AddMarkerResponse{}, errors.New("missing context")
	}
	ctx, log := s.begin(ctx, "marker add", req.Path)
	rec, _, err := castfile.Load(ctx, req.Path)
	if err != nil {
		return schema.AddMarkerResponse{}, schema.WrapOp("marker add", req.Path, err)
	}
	entry, err := marker.Add(rec, req.Time, req.Label)
	if err != nil {
		log.Warn("service marker rejected", "err", err)
		return schema.AddMarkerResponse{}, schema.WrapOp("marker add", req.Path, err)
	}
	out := req.Output
	if out == "" {
		out = req.Path
	}
	if err := castfile.Save(ctx, out, rec); err != nil {
		log.Warn("service marker save failed", "err", err)
		return schema.AddMarkerResponse{}, schema.WrapOp("marker add", req.Path, err)
	}
	log.Info("service marker added", "time", entry.Time, "label", entry.Label, "index", entry.Index, "output", out)
	return schema.AddMarkerResponse{Output: out, Marker: entry}, nil
}

func (s *service) ListMarkers(ctx context.Context, req schema.ListMarkersRequest) (schema.ListMarkersResponse, error) {
	if ctx == nil {
		return schema.ListMarkersResponse{}, errors.New("missing context")
	}
	ctx, log := s.begin(ctx, "marker list", req.Path)
	rec, _, err := castfile.Load(ctx, req.Path)
	if err != nil {
		return schema.ListMarkersResponse{}, schema.WrapOp("marker list", req.Path, err)
	}
	markers := marker.List(rec)
	log.Debug("service markers listed", "count", len(markers))
	return schema.ListMarkersResponse{Markers: markers}, nil
}

func (s *service) Play(ctx context.Context, req schema.PlayRequest) (schema.PlayResponse, error) {
	if ctx == nil {
		return schema.PlayResponse{}, errors.New("missing context")
	}
	ctx, log := s.begin(ctx, "play", req.Path)
	speed := req.Speed
	if speed == 0 {
		speed = s.cfg.Player.Speed
	}
	if speed <= 0 || math.IsNaN(speed) || math.IsInf(speed, 0) {
		return schema.PlayResponse{}, schema.WrapOp("play", req.Path, &schema.ValidationError{
			Param: "speed",
			Value: strconv.FormatFloat(speed, 'g', -1, 64),
			Msg:   "speed must be a positive finite multiplier",
		})
	}
	rec, _, err := castfile.Load(ctx, req.Path)
	if err != nil {
		return schema.PlayResponse{}, schema.WrapOp("play", req.Path, err)
	}
	if !s.deps.IsTerminal() {
		return schema.PlayResponse{}, schema.WrapOp("play", req.Path, &schema.PlaybackError{Msg: "stdin and stdout must be a terminal"})
	}

	opts := player.OptionsFromConfig(s.cfg.Player)
	opts.Speed = speed
	opts.Display = s.deps.Display
	opts.Logger = log
	p := player.New(rec, opts)
	if err := p.Run(ctx); err != nil {
		log.Warn("service playback failed", "err", err)
		return schema.PlayResponse{}, schema.WrapOp("play", req.Path, err)
	}
	return schema.PlayResponse{
		Position: p.Position(),
		Duration: p.Duration(),
		Finished: p.Applied() == len(rec.Events),
	}, nil
}

func (s *service) Info(ctx context.Context, req schema.InfoRequest) (schema.InfoResponse, error) {
	if ctx == nil {
		return schema.InfoResponse{}, errors.New("missing context")
	}
	ctx, _ = s.begin(ctx, "info", req.Path)
	rec, warnings, err := castfile.Load(ctx, req.Path)
	if err != nil {
		return schema.InfoResponse{}, schema.WrapOp("info", req.Path, err)
	}
	resp := schema.InfoResponse{
		Header:   rec.Header,
		Duration: rec.Duration(),
		Events:   len(rec.Events),
		Counts:   make(map[schema.EventKind]int),
		Markers:  marker.List(rec),
	}
	for i := range rec.Events {
		resp.Counts[rec.Events[i].Kind]++
	}
	for _, w := range warnings {
		resp.Warnings = append(resp.Warnings, w.String())
	}
	return resp, nil
}

func (s *service) Cat(ctx context.Context, req schema.CatRequest, w io.Writer) (schema.CatResponse, error) {
	if ctx == nil {
		return schema.CatResponse{}, errors.New("missing context")
	}
	_, log := s.begin(ctx, "cat", req.Path)
	resp, err := cat(ctx, req.Path, w)
	if err != nil {
		log.Warn("service cat failed", "err", err, "bytes", resp.Bytes)
		return resp, schema.WrapOp("cat", req.Path, err)
	}
	log.Debug("service cat done", "events", resp.Events, "bytes", resp.Bytes)
	return resp, nil
}

// cat streams Output payloads without loading the whole recording.
func cat(ctx context.Context, path string, w io.Writer) (schema.CatResponse, error) {
	var resp schema.CatResponse
	r, err := castfile.Open(path)
	if err != nil {
		return resp, err
	}
	defer func() { _ = r.Close() }()
	if _, err := r.Header(); err != nil {
		return resp, err
	}
	for {
		if err := ctx.Err(); err != nil {
			return resp, err
		}
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return resp, nil
		}
		if err != nil {
			var perr *schema.ParseError
			if errors.As(err, &perr) {
				return resp, err
			}
			return resp, &schema.IOError{Op: "read recording", Path: path, Err: err}
		}
		if ev.Kind != schema.KindOutput {
			continue
		}
		n, err := io.WriteString(w, ev.Data)
		resp.Bytes += int64(n)
		if err != nil {
			return resp, &schema.IOError{Op: "write output", Err: fmt.Errorf("event %d: %w", resp.Events, err)}
		}
		resp.Events++
	}
}
