package core

import (
	"context"
	"io"

	"pkt.systems/agentrec/schema"
)

// Service is the boundary API over recordings on disk.
type Service interface {
	Transform(ctx context.Context, req schema.TransformRequest) (schema.TransformResponse, error)
	AddMarker(ctx context.Context, req schema.AddMarkerRequest) (schema.AddMarkerResponse, error)
	ListMarkers(ctx context.Context, req schema.ListMarkersRequest) (schema.ListMarkersResponse, error)
	Play(ctx context.Context, req schema.PlayRequest) (schema.PlayResponse, error)
	Info(ctx context.Context, req schema.InfoRequest) (schema.InfoResponse, error)
	Cat(ctx context.Context, req schema.CatRequest, w io.Writer) (schema.CatResponse, error)
}
