package schema

// Transform operations.

// TransformRequest describes an in-place or copy-out rewrite of a recording.
// A nil Threshold with RemoveSilence set falls back to the header
// idle_time_limit and then to the configured default.
type TransformRequest struct {
	Path          string
	RemoveSilence bool
	Threshold     *float64
	Speed         *float64
	Output        string
}

// TransformResponse reports what the transform changed.
type TransformResponse struct {
	Output         string
	Threshold      float64
	Events         int
	Clamped        int
	DurationBefore float64
	DurationAfter  float64
}

// Marker operations.

// AddMarkerRequest describes a marker insertion.
type AddMarkerRequest struct {
	Path   string
	Time   float64
	Label  string
	Output string
}

// AddMarkerResponse reports the inserted marker.
type AddMarkerResponse struct {
	Output string
	Marker MarkerEntry
}

// ListMarkersRequest describes a marker listing.
type ListMarkersRequest struct {
	Path string
}

// ListMarkersResponse reports markers in ascending time.
type ListMarkersResponse struct {
	Markers []MarkerEntry
}

// Playback.

// PlayRequest describes a native playback session. Zero Speed uses the
// configured default.
type PlayRequest struct {
	Path  string
	Speed float64
}

// PlayResponse reports where playback stopped.
type PlayResponse struct {
	Position float64
	Duration float64
	Finished bool
}

// Inspection.

// InfoRequest describes a recording summary request.
type InfoRequest struct {
	Path string
}

// InfoResponse summarises a recording.
type InfoResponse struct {
	Header   Header
	Duration float64
	Events   int
	Counts   map[EventKind]int
	Markers  []MarkerEntry
	Warnings []string
}

// CatRequest describes a raw output dump.
type CatRequest struct {
	Path string
}

// CatResponse reports how much output was written.
type CatResponse struct {
	Bytes  int64
	Events int
}
