package castfile

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pkt.systems/agentrec/schema"
)

func sampleRecording() *schema.Recording {
	limit := 2.5
	return &schema.Recording{
		Header: schema.Header{
			Version:       schema.CurrentVersion,
			Width:         80,
			Height:        24,
			Timestamp:     1700000000,
			IdleTimeLimit: &limit,
			Command:       "claude --resume",
			Title:         "fix <build> & test",
			Env:           map[string]string{"SHELL": "/bin/zsh", "TERM": "xterm-256color"},
		},
		Events: []schema.Event{
			{Time: 0, Kind: schema.KindOutput, Data: "\x1b[1;32mready\x1b[0m\r\n"},
			{Time: 0.123456789, Kind: schema.KindInput, Data: "ls\r"},
			{Time: 1e-7, Kind: schema.KindOutput, Data: "héllo 世界  "},
			{Time: 1800, Kind: schema.KindMarker, Data: "Build failed"},
			{Time: 0.5, Kind: schema.KindResize, Data: "120x40"},
			{Time: 0.1, Kind: schema.KindExit, Data: "0"},
		},
	}
}

func TestSerializeParseRoundTrip(t *testing.T) {
	rec := sampleRecording()
	data, err := Serialize(rec)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	got, warnings, err := Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if !got.Equal(rec) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, rec)
	}
	if !bytes.Contains(data, []byte("<build> & test")) {
		t.Fatalf("expected html characters to stay unescaped, got %s", data)
	}
}

func TestSerializeOneLinePerRecord(t *testing.T) {
	rec := sampleRecording()
	data, err := Serialize(rec)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != len(rec.Events)+1 {
		t.Fatalf("expected %d lines, got %d", len(rec.Events)+1, len(lines))
	}
	if !strings.HasPrefix(lines[0], `{"version":3,"width":80,"height":24`) {
		t.Fatalf("unexpected header line %q", lines[0])
	}
	if lines[4] != `[1800,"m","Build failed"]` {
		t.Fatalf("unexpected marker line %q", lines[4])
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		in   string
		line int
		want string
	}{
		{name: "empty", in: "", line: 0, want: "missing header"},
		{name: "missing width", in: `{"version":3,"height":24}` + "\n", line: 1, want: `"width"`},
		{name: "missing version", in: `{"width":80,"height":24}` + "\n", line: 1, want: `"version"`},
		{name: "bad version", in: `{"version":9,"width":80,"height":24}` + "\n", line: 1, want: "unsupported format version"},
		{name: "array header", in: `[0,"o","x"]` + "\n", line: 1, want: "header object"},
		{name: "malformed event", in: header() + `[0.1,"o","a"]` + "\n" + `[0.2,"o",` + "\n", line: 3, want: "malformed event"},
		{name: "wrong arity", in: header() + `[0.1,"o"]` + "\n", line: 2, want: "got 2 fields"},
		{name: "negative delta", in: header() + `[0.1,"o","a"]` + "\n" + `[-0.5,"o","b"]` + "\n", line: 3, want: "negative"},
		{name: "null data", in: header() + `[0.1,"o",null]` + "\n", line: 2, want: "null"},
		{name: "string time", in: header() + `["0.1","o","a"]` + "\n", line: 2, want: "time must be a number"},
		{name: "bad resize", in: header() + `[0.1,"r","wide"]` + "\n", line: 2, want: "COLSxROWS"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Parse([]byte(tc.in))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !errors.Is(err, schema.ErrParse) {
				t.Fatalf("expected parse error, got %T %v", err, err)
			}
			var perr *schema.ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("expected *schema.ParseError, got %T", err)
			}
			if perr.Line != tc.line {
				t.Fatalf("expected line %d, got %d (%v)", tc.line, perr.Line, err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %q", tc.want, err.Error())
			}
		})
	}
}

func header() string {
	return `{"version":3,"width":80,"height":24,"timestamp":1}` + "\n"
}

func TestParseSkipsUnknownKinds(t *testing.T) {
	in := header() + `[0.1,"o","a"]` + "\n" + `[0.25,"z","future"]` + "\n" + `[0.5,"o","b"]` + "\n"
	rec, warnings, err := Parse([]byte(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rec.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(rec.Events))
	}
	if rec.Events[1].Time != 0.75 {
		t.Fatalf("expected skipped delta to carry forward, got %v", rec.Events[1].Time)
	}
	if len(warnings) != 1 || warnings[0].Line != 3 || warnings[0].Code != "z" {
		t.Fatalf("unexpected warnings: %+v", warnings)
	}
	if !strings.Contains(warnings[0].String(), "line 3") {
		t.Fatalf("unexpected warning text %q", warnings[0].String())
	}
}

func TestParseSkipsBlankLines(t *testing.T) {
	in := "\n\n" + header() + "\n" + `[0.1,"o","a"]` + "\r\n\n" + `[0.2,"o","b"]`
	rec, _, err := Parse([]byte(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rec.Events) != 2 || rec.Events[1].Data != "b" {
		t.Fatalf("unexpected events: %+v", rec.Events)
	}
}

func TestParseUpgradesVersionTwo(t *testing.T) {
	in := `{"version":2,"width":80,"height":24}` + "\n" +
		`[0.5,"o","a"]` + "\n" +
		`[1.0,"o","b"]` + "\n" +
		`[1.0,"o","c"]` + "\n" +
		`[4.25,"o","d"]` + "\n"
	rec, _, err := Parse([]byte(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rec.Header.Version != schema.CurrentVersion {
		t.Fatalf("expected upgraded version, got %d", rec.Header.Version)
	}
	want := []float64{0.5, 0.5, 0, 3.25}
	for i, ev := range rec.Events {
		if ev.Time != want[i] {
			t.Fatalf("event %d: expected delta %v, got %v", i, want[i], ev.Time)
		}
	}
}

func TestParseVersionTwoRejectsTimeTravel(t *testing.T) {
	in := `{"version":2,"width":80,"height":24}` + "\n" +
		`[2,"o","a"]` + "\n" +
		`[1,"o","b"]` + "\n"
	_, _, err := Parse([]byte(in))
	var perr *schema.ParseError
	if !errors.As(err, &perr) || perr.Line != 3 {
		t.Fatalf("expected parse error at line 3, got %v", err)
	}
}

func TestEncoderRequiresHeaderFirst(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	if err := enc.WriteEvent(schema.Event{Kind: schema.KindOutput}); err == nil {
		t.Fatalf("expected error writing event before header")
	}
	if err := enc.WriteHeader(sampleRecording().Header); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if err := enc.WriteHeader(sampleRecording().Header); err == nil {
		t.Fatalf("expected error writing header twice")
	}
	if err := enc.WriteEvent(schema.Event{Time: -1, Kind: schema.KindOutput}); !errors.Is(err, schema.ErrParse) {
		t.Fatalf("expected parse error for negative delta, got %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, name := range []string{"session.cast", "session.cast.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			rec := sampleRecording()
			if err := Save(context.Background(), path, rec); err != nil {
				t.Fatalf("save: %v", err)
			}
			got, warnings, err := Load(context.Background(), path)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if len(warnings) != 0 {
				t.Fatalf("unexpected warnings: %v", warnings)
			}
			if !got.Equal(rec) {
				t.Fatalf("round trip mismatch")
			}
		})
	}
}

func TestSaveCompressesZstd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.cast.zst")
	if err := Save(context.Background(), path, sampleRecording()); err != nil {
		t.Fatalf("save: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	magic := []byte{0x28, 0xb5, 0x2f, 0xfd}
	if !bytes.HasPrefix(raw, magic) {
		t.Fatalf("expected zstd frame magic, got % x", raw[:4])
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.cast"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist, got %v", err)
	}
	if !errors.Is(err, schema.ErrIO) {
		t.Fatalf("expected io error, got %T", err)
	}
}

func TestLoadReportsParseLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.cast")
	if err := os.WriteFile(path, []byte(header()+"not json\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, _, err := Load(context.Background(), path)
	var perr *schema.ParseError
	if !errors.As(err, &perr) || perr.Line != 2 {
		t.Fatalf("expected parse error at line 2, got %v", err)
	}
}

func TestSaveInvalidLeavesTargetUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.cast")
	original := []byte(header())
	if err := os.WriteFile(path, original, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	rec := sampleRecording()
	rec.Events[2].Time = -3
	if err := Save(context.Background(), path, rec); err == nil {
		t.Fatalf("expected save error")
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, original) {
		t.Fatalf("target modified: %q", got)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected no temp files, found %d entries", len(entries))
	}
}

func TestSplitRuneAcrossEventsIsRejected(t *testing.T) {
	rec := sampleRecording()
	rec.Events = []schema.Event{
		{Time: 0, Kind: schema.KindOutput, Data: "a\xe4\xb8"},
		{Time: 0.1, Kind: schema.KindOutput, Data: "\x96b"},
	}
	if err := rec.Validate(); !errors.Is(err, schema.ErrParse) || !strings.Contains(err.Error(), "event 0") {
		t.Fatalf("expected validation to name event 0, got %v", err)
	}
	if _, err := Serialize(rec); !errors.Is(err, schema.ErrParse) || !strings.Contains(err.Error(), "UTF-8") {
		t.Fatalf("expected serialize to reject invalid UTF-8, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "session.cast")
	original := []byte(header())
	if err := os.WriteFile(path, original, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := Save(context.Background(), path, rec); err == nil {
		t.Fatalf("expected save error")
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, original) {
		t.Fatalf("target modified: %q", got)
	}

	// The same bytes joined into one event round-trip exactly.
	rec.Events = []schema.Event{{Time: 0.1, Kind: schema.KindOutput, Data: "a\xe4\xb8\x96b"}}
	data, err := Serialize(rec)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	back, _, err := Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !back.Equal(rec) || back.Events[0].Data != "a世b" {
		t.Fatalf("round trip mismatch: %q", back.Events[0].Data)
	}
}

func TestOpenStreamsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.cast.zst")
	rec := sampleRecording()
	if err := Save(context.Background(), path, rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	r, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = r.Close() }()
	hdr, err := r.Header()
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if !hdr.Equal(rec.Header) {
		t.Fatalf("header mismatch: %+v", hdr)
	}
	ev, err := r.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if ev != rec.Events[0] {
		t.Fatalf("first event: %+v", ev)
	}
	rest, err := r.ReadAll()
	if err != nil {
		t.Fatalf("read rest: %v", err)
	}
	if len(rest.Events) != len(rec.Events)-1 {
		t.Fatalf("expected %d remaining events, got %d", len(rec.Events)-1, len(rest.Events))
	}
}
