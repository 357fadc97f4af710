package castfile

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"pkt.systems/agentrec/internal/persist"
	"pkt.systems/agentrec/schema"
	"pkt.systems/pslog"
)

// CompressedSuffix marks recordings stored zstd-compressed.
const CompressedSuffix = ".zst"

// IsCompressed reports whether path names a zstd-compressed recording.
func IsCompressed(path string) bool {
	return strings.HasSuffix(path, CompressedSuffix)
}

// Reader streams a recording from disk.
type Reader struct {
	*Decoder
	file *os.File
	zr   *zstd.Decoder
}

// Open returns a Reader over the recording at path. The caller must Close it.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &schema.IOError{Op: "open recording", Err: err}
	}
	r := &Reader{file: f}
	var src io.Reader = f
	if IsCompressed(path) {
		zr, err := zstd.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, &schema.IOError{Op: "open zstd stream", Path: path, Err: err}
		}
		r.zr = zr
		src = zr
	}
	r.Decoder = NewDecoder(src)
	return r, nil
}

// Close releases the decompressor and the file.
func (r *Reader) Close() error {
	if r.zr != nil {
		r.zr.Close()
	}
	return r.file.Close()
}

// Load reads and decodes the recording at path.
func Load(ctx context.Context, path string) (*schema.Recording, []Warning, error) {
	log := pslog.Ctx(ctx).With("path", path)
	r, err := Open(path)
	if err != nil {
		log.Debug("recording open failed", "err", err)
		return nil, nil, err
	}
	defer func() { _ = r.Close() }()

	rec, err := r.ReadAll()
	warnings := r.Warnings()
	for _, w := range warnings {
		log.Warn("recording line skipped", "line", w.Line, "kind", w.Code)
	}
	if err != nil {
		return nil, warnings, readError(path, err)
	}
	log.Debug("recording loaded", "events", len(rec.Events), "warnings", len(warnings))
	return rec, warnings, nil
}

// readError keeps parse errors as they are and wraps everything else as I/O.
func readError(path string, err error) error {
	var perr *schema.ParseError
	if errors.As(err, &perr) {
		return err
	}
	return &schema.IOError{Op: "read recording", Path: path, Err: err}
}

// Save encodes rec to path atomically; the destination is either replaced
// entirely or left untouched.
func Save(ctx context.Context, path string, rec *schema.Recording) error {
	log := pslog.Ctx(ctx)
	if err := rec.Validate(); err != nil {
		return err
	}
	writer := persist.NewWriter(log)
	err := writer.WriteFile(path, func(w io.Writer) error {
		if !IsCompressed(path) {
			return Encode(w, rec)
		}
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return err
		}
		if err := Encode(zw, rec); err != nil {
			_ = zw.Close()
			return err
		}
		return zw.Close()
	})
	if err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			return &schema.IOError{Op: "write recording", Err: err}
		}
		return &schema.IOError{Op: "write recording", Path: path, Err: err}
	}
	log.Debug("recording saved", "path", path, "events", len(rec.Events))
	return nil
}
