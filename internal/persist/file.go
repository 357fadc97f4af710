package persist

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pkt.systems/pslog"
)

// DefaultFileMode is used when the destination does not exist yet.
const DefaultFileMode os.FileMode = 0o644

// Writer writes atomically to a single destination path.
type Writer struct {
	log pslog.Logger
}

// NewWriter constructs a Writer; logger may be nil.
func NewWriter(logger pslog.Logger) *Writer {
	return &Writer{log: logger}
}

// WriteFile writes the output of fill to path via a temporary file in the
// same directory followed by a rename. The destination is either left
// untouched or fully replaced. An existing destination keeps its mode.
func (w *Writer) WriteFile(path string, fill func(io.Writer) error) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("destination path is required")
	}
	dir := filepath.Dir(path)
	mode := DefaultFileMode
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		w.warn("atomic write failed", path, err)
		return err
	}
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}
	buf := bufio.NewWriterSize(tmp, 64*1024)
	if err := fill(buf); err != nil {
		cleanup()
		w.warn("atomic write failed", path, err)
		return err
	}
	if err := buf.Flush(); err != nil {
		cleanup()
		w.warn("atomic write failed", path, err)
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		w.warn("atomic write failed", path, err)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		w.warn("atomic write failed", path, err)
		return err
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		_ = os.Remove(tmp.Name())
		w.warn("atomic write failed", path, err)
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		w.warn("atomic write failed", path, err)
		return err
	}
	if w != nil && w.log != nil {
		w.log.Trace("atomic write ok", "path", path)
	}
	return nil
}

func (w *Writer) warn(msg, path string, err error) {
	if w == nil || w.log == nil {
		return
	}
	w.log.Warn(msg, "path", path, "err", err)
}

// WriteFile is a convenience wrapper around a Writer without logging.
func WriteFile(path string, fill func(io.Writer) error) error {
	return NewWriter(nil).WriteFile(path, fill)
}
