package schema

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrParse indicates a malformed header or event line.
	ErrParse = errors.New("parse error")
	// ErrValidation indicates an invalid transform or marker parameter.
	ErrValidation = errors.New("invalid parameter")
	// ErrIO indicates a filesystem failure.
	ErrIO = errors.New("i/o error")
	// ErrPlayback indicates the terminal device was unavailable or lost.
	ErrPlayback = errors.New("playback error")
)

// ParseError describes why a recording could not be decoded.
// Line is 1-based; zero means the position is unknown.
type ParseError struct {
	Line int
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("parse error")
	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d", e.Line)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Is matches ErrParse.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError describes a rejected parameter.
type ValidationError struct {
	Param string
	Value string
	Msg   string
	Hint  string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("invalid ")
	b.WriteString(e.Param)
	if e.Value != "" {
		fmt.Fprintf(&b, " %s", e.Value)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Hint != "" {
		b.WriteString(" (")
		b.WriteString(e.Hint)
		b.WriteString(")")
	}
	return b.String()
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// IOError wraps a filesystem failure. It unwraps to the underlying error so
// errors.Is(err, fs.ErrNotExist) still works.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Is matches ErrIO.
func (e *IOError) Is(target error) bool {
	return target == ErrIO
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// PlaybackError describes a terminal device failure during playback.
type PlaybackError struct {
	Msg string
	Err error
}

func (e *PlaybackError) Error() string {
	if e.Err == nil {
		return "playback: " + e.Msg
	}
	return fmt.Sprintf("playback: %s: %v", e.Msg, e.Err)
}

// Is matches ErrPlayback.
func (e *PlaybackError) Is(target error) bool {
	return target == ErrPlayback
}

func (e *PlaybackError) Unwrap() error {
	return e.Err
}

// OpError names the operation and file an error occurred in.
type OpError struct {
	Op   string
	Path string
	Err  error
}

func (e *OpError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// WrapOp annotates err with op and path; nil stays nil.
func WrapOp(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var existing *OpError
	if errors.As(err, &existing) && existing.Op == op && existing.Path == path {
		return err
	}
	return &OpError{Op: op, Path: path, Err: err}
}
