package main

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/agentrec/schema"
)

const (
	exitOK       = 0
	exitFailure  = 1
	exitUsage    = 2
	exitParse    = 3
	exitNotFound = 4
	exitIO       = 5
	exitPlayback = 6
)

// usageError marks command-line mistakes.
type usageError struct {
	err error
}

func (e usageError) Error() string {
	return e.err.Error()
}

func (e usageError) Unwrap() error {
	return e.err
}

// usageArgs marks positional argument errors as usage errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageError{err: err}
		}
		return nil
	}
}

func exitCode(err error) int {
	var usage usageError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &usage), errors.Is(err, schema.ErrValidation):
		return exitUsage
	case errors.Is(err, schema.ErrParse):
		return exitParse
	case errors.Is(err, fs.ErrNotExist):
		return exitNotFound
	case errors.Is(err, schema.ErrIO):
		return exitIO
	case errors.Is(err, schema.ErrPlayback):
		return exitPlayback
	case strings.HasPrefix(err.Error(), "unknown command"):
		return exitUsage
	default:
		return exitFailure
	}
}
