package core

import (
	"os"

	"golang.org/x/term"

	"pkt.systems/agentrec/internal/player"
	"pkt.systems/pslog"
)

// ServiceDeps captures optional dependencies for the core service.
type ServiceDeps struct {
	// Display opens the playback screen; nil uses the process terminal.
	Display func() (player.Display, error)
	// IsTerminal reports whether playback has an interactive terminal.
	IsTerminal func() bool
	Logger     pslog.Logger
}

func stdioIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
