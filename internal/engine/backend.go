package engine

import (
	"context"
	"errors"
	"os"
)

var (
	// ErrBackendUnavailable means the backend cannot run in this
	// environment (no credentials, unsupported region or platform).
	ErrBackendUnavailable = errors.New("generation backend unavailable")

	// ErrBackendDisabled means the backend exists but has been turned off
	// and the user has to enable it.
	ErrBackendDisabled = errors.New("generation backend disabled")
)

// Backend produces text for a prompt under a system instruction.
type Backend interface {
	Respond(ctx context.Context, systemInstructions, prompt string, temperature float32) (string, error)
}

// RunningAsRoot reports whether the process has elevated privileges.
// Generation is refused in that case.
func RunningAsRoot() bool {
	return os.Geteuid() == 0
}
