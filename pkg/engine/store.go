// Package engine exposes the embedded workspace engine to programs outside
// this module, for callers that do not want to run the daemon.
package engine

import (
	"context"

	core "github.com/celerix-dev/emap-store/internal/engine"
)

// Manager is the in-process workspace service.
type Manager = core.Manager

// Options configures Open.
type Options = core.Options

// Open opens the store under opts.DataDir and restores the last active
// workspace.
func Open(ctx context.Context, opts Options) (*Manager, error) {
	return core.Open(ctx, opts)
}
