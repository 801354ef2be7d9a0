package sdk

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/celerix-dev/emap-store/pkg/engine"
)

// Compile-time checks that both implementations satisfy the contract.
var (
	_ WorkspaceService = (*engine.Manager)(nil)
	_ WorkspaceService = (*Client)(nil)
)

// New returns a WorkspaceService for the environment. When EMAP_ADDR is set
// and a daemon answers there, the remote client is returned; otherwise the
// engine is opened in-process on dataDir. The returned Closer releases it.
func New(ctx context.Context, dataDir string) (WorkspaceService, io.Closer, error) {
	if addr := os.Getenv("EMAP_ADDR"); addr != "" {
		client := NewClient(addr)
		if err := client.Ping(ctx); err == nil {
			return client, client, nil
		}
		slog.Warn("remote store unreachable, falling back to embedded mode", "addr", addr)
	}

	m, err := engine.Open(ctx, engine.Options{DataDir: dataDir})
	if err != nil {
		return nil, nil, err
	}
	return m, m, nil
}
