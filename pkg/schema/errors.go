package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is the parent of every "does not exist" condition.
	ErrNotFound = errors.New("not found")
	// ErrWorkspaceNotFound is returned for an unknown workspace id.
	ErrWorkspaceNotFound = fmt.Errorf("workspace %w", ErrNotFound)
	// ErrKeyNotFound is returned when a key is absent from the active workspace.
	ErrKeyNotFound = fmt.Errorf("key %w", ErrNotFound)
	// ErrAssetNotFound is returned when an asset blob or record is absent.
	ErrAssetNotFound = fmt.Errorf("asset %w", ErrNotFound)
	// ErrPathNotFound is returned when a filesystem path does not exist.
	ErrPathNotFound = fmt.Errorf("path %w", ErrNotFound)

	// ErrNoActiveWorkspace is returned by KV and asset operations while no workspace is loaded.
	// Callers should treat it as "empty", not as a failure of the service.
	ErrNoActiveWorkspace = errors.New("no active workspace")
	// ErrInvalidInput is returned for empty names, bad file names and malformed bodies.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStorage wraps disk and database failures.
	ErrStorage = errors.New("storage error")
)

// StorageError wraps err as an ErrStorage for the named operation.
func StorageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
