package sdk

import (
	"errors"
	"fmt"

	"github.com/celerix-dev/emap-store/pkg/schema"
)

// Error codes carried in the "code" field of HTTP error bodies.
const (
	CodeWorkspaceNotFound = "workspace_not_found"
	CodeKeyNotFound       = "key_not_found"
	CodeAssetNotFound     = "asset_not_found"
	CodePathNotFound      = "path_not_found"
	CodeNotFound          = "not_found"
	CodeNoActiveWorkspace = "no_active_workspace"
	CodeInvalidInput      = "invalid_input"
	CodeStorage           = "storage"
	CodeInternal          = "internal"
)

var codeErrors = []struct {
	code string
	err  error
}{
	// Most specific first: every *_not_found error also matches ErrNotFound.
	{CodeWorkspaceNotFound, schema.ErrWorkspaceNotFound},
	{CodeKeyNotFound, schema.ErrKeyNotFound},
	{CodeAssetNotFound, schema.ErrAssetNotFound},
	{CodePathNotFound, schema.ErrPathNotFound},
	{CodeNotFound, schema.ErrNotFound},
	{CodeNoActiveWorkspace, schema.ErrNoActiveWorkspace},
	{CodeInvalidInput, schema.ErrInvalidInput},
	{CodeStorage, schema.ErrStorage},
}

// ErrorCode classifies err for the wire.
func ErrorCode(err error) string {
	for _, ce := range codeErrors {
		if errors.Is(err, ce.err) {
			return ce.code
		}
	}
	return CodeInternal
}

// ErrorFromCode rebuilds an error that matches the sentinel behind code.
func ErrorFromCode(code, msg string) error {
	for _, ce := range codeErrors {
		if ce.code == code {
			return fmt.Errorf("%w (remote: %s)", ce.err, msg)
		}
	}
	return fmt.Errorf("remote error: %s", msg)
}
