package assets

import (
	"mime"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"

	"github.com/celerix-dev/emap-store/pkg/schema"
)

// MimeTypeByName derives a content type from the extension of name, used
// when serving blobs. Unknown extensions get schema.DefaultMimeType.
func MimeTypeByName(name string) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return schema.DefaultMimeType
}

// SniffMimeType detects the content type of the file at path from its
// content. Imports have no declared type, so this is the only source.
func SniffMimeType(path string) string {
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return schema.DefaultMimeType
	}
	return m.String()
}
