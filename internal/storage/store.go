// Package storage persists generated content and hands back the public URL
// the job record points at.
package storage

import "context"

// ObjectStore uploads a blob under key and returns a URL clients can fetch it
// from.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

var (
	_ ObjectStore = (*FileStore)(nil)
	_ ObjectStore = (*MinioStore)(nil)
)
