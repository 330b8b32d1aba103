// Package storage defines the blob store port the sitemap publisher writes
// through. Implementations live in the memory, local and gcs subpackages.
package storage

import (
	"context"
	"io"
)

// BlobStore writes an object and returns its URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}
