// Package storage abstracts the object store holding input photos and
// processed artifacts.
package storage

import (
	"context"
)

// ObjectStore is the storage surface the pipeline needs: fetch the input
// image, upload the produced artifacts.
type ObjectStore interface {
	// Fetch downloads an object by name.
	Fetch(ctx context.Context, name string) ([]byte, error)

	// Upload stores data under name with the given content type,
	// overwriting any existing object.
	Upload(ctx context.Context, name string, data []byte, contentType string) error

	// URL returns the public URL an uploaded object is reachable at.
	URL(name string) string

	Close() error
}
