package archive

import (
	"context"
	"io"
)

type PutInput struct {
	Key         string
	ContentType string
}

type PutResult struct {
	Key string
	URL string
}

// Blob is where finished export files end up: the local filesystem during
// development, an S3 bucket in production.
type Blob interface {
	Put(ctx context.Context, r io.Reader, in PutInput) (PutResult, error)
	Delete(ctx context.Context, key string) error
}
