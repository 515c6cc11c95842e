// Package storage persists export artifacts, either on the local filesystem
// or in S3.
package storage

import (
	"context"
	"io"
)

// Provider stores export artifacts under string keys.
type Provider interface {
	// NewWriter opens key for writing. Bytes are streamed to the
	// destination while they are written; the channel reports the final
	// outcome exactly once, after the writer is closed.
	NewWriter(ctx context.Context, key string) (io.WriteCloser, <-chan error)

	// Open reads a stored artifact back.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// DownloadURL names where the artifact can be fetched.
	DownloadURL(key string) string
}
