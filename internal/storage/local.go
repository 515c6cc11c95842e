package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Local stores artifacts under a base directory.
type Local struct {
	base string
}

func NewLocal(base string) (*Local, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory %s: %w", base, err)
	}
	return &Local{base: base}, nil
}

func (l *Local) NewWriter(ctx context.Context, key string) (io.WriteCloser, <-chan error) {
	done := make(chan error, 1)

	path := filepath.Join(l.base, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		done <- fmt.Errorf("create directory for %s: %w", key, err)
		close(done)
		return nil, done
	}
	f, err := os.Create(path)
	if err != nil {
		done <- fmt.Errorf("create %s: %w", path, err)
		close(done)
		return nil, done
	}
	return &localWriter{f: f, path: path, done: done}, done
}

func (l *Local) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(l.base, key))
}

func (l *Local) DownloadURL(key string) string {
	abs, err := filepath.Abs(filepath.Join(l.base, key))
	if err != nil {
		abs = filepath.Join(l.base, key)
	}
	return "file://" + abs
}

// localWriter settles the outcome channel when the file is closed.
type localWriter struct {
	f    *os.File
	path string
	done chan error
}

func (w *localWriter) Write(p []byte) (int, error) {
	return w.f.Write(p)
}

func (w *localWriter) Close() error {
	err := w.f.Close()
	if err == nil {
		slog.Debug("stored local artifact", "path", w.path)
	}
	w.done <- err
	close(w.done)
	return err
}
