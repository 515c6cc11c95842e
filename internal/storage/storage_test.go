package storage

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestLocalRoundTrip(t *testing.T) {
	p, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	ctx := context.Background()

	w, done := p.NewWriter(ctx, "exports/job-1.csv")
	if w == nil {
		t.Fatalf("NewWriter failed: %v", <-done)
	}
	if _, err := io.WriteString(w, "id,name\n1,Ada\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("outcome: %v", err)
	}

	r, err := p.Open(ctx, "exports/job-1.csv")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()
	content, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(content) != "id,name\n1,Ada\n" {
		t.Errorf("content = %q", content)
	}
}

func TestLocalDownloadURL(t *testing.T) {
	p, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	url := p.DownloadURL("exports/job-1.csv")
	if !strings.HasPrefix(url, "file:///") {
		t.Errorf("DownloadURL = %q, want file:/// prefix", url)
	}
	if !strings.HasSuffix(url, "exports/job-1.csv") {
		t.Errorf("DownloadURL = %q, want key suffix", url)
	}
}

func TestLocalOpenMissing(t *testing.T) {
	p, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	if _, err := p.Open(context.Background(), "nope.csv"); err == nil {
		t.Fatal("expected error opening missing artifact")
	}
}
