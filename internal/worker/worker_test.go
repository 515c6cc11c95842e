package worker

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"fluxdbc"
	"fluxdbc/internal/drivertest"
	"fluxdbc/internal/storage"
)

func queryFactory() *drivertest.Factory {
	cols := []fluxdbc.ColumnMetadata{
		{Name: "id", DatabaseTypeName: "BIGINT"},
		{Name: "name", DatabaseTypeName: "VARCHAR"},
	}
	rows := [][]any{{int64(1), "Ada"}, {int64(2), "Grace"}}
	return &drivertest.Factory{
		FactoryName: "test",
		Dial: func(ctx context.Context) (fluxdbc.Connection, error) {
			return drivertest.NewQueryConn(cols, rows), nil
		},
	}
}

func newLocal(t *testing.T) *storage.Local {
	t.Helper()
	store, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	return store
}

func TestPoolProcessesJob(t *testing.T) {
	store := newLocal(t)
	p := NewPool(2, queryFactory(), store, false)
	p.Start()
	defer p.Stop()

	job := NewJob("SELECT id, name FROM users", "csv", 5*time.Second)
	if !p.Submit(job) {
		t.Fatal("Submit refused")
	}
	<-job.Done()

	if job.Status != StatusCompleted {
		t.Fatalf("Status = %s, err = %v", job.Status, job.Err)
	}
	if job.Stats == nil || job.Stats.Rows != 2 {
		t.Fatalf("Stats = %+v, want 2 rows", job.Stats)
	}
	if !strings.HasSuffix(job.Key, ".csv") {
		t.Errorf("Key = %q, want .csv suffix", job.Key)
	}

	r, err := store.Open(context.Background(), job.Key)
	if err != nil {
		t.Fatalf("Open artifact: %v", err)
	}
	defer r.Close()
	content, _ := io.ReadAll(r)
	if !strings.HasPrefix(string(content), "id,name\n") {
		t.Errorf("artifact = %q", content)
	}
}

func TestPoolGzipArtifact(t *testing.T) {
	store := newLocal(t)
	p := NewPool(1, queryFactory(), store, true)
	p.Start()
	defer p.Stop()

	job := NewJob("SELECT id, name FROM users", "csv", 5*time.Second)
	if !p.Submit(job) {
		t.Fatal("Submit refused")
	}
	<-job.Done()

	if job.Status != StatusCompleted {
		t.Fatalf("Status = %s, err = %v", job.Status, job.Err)
	}
	if !strings.HasSuffix(job.Key, ".csv.gz") {
		t.Errorf("Key = %q, want .csv.gz suffix", job.Key)
	}

	r, err := store.Open(context.Background(), job.Key)
	if err != nil {
		t.Fatalf("Open artifact: %v", err)
	}
	defer r.Close()
	zr, err := gzip.NewReader(r)
	if err != nil {
		t.Fatalf("artifact is not gzip: %v", err)
	}
	content, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !strings.HasPrefix(string(content), "id,name\n") {
		t.Errorf("artifact = %q", content)
	}
}

func TestPoolConnectFailureFailsJob(t *testing.T) {
	dialErr := errors.New("refused")
	factory := &drivertest.Factory{
		FactoryName: "test",
		Dial: func(ctx context.Context) (fluxdbc.Connection, error) {
			return nil, dialErr
		},
	}
	p := NewPool(1, factory, newLocal(t), false)
	p.Start()
	defer p.Stop()

	job := NewJob("SELECT 1", "csv", 5*time.Second)
	if !p.Submit(job) {
		t.Fatal("Submit refused")
	}
	<-job.Done()

	if job.Status != StatusFailed {
		t.Fatalf("Status = %s, want FAILED", job.Status)
	}
	if !errors.Is(job.Err, dialErr) {
		t.Errorf("Err = %v, want wrapped dial error", job.Err)
	}
}

func TestPoolJobTimeout(t *testing.T) {
	factory := &drivertest.Factory{
		FactoryName: "test",
		Dial: func(ctx context.Context) (fluxdbc.Connection, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	p := NewPool(1, factory, newLocal(t), false)
	p.Start()
	defer p.Stop()

	job := NewJob("SELECT 1", "csv", 30*time.Millisecond)
	if !p.Submit(job) {
		t.Fatal("Submit refused")
	}
	<-job.Done()

	if job.Status != StatusFailed {
		t.Fatalf("Status = %s, want FAILED", job.Status)
	}
	if !errors.Is(job.Err, context.DeadlineExceeded) {
		t.Errorf("Err = %v, want deadline exceeded", job.Err)
	}
}

func TestPoolUnknownFormatFailsJob(t *testing.T) {
	p := NewPool(1, queryFactory(), newLocal(t), false)
	p.Start()
	defer p.Stop()

	job := NewJob("SELECT 1", "parquet", 5*time.Second)
	if !p.Submit(job) {
		t.Fatal("Submit refused")
	}
	<-job.Done()

	if job.Status != StatusFailed {
		t.Fatalf("Status = %s, want FAILED", job.Status)
	}
}

func TestSubmitAfterStop(t *testing.T) {
	p := NewPool(1, queryFactory(), newLocal(t), false)
	p.Start()
	p.Stop()

	if p.Submit(NewJob("SELECT 1", "csv", time.Second)) {
		t.Error("Submit after Stop should refuse")
	}
}

func TestConnectionClosedAfterJob(t *testing.T) {
	conn := drivertest.NewQueryConn(
		[]fluxdbc.ColumnMetadata{{Name: "id", DatabaseTypeName: "BIGINT"}},
		[][]any{{int64(1)}},
	)
	factory := &drivertest.Factory{
		FactoryName: "test",
		Dial: func(ctx context.Context) (fluxdbc.Connection, error) {
			return conn, nil
		},
	}
	p := NewPool(1, factory, newLocal(t), false)
	p.Start()
	defer p.Stop()

	job := NewJob("SELECT id FROM users", "csv", 5*time.Second)
	p.Submit(job)
	<-job.Done()

	if got := conn.CloseCalls.Load(); got == 0 {
		t.Error("connection not closed after job")
	}
}
