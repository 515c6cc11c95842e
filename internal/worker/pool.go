// Package worker runs export jobs: each job draws a connection on demand,
// streams query rows through an encoder and stores the artifact. Connection
// concurrency is the factory's concern; cap it by handing NewPool a
// pool-wrapped factory.
package worker

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"fluxdbc"
	"fluxdbc/internal/exporter"
	"fluxdbc/internal/storage"
)

// Pool processes jobs with a fixed set of workers and a bounded queue.
type Pool struct {
	queue   chan *Job
	workers int
	factory fluxdbc.ConnectionFactory
	store   storage.Provider
	useGzip bool

	wg   sync.WaitGroup
	quit chan struct{}
}

func NewPool(workers int, factory fluxdbc.ConnectionFactory, store storage.Provider, useGzip bool) *Pool {
	return &Pool{
		queue:   make(chan *Job, 100),
		workers: workers,
		factory: factory,
		store:   store,
		useGzip: useGzip,
		quit:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.workerLoop(i)
	}
	slog.Info("worker pool started", "workers", p.workers)
}

// Submit queues a job. It reports false when the queue is full or the pool
// is stopping; the caller should not wait on such a job.
func (p *Pool) Submit(job *Job) bool {
	select {
	case p.queue <- job:
		return true
	case <-p.quit:
		return false
	default:
		return false
	}
}

// Stop shuts the pool down after the in-flight jobs finish.
func (p *Pool) Stop() {
	close(p.quit)
	p.wg.Wait()
	slog.Info("worker pool stopped")
}

func (p *Pool) workerLoop(id int) {
	defer p.wg.Done()
	for {
		select {
		case job := <-p.queue:
			p.process(id, job)
		case <-p.quit:
			return
		}
	}
}

func (p *Pool) process(workerID int, job *Job) {
	defer close(job.done)
	defer job.Cancel()

	slog.Info("processing job", "worker", workerID, "job", job.ID)
	job.Started = time.Now()
	job.Status = StatusProcessing

	conn, err := p.factory.Create().Await(job.Ctx)
	if err != nil {
		p.fail(job, fmt.Errorf("connect: %w", err))
		return
	}
	defer conn.Close(context.Background())

	if err := p.export(job, conn); err != nil {
		p.fail(job, err)
		return
	}

	job.Status = StatusCompleted
	job.Finished = time.Now()
	slog.Info("job completed",
		"job", job.ID,
		"rows", job.Stats.Rows,
		"key", job.Key,
		"waited", job.Started.Sub(job.Submitted).Round(time.Millisecond),
		"took", job.Finished.Sub(job.Started).Round(time.Millisecond))
}

// export runs the pipeline: rows -> encoder -> [gzip] -> storage.
func (p *Pool) export(job *Job, conn fluxdbc.Connection) error {
	job.Key = fmt.Sprintf("exports/%s.%s", job.ID, exporter.Ext(job.Format))
	if p.useGzip {
		job.Key += ".gz"
	}

	storeWriter, uploadDone := p.store.NewWriter(job.Ctx, job.Key)
	if storeWriter == nil {
		return <-uploadDone
	}

	var out io.WriteCloser = storeWriter
	if p.useGzip {
		out = gzip.NewWriter(storeWriter)
	}

	enc, err := exporter.New(job.Format, out)
	if err != nil {
		_ = out.Close()
		if p.useGzip {
			_ = storeWriter.Close()
		}
		<-uploadDone
		return err
	}

	stats, streamErr := exporter.Stream(job.Ctx, conn, job.Query, enc)
	encErr := enc.Close()

	// Close the gzip layer before the storage writer so the footer makes it
	// into the artifact.
	var gzipErr error
	if p.useGzip {
		gzipErr = out.Close()
	}
	storeErr := storeWriter.Close()
	uploadErr := <-uploadDone

	switch {
	case streamErr != nil:
		return streamErr
	case encErr != nil:
		return fmt.Errorf("close encoder: %w", encErr)
	case gzipErr != nil:
		return fmt.Errorf("close gzip: %w", gzipErr)
	case storeErr != nil:
		return fmt.Errorf("close artifact: %w", storeErr)
	case uploadErr != nil:
		return uploadErr
	}

	job.Stats = stats
	return nil
}

func (p *Pool) fail(job *Job, err error) {
	job.Status = StatusFailed
	job.Err = err
	job.Finished = time.Now()
	slog.Error("job failed", "job", job.ID, "error", err)
}
