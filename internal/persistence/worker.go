package persistence

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pastewatch/pastewatch/internal/observability"
	"github.com/pastewatch/pastewatch/internal/types"
)

// Worker drains a channel of durable records and writes each one to the
// configured sinks, one record at a time. Pasty upserts key on an
// independent (site, id) pair, so there is nothing to gain from batching:
// every record is written as soon as it is submitted.
type Worker struct {
	mongo   *MongoSink
	queue   *Queue
	records chan types.DurableRecord
	paths   chan string
	wg      sync.WaitGroup
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewWorker builds a persistence Worker. mongo and queue may each be nil to
// disable that sink.
func NewWorker(mongo *MongoSink, queue *Queue, logger *slog.Logger) *Worker {
	return &Worker{
		mongo:   mongo,
		queue:   queue,
		records: make(chan types.DurableRecord, 256),
		paths:   make(chan string, 256),
		logger:  logger.With("component", "persistence_worker"),
	}
}

// SetMetrics wires the operational counters. A nil value disables recording.
func (w *Worker) SetMetrics(m *observability.Metrics) {
	w.metrics = m
}

// Run drains records and paths until ctx is cancelled and both channels are
// closed and empty. Call from its own goroutine.
func (w *Worker) Run(ctx context.Context) {
	w.wg.Add(1)
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case rec, ok := <-w.records:
			if !ok {
				w.records = nil
				continue
			}
			w.writeRecord(ctx, rec)
		case path, ok := <-w.paths:
			if !ok {
				w.paths = nil
				continue
			}
			w.pushPath(ctx, path)
		}
	}
}

// drain flushes whatever is already buffered before returning, so a
// shutdown does not silently drop records already accepted by Submit.
func (w *Worker) drain() {
	for {
		select {
		case rec, ok := <-w.records:
			if !ok {
				return
			}
			w.writeRecord(context.Background(), rec)
		case path, ok := <-w.paths:
			if !ok {
				return
			}
			w.pushPath(context.Background(), path)
		default:
			return
		}
	}
}

func (w *Worker) writeRecord(ctx context.Context, rec types.DurableRecord) {
	if w.mongo == nil {
		return
	}
	if err := w.mongo.Upsert(ctx, rec); err != nil {
		w.logger.Error("durable upsert failed", "site", rec.Site, "id", rec.ID, "error", err)
		w.metrics.RecordPersistWrite("error")
		return
	}
	w.metrics.RecordPersistWrite("ok")
}

func (w *Worker) pushPath(ctx context.Context, path string) {
	if w.queue == nil {
		return
	}
	if err := w.queue.Push(ctx, path); err != nil {
		w.logger.Error("queue push failed", "path", path, "error", err)
	}
}

// SubmitRecord enqueues a durable record for the Mongo sink.
func (w *Worker) SubmitRecord(rec types.DurableRecord) {
	w.records <- rec
}

// SubmitPath enqueues an archive path for the Redis secondary queue.
func (w *Worker) SubmitPath(path string) {
	w.paths <- path
}

// Close closes the input channels and waits for Run to finish draining.
func (w *Worker) Close() {
	close(w.records)
	close(w.paths)
	w.wg.Wait()
}
