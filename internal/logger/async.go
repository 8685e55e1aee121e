package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Closer flushes and stops a logging pipeline.
type Closer interface {
	Close()
}

// nopCloser is the Closer for synchronous mode.
type nopCloser struct{}

func (nopCloser) Close() {}

// entry pairs a record with the handler it was enqueued through, so a
// record logged via a WithAttrs or WithGroup clone keeps that clone's
// attributes when a worker handles it.
type entry struct {
	h   slog.Handler
	rec slog.Record
}

// asyncCore holds the queue shared by an AsyncHandler and all of its
// clones. One core exists per pipeline regardless of how many derived
// handlers feed it.
type asyncCore struct {
	ch      chan entry
	wg      sync.WaitGroup
	dropped atomic.Int64
	once    sync.Once
}

// AsyncHandler decouples log emission from the caller. Handle enqueues
// and never blocks; when the queue is full the record is counted and
// dropped rather than stalling a registry mutation on slow output.
type AsyncHandler struct {
	inner slog.Handler
	core  *asyncCore
}

// NewAsyncHandler starts workers draining a queue of the given capacity
// into inner.
func NewAsyncHandler(inner slog.Handler, capacity, workers int) *AsyncHandler {
	if workers < 1 {
		workers = 1
	}
	core := &asyncCore{ch: make(chan entry, capacity)}
	core.wg.Add(workers)
	for range workers {
		go core.drain()
	}
	return &AsyncHandler{inner: inner, core: core}
}

func (c *asyncCore) drain() {
	defer c.wg.Done()
	for e := range c.ch {
		_ = e.h.Handle(context.Background(), e.rec)
	}
}

// Enabled delegates to the inner handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues the record, dropping it when the queue is full.
func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	select {
	case h.core.ch <- entry{h: h.inner, rec: rec}:
	default:
		h.core.dropped.Add(1)
	}
	return nil
}

// WithAttrs returns a clone feeding the same queue through an
// attribute-bearing inner handler.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithAttrs(attrs), core: h.core}
}

// WithGroup returns a clone feeding the same queue through a grouped
// inner handler.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithGroup(name), core: h.core}
}

// DroppedCount returns the number of records dropped on a full queue.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.core.dropped.Load()
}

// Close stops the workers after draining every enqueued record, then
// reports the drop count through the inner handler when any record was
// lost. Closing a pipeline more than once is a no-op.
func (h *AsyncHandler) Close() {
	h.core.once.Do(func() {
		close(h.core.ch)
		h.core.wg.Wait()
		if n := h.core.dropped.Load(); n > 0 {
			rec := slog.NewRecord(time.Now(), slog.LevelWarn, "async log queue overflowed", 0)
			rec.AddAttrs(slog.Int64("dropped", n))
			_ = h.inner.Handle(context.Background(), rec)
		}
	})
}
