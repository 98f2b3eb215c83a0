package writeback

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/fivemin/harmony/internal/domain/notes"
	"github.com/fivemin/harmony/pkg/logger"
	"github.com/fivemin/harmony/pkg/metrics"
)

// Default writer configuration constants.
const (
	defaultWriterCount    = 2
	writerShutdownTimeout = 30 * time.Second
)

// Sink is the durable store journal entries are flushed into.
type Sink interface {
	UpsertNote(ctx context.Context, n notes.Note) error
	ReplaceMeasure(ctx context.Context, index int, ns []notes.Note) error
}

// writer drains one queue shard and applies entries to the sink.
type writer struct {
	queue *Queue
	sink  Sink
	done  chan struct{}
	log   logger.Logger
}

func newWriter(name string, queue *Queue, sink Sink, log logger.Logger) *writer {
	return &writer{
		queue: queue,
		sink:  sink,
		done:  make(chan struct{}),
		log:   log.Named(name),
	}
}

// run loops until the shard channel is closed and drained. Entries
// already journaled are flushed even when ctx has been canceled, so a
// shutting-down process does not lose accepted writes.
func (w *writer) run(ctx context.Context) {
	defer close(w.done)

	flushCtx := context.WithoutCancel(ctx)
	for e := range w.queue.Dequeue() {
		if err := flush(flushCtx, w.sink, e); err != nil {
			metrics.RecordWritebackError()
			metrics.RecordErrorByComponent("writeback", "flush_error")
			w.log.Error(ctx, "flush failed", logger.Error(err))
		}
	}
}

// flush applies a single journal entry to the sink.
func flush(ctx context.Context, sink Sink, e entry) error {
	start := time.Now()
	defer func() {
		metrics.RecordWritebackFlushLatency(float64(time.Since(start).Milliseconds()))
	}()

	if e.note != nil {
		if err := sink.UpsertNote(ctx, *e.note); err != nil {
			return fmt.Errorf("upsert note %s: %w", e.note.ID, err)
		}
		return nil
	}
	if err := sink.ReplaceMeasure(ctx, e.measure, e.snapshot); err != nil {
		return fmt.Errorf("replace measure %d: %w", e.measure, err)
	}
	return nil
}

// Journal fans score mutations out to a durable sink. Entries are
// sharded by measure index across one queue per writer, keeping a
// strict FIFO per measure. It implements the store's journal contract.
type Journal struct {
	queues  []*Queue
	writers []*writer
	sink    Sink
	log     logger.Logger
}

// New creates a journal writing through to sink.
func New(sink Sink, opts ...Option) *Journal {
	cfg := &config{
		capacity: defaultQueueCapacity,
		writers:  defaultWriterCount,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	j := &Journal{
		sink: sink,
		log:  logger.Get().Named("writeback"),
	}
	if cfg.logger != nil {
		j.log = cfg.logger
	}

	j.queues = make([]*Queue, cfg.writers)
	j.writers = make([]*writer, cfg.writers)
	for i := range j.writers {
		j.queues[i] = NewQueue(cfg.capacity)
		j.writers[i] = newWriter("writer-"+strconv.Itoa(i), j.queues[i], sink, j.log)
	}

	metrics.UpdateWritebackQueueCapacity(cfg.capacity * cfg.writers)

	return j
}

// Start launches one writer per shard.
func (j *Journal) Start(ctx context.Context) {
	for _, w := range j.writers {
		go w.run(ctx)
	}
}

// Shutdown stops accepting new entries and waits for the writers to
// drain what was already journaled.
func (j *Journal) Shutdown(ctx context.Context) error {
	for _, q := range j.queues {
		if err := q.Close(); err != nil {
			return err
		}
	}

	drainCtx, cancel := context.WithTimeout(ctx, writerShutdownTimeout)
	defer cancel()

	for _, w := range j.writers {
		select {
		case <-w.done:
		case <-drainCtx.Done():
			j.log.Warn(ctx, "writer drain timed out", logger.Int("pending", j.Pending()))
			return fmt.Errorf("writeback drain: %w", drainCtx.Err())
		}
	}
	return nil
}

// NoteUpdated journals a point update to a single note.
func (j *Journal) NoteUpdated(n notes.Note) {
	j.enqueue(entry{note: &n, measure: n.Measure})
}

// MeasureRewritten journals a full snapshot of a rewritten measure.
func (j *Journal) MeasureRewritten(index int, snapshot []notes.Note) {
	j.enqueue(entry{measure: index, snapshot: snapshot})
}

// enqueue routes an entry to its measure's shard. A full shard blocks
// until the writer frees space; dropping or bypassing the queue would
// let an older snapshot overwrite a newer edit.
func (j *Journal) enqueue(e entry) {
	q := j.queues[e.measure%len(j.queues)]
	if q.Enqueue(e) {
		metrics.UpdateWritebackQueueSize(j.Pending())
		return
	}

	metrics.RecordWritebackSyncFlush()
	if err := q.EnqueueWait(e); err != nil {
		// Queue already closed; flush directly so the mutation is not lost.
		j.log.Warn(context.Background(), "journal closed, flushing directly",
			logger.Int("measure", e.measure))
		if ferr := flush(context.Background(), j.sink, e); ferr != nil {
			metrics.RecordWritebackError()
			metrics.RecordErrorByComponent("writeback", "sync_flush_error")
			j.log.Error(context.Background(), "synchronous flush failed", logger.Error(ferr))
		}
	}
	metrics.UpdateWritebackQueueSize(j.Pending())
}

// Pending returns the number of journaled entries not yet flushed.
func (j *Journal) Pending() int {
	n := 0
	for _, q := range j.queues {
		n += q.Len()
	}
	return n
}
