package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// AsyncOptions tunes the batching writer.
type AsyncOptions struct {
	BufferSize     int           // queued events before sync fallback
	BatchSize      int           // target events per storage write
	BatchTimeout   time.Duration // max wait before flushing a partial batch
	StorageTimeout time.Duration // per-batch storage deadline
	Logger         *slog.Logger  // receives flush failures
}

type batchWriter interface {
	StoreBatch(ctx context.Context, events []Event) error
}

// AsyncWriter batches events through a background worker. When the
// buffer is full it writes synchronously instead of dropping events.
type AsyncWriter struct {
	bw      batchWriter
	events  chan Event
	done    chan struct{}
	wg      sync.WaitGroup
	options AsyncOptions

	mu     sync.RWMutex
	closed bool
}

// NewAsyncWriter starts the worker and returns the writer with its
// shutdown func. Call the shutdown func during application teardown so
// buffered events are flushed.
func NewAsyncWriter(bw batchWriter, opts AsyncOptions) (*AsyncWriter, func(context.Context) error) {
	if bw == nil {
		panic("audit: batch writer cannot be nil")
	}

	if opts.BufferSize == 0 {
		opts.BufferSize = 1000
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = 100
	}
	if opts.BatchTimeout == 0 {
		opts.BatchTimeout = 100 * time.Millisecond
	}
	if opts.StorageTimeout == 0 {
		opts.StorageTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	aw := &AsyncWriter{
		bw:      bw,
		events:  make(chan Event, opts.BufferSize),
		done:    make(chan struct{}),
		options: opts,
	}

	aw.wg.Add(1)
	go aw.worker()

	return aw, aw.Close
}

// Store queues the event for batched writing. A full buffer falls back
// to a synchronous write so events are never dropped.
//
// The closed check and the channel send happen under a shared read
// lock. Close takes the write lock before signalling the worker, so
// every event accepted here is buffered before the shutdown drain
// begins and no Store can race a closing writer.
func (aw *AsyncWriter) Store(ctx context.Context, event Event) error {
	aw.mu.RLock()
	if aw.closed {
		aw.mu.RUnlock()
		return ErrStorageNotAvailable
	}

	select {
	case aw.events <- event:
		aw.mu.RUnlock()
		return nil
	default:
	}
	aw.mu.RUnlock()

	return aw.bw.StoreBatch(ctx, []Event{event})
}

func (aw *AsyncWriter) worker() {
	defer aw.wg.Done()

	batch := make([]Event, 0, aw.options.BatchSize)
	ticker := time.NewTicker(aw.options.BatchTimeout)
	defer ticker.Stop()

	// Storage writes run on a background deadline so client timeouts
	// never cascade into the audit backend.
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), aw.options.StorageTimeout)
		if err := aw.bw.StoreBatch(ctx, batch); err != nil {
			aw.options.Logger.Error("audit batch write failed",
				slog.Int("events", len(batch)), slog.Any("error", err))
		}
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case e := <-aw.events:
			batch = append(batch, e)
			if len(batch) >= aw.options.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-aw.done:
			// The events channel stays open; Close has already
			// fenced off new senders, so a non-blocking drain sees
			// everything that was accepted.
			for {
				select {
				case e := <-aw.events:
					batch = append(batch, e)
					if len(batch) >= aw.options.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close drains the buffer and stops the worker. The context bounds the
// shutdown wait. Close is safe to call more than once.
func (aw *AsyncWriter) Close(ctx context.Context) error {
	aw.mu.Lock()
	closed := aw.closed
	aw.closed = true
	aw.mu.Unlock()
	if !closed {
		close(aw.done)
	}

	finished := make(chan struct{})
	go func() {
		aw.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
