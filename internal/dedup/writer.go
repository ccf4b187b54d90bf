// Package dedup writes append-only records so that no logical record is
// persisted twice, whatever the input contains and however often it runs.
package dedup

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"market-sentiment-lab/internal/storage"
)

// DefaultBatchSize is the chunk size used when Options.BatchSize is unset.
const DefaultBatchSize = 1000

// Outcome is the fate of a single record handed to Write.
type Outcome int

const (
	Persisted Outcome = iota
	SkippedDuplicate
	SkippedMalformed
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Persisted:
		return "persisted"
	case SkippedDuplicate:
		return "skipped_duplicate"
	case SkippedMalformed:
		return "skipped_malformed"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Sink is the append-only store records are written to.
type Sink[T any] interface {
	Insert(ctx context.Context, record T) error
	InsertBulk(ctx context.Context, records []T) error
}

// RecordResult is the outcome of one input record, by input position.
type RecordResult[K comparable] struct {
	Index   int
	Key     K
	Outcome Outcome
	Err     error
}

// Result aggregates the outcomes of a Write call.
type Result[K comparable] struct {
	Records          []RecordResult[K]
	Persisted        int
	SkippedDuplicate int
	SkippedMalformed int
	Failed           int
}

func (r *Result[K]) add(rr RecordResult[K]) {
	r.Records = append(r.Records, rr)
	switch rr.Outcome {
	case Persisted:
		r.Persisted++
	case SkippedDuplicate:
		r.SkippedDuplicate++
	case SkippedMalformed:
		r.SkippedMalformed++
	case Failed:
		r.Failed++
	}
}

// Options configures a Writer.
type Options[T any, K comparable] struct {
	// Name identifies the target in logs.
	Name string
	Sink Sink[T]
	// Key extracts the natural key of a record.
	Key func(T) K
	// Validate rejects malformed records. Optional.
	Validate func(T) error
	// LoadKeys returns the keys already persisted that records may collide
	// with. Called once per Write, before any insert.
	LoadKeys  func(ctx context.Context, records []T) ([]K, error)
	BatchSize int
	Logger    *zap.Logger
}

// Writer persists records in chunks, skipping duplicates and malformed
// records and isolating per-record failures. Not safe for concurrent use.
type Writer[T any, K comparable] struct {
	opts Options[T, K]
}

// NewWriter creates a Writer. Sink and Key are required.
func NewWriter[T any, K comparable](opts Options[T, K]) *Writer[T, K] {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Name == "" {
		opts.Name = "records"
	}
	return &Writer[T, K]{opts: opts}
}

type pending[T any, K comparable] struct {
	index  int
	key    K
	record T
}

// Write persists records in order. Each chunk is inserted atomically; a
// failed chunk is rolled back and retried one record at a time with
// independent commits. The returned error is non-nil only when the key
// preload fails or ctx is cancelled between chunks; the Result then covers
// the chunks processed so far.
func (w *Writer[T, K]) Write(ctx context.Context, records []T) (*Result[K], error) {
	res := &Result[K]{}
	if len(records) == 0 {
		return res, nil
	}

	seen := make(map[K]struct{})
	if w.opts.LoadKeys != nil {
		keys, err := w.opts.LoadKeys(ctx, records)
		if err != nil {
			return res, fmt.Errorf("preload %s keys: %w", w.opts.Name, err)
		}
		for _, k := range keys {
			seen[k] = struct{}{}
		}
	}

	for start := 0; start < len(records); start += w.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		end := start + w.opts.BatchSize
		if end > len(records) {
			end = len(records)
		}

		var chunk []pending[T, K]
		for i := start; i < end; i++ {
			rec := records[i]
			key := w.opts.Key(rec)
			if _, dup := seen[key]; dup {
				res.add(RecordResult[K]{Index: i, Key: key, Outcome: SkippedDuplicate})
				continue
			}
			if w.opts.Validate != nil {
				if err := w.opts.Validate(rec); err != nil {
					w.opts.Logger.Debug("Skipping malformed record",
						zap.String("target", w.opts.Name), zap.Int("index", i), zap.Error(err))
					res.add(RecordResult[K]{Index: i, Key: key, Outcome: SkippedMalformed, Err: err})
					continue
				}
			}
			seen[key] = struct{}{}
			chunk = append(chunk, pending[T, K]{index: i, key: key, record: rec})
		}

		w.writeChunk(ctx, chunk, seen, res)
	}

	return res, nil
}

func (w *Writer[T, K]) writeChunk(ctx context.Context, chunk []pending[T, K], seen map[K]struct{}, res *Result[K]) {
	if len(chunk) == 0 {
		return
	}

	batch := make([]T, len(chunk))
	for i, p := range chunk {
		batch[i] = p.record
	}

	err := w.opts.Sink.InsertBulk(ctx, batch)
	if err == nil {
		for _, p := range chunk {
			res.add(RecordResult[K]{Index: p.index, Key: p.key, Outcome: Persisted})
		}
		return
	}

	w.opts.Logger.Debug("Bulk insert failed, retrying per record",
		zap.String("target", w.opts.Name), zap.Int("chunk_size", len(chunk)), zap.Error(err))

	for _, p := range chunk {
		err := w.opts.Sink.Insert(ctx, p.record)
		switch {
		case err == nil:
			res.add(RecordResult[K]{Index: p.index, Key: p.key, Outcome: Persisted})
		case storage.IsConflict(err):
			res.add(RecordResult[K]{Index: p.index, Key: p.key, Outcome: SkippedDuplicate})
		default:
			delete(seen, p.key)
			w.opts.Logger.Warn("Record insert failed",
				zap.String("target", w.opts.Name), zap.Int("index", p.index), zap.Error(err))
			res.add(RecordResult[K]{Index: p.index, Key: p.key, Outcome: Failed, Err: wrapFatal(w.opts.Name, err)})
		}
	}
}

func wrapFatal(name string, err error) error {
	var fatal *storage.FatalIntegrityError
	if errors.As(err, &fatal) {
		return err
	}
	return &storage.FatalIntegrityError{Op: "insert " + name, Err: err}
}
