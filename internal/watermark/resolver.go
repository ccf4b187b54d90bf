// Package watermark derives the resume point of an incremental run from
// the data already integrated. Nothing is stored besides the data itself.
package watermark

import (
	"context"
	"fmt"
	"time"

	"market-sentiment-lab/internal/storage"
)

// Watermark is the latest timestamp already integrated into a target.
// A zero Watermark (Valid false) means the target is empty.
type Watermark struct {
	At    time.Time
	Valid bool
}

// Admits reports whether a source record stamped ts is newer than the
// watermark. The comparison is strict: a record equal to the watermark
// was integrated by a previous run.
func (w Watermark) Admits(ts time.Time) bool {
	return !w.Valid || ts.After(w.At)
}

// Since returns the watermark as an optional lower bound for source fetches.
func (w Watermark) Since() *time.Time {
	if !w.Valid {
		return nil
	}
	at := w.At
	return &at
}

func (w Watermark) String() string {
	if !w.Valid {
		return "none"
	}
	return w.At.UTC().Format(time.RFC3339)
}

// Resolver computes watermarks from a WatermarkStore.
type Resolver struct {
	store storage.WatermarkStore
}

// NewResolver creates a resolver over store.
func NewResolver(store storage.WatermarkStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the watermark of target. Unregistered targets fail with
// storage.ErrUnknownTarget before any query runs.
func (r *Resolver) Resolve(ctx context.Context, target storage.Target) (Watermark, error) {
	if !storage.KnownTarget(target) {
		return Watermark{}, fmt.Errorf("resolve watermark: %w: %s", storage.ErrUnknownTarget, target)
	}

	ts, ok, err := r.store.MaxTimestamp(ctx, target)
	if err != nil {
		return Watermark{}, fmt.Errorf("resolve watermark %s: %w", target, err)
	}
	if !ok {
		return Watermark{}, nil
	}
	return Watermark{At: ts.UTC(), Valid: true}, nil
}

// Filter keeps the items whose timestamp the watermark admits, preserving order.
func Filter[T any](w Watermark, items []T, ts func(T) time.Time) []T {
	if !w.Valid {
		return items
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		if w.Admits(ts(it)) {
			out = append(out, it)
		}
	}
	return out
}
