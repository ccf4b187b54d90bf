// Package materialize turns coerced source records into persisted parent
// entities and the derived rows that reference them.
package materialize

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"market-sentiment-lab/internal/domain"
	"market-sentiment-lab/internal/entitycache"
	"market-sentiment-lab/internal/storage"
)

// DefaultFlushEvery is the number of staged entities that triggers a flush.
const DefaultFlushEvery = 100

// EntityStore is the append-only table behind a Resolver.
type EntityStore[E domain.Entity] interface {
	Insert(ctx context.Context, e E) error
	InsertBulk(ctx context.Context, entities []E) error
	GetByNaturalKey(ctx context.Context, key string) (E, error)
	LoadNaturalKeys(ctx context.Context) (map[string]int64, error)
}

// ResolverStats counts what a Resolver did during a run.
type ResolverStats struct {
	Created   int // entities inserted by this run
	Conflicts int // inserts that lost a race and adopted the existing identity
	Failed    int // entities that could not be created
}

// ResolverOptions configures a Resolver.
type ResolverOptions[E domain.Entity] struct {
	Name  string
	Store EntityStore[E]
	// New builds the placeholder entity for a natural key seen for the first time.
	New        func(key string) E
	FlushEvery int
	Logger     *zap.Logger
}

// Resolver creates parent entities on demand. Keys are staged as they are
// seen and inserted in bulk every FlushEvery keys; identities become
// available through ID once the key has been flushed.
type Resolver[E domain.Entity] struct {
	opts    ResolverOptions[E]
	cache   *entitycache.Cache
	pending []E
	stats   ResolverStats
}

// NewResolver creates a Resolver with an empty cache. Call Load before use.
func NewResolver[E domain.Entity](opts ResolverOptions[E]) *Resolver[E] {
	if opts.FlushEvery <= 0 {
		opts.FlushEvery = DefaultFlushEvery
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Name == "" {
		opts.Name = "entities"
	}
	return &Resolver[E]{opts: opts, cache: entitycache.New()}
}

// Load warms the cache with every persisted natural key.
func (r *Resolver[E]) Load(ctx context.Context) error {
	if err := r.cache.Load(ctx, r.opts.Store.LoadNaturalKeys); err != nil {
		return fmt.Errorf("%s: %w", r.opts.Name, err)
	}
	r.pending = nil
	r.opts.Logger.Debug("Entity cache loaded",
		zap.String("entity", r.opts.Name), zap.Int("keys", r.cache.Len()))
	return nil
}

// Ensure makes sure key will have an identity after the next Flush.
// Unknown keys are staged once; reaching FlushEvery staged keys flushes.
func (r *Resolver[E]) Ensure(ctx context.Context, key string) error {
	_, status := r.cache.GetOrStage(key)
	if status != entitycache.Staged {
		return nil
	}

	r.pending = append(r.pending, r.opts.New(key))
	if len(r.pending) >= r.opts.FlushEvery {
		return r.Flush(ctx)
	}
	return nil
}

// Flush inserts the staged entities in one batch. When the batch fails it
// is retried one entity at a time: a conflict adopts the identity already
// persisted, any other error unstages the key and counts as failed. The
// returned error is non-nil only when ctx is done or a conflicting
// identity cannot be read back.
func (r *Resolver[E]) Flush(ctx context.Context) error {
	if len(r.pending) == 0 {
		return nil
	}
	batch := r.pending
	r.pending = nil

	err := r.opts.Store.InsertBulk(ctx, batch)
	if err == nil {
		for _, e := range batch {
			r.cache.Absorb(e.NaturalKey(), e.Identity())
		}
		r.stats.Created += len(batch)
		r.opts.Logger.Debug("Entities flushed",
			zap.String("entity", r.opts.Name), zap.Int("count", len(batch)))
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		r.unstage(batch)
		return ctxErr
	}

	r.opts.Logger.Debug("Bulk entity insert failed, retrying per entity",
		zap.String("entity", r.opts.Name), zap.Int("count", len(batch)), zap.Error(err))

	for i, e := range batch {
		key := e.NaturalKey()
		err := r.opts.Store.Insert(ctx, e)
		switch {
		case err == nil:
			r.cache.Absorb(key, e.Identity())
			r.stats.Created++
		case storage.IsConflict(err):
			existing, getErr := r.opts.Store.GetByNaturalKey(ctx, key)
			if getErr != nil {
				r.unstage(batch[i:])
				return fmt.Errorf("%s %q: read back after conflict: %w", r.opts.Name, key, getErr)
			}
			r.cache.Absorb(key, existing.Identity())
			r.stats.Conflicts++
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			r.unstage(batch[i:])
			return err
		default:
			r.cache.Unstage(key)
			r.stats.Failed++
			r.opts.Logger.Warn("Entity insert failed",
				zap.String("entity", r.opts.Name), zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

func (r *Resolver[E]) unstage(entities []E) {
	for _, e := range entities {
		r.cache.Unstage(e.NaturalKey())
	}
}

// ID returns the identity of a flushed or preloaded key.
func (r *Resolver[E]) ID(key string) (int64, bool) {
	return r.cache.Lookup(key)
}

// Stats returns the counters accumulated since the resolver was created.
func (r *Resolver[E]) Stats() ResolverStats {
	return r.stats
}
