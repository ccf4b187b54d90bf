// Package entitycache keeps the natural key to surrogate id mapping of an
// entity table in memory for the duration of one integration run.
package entitycache

import (
	"context"
	"fmt"
)

// Status is the outcome of GetOrStage.
type Status int

const (
	// Known means the key already has a persisted identity.
	Known Status = iota
	// Staged means the key was just staged; the caller must build the entity.
	Staged
	// Pending means the key was staged earlier in this run and awaits a flush.
	Pending
)

func (s Status) String() string {
	switch s {
	case Known:
		return "known"
	case Staged:
		return "staged"
	case Pending:
		return "pending"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Loader returns every persisted natural key with its identity.
type Loader func(ctx context.Context) (map[string]int64, error)

// Cache maps natural keys to identities. Not safe for concurrent use; one
// cache belongs to one integration run.
type Cache struct {
	ids    map[string]int64
	staged map[string]struct{}
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		ids:    make(map[string]int64),
		staged: make(map[string]struct{}),
	}
}

// Load replaces the cache contents with every key the loader returns.
func (c *Cache) Load(ctx context.Context, load Loader) error {
	keys, err := load(ctx)
	if err != nil {
		return fmt.Errorf("load natural keys: %w", err)
	}

	c.ids = make(map[string]int64, len(keys))
	for k, id := range keys {
		c.ids[k] = id
	}
	c.staged = make(map[string]struct{})
	return nil
}

// GetOrStage returns the identity of key when known. Otherwise it stages
// the key on first sight (Staged) and reports Pending on later calls.
func (c *Cache) GetOrStage(key string) (int64, Status) {
	if id, ok := c.ids[key]; ok {
		return id, Known
	}
	if _, ok := c.staged[key]; ok {
		return 0, Pending
	}
	c.staged[key] = struct{}{}
	return 0, Staged
}

// Lookup returns the identity of key without staging it.
func (c *Cache) Lookup(key string) (int64, bool) {
	id, ok := c.ids[key]
	return id, ok
}

// Absorb records the persisted identity of key and clears its staged mark.
func (c *Cache) Absorb(key string, id int64) {
	c.ids[key] = id
	delete(c.staged, key)
}

// Unstage drops a staged key whose creation failed, so a later
// GetOrStage stages it again.
func (c *Cache) Unstage(key string) {
	delete(c.staged, key)
}

// Len returns the number of keys with a known identity.
func (c *Cache) Len() int {
	return len(c.ids)
}
