package entitycache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_LoadAndGetOrStage(t *testing.T) {
	c := New()
	err := c.Load(context.Background(), func(context.Context) (map[string]int64, error) {
		return map[string]int64{"GGAL": 7}, nil
	})
	require.NoError(t, err)

	id, status := c.GetOrStage("GGAL")
	assert.Equal(t, Known, status)
	assert.Equal(t, int64(7), id)

	_, status = c.GetOrStage("YPF")
	assert.Equal(t, Staged, status)

	_, status = c.GetOrStage("YPF")
	assert.Equal(t, Pending, status, "second sighting must not stage twice")

	assert.Len(t, c.staged, 1)
}

func TestCache_AbsorbClearsStaged(t *testing.T) {
	c := New()

	c.GetOrStage("a")
	c.GetOrStage("b")
	c.Absorb("a", 11)

	assert.Len(t, c.staged, 1)
	_, status := c.GetOrStage("b")
	assert.Equal(t, Pending, status)

	id, status := c.GetOrStage("a")
	assert.Equal(t, Known, status)
	assert.Equal(t, int64(11), id)

	id, ok := c.Lookup("a")
	assert.True(t, ok)
	assert.Equal(t, int64(11), id)
}

func TestCache_UnstageAllowsRestage(t *testing.T) {
	c := New()

	c.GetOrStage("a")
	c.Unstage("a")
	assert.Empty(t, c.staged)

	_, status := c.GetOrStage("a")
	assert.Equal(t, Staged, status)
}

func TestCache_LoadError(t *testing.T) {
	c := New()
	boom := errors.New("boom")

	err := c.Load(context.Background(), func(context.Context) (map[string]int64, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "known", Known.String())
	assert.Equal(t, "staged", Staged.String())
	assert.Equal(t, "pending", Pending.String())
}
