package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-db/mnemo/pkg/model"
)

func rec(id string) *model.MemoryRecord {
	return &model.MemoryRecord{ID: id, Content: "c-" + id}
}

func TestCacheGetPutRoundTrip(t *testing.T) {
	c := New(10, time.Hour)
	c.Put("m1", rec("m1"))

	got, ok := c.Get("m1")
	require.True(t, ok)
	assert.Equal(t, "c-m1", got.Content)
}

func TestCacheCapacityNeverExceeded(t *testing.T) {
	c := New(2, time.Hour)
	c.Put("a", rec("a"))
	c.Put("b", rec("b"))
	c.Put("c", rec("c")) // forces an eviction since a/b are fresh

	assert.LessOrEqual(t, c.Len(), 2)
}

func TestCacheTTLExpiry(t *testing.T) {
	fixed := time.Now()
	c := New(10, 10*time.Millisecond)
	c.now = func() time.Time { return fixed }
	c.Put("a", rec("a"))

	c.now = func() time.Time { return fixed.Add(20 * time.Millisecond) }
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCacheInvalidate(t *testing.T) {
	c := New(10, time.Hour)
	c.Put("a", rec("a"))
	c.Invalidate("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestCacheEvictsOldestWhenNoneExpired(t *testing.T) {
	fixed := time.Now()
	c := New(2, time.Hour)
	c.now = func() time.Time { return fixed }
	c.Put("a", rec("a"))
	c.now = func() time.Time { return fixed.Add(time.Millisecond) }
	c.Put("b", rec("b"))
	c.now = func() time.Time { return fixed.Add(2 * time.Millisecond) }
	c.Put("c", rec("c"))

	_, aPresent := c.Get("a")
	_, bPresent := c.Get("b")
	_, cPresent := c.Get("c")
	assert.False(t, aPresent, "oldest entry should have been evicted")
	assert.True(t, bPresent)
	assert.True(t, cPresent)
}

func TestCacheGetClonesSoCallerMutationDoesNotLeak(t *testing.T) {
	c := New(10, time.Hour)
	c.Put("a", rec("a"))

	got, _ := c.Get("a")
	got.Content = "mutated"

	got2, _ := c.Get("a")
	assert.Equal(t, "c-a", got2.Content)
}
