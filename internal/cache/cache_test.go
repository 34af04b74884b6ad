package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finplan/internal/core"
)

type countingObserver struct {
	hits, misses int
}

func (o *countingObserver) ObserveCache(_ string, hit bool) {
	if hit {
		o.hits++
	} else {
		o.misses++
	}
}

func TestLRUCache_GetSetEvict(t *testing.T) {
	c := NewLRUCache[int]("test", 2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "least recently used entry is evicted")
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Size())
}

func TestLRUCache_Expiry(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewLRUCache[string]("test", 10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("a", "x")
	c.Set("b", "y")
	now = now.Add(2 * time.Minute)

	assert.Equal(t, 2, c.CleanExpired())
	assert.Zero(t, c.Size())
}

func TestLRUCache_DeletePrefixAndPurge(t *testing.T) {
	c := NewLRUCache[int]("test", 10, time.Minute)
	c.Set("g1:sources", 1)
	c.Set("g1:categories", 2)
	c.Set("g2:sources", 3)

	assert.Equal(t, 2, c.DeletePrefix("g1:"))
	assert.Equal(t, 1, c.Size())

	c.Purge()
	assert.Zero(t, c.Size())
}

func TestLRUCache_Observer(t *testing.T) {
	obs := &countingObserver{}
	c := NewLRUCache[int]("test", 10, time.Minute).WithObserver(obs)
	c.Set("a", 1)
	c.Get("a")
	c.Get("missing")

	assert.Equal(t, 1, obs.hits)
	assert.Equal(t, 1, obs.misses)
}

func TestViews_Invalidate(t *testing.T) {
	v := NewViews(time.Minute, nil)
	key := Key(3)
	v.Summary.Set(key, core.Summary{})
	v.Incomes.Set(key, []core.Income{{ID: 1}})
	v.Expenses.Set(key, []core.Expense{{ID: 2}})
	v.Vocabulary.Set(SourcesKey(3), []core.Named{{Name: "Employer A"}})
	v.Vocabulary.Set(CategoriesKey(3), []core.Named{{Name: "Rent"}})

	v.InvalidateIncome(3)

	_, ok := v.Incomes.Get(key)
	assert.False(t, ok)
	_, ok = v.Summary.Get(key)
	assert.False(t, ok)
	_, ok = v.Vocabulary.Get(SourcesKey(3))
	assert.False(t, ok)
	_, ok = v.Expenses.Get(key)
	assert.True(t, ok, "expenses are unaffected by a new income")
	_, ok = v.Vocabulary.Get(CategoriesKey(3))
	assert.True(t, ok)

	v.Purge()
	assert.Zero(t, v.Expenses.Size())
}

func TestManager_Cleanup(t *testing.T) {
	c := NewLRUCache[int]("test", 10, time.Millisecond)
	m := NewManager(nil)
	m.Register(c)
	c.Set("a", 1)

	m.StartCleanup(context.Background(), 5*time.Millisecond)
	defer m.Stop()

	assert.Eventually(t, func() bool { return c.Size() == 0 }, time.Second, 5*time.Millisecond)
}

func TestManager_StopIdempotent(t *testing.T) {
	m := NewManager(nil)
	assert.NotPanics(t, func() {
		m.Stop()
		m.StartCleanup(context.Background(), time.Hour)
		m.Stop()
		m.Stop()
	})
}
