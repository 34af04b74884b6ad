package cache

import (
	"strconv"
	"time"

	"finplan/internal/core"
)

// Views caches what the web client fetches from the backend. Keys are
// derived from the session generation, so a new login never sees data cached
// for an earlier one.
type Views struct {
	Summary    *LRUCache[core.Summary]
	Incomes    *LRUCache[[]core.Income]
	Expenses   *LRUCache[[]core.Expense]
	Vocabulary *LRUCache[[]core.Named]
}

const viewsPerCache = 8

func NewViews(ttl time.Duration, obs Observer) *Views {
	return &Views{
		Summary:    NewLRUCache[core.Summary]("summary", viewsPerCache, ttl).WithObserver(obs),
		Incomes:    NewLRUCache[[]core.Income]("incomes", viewsPerCache, ttl).WithObserver(obs),
		Expenses:   NewLRUCache[[]core.Expense]("expenses", viewsPerCache, ttl).WithObserver(obs),
		Vocabulary: NewLRUCache[[]core.Named]("vocabulary", 2*viewsPerCache, ttl).WithObserver(obs),
	}
}

// Key returns the cache key for a session generation.
func Key(generation uint64) string {
	return "g" + strconv.FormatUint(generation, 10)
}

// SourcesKey and CategoriesKey address the two vocabularies.
func SourcesKey(generation uint64) string    { return Key(generation) + ":sources" }
func CategoriesKey(generation uint64) string { return Key(generation) + ":categories" }

// Register hands every cache to m for expiry sweeps.
func (v *Views) Register(m *Manager) {
	m.Register(v.Summary, v.Incomes, v.Expenses, v.Vocabulary)
}

// InvalidateIncome drops what a new income makes stale.
func (v *Views) InvalidateIncome(generation uint64) {
	v.Incomes.Delete(Key(generation))
	v.Summary.Delete(Key(generation))
	v.Vocabulary.Delete(SourcesKey(generation))
}

// InvalidateExpense drops what a new expense makes stale.
func (v *Views) InvalidateExpense(generation uint64) {
	v.Expenses.Delete(Key(generation))
	v.Summary.Delete(Key(generation))
	v.Vocabulary.Delete(CategoriesKey(generation))
}

// Purge empties every cache, used on logout.
func (v *Views) Purge() {
	v.Summary.Purge()
	v.Incomes.Purge()
	v.Expenses.Purge()
	v.Vocabulary.Purge()
}
