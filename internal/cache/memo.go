package cache

import (
	"container/list"
	"sync"
	"time"

	"spending/internal/core"
)

// RankingsMemo keeps aggregated rankings in memory, bounded by size and age.
// Cached datasets never change once written, so an entry only goes stale when
// the cache directory is cleared underneath the process. A nil *RankingsMemo
// never hits.
type RankingsMemo struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	items   map[string]*list.Element
	lru     *list.List
}

type memoItem struct {
	key       string
	rankings  core.Rankings
	expiresAt time.Time
}

// NewRankingsMemo creates a memo holding at most maxSize periods for ttl each.
func NewRankingsMemo(maxSize int, ttl time.Duration) *RankingsMemo {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &RankingsMemo{
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
}

// Get returns the rankings memoized for p.
func (m *RankingsMemo) Get(p core.Period) (core.Rankings, bool) {
	if m == nil {
		return core.Rankings{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[p.Key()]
	if !ok {
		return core.Rankings{}, false
	}
	item := elem.Value.(*memoItem)
	if m.now().After(item.expiresAt) {
		m.removeElement(elem)
		return core.Rankings{}, false
	}
	m.lru.MoveToFront(elem)
	return item.rankings, true
}

// Put stores the rankings for p, evicting the least recently used period when full.
func (m *RankingsMemo) Put(p core.Period, r core.Rankings) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	item := &memoItem{key: p.Key(), rankings: r, expiresAt: m.now().Add(m.ttl)}
	if elem, ok := m.items[item.key]; ok {
		elem.Value = item
		m.lru.MoveToFront(elem)
		return
	}

	m.items[item.key] = m.lru.PushFront(item)
	if m.lru.Len() > m.maxSize {
		m.removeElement(m.lru.Back())
	}
}

// Len returns the number of memoized periods, expired ones included.
func (m *RankingsMemo) Len() int {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *RankingsMemo) removeElement(elem *list.Element) {
	delete(m.items, elem.Value.(*memoItem).key)
	m.lru.Remove(elem)
}
