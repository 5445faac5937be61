package pos

import (
	"sort"
	"sync"
)

// productLocks serializes stock mutations per product. Lots are never shared
// across products, so per-product granularity is enough to make the
// check-then-deduct sequence atomic without a global lock.
type productLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newProductLocks() *productLocks {
	return &productLocks{locks: make(map[int64]*sync.Mutex)}
}

func (p *productLocks) get(productID int64) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[productID]
	if !ok {
		l = &sync.Mutex{}
		p.locks[productID] = l
	}
	return l
}

// lockAll acquires the locks for the given products in ascending id order so
// concurrent multi-product sales can never deadlock. The returned function
// releases them in reverse order.
func (p *productLocks) lockAll(productIDs []int64) func() {
	ids := make([]int64, 0, len(productIDs))
	seen := make(map[int64]struct{}, len(productIDs))
	for _, id := range productIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	held := make([]*sync.Mutex, 0, len(ids))
	for _, id := range ids {
		l := p.get(id)
		l.Lock()
		held = append(held, l)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
