// Package depot holds the process-wide state shared by every session:
// the inventory (C2) and the neighbour registry (C3), plus the signal
// watcher (C7) that dumps a consistent snapshot of both.
package depot

import (
	"sort"
	"sync"
)

// Good is a single named commodity record. Qty may be negative: a
// Withdraw on a good that doesn't exist yet inserts a negative balance,
// and a Deliver on one inserts a positive one.
type Good struct {
	Name string
	Qty  int64
}

// Inventory is the depot's ordered set of Good records, keyed uniquely by
// name. All mutation goes through Deliver/Withdraw; records are never
// removed, only ever driven to (and left at) zero or negative quantity.
type Inventory struct {
	mu      sync.Mutex
	records map[string]int64
}

// NewInventory builds an empty inventory.
func NewInventory() *Inventory {
	return &Inventory{records: make(map[string]int64)}
}

// Seed installs a startup good record directly, outside the verb layer
// that enforces n > 0 before calling Deliver/Withdraw — the CLI seeds are
// allowed to be zero (spec scenario 1 seeds "bread 0").
func (i *Inventory) Seed(name string, qty int64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.records[name] += qty
}

// Deliver adds n (n > 0, enforced by the verb layer, not here) to good's
// quantity, inserting a new record at n if it doesn't exist.
func (i *Inventory) Deliver(good string, n int64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.records[good] += n
}

// Withdraw subtracts n (n > 0, enforced by the verb layer) from good's
// quantity, inserting a new record at -n if it doesn't exist.
func (i *Inventory) Withdraw(good string, n int64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.records[good] -= n
}

// SnapshotSortedNonzero returns a copy of every non-zero record, ordered
// lexicographically by name.
func (i *Inventory) SnapshotSortedNonzero() []Good {
	i.mu.Lock()
	defer i.mu.Unlock()

	goods := make([]Good, 0, len(i.records))
	for name, qty := range i.records {
		if qty == 0 {
			continue
		}
		goods = append(goods, Good{Name: name, Qty: qty})
	}
	sort.Slice(goods, func(a, b int) bool { return goods[a].Name < goods[b].Name })
	return goods
}
