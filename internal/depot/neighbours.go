package depot

import (
	"sort"
	"sync"

	"github.com/jabolina/depot/internal/wire"
)

// Peer is a single neighbour record: a depot reachable by name, at a
// known listen port, over the tx half of that session's TCP socket. The
// rx half from the spec's data model is deliberately not held here: it
// is read exclusively by the owning session goroutine and the registry
// never needs it (no eviction, no re-reads — see spec Non-goals).
type Peer struct {
	Name string
	Port uint16
	Tx   wire.Sink
}

// Neighbours is the depot's registry of known peers, keyed jointly by
// name and by port: TryAdmit rejects any record that would collide with
// either key of an existing one.
type Neighbours struct {
	mu      sync.Mutex
	byName  map[string]Peer
	byPort  map[uint16]Peer
}

// NewNeighbours builds an empty registry.
func NewNeighbours() *Neighbours {
	return &Neighbours{
		byName: make(map[string]Peer),
		byPort: make(map[uint16]Peer),
	}
}

// TryAdmit inserts a new peer record if neither its name nor its port is
// already taken, returning whether the admission succeeded.
func (n *Neighbours) TryAdmit(name string, port uint16, tx wire.Sink) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, taken := n.byName[name]; taken {
		return false
	}
	if _, taken := n.byPort[port]; taken {
		return false
	}

	peer := Peer{Name: name, Port: port, Tx: tx}
	n.byName[name] = peer
	n.byPort[port] = peer
	return true
}

// FindTxByName looks up the outbound sink for a named neighbour. The
// returned Sink is a handle the caller can write to after releasing the
// registry's lock, per the "never write while holding a lock" rule.
func (n *Neighbours) FindTxByName(name string) (wire.Sink, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	peer, ok := n.byName[name]
	if !ok {
		return nil, false
	}
	return peer.Tx, true
}

// SnapshotSorted returns a copy of every peer record, ordered
// lexicographically by name.
func (n *Neighbours) SnapshotSorted() []Peer {
	n.mu.Lock()
	defer n.mu.Unlock()

	peers := make([]Peer, 0, len(n.byName))
	for _, peer := range n.byName {
		peers = append(peers, peer)
	}
	sort.Slice(peers, func(a, b int) bool { return peers[a].Name < peers[b].Name })
	return peers
}
