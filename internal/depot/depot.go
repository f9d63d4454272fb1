package depot

// Depot is the process-wide state every session and the signal watcher
// share: the node's own identity plus its inventory and neighbour table.
// It carries no behavior of its own beyond construction; Inventory and
// Neighbours already serialize their own mutation.
type Depot struct {
	SelfName    string
	ListenPort  uint16
	Inventory   *Inventory
	Neighbours  *Neighbours
}

// New builds a Depot for the given identity with an empty inventory and
// neighbour table.
func New(selfName string, listenPort uint16) *Depot {
	return &Depot{
		SelfName:   selfName,
		ListenPort: listenPort,
		Inventory:  NewInventory(),
		Neighbours: NewNeighbours(),
	}
}
