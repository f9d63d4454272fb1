package depot

import (
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/jabolina/depot/internal/definition"
)

// Watch runs the signal watcher (C7): it blocks on sig and, each time it
// fires, writes a consistent snapshot of the depot's inventory and
// neighbour table to out. It spawns nothing itself and returns only if
// sig is closed; callers are expected to run it in its own goroutine.
//
// Snapshots go through the same synchronized accessors (SnapshotSorted,
// SnapshotSortedNonzero) mutating operations use, so the dump reflects
// some valid sequential interleaving of completed mutations even while
// other sessions keep running concurrently.
func Watch(d *Depot, sig <-chan os.Signal, out io.Writer, log definition.Logger) {
	for range sig {
		log.Debugf("reconfiguration signal received, dumping snapshot")
		dump(d, out)
	}
}

func dump(d *Depot, out io.Writer) {
	fmt.Fprintln(out, "Goods:")
	for _, good := range d.Inventory.SnapshotSortedNonzero() {
		fmt.Fprintf(out, "%s %d\n", good.Name, good.Qty)
	}

	fmt.Fprintln(out, "Neighbours:")
	for _, peer := range d.Neighbours.SnapshotSorted() {
		fmt.Fprintln(out, peer.Name)
	}
}

// NotifyReconfigure registers ch against the platform's reconfiguration
// signal (SIGHUP). Call sites also rely on SIGPIPE being ignored
// globally (see cmd/depot), so a write against a peer that has since
// disconnected never takes the process down.
func NotifyReconfigure(ch chan<- os.Signal) {
	signal.Notify(ch, reconfigureSignal)
}
