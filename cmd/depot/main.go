// Command depot runs a single distributed-depot node: it binds an
// ephemeral TCP listener, prints the chosen port, seeds its inventory
// from the command line, and serves inbound and Connect-dialed peer
// sessions until killed.
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/jabolina/depot/internal/definition"
	"github.com/jabolina/depot/internal/depot"
	"github.com/jabolina/depot/internal/session"
)

const (
	exitUsage       = 1
	exitInvalidName = 2
	exitInvalidQty  = 3
)

var (
	app = kingpin.New("depot", "A distributed depot node.")

	debug     = app.Flag("debug", "enable debug logging").Bool()
	name      = app.Arg("name", "this depot's name").Required().String()
	resources = app.Arg("resources", "good/qty pairs to seed the inventory with").Strings()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	if len(*resources)%2 != 0 {
		fmt.Fprintln(os.Stderr, "usage: depot <name> [<good> <qty>]...")
		os.Exit(exitUsage)
	}

	if *name == "" {
		fmt.Fprintln(os.Stderr, "usage: depot <name> [<good> <qty>]...")
		os.Exit(exitUsage)
	}

	if !validName(*name) {
		fmt.Fprintln(os.Stderr, "invalid name: must be non-empty and free of spaces, newlines, and colons")
		os.Exit(exitInvalidName)
	}

	seeds, code := parseResources(*resources)
	if code != 0 {
		os.Exit(code)
	}

	log := definition.NewDefaultLogger()
	definition.ToggleDebug(log, *debug)

	listener, err := net.Listen("tcp4", "0.0.0.0:0")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsage)
	}

	port := listener.Addr().(*net.TCPAddr).Port
	d := depot.New(*name, uint16(port))
	for _, g := range seeds {
		d.Inventory.Seed(g.name, g.qty)
	}

	// A broken peer socket must never take the process down.
	signal.Ignore(syscall.SIGPIPE)

	sig := make(chan os.Signal, 1)
	depot.NotifyReconfigure(sig)
	go depot.Watch(d, sig, os.Stdout, log)

	fmt.Println(port)

	acceptLoop(listener, d, log)
}

func acceptLoop(listener net.Listener, d *depot.Depot, log definition.Logger) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			continue
		}
		go session.Serve(conn, d, log)
	}
}

type seed struct {
	name string
	qty  int64
}

// parseResources validates each <good> <qty> pair, per §6: an invalid
// name exits 2, an invalid quantity exits 3. The caller has already
// rejected an odd argument count (exit 1).
func parseResources(args []string) ([]seed, int) {
	var seeds []seed
	for i := 0; i < len(args); i += 2 {
		good, rawQty := args[i], args[i+1]
		if !validName(good) {
			fmt.Fprintf(os.Stderr, "invalid good name: %q\n", good)
			return nil, exitInvalidName
		}
		qty, ok := parseSeedQty(rawQty)
		if !ok {
			fmt.Fprintf(os.Stderr, "invalid quantity: %q\n", rawQty)
			return nil, exitInvalidQty
		}
		seeds = append(seeds, seed{name: good, qty: qty})
	}
	return seeds, 0
}

// parseSeedQty parses a CLI-seeded quantity: a non-negative decimal
// integer fitting a signed 32-bit range (§6), consuming the entire
// field — no sign, no leading '+', no trailing garbage.
func parseSeedQty(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return v, true
}

func validName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r == ' ' || r == '\n' || r == '\r' || r == ':' {
			return false
		}
	}
	return true
}
