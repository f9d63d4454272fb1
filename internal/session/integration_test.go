package session_test

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jabolina/depot/internal/definition"
	"github.com/jabolina/depot/internal/depot"
	"github.com/jabolina/depot/internal/session"
)

// testNode runs a real depot over loopback TCP for the duration of a test.
type testNode struct {
	d *depot.Depot
	l net.Listener

	mu    sync.Mutex
	conns []net.Conn
}

func startNode(t *testing.T, name string) *testNode {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	port := uint16(l.Addr().(*net.TCPAddr).Port)
	d := depot.New(name, port)
	log := definition.NewDefaultLogger()

	node := &testNode{d: d, l: l}
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			node.track(conn)
			go session.Serve(conn, d, log)
		}
	}()

	// Deliberately not t.Cleanup: tests close the node themselves, before
	// their deferred goleak check, so the accept-loop goroutine and every
	// session goroutine it spawned have already exited by the time leaks
	// are asserted.
	return node
}

func (n *testNode) track(conn net.Conn) {
	n.mu.Lock()
	n.conns = append(n.conns, conn)
	n.mu.Unlock()
}

// close shuts down the listener and every connection it has accepted,
// so session goroutines unblock from their read and return.
func (n *testNode) close() {
	n.l.Close()
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, c := range n.conns {
		c.Close()
	}
}

func (n *testNode) port() uint16 {
	return n.d.ListenPort
}

// rawClient is a hand-driven peer: it dials, completes the handshake
// itself, and lets the test send arbitrary lines.
type rawClient struct {
	conn net.Conn
	r    *bufio.Reader
}

func dialClient(t *testing.T, port uint16, name string, clientPort uint16) *rawClient {
	t.Helper()
	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)

	c := &rawClient{conn: conn, r: bufio.NewReader(conn)}
	// Drain the server's own IM line before sending ours.
	_, err = c.r.ReadString('\n')
	require.NoError(t, err)

	c.send(t, fmt.Sprintf("IM:%d:%s", clientPort, name))
	return c
}

func (c *rawClient) send(t *testing.T, line string) {
	t.Helper()
	_, err := c.conn.Write([]byte(line + "\n"))
	require.NoError(t, err)
}

func (c *rawClient) close() {
	c.conn.Close()
}

func pollUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestIntegration_SoloStartupSnapshot(t *testing.T) {
	defer goleak.VerifyNone(t)

	a := startNode(t, "A")
	defer a.close()
	a.d.Inventory.Seed("milk", 5)
	a.d.Inventory.Seed("bread", 0)

	goods := a.d.Inventory.SnapshotSortedNonzero()
	require.Len(t, goods, 1)
	require.Equal(t, "milk", goods[0].Name)
	require.Equal(t, int64(5), goods[0].Qty)
	require.Empty(t, a.d.Neighbours.SnapshotSorted())
}

func TestIntegration_PairwiseHandshakeViaConnect(t *testing.T) {
	defer goleak.VerifyNone(t)

	a := startNode(t, "A")
	defer a.close()
	b := startNode(t, "B")
	defer b.close()

	client := dialClient(t, a.port(), "client", 9999)
	defer client.close()
	client.send(t, fmt.Sprintf("Connect:%d", b.port()))

	// A now knows both the raw test client (admitted by its own IM) and B
	// (admitted once the Connect-dialed session completes its handshake).
	pollUntil(t, time.Second, func() bool {
		return len(a.d.Neighbours.SnapshotSorted()) == 2
	})
	pollUntil(t, time.Second, func() bool {
		return len(b.d.Neighbours.SnapshotSorted()) == 1
	})

	neighboursOfA := a.d.Neighbours.SnapshotSorted()
	require.Equal(t, []string{"B", "client"}, namesOf(neighboursOfA))

	neighboursOfB := b.d.Neighbours.SnapshotSorted()
	require.Equal(t, "A", neighboursOfB[0].Name)
}

func namesOf(peers []depot.Peer) []string {
	names := make([]string, len(peers))
	for i, p := range peers {
		names[i] = p.Name
	}
	return names
}

func TestIntegration_TransferAcrossNeighbours(t *testing.T) {
	defer goleak.VerifyNone(t)

	a := startNode(t, "A")
	defer a.close()
	b := startNode(t, "B")
	defer b.close()
	a.d.Inventory.Seed("coal", 10)

	client := dialClient(t, a.port(), "client", 9998)
	defer client.close()
	client.send(t, fmt.Sprintf("Connect:%d", b.port()))

	pollUntil(t, time.Second, func() bool {
		return len(a.d.Neighbours.SnapshotSorted()) == 2 && len(b.d.Neighbours.SnapshotSorted()) == 1
	})

	client.send(t, "Transfer:3:coal:B")

	pollUntil(t, time.Second, func() bool {
		goods := a.d.Inventory.SnapshotSortedNonzero()
		return len(goods) == 1 && goods[0].Qty == 7
	})
	pollUntil(t, time.Second, func() bool {
		goods := b.d.Inventory.SnapshotSortedNonzero()
		return len(goods) == 1 && goods[0].Name == "coal" && goods[0].Qty == 3
	})
}

func TestIntegration_DeferThenExecute(t *testing.T) {
	defer goleak.VerifyNone(t)

	a := startNode(t, "A")
	defer a.close()
	a.d.Inventory.Seed("widget", 1)

	client := dialClient(t, a.port(), "client", 9997)
	defer client.close()

	client.send(t, "Defer:42:Deliver:4:widget")
	client.send(t, "Defer:42:Withdraw:2:widget")
	client.send(t, "Execute:42")

	pollUntil(t, time.Second, func() bool {
		goods := a.d.Inventory.SnapshotSortedNonzero()
		return len(goods) == 1 && goods[0].Qty == 3
	})

	// A second Execute is a no-op: quantity stays at 3.
	client.send(t, "Execute:42")
	time.Sleep(50 * time.Millisecond)
	goods := a.d.Inventory.SnapshotSortedNonzero()
	require.Equal(t, int64(3), goods[0].Qty)
}

func TestIntegration_MalformedLinesTolerated(t *testing.T) {
	defer goleak.VerifyNone(t)

	a := startNode(t, "A")
	defer a.close()

	client := dialClient(t, a.port(), "client", 9996)
	defer client.close()

	client.send(t, "Withdraw:abc:milk")
	client.send(t, "Garbage:1:2")
	client.send(t, "Deliver:5:milk")

	pollUntil(t, time.Second, func() bool {
		goods := a.d.Inventory.SnapshotSortedNonzero()
		return len(goods) == 1 && goods[0].Qty == 5
	})

	// session should still be open: a further valid command still applies.
	client.send(t, "Deliver:1:milk")
	pollUntil(t, time.Second, func() bool {
		goods := a.d.Inventory.SnapshotSortedNonzero()
		return len(goods) == 1 && goods[0].Qty == 6
	})
}

func TestIntegration_TransferToUnknownNeighbourIsNoop(t *testing.T) {
	defer goleak.VerifyNone(t)

	a := startNode(t, "A")
	defer a.close()
	a.d.Inventory.Seed("milk", 5)

	client := dialClient(t, a.port(), "client", 9995)
	defer client.close()

	client.send(t, "Transfer:1:milk:Z")
	time.Sleep(50 * time.Millisecond)

	goods := a.d.Inventory.SnapshotSortedNonzero()
	require.Equal(t, int64(5), goods[0].Qty)

	// session still open.
	client.send(t, "Deliver:1:milk")
	pollUntil(t, time.Second, func() bool {
		goods := a.d.Inventory.SnapshotSortedNonzero()
		return goods[0].Qty == 6
	})
}

func TestIntegration_HandshakeViolationClosesSession(t *testing.T) {
	defer goleak.VerifyNone(t)

	a := startNode(t, "A")
	defer a.close()
	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", a.port()))
	require.NoError(t, err)
	defer conn.Close()

	r := bufio.NewReader(conn)
	_, err = r.ReadString('\n') // server's own IM
	require.NoError(t, err)

	// Never send IM: three garbage lines should cause the server to close.
	for i := 0; i < 3; i++ {
		_, err := conn.Write([]byte("Garbage:1:2\n"))
		require.NoError(t, err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	require.Error(t, err)
}
