// Package session implements the per-connection session actor (C4): the
// handshake state machine, protocol verb dispatch (C5), the defer log
// (C6), and the outbound connector (C8).
package session

import (
	"bufio"
	"net"
	"strconv"

	"github.com/google/uuid"

	"github.com/jabolina/depot/internal/definition"
	"github.com/jabolina/depot/internal/depot"
	"github.com/jabolina/depot/internal/wire"
)

// handshakeTolerance is how many received lines are allowed before the
// handshake must have completed. The spec tolerates the first two
// received lines being anything (only honoring IM among them); from the
// third onward, both sides must have exchanged IM or the session closes.
const handshakeTolerance = 2

// Session is a single connection's state: its socket, its line reader
// and outbound sink, the handshake flags, its own defer log, and a
// reference to the shared depot state it reads and mutates.
type Session struct {
	id     string
	conn   net.Conn
	reader *wire.Reader
	tx     wire.Sink
	depot  *depot.Depot
	log    definition.Logger

	imSent     bool
	imReceived bool
	peerName   string
	received   int

	defers *deferLog
}

// Serve runs the session actor (C4) over conn until the peer disconnects
// or a protocol violation closes it. Both accepted and Connect-dialed
// sockets funnel through this same entrypoint, giving them identical
// handshake semantics as required by the spec.
func Serve(conn net.Conn, d *depot.Depot, log definition.Logger) {
	id := uuid.NewString()
	s := &Session{
		id:     id,
		conn:   conn,
		reader: wire.NewReader(bufio.NewReader(conn)),
		tx:     wire.NewWriter(conn),
		depot:  d,
		log:    log.WithFields(definition.Fields{"session_id": id}),
		defers: newDeferLog(),
	}
	s.run()
}

func (s *Session) run() {
	defer func() {
		s.log.Debugf("session closing")
		s.conn.Close()
	}()

	s.log.Debugf("session opened, sending handshake")
	if err := s.sendIM(); err != nil {
		return
	}

	for {
		line, ok, err := s.reader.ReadLine()
		if err != nil || !ok {
			return
		}

		s.received++
		if s.received > handshakeTolerance && !(s.imSent && s.imReceived) {
			return
		}

		// Before the handshake completes, every line but IM is silently
		// ignored rather than dispatched: a peer cannot mutate state or
		// dial out before it has identified itself.
		if !s.imReceived && line.Verb() != "IM" {
			continue
		}

		s.dispatch(line)
	}
}

func (s *Session) sendIM() error {
	line := wire.Join("IM", strconv.Itoa(int(s.depot.ListenPort)), s.depot.SelfName)
	err := s.tx.Send(line)
	s.imSent = true
	return err
}

// dispatch routes a single parsed line to its verb handler. It is used
// both for lines freshly read off the wire and for lines an Execute
// replays, which is why it never touches the handshake-tolerance
// counters — those belong to run's read loop only.
func (s *Session) dispatch(line wire.Line) {
	if len(line.Args) == 0 {
		return
	}

	switch line.Verb() {
	case "IM":
		s.handleIM(line)
	case "Connect":
		s.handleConnect(line)
	case "Deliver":
		s.handleDeliver(line)
	case "Withdraw":
		s.handleWithdraw(line)
	case "Transfer":
		s.handleTransfer(line)
	case "Defer":
		s.handleDefer(line)
	case "Execute":
		s.handleExecute(line)
	default:
		// Unrecognized verb: a no-op, per §4.5.
	}
}
