package session

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/jabolina/depot/internal/wire"
)

// handleIM admits a new neighbour from this session's first successful
// IM. A second IM on an already-handshaken session is a no-op, matching
// the idempotence requirement in the spec's testable properties.
func (s *Session) handleIM(line wire.Line) {
	if line.SepCount != 2 {
		return
	}
	if s.imReceived {
		return
	}

	port, ok := parsePort(line.Arg(1))
	if !ok {
		return
	}
	name := line.Arg(2)
	if !validName(name) {
		return
	}

	if !s.depot.Neighbours.TryAdmit(name, port, s.tx) {
		err := errors.Errorf("admit %s:%d: name or port already taken", name, port)
		s.log.Debugf("handshake rejected: %v", err)
		return
	}

	s.imReceived = true
	s.peerName = name
	s.log.Debugf("handshake complete with %s", name)
}

// handleConnect dials a new peer on a fresh task; on success that task
// becomes a session actor with identical handshake semantics to any
// accepted connection (C8).
func (s *Session) handleConnect(line wire.Line) {
	if line.SepCount != 1 {
		return
	}
	if !s.imReceived {
		return
	}

	port, ok := parsePort(line.Arg(1))
	if !ok {
		return
	}

	go Dial(s.depot, port, s.log)
}

// handleDeliver applies a positive quantity of a named good to the
// shared inventory.
func (s *Session) handleDeliver(line wire.Line) {
	if line.SepCount != 2 {
		return
	}
	qty, ok := parsePositiveInt64(line.Arg(1))
	if !ok {
		return
	}
	good := line.Arg(2)
	if !validName(good) {
		return
	}
	s.depot.Inventory.Deliver(good, qty)
}

// handleWithdraw subtracts a positive quantity of a named good from the
// shared inventory. An unknown good goes negative, per spec.
func (s *Session) handleWithdraw(line wire.Line) {
	if line.SepCount != 2 {
		return
	}
	qty, ok := parsePositiveInt64(line.Arg(1))
	if !ok {
		return
	}
	good := line.Arg(2)
	if !validName(good) {
		return
	}
	s.depot.Inventory.Withdraw(good, qty)
}

// handleTransfer atomically debits the local inventory and dispatches a
// Deliver to the named neighbour. The inventory mutation and the
// neighbour lookup each take their own lock; the socket write happens
// after both have released, so a slow or blocked peer write can never
// hold up another session's inventory access.
func (s *Session) handleTransfer(line wire.Line) {
	if line.SepCount != 3 {
		return
	}
	qty, ok := parsePositiveInt64(line.Arg(1))
	if !ok {
		return
	}
	good := line.Arg(2)
	if !validName(good) {
		return
	}
	dest := line.Arg(3)

	tx, ok := s.depot.Neighbours.FindTxByName(dest)
	if !ok {
		return
	}

	s.depot.Inventory.Withdraw(good, qty)

	// Best-effort: a broken peer socket is ignored, never surfaced.
	if err := tx.Send(wire.Join("Deliver", fmt.Sprintf("%d", qty), good)); err != nil {
		s.log.Debugf("transfer to %s dropped: %v", dest, errors.Wrap(err, "send Deliver"))
	}
}

// handleDefer files a command line under key for later replay by
// Execute. The inner line is reconstructed from the trailing arguments
// and stored verbatim, including if its own verb is Defer or Execute.
func (s *Session) handleDefer(line wire.Line) {
	if line.SepCount != 4 && line.SepCount != 5 {
		return
	}
	key, ok := parsePositiveKey(line.Arg(1))
	if !ok {
		return
	}

	inner := line.Args[2:]
	if len(inner) == 0 || inner[0] == "" {
		return
	}

	s.defers.append(key, wire.Join(inner...))
}

// handleExecute replays every not-yet-executed record filed under key,
// in original insertion order, marking each executed immediately before
// it is dispatched. Marking first (rather than after the whole batch)
// is what makes a replayed line that is itself Execute:key safe: the
// !executed guard it observes has already been flipped for anything
// dispatched earlier in this same pass.
func (s *Session) handleExecute(line wire.Line) {
	if line.SepCount != 1 {
		return
	}
	key, ok := parsePositiveKey(line.Arg(1))
	if !ok {
		return
	}

	for _, idx := range s.defers.matchingIndices(key) {
		if s.defers.isExecuted(idx) {
			continue
		}
		s.defers.markExecuted(idx)
		s.dispatch(wire.Split(s.defers.lineAt(idx)))
	}
}
