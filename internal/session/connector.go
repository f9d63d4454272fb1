package session

import (
	"fmt"
	"net"

	"github.com/pkg/errors"

	"github.com/jabolina/depot/internal/definition"
	"github.com/jabolina/depot/internal/depot"
)

// Dial opens a TCP connection to 127.0.0.1:port and, on success, runs it
// as a session actor (C8). A dial failure aborts with no retry: the only
// trace is a gated Debug line, matching §4.8's "no visible effect" for
// the default, non-debug run.
func Dial(d *depot.Depot, port uint16, log definition.Logger) {
	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		log.Debugf("connect to port %d failed: %v", port, errors.Wrap(err, "dial"))
		return
	}
	Serve(conn, d, log)
}
