package session

// deferRecord is a single entry in a session's defer log: the key it was
// filed under, the fully-formed line it will replay, and whether an
// Execute has already replayed it.
type deferRecord struct {
	key      int
	line     string
	executed bool
}

// deferLog is the per-session, append-only command buffer behind Defer
// and Execute (C6). It belongs to exactly one session goroutine, so it
// needs no lock of its own — the concurrency model already guarantees a
// single actor touches it.
type deferLog struct {
	records []deferRecord
}

func newDeferLog() *deferLog {
	return &deferLog{}
}

// append records a new deferred line under key. It is always appended,
// even if a replay of some other Execute is currently iterating: Go
// slices let index-based readers observe the grown slice through the
// same header, so concurrent Defer-during-replay recursion (see Execute)
// is safe.
func (d *deferLog) append(key int, line string) {
	d.records = append(d.records, deferRecord{key: key, line: line})
}

// matchingIndices returns, in original insertion order, the indices of
// every record filed under key that has not yet been marked executed at
// the moment of the call. Execute snapshots this list before replaying
// so that a record Deferred as a *side effect* of this same Execute call
// (i.e. a replayed Defer line) does not get replayed again within the
// same pass.
func (d *deferLog) matchingIndices(key int) []int {
	var indices []int
	for i, r := range d.records {
		if r.key == key && !r.executed {
			indices = append(indices, i)
		}
	}
	return indices
}

func (d *deferLog) isExecuted(i int) bool {
	return d.records[i].executed
}

func (d *deferLog) markExecuted(i int) {
	d.records[i].executed = true
}

func (d *deferLog) lineAt(i int) string {
	return d.records[i].line
}
