// Package txn implements the transaction record, conflict detector, and
// transaction manager that drive the begin/commit/abort lifecycle over a
// durable write-ahead log.
package txn

import (
	"github.com/arohank/dstxncore/dn"
	"github.com/arohank/dstxncore/internal/errs"
	"github.com/arohank/dstxncore/scope"
)

// State is the three-state lifecycle of a Transaction: ACTIVE, COMMITTED,
// or ABORTED. No transition leaves COMMITTED or ABORTED.
type State int

const (
	// Active is the state a transaction is created in.
	Active State = iota
	// Committed is a terminal state.
	Committed
	// Aborted is a terminal state.
	Aborted
)

func (s State) String() string {
	switch s {
	case Active:
		return "ACTIVE"
	case Committed:
		return "COMMITTED"
	case Aborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// LogSpan locates a transaction's records in the WAL. For a transaction
// begun by a Manager, StartLSN is the LSN of its Begin record and EndLSN
// the LSN of its Commit or Abort record (0 until one is appended).
// Transactions rebuilt by recovery carry a zero LogSpan.
type LogSpan struct {
	StartLSN uint64
	EndLSN   uint64
}

// Transaction holds a transaction's id, state, read-set, write-set, and
// start/commit snapshot ids. All mutation is performed by exactly one
// caller — the owning caller — between Begin and Commit/Abort. Once the
// transaction leaves Active, it is immutable and safe to read without
// synchronization.
type Transaction struct {
	ID       uint64
	ReadOnly bool

	state State

	ReadSet  *scope.ScopedSet
	WriteSet *scope.ScopedSet

	StartSnapshotID  uint64
	CommitSnapshotID uint64 // unset (0) until commit

	LogSpan LogSpan
}

func newTransaction(id uint64, readOnly bool, startSnapshotID uint64) *Transaction {
	return &Transaction{
		ID:              id,
		ReadOnly:        readOnly,
		state:           Active,
		ReadSet:         scope.NewScopedSet(),
		WriteSet:        scope.NewScopedSet(),
		StartSnapshotID: startSnapshotID,
		LogSpan:         LogSpan{StartLSN: 0, EndLSN: 0},
	}
}

// State returns the transaction's current lifecycle state.
func (t *Transaction) State() State {
	return t.state
}

// AddRead inserts (d, sc) into the transaction's read-set. It is a no-op
// if the entry is already present, matching ScopedSet.Add's idempotence.
func (t *Transaction) AddRead(d dn.Dn, sc scope.SearchScope) {
	t.ReadSet.Add(d, sc)
}

// AddWrite inserts (d, sc) into the transaction's write-set. It returns
// ReadOnlyTxnError if the transaction is read-only.
func (t *Transaction) AddWrite(d dn.Dn, sc scope.SearchScope) error {
	if t.ReadOnly {
		return errs.NewReadOnlyTxnError("txn: cannot write in a read-only transaction")
	}
	t.WriteSet.Add(d, sc)
	return nil
}

// freeze marks the transaction's scoped sets immutable. Called once the
// transaction leaves Active, so concurrent conflict checks against it from
// other callers' commits are safe without further locking.
func (t *Transaction) freeze() {
	t.ReadSet.Freeze()
	t.WriteSet.Freeze()
}

// HasConflict decides, per spec §4.5, whether t (the committer) conflicts
// with other (a candidate concurrent transaction):
//
//  1. other must be COMMITTED — only committed writers can conflict.
//  2. other must have committed after t began — otherwise t's snapshot
//     already saw other's writes.
//  3. other must have written something — readers never induce conflicts.
//  4. t's write-set or read-set must intersect other's write-set.
func (t *Transaction) HasConflict(other *Transaction) bool {
	if other.state != Committed {
		return false
	}
	if other.CommitSnapshotID <= t.StartSnapshotID {
		return false
	}
	if other.WriteSet.Len() == 0 {
		return false
	}
	return t.WriteSet.Intersects(other.WriteSet) || t.ReadSet.Intersects(other.WriteSet)
}
