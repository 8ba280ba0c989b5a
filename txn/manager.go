package txn

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/arohank/dstxncore/dstxnconfig"
	"github.com/arohank/dstxncore/internal/errs"
	"github.com/arohank/dstxncore/wal"
)

// Handle is the explicit per-caller registration spec §5 requires: it is
// the caller's ticket to exactly one ACTIVE transaction at a time. Callers
// thread a Handle through their own call sites rather than relying on
// goroutine-local state, which Go idiomatically avoids.
type Handle struct {
	txnID uint64
}

// Manager owns the active and recently-committed transaction lists, drives
// begin/commit/abort, serializes commits, and invokes the WAL. It is a
// process-wide singleton per spec §4.6/§9, constructed explicitly via
// NewManager and torn down via Shutdown — no implicit module-load
// initialization.
type Manager struct {
	// commitMutex is the single serialization point protecting commit
	// ordering, snapshot assignment, and active/recent bookkeeping.
	commitMutex sync.Mutex

	nextTxnID uint64
	nextSnap  uint64

	active map[uint64]*Transaction
	recent map[uint64]*Transaction

	log *wal.Log
}

// NewManager opens (or creates) the WAL at cfg.LogFolder, replays it to
// recover nextTxnID/nextSnap and discard any non-committed in-flight
// transactions, and returns a ready Manager.
func NewManager(cfg dstxnconfig.Config) (*Manager, error) {
	log.WithFields(log.Fields{"logFolder": cfg.LogFolder}).Info("txn::NewManager; started")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l, records, err := wal.Open(cfg.LogFolder, int(cfg.LogBufferSize), cfg.LogFileSize)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		active:    make(map[uint64]*Transaction),
		recent:    make(map[uint64]*Transaction),
		log:       l,
		nextTxnID: 1,
		nextSnap:  1,
	}

	if err := m.recover(records); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"nextTxnID": m.nextTxnID, "nextSnap": m.nextSnap, "recent": len(m.recent)}).Info("txn::NewManager; done")
	return m, nil
}

// recover reconstructs nextTxnID/nextSnap from replayed WAL records and
// discards any transaction whose last record was not Commit (it is
// considered ABORTED, per spec §4.3's Replay semantics).
func (m *Manager) recover(records []wal.Record) error {
	log.WithFields(log.Fields{"records": len(records)}).Info("txn::Manager.recover; started")

	lastKind := make(map[uint64]wal.Kind)
	startSnap := make(map[uint64]uint64)
	commitSnap := make(map[uint64]uint64)
	sawBegin := make(map[uint64]bool)

	var maxTxnID, maxSnap uint64

	for _, r := range records {
		if r.TxnID > maxTxnID {
			maxTxnID = r.TxnID
		}

		switch r.Kind {
		case wal.KindBegin:
			sawBegin[r.TxnID] = true
			startSnap[r.TxnID] = r.StartSnapshot
			if r.StartSnapshot > maxSnap {
				maxSnap = r.StartSnapshot
			}
		case wal.KindUserData:
			if !sawBegin[r.TxnID] {
				return errs.NewInvalidLogError(fmt.Sprintf("txn: userdata record for txn %d before its begin record", r.TxnID))
			}
		case wal.KindCommit:
			if !sawBegin[r.TxnID] {
				return errs.NewInvalidLogError(fmt.Sprintf("txn: commit record for txn %d before its begin record", r.TxnID))
			}
			commitSnap[r.TxnID] = r.CommitSnapshot
			if r.CommitSnapshot > maxSnap {
				maxSnap = r.CommitSnapshot
			}
		case wal.KindAbort:
			if !sawBegin[r.TxnID] {
				return errs.NewInvalidLogError(fmt.Sprintf("txn: abort record for txn %d before its begin record", r.TxnID))
			}
		}

		lastKind[r.TxnID] = r.Kind
	}

	for txnID, kind := range lastKind {
		if kind != wal.KindCommit {
			log.WithFields(log.Fields{"txnID": txnID, "lastKind": kind}).
				Info("txn::Manager.recover; discarding non-committed in-flight transaction")
			continue
		}

		t := newTransaction(txnID, false, startSnap[txnID])
		t.state = Committed
		t.CommitSnapshotID = commitSnap[txnID]
		t.freeze()
		m.recent[txnID] = t
	}

	if maxTxnID+1 > m.nextTxnID {
		m.nextTxnID = maxTxnID + 1
	}
	if maxSnap+1 > m.nextSnap {
		m.nextSnap = maxSnap + 1
	}

	log.Info("txn::Manager.recover; done")
	return nil
}

// Begin allocates a new transaction id, takes a start snapshot, registers
// it as ACTIVE, and appends a Begin record to the WAL (buffered, not
// flushed), per spec §4.6.
func (m *Manager) Begin(readOnly bool) (*Handle, error) {
	m.commitMutex.Lock()
	defer m.commitMutex.Unlock()

	id := m.nextTxnID
	m.nextTxnID++
	startSnap := m.nextSnap
	m.nextSnap++

	t := newTransaction(id, readOnly, startSnap)

	lsn, err := m.log.Append(wal.KindBegin, id, startSnap)
	if err != nil {
		return nil, err
	}
	t.LogSpan.StartLSN = lsn

	m.active[id] = t

	log.WithFields(log.Fields{"txnID": id, "readOnly": readOnly, "startSnap": startSnap}).Info("txn::Manager.Begin; started transaction")
	return &Handle{txnID: id}, nil
}

// GetCurTxn returns the ACTIVE transaction registered for h, or
// NoCurrentTxnError.
func (m *Manager) GetCurTxn(h *Handle) (*Transaction, error) {
	m.commitMutex.Lock()
	defer m.commitMutex.Unlock()

	t, ok := m.active[h.txnID]
	if !ok {
		return nil, errs.NewNoCurrentTxnError(fmt.Sprintf("txn: no active transaction %d", h.txnID))
	}
	return t, nil
}

// CommitTransaction runs the conflict detector against every recent
// transaction that committed after h's transaction began; on conflict it
// aborts h's transaction and returns ConflictError. On success it appends
// a durable Commit record and transitions the transaction to COMMITTED,
// per spec §4.6.
func (m *Manager) CommitTransaction(h *Handle) error {
	m.commitMutex.Lock()

	t, ok := m.active[h.txnID]
	if !ok {
		m.commitMutex.Unlock()
		return errs.NewNoCurrentTxnError(fmt.Sprintf("txn: no active transaction %d", h.txnID))
	}

	commitSnap := m.nextSnap
	m.nextSnap++

	for _, other := range m.recent {
		if other.CommitSnapshotID <= t.StartSnapshotID {
			continue
		}
		if t.HasConflict(other) {
			m.commitMutex.Unlock()
			log.WithFields(log.Fields{"txnID": t.ID, "other": other.ID}).Info("txn::Manager.CommitTransaction; conflict detected, aborting")
			_ = m.AbortTransaction(h)
			return errs.NewConflictError(fmt.Sprintf("txn: transaction %d conflicts with committed transaction %d", t.ID, other.ID))
		}
	}

	lsn, err := m.log.AppendSync(wal.KindCommit, t.ID, commitSnap)
	if err != nil {
		m.commitMutex.Unlock()
		t.state = Aborted
		t.freeze()
		delete(m.active, t.ID)
		return err
	}

	t.CommitSnapshotID = commitSnap
	t.LogSpan.EndLSN = lsn
	t.state = Committed
	t.freeze()

	delete(m.active, t.ID)
	m.recent[t.ID] = t

	m.pruneRecentLocked()

	m.commitMutex.Unlock()

	log.WithFields(log.Fields{"txnID": t.ID, "commitSnap": commitSnap}).Info("txn::Manager.CommitTransaction; committed")
	return nil
}

// LogUserData appends a UserData record carrying data, attributed to h's
// active transaction. It is buffered, not fsynced — per spec §4.3 only
// Commit records require durability on return.
func (m *Manager) LogUserData(h *Handle, data []byte) (uint64, error) {
	m.commitMutex.Lock()
	defer m.commitMutex.Unlock()

	t, ok := m.active[h.txnID]
	if !ok {
		return 0, errs.NewNoCurrentTxnError(fmt.Sprintf("txn: no active transaction %d", h.txnID))
	}

	lsn, err := m.log.AppendUserData(t.ID, data)
	if err != nil {
		return 0, err
	}
	return lsn, nil
}

// AbortTransaction marks h's transaction ABORTED and appends an Abort
// record. Abort durability is not required — an abort is implicit via the
// absence of a Commit record — so the append only needs to be buffered.
func (m *Manager) AbortTransaction(h *Handle) error {
	m.commitMutex.Lock()
	defer m.commitMutex.Unlock()

	t, ok := m.active[h.txnID]
	if !ok {
		return errs.NewNoCurrentTxnError(fmt.Sprintf("txn: no active transaction %d", h.txnID))
	}

	lsn, err := m.log.Append(wal.KindAbort, t.ID)
	if err != nil {
		return err
	}

	t.LogSpan.EndLSN = lsn
	t.state = Aborted
	t.freeze()
	delete(m.active, t.ID)

	log.WithFields(log.Fields{"txnID": t.ID}).Info("txn::Manager.AbortTransaction; aborted")
	return nil
}

// pruneRecentLocked drops recent transactions no longer needed for
// conflict checks: any recent transaction whose CommitSnapshotID is below
// the oldest StartSnapshotID among still-active transactions. Callers must
// hold commitMutex.
func (m *Manager) pruneRecentLocked() {
	// With no active transaction left, nothing can still need an old
	// snapshot: every recent entry is safe to drop.
	minStart := m.nextSnap
	for _, a := range m.active {
		if a.StartSnapshotID < minStart {
			minStart = a.StartSnapshotID
		}
	}

	for id, r := range m.recent {
		if r.CommitSnapshotID < minStart {
			delete(m.recent, id)
		}
	}
}

// Shutdown flushes and closes the WAL.
func (m *Manager) Shutdown() error {
	log.Info("txn::Manager.Shutdown; started")
	return m.log.Close()
}
