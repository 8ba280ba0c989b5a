// Package logmgr is the façade LDAP operation handlers call: it wraps a
// txn.Manager with the addRead/addWrite/logUserData surface spec.md §4.7
// describes, tagging each logged operation with its kind for observability.
package logmgr

import (
	log "github.com/sirupsen/logrus"

	"github.com/arohank/dstxncore/dn"
	"github.com/arohank/dstxncore/dstxnconfig"
	"github.com/arohank/dstxncore/scope"
	"github.com/arohank/dstxncore/txn"
)

// OpKind tags a logged operation with the LDAP request kind that produced
// it. It carries no conflict-detection semantics of its own — the (dn,
// scope) pair already fully determines that — it exists purely so a replay
// or an operator reading logs can tell what kind of request a UserData
// record came from, the Go-idiomatic stand-in for an operation-context
// class hierarchy.
type OpKind uint8

const (
	OpAdd OpKind = iota
	OpModify
	OpDelete
	OpModifyDN
	OpSearch
	OpBind
)

func (k OpKind) String() string {
	switch k {
	case OpAdd:
		return "ADD"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpModifyDN:
		return "MODIFYDN"
	case OpSearch:
		return "SEARCH"
	case OpBind:
		return "BIND"
	default:
		return "UNKNOWN"
	}
}

// LogManager wraps a txn.Manager with the operation-level entry points
// that LDAP request handlers call directly, following the teacher's
// MVCC Get/Set/Delete façade: ensure there's a transaction, mutate its
// read/write set, log the operation.
type LogManager struct {
	mgr *txn.Manager
}

// NewLogManager opens the underlying transaction manager (and its WAL)
// per cfg and returns a ready LogManager.
func NewLogManager(cfg dstxnconfig.Config) (*LogManager, error) {
	mgr, err := txn.NewManager(cfg)
	if err != nil {
		return nil, err
	}
	return &LogManager{mgr: mgr}, nil
}

// Begin starts a new transaction and returns the caller's handle to it.
func (lm *LogManager) Begin(readOnly bool) (*txn.Handle, error) {
	return lm.mgr.Begin(readOnly)
}

// AddRead records a read of (d, sc) against h's transaction. Returns
// NoCurrentTxnError if h has no registered active transaction.
func (lm *LogManager) AddRead(h *txn.Handle, d dn.Dn, sc scope.SearchScope) error {
	t, err := lm.mgr.GetCurTxn(h)
	if err != nil {
		return err
	}
	t.AddRead(d, sc)
	return nil
}

// AddWrite records a write of (d, sc) against h's transaction. Returns
// NoCurrentTxnError if h has no registered active transaction, or
// ReadOnlyTxnError if it was begun read-only.
func (lm *LogManager) AddWrite(h *txn.Handle, d dn.Dn, sc scope.SearchScope) error {
	t, err := lm.mgr.GetCurTxn(h)
	if err != nil {
		return err
	}
	return t.AddWrite(d, sc)
}

// LogOperation records (d, sc) against h's transaction according to kind
// — write kinds go to the write-set, OpSearch/OpBind go to the read-set —
// and appends a UserData record tagging the DN's normalized string form
// (Dn.String) with kind so a log reader can tell what produced it.
func (lm *LogManager) LogOperation(h *txn.Handle, kind OpKind, d dn.Dn, sc scope.SearchScope) error {
	log.WithFields(log.Fields{"kind": kind, "dn": d.String(), "scope": sc}).
		Debug("logmgr::LogManager.LogOperation; started")

	switch kind {
	case OpAdd, OpModify, OpDelete, OpModifyDN:
		if err := lm.AddWrite(h, d, sc); err != nil {
			return err
		}
	case OpSearch, OpBind:
		if err := lm.AddRead(h, d, sc); err != nil {
			return err
		}
	}

	payload := append([]byte{byte(kind)}, []byte(d.String())...)
	if _, err := lm.mgr.LogUserData(h, payload); err != nil {
		return err
	}

	log.Debug("logmgr::LogManager.LogOperation; done")
	return nil
}

// Commit commits h's transaction, per spec §4.6's conflict check and WAL
// durability requirements.
func (lm *LogManager) Commit(h *txn.Handle) error {
	return lm.mgr.CommitTransaction(h)
}

// Abort aborts h's transaction.
func (lm *LogManager) Abort(h *txn.Handle) error {
	return lm.mgr.AbortTransaction(h)
}

// Shutdown flushes and closes the underlying WAL.
func (lm *LogManager) Shutdown() error {
	return lm.mgr.Shutdown()
}
