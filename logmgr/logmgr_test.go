package logmgr

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arohank/dstxncore/dn"
	"github.com/arohank/dstxncore/internal/txntest"
	"github.com/arohank/dstxncore/scope"
)

func newTestLogManager(t *testing.T) *LogManager {
	cfg := txntest.NewConfig(t.TempDir())
	lm, err := NewLogManager(*cfg)
	assert.Nil(t, err)
	return lm
}

func TestAddWriteThenCommit(t *testing.T) {
	lm := newTestLogManager(t)
	d, err := dn.Parse("cn=frank,dc=example,dc=com")
	assert.Nil(t, err)

	h, err := lm.Begin(false)
	assert.Nil(t, err)

	assert.Nil(t, lm.AddWrite(h, d, scope.Object))
	assert.Nil(t, lm.Commit(h))
}

func TestAddWriteOnReadOnlyTxnErrors(t *testing.T) {
	lm := newTestLogManager(t)
	d, err := dn.Parse("cn=grace,dc=example,dc=com")
	assert.Nil(t, err)

	h, err := lm.Begin(true)
	assert.Nil(t, err)

	assert.NotNil(t, lm.AddWrite(h, d, scope.Object))
}

func TestOperationWithoutBeginErrors(t *testing.T) {
	lm := newTestLogManager(t)
	d, err := dn.Parse("cn=heidi,dc=example,dc=com")
	assert.Nil(t, err)

	h, err := lm.Begin(false)
	assert.Nil(t, err)
	assert.Nil(t, lm.Commit(h))

	// h's transaction already left active after commit.
	assert.NotNil(t, lm.AddWrite(h, d, scope.Object))
}

func TestLogOperationTagsAddAsWrite(t *testing.T) {
	lm := newTestLogManager(t)
	d, err := dn.Parse("cn=ivan,dc=example,dc=com")
	assert.Nil(t, err)

	h, err := lm.Begin(false)
	assert.Nil(t, err)
	assert.Nil(t, lm.LogOperation(h, OpAdd, d, scope.Object))
	assert.Nil(t, lm.Commit(h))
}

func TestLogOperationTagsSearchAsRead(t *testing.T) {
	lm := newTestLogManager(t)
	d, err := dn.Parse("ou=people,dc=example,dc=com")
	assert.Nil(t, err)

	h, err := lm.Begin(true)
	assert.Nil(t, err)
	assert.Nil(t, lm.LogOperation(h, OpSearch, d, scope.Subtree))
	assert.Nil(t, lm.Commit(h))
}
