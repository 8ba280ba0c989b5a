package txntest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConfigPointsAtFreshWalDir(t *testing.T) {
	dir := t.TempDir()
	conf := NewConfig(dir)

	info, err := os.Stat(conf.LogFolder)
	assert.Nil(t, err)
	assert.True(t, info.IsDir())
	assert.Nil(t, conf.Validate())
}

func TestCleanupRemovesContents(t *testing.T) {
	dir := t.TempDir()
	assert.Nil(t, os.WriteFile(filepath.Join(dir, "leftover.log"), []byte("x"), 0o644))

	assert.Nil(t, Cleanup(dir))

	entries, err := os.ReadDir(dir)
	assert.Nil(t, err)
	assert.Empty(t, entries)
}
