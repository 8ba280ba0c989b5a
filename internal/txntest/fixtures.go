// Package txntest provides test fixtures for WAL and transaction manager
// tests, adapted from the directory-fixture helpers tests across the
// codebase use.
package txntest

import (
	"os"

	"github.com/arohank/dstxncore/dstxnconfig"
)

// NewWalDir creates (and returns) a fresh directory under dir suitable for
// use as a wal.Log's segment folder.
func NewWalDir(dir string) string {
	path := dir + string(os.PathSeparator) + "wal"
	os.MkdirAll(path, os.ModePerm)
	return path
}

// NewConfig returns a dstxnconfig.Config pointed at a fresh WAL directory
// under dir, with small buffer/segment sizes suited to exercising rollover
// in tests without needing thousands of records.
func NewConfig(dir string) *dstxnconfig.Config {
	conf := dstxnconfig.NewDefaultConfig()
	conf.LogFolder = NewWalDir(dir)
	conf.LogBufferSize = 256
	conf.LogFileSize = 1024
	return conf
}

// Cleanup removes everything under dir. Callers normally use t.TempDir()
// instead, which cleans up automatically; Cleanup exists for fixtures that
// need to reset a directory mid-test without ending the test.
func Cleanup(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(dir + string(os.PathSeparator) + e.Name()); err != nil {
			return err
		}
	}
	return nil
}
