package wal

import (
	"io"
	"os"
)

// file is the file abstraction the WAL writes through; it can be *os.File
// or an in-memory fake in tests.
type file interface {
	io.Writer
	io.Closer
	Sync() error
}

// fileSystem is a 1:1 mapping over the pieces of the os package the WAL
// needs, so segment creation can be faked in tests without touching disk.
type fileSystem interface {
	create(name string) (file, error)
	mkdirAll(dir string, perm os.FileMode) error
	readDir(dir string) ([]os.DirEntry, error)
}

// defaultFileSystem is the fileSystem backed by the real operating system.
var defaultFileSystem fileSystem = osFileSystem{}

type osFileSystem struct{}

func (osFileSystem) create(name string) (file, error) {
	return os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
}

func (osFileSystem) mkdirAll(dir string, perm os.FileMode) error {
	return os.MkdirAll(dir, perm)
}

func (osFileSystem) readDir(dir string) ([]os.DirEntry, error) {
	return os.ReadDir(dir)
}
