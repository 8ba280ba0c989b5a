package dstxnconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDefaultConfigValidates(t *testing.T) {
	conf := NewDefaultConfig()
	assert.Nil(t, conf.Validate())
}

func TestValidateRejectsBufferLargerThanSegment(t *testing.T) {
	conf := NewDefaultConfig()
	conf.LogBufferSize = conf.LogFileSize + 1
	assert.NotNil(t, conf.Validate())
}

func TestValidateRejectsEmptyFolder(t *testing.T) {
	conf := NewDefaultConfig()
	conf.LogFolder = ""
	assert.NotNil(t, conf.Validate())
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := "logFolder: /tmp/custom-wal\nlogBufferSize: 2048\nlogFileSize: 4096\n"
	assert.Nil(t, os.WriteFile(path, []byte(contents), 0o644))

	conf := NewDefaultConfig()
	conf.LoadFromFile(path)

	assert.Equal(t, "/tmp/custom-wal", conf.LogFolder)
	assert.Equal(t, uint64(2048), conf.LogBufferSize)
	assert.Equal(t, uint64(4096), conf.LogFileSize)
}

func TestLoadFromFileLeavesDefaultsOnMissingFile(t *testing.T) {
	conf := NewDefaultConfig()
	before := *conf
	conf.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, before, *conf)
}
