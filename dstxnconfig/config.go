// Package dstxnconfig defines the configuration surface for the
// transactional core: the WAL's folder, buffer size, and segment rollover
// threshold.
package dstxnconfig

import (
	"fmt"
	"io/ioutil"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

const (
	// KB - Kilobytes
	KB uint64 = 1024
	// MB - Megabytes
	MB uint64 = 1024 * 1024
)

const (
	defaultLogBufferSize = 4 * KB
	defaultLogFileSize   = 8 * KB
)

// Config defines the configuration settings for the transactional core, per
// spec §6.
type Config struct {
	// LogFolder is the directory holding WAL segment files; created if
	// absent.
	LogFolder string `yaml:"logFolder"`

	// LogBufferSize is the WAL's in-memory buffer size in bytes.
	LogBufferSize uint64 `yaml:"logBufferSize"`

	// LogFileSize is the segment rollover threshold in bytes.
	LogFileSize uint64 `yaml:"logFileSize"`
}

// NewDefaultConfig returns a Config with the typical buffer/segment sizes
// called out in spec §6 (4 KiB buffer, 8 KiB segments).
func NewDefaultConfig() *Config {
	return &Config{
		LogFolder:     "/var/lib/dstxncore/wal",
		LogBufferSize: defaultLogBufferSize,
		LogFileSize:   defaultLogFileSize,
	}
}

// Validate validates a Config and returns an error if it's invalid.
func (conf *Config) Validate() error {
	if conf.LogFolder == "" {
		return fmt.Errorf("invalid log folder provided in config")
	}
	if conf.LogBufferSize == 0 {
		return fmt.Errorf("invalid log buffer size provided in config")
	}
	if conf.LogFileSize == 0 {
		return fmt.Errorf("invalid log file size provided in config")
	}
	if conf.LogBufferSize > conf.LogFileSize {
		return fmt.Errorf("log buffer size (%d) must not exceed log file size (%d)", conf.LogBufferSize, conf.LogFileSize)
	}
	return nil
}

// LoadFromFile loads the config from a YAML file. It assumes conf already
// has defaults populated; fields absent from the file are left untouched.
func (conf *Config) LoadFromFile(path string) {
	log.WithFields(log.Fields{"path": path}).Info("dstxnconfig::Config.LoadFromFile; loading config from file")

	data, err := ioutil.ReadFile(path)
	if err != nil {
		log.WithFields(log.Fields{"path": path, "error": err}).Error("dstxnconfig::Config.LoadFromFile; error reading config file")
		return
	}

	fconf := Config{}
	if err := yaml.Unmarshal(data, &fconf); err != nil {
		log.WithFields(log.Fields{"path": path, "error": err}).Error("dstxnconfig::Config.LoadFromFile; error unmarshalling config file")
		return
	}

	log.WithFields(log.Fields{"config": fconf}).Debug("dstxnconfig::Config.LoadFromFile; read contents from the file")

	if fconf.LogFolder != "" {
		conf.LogFolder = fconf.LogFolder
	}
	if fconf.LogBufferSize != 0 {
		conf.LogBufferSize = fconf.LogBufferSize
	}
	if fconf.LogFileSize != 0 {
		conf.LogFileSize = fconf.LogFileSize
	}
}
