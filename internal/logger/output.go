package logger

import (
	"fmt"
	"io"
	"path/filepath"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// OutputConfig describes optional on-disk copies of each process's output.
// Files are Dir/<name>.stdout.log and Dir/<name>.stderr.log.
// Rotation parameters follow lumberjack semantics.
type OutputConfig struct {
	Dir        string // base directory for logs; empty disables file output
	MaxSizeMB  int    // megabytes before rotation (default 10)
	MaxBackups int    // number of backups to keep (default 3)
	MaxAgeDays int    // days to keep (default 7)
	Compress   bool   // Gzip rotated files
}

// Enabled reports whether output files should be written.
func (c OutputConfig) Enabled() bool { return c.Dir != "" }

// Writers returns io.WriteClosers for stdout and stderr of the named process.
// Both are nil when the config is disabled.
func (c OutputConfig) Writers(name string) (io.WriteCloser, io.WriteCloser) {
	if !c.Enabled() {
		return nil, nil
	}
	return c.writer(filepath.Join(c.Dir, fmt.Sprintf("%s.stdout.log", name))),
		c.writer(filepath.Join(c.Dir, fmt.Sprintf("%s.stderr.log", name)))
}

func (c OutputConfig) writer(path string) io.WriteCloser {
	return &lj.Logger{
		Filename:   path,
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}
