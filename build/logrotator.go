package build

import (
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
	"github.com/klauspost/compress/zstd"
)

// RotatingLogWriter writes log lines to a file which is rolled, and the rolled
// files compressed, once it grows past the configured size.
type RotatingLogWriter struct {
	rotator *rotator.Rotator
}

// NewRotatingLogWriter creates logFile (and its directory) and starts a
// rotator writing to it. Close must be called on shutdown to flush it.
func NewRotatingLogWriter(cfg *LogConfig,
	logFile string) (*RotatingLogWriter, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logDir, _ := filepath.Split(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w",
			err)
	}

	r, err := rotator.New(
		logFile, int64(cfg.MaxLogFileSize*1024), false, cfg.MaxLogFiles,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create file rotator: %w", err)
	}

	var c rotator.Compressor
	switch cfg.Compressor {
	case Gzip:
		c = gzip.NewWriter(nil)

	case Zstd:
		c, err = zstd.NewWriter(nil)
		if err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("failed to create zstd "+
				"compressor: %w", err)
		}
	}
	r.SetCompressor(c, logCompressors[cfg.Compressor])

	return &RotatingLogWriter{rotator: r}, nil
}

// Write writes the byte slice to the log rotator.
func (w *RotatingLogWriter) Write(b []byte) (int, error) {
	return w.rotator.Write(b)
}

// Close closes the log file.
func (w *RotatingLogWriter) Close() error {
	return w.rotator.Close()
}
