package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu      sync.Mutex
	loggers = make(map[string]*logrus.Logger)
)

// New returns a named logger writing to stdout and, when logDir is
// non-empty, to <logDir>/<name>.log. Loggers are cached by name so
// repeated calls share the same file handle.
func New(name, logDir string, verbose bool) (*logrus.Logger, error) {
	mu.Lock()
	defer mu.Unlock()

	if logger, ok := loggers[name]; ok {
		return logger, nil
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory %s: %w", logDir, err)
		}
		path := filepath.Join(logDir, name+".log")
		file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", path, err)
		}
		logger.SetOutput(io.MultiWriter(os.Stdout, file))
	}

	loggers[name] = logger
	return logger, nil
}
