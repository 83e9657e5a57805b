package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	loggerMu sync.RWMutex
	logger   = zap.NewNop()
	logsDir  string
)

// ConfigureDebug points the debug logger at a fresh timestamped file in dir.
func ConfigureDebug(dir string) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}

	path := filepath.Join(dir, fmt.Sprintf("debug-%s.log", time.Now().Format("20060102-150405")))

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	cfg.Sampling = nil

	l, err := cfg.Build()
	if err != nil {
		return
	}

	SetLogger(l)
	loggerMu.Lock()
	logsDir = dir
	loggerMu.Unlock()
}

// SetLogger replaces the process logger. Passing nil installs a no-op logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	loggerMu.Lock()
	old := logger
	logger = l
	loggerMu.Unlock()
	_ = old.Sync()
}

// Logger returns the process logger for structured logging.
func Logger() *zap.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// Debug writes a formatted message to the debug log.
func Debug(format string, args ...any) {
	Logger().Sugar().Debugf(format, args...)
}

// SyncLogger flushes buffered log entries.
func SyncLogger() {
	_ = Logger().Sync()
}

// CleanupLogs keeps the newest retention debug logs and removes the rest.
func CleanupLogs(retention int) {
	loggerMu.RLock()
	dir := logsDir
	loggerMu.RUnlock()
	if dir == "" {
		return
	}
	cleanupLogsIn(dir, retention)
}

func cleanupLogsIn(dir string, retention int) {
	if retention < 1 {
		retention = 1
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	var logs []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "debug-") || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		logs = append(logs, e.Name())
	}
	if len(logs) <= retention {
		return
	}

	// Timestamped names sort chronologically.
	sort.Strings(logs)
	for _, name := range logs[:len(logs)-retention] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			Debug("Failed to remove old log %s: %v", name, err)
		}
	}
}
