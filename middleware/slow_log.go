package middleware

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shrek82/torm/core"
	"github.com/shrek82/torm/logger"
)

// SlowLogMiddleware logs statements that take longer than the specified threshold.
type SlowLogMiddleware struct {
	Threshold time.Duration
	LogPath   string
	logger    logger.Logger
	file      *os.File
}

// NewSlowLog creates a new SlowLogMiddleware.
// threshold: statements taking longer than this will be logged.
// logPath: path to the log file. If empty, the DB logger is used.
func NewSlowLog(threshold time.Duration, logPath string) *SlowLogMiddleware {
	return &SlowLogMiddleware{
		Threshold: threshold,
		LogPath:   logPath,
	}
}

// SetOutput sets the output destination for the logger.
// This is useful for testing or custom logging.
func (m *SlowLogMiddleware) SetOutput(w io.Writer) {
	m.logger = logger.New(w, logger.LogLevelWarn, logger.LogFormatText)
}

func (m *SlowLogMiddleware) Name() string {
	return "SlowLog"
}

func (m *SlowLogMiddleware) Init(db *core.DB) error {
	// If logger is already set (e.g. by SetOutput), don't overwrite it
	if m.logger != nil {
		return nil
	}

	if m.LogPath == "" {
		m.logger = db.Logger()
		return nil
	}
	f, err := os.OpenFile(m.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open slow log file: %w", err)
	}
	m.file = f
	m.logger = logger.New(f, logger.LogLevelWarn, logger.LogFormatText)
	return nil
}

func (m *SlowLogMiddleware) Shutdown() error {
	if m.file != nil {
		return m.file.Close()
	}
	return nil
}

func (m *SlowLogMiddleware) Process(ctx context.Context, stmt *core.Statement, next core.Handler) (*core.Result, error) {
	start := time.Now()
	res, err := next(ctx, stmt)
	duration := time.Since(start)

	if duration > m.Threshold {
		m.logger.WithFields(stmt.Fields()).Warn("slow sql: duration=%v | sql=%s | args=%v | rows=%d | err=%v",
			duration, stmt.SQL, stmt.ArgValues(), res.Len(), err)
	}

	return res, err
}
