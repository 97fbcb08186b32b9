package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextLogger(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LogLevelWarn, LogFormatText)

	l.Info("hidden")
	l.Debug("hidden")
	l.Warn("careful %d", 1)
	l.WithFields(map[string]any{"b": 2, "a": 1}).Error("boom")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[TORM]")
	assert.Contains(t, lines[0], "WARN: careful 1")
	assert.True(t, strings.HasSuffix(lines[1], "ERROR: boom | a=1 b=2"), lines[1])
}

func TestSQLLogger(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LogLevelInfo, LogFormatText)
	l.SQL("SELECT * FROM t WHERE id = ?", time.Millisecond, int64(1))
	assert.Contains(t, buf.String(), "SQL: [1ms] SELECT * FROM t WHERE id = ? | args: [1]")

	buf.Reset()
	l.SetLevel(LogLevelError)
	l.SQL("SELECT 1", time.Millisecond)
	assert.Empty(t, buf.String())
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LogLevelDebug, LogFormatJSON).WithFields(map[string]any{"request_id": "r-1"})
	l.SQL("SELECT 1", 2*time.Second)

	var data map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &data))
	assert.Equal(t, "SQL", data["level"])
	assert.Equal(t, "SELECT 1", data["sql"])
	assert.Equal(t, "2s", data["duration"])
	assert.Equal(t, "r-1", data["request_id"])
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]LogLevel{
		"silent": LogLevelSilent,
		"ERROR":  LogLevelError,
		"warn":   LogLevelWarn,
		"":       LogLevelInfo,
		"debug":  LogLevelDebug,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Error("nothing")
	l.SQL("SELECT 1", 0)
}
