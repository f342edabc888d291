package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(999), "UNKNOWN"},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, test.level.String())
	}
}

func TestLogLevel_SlogLevel(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{LogLevel(999), slog.LevelInfo},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, test.level.SlogLevel())
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("garbage"))
	assert.Equal(t, LevelInfo, ParseLevel(""))
}

func TestInit_WritesStructuredOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelInfo, "text", &buf)

	Info("test-subsystem", "test message")

	output := buf.String()
	assert.Contains(t, output, "test message")
	assert.Contains(t, output, "test-subsystem")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelInfo, "text", &buf)

	Debug("test", "debug message")
	Info("test", "info message")

	output := buf.String()
	assert.False(t, strings.Contains(output, "debug message"), "debug message should be filtered out at INFO level")
	assert.Contains(t, output, "info message")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelDebug, "json", &buf)

	Error("test", assertError("boom"), "failure: %s", "reason")

	output := buf.String()
	require.Contains(t, output, `"msg":"failure: reason"`)
	assert.Contains(t, output, `"error":"boom"`)
}

func TestTruncateSessionID(t *testing.T) {
	assert.Equal(t, "short", TruncateSessionID("short"))
	assert.Equal(t, "abc12345...", TruncateSessionID("abc12345-def6-7890"))
}

func TestAudit_WritesPrefixedActionAndOutcome(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelInfo, "text", &buf)

	Audit(AuditEvent{Action: "token_exchange", Outcome: "success"})

	assert.Contains(t, buf.String(), "[AUDIT]")
	assert.Contains(t, buf.String(), "action=token_exchange")
}

type simpleError string

func (e simpleError) Error() string { return string(e) }

func assertError(msg string) error { return simpleError(msg) }
