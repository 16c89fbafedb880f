package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, slog.LevelInfo, ComponentDB).WithComponent(ComponentStorage)
	logger.Info("hello", FieldUsername, "alice")

	out := buf.String()
	assert.Contains(t, out, "component=storage")
	assert.Contains(t, out, "username=alice")
	assert.NotContains(t, out, "component=db")
}

func TestFieldsBuilder(t *testing.T) {
	fields := NewFields().
		WithUsername("alice").
		WithBalance("A1", "2024-01", "150.00").
		WithError(nil).
		WithOperation(OpUpsert)

	assert.Equal(t, "alice", fields[FieldUsername])
	assert.Equal(t, "A1", fields[FieldAccount])
	assert.Equal(t, OpUpsert, fields[FieldOperation])
	_, hasErr := fields[FieldError]
	assert.False(t, hasErr)
	assert.Len(t, fields.ToSlice(), len(fields)*2)
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, slog.LevelInfo, ComponentHTTP)

	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
	assert.Equal(t, "unknown", FromContext(context.Background()).Component())
}

func TestWrap(t *testing.T) {
	var buf bytes.Buffer
	logger := Wrap(slog.New(slog.NewTextHandler(&buf, nil)), ComponentAccounts)
	logger.Info("hi")
	assert.Contains(t, buf.String(), "component=accounts")
	assert.Equal(t, ComponentApp, Wrap(nil, ComponentApp).Component())
}

func TestStructuredLogger_LogError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(NewWriter(&buf, slog.LevelInfo, ComponentTrace))

	sl.LogError(context.Background(), "Request failed", errors.New("boom"), ComponentHTTP, OpRead, NewFields().WithUsername("alice"))
	out := buf.String()
	assert.Contains(t, out, "component=http")
	assert.NotContains(t, out, "component=trace")
	assert.Contains(t, out, "error=boom")
	assert.Contains(t, out, "operation=read")
	assert.Contains(t, out, "username=alice")

	buf.Reset()
	sl.LogError(context.Background(), "failed", errors.New("x"), "", OpRead, nil)
	assert.Contains(t, buf.String(), "component=trace")
}

func TestStructuredLogger_HTTP(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(NewWriter(&buf, slog.LevelInfo, ComponentTrace))
	r := httptest.NewRequest(http.MethodGet, "/tables?view=all", nil)

	sl.LogHTTPStart(context.Background(), r, "203.0.113.9")
	sl.LogHTTPEnd(context.Background(), r, http.StatusNotFound, 3, "203.0.113.9")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if assert.Len(t, lines, 2) {
		for _, line := range lines {
			assert.Equal(t, 1, strings.Count(line, "component="), line)
			assert.Contains(t, line, "component=trace")
		}
		assert.Contains(t, lines[1], "level=WARN")
		assert.Contains(t, lines[1], "status_code=404")
	}
}
