package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chris-alexander-pop/gridswarm/pkg/logger"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	return m
}

func TestRedactHandler_RedactsSensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	h := logger.NewRedactHandler(slog.NewJSONHandler(&buf, nil))
	l := slog.New(h)

	l.Info("login attempt", "password", "hunter2", "user_id", "42")

	m := decodeLine(t, &buf)
	assert.Equal(t, "[REDACTED]", m["password"])
	assert.Equal(t, "42", m["user_id"])
}

func TestRedactHandler_RedactsEmailAndCreditCardPatterns(t *testing.T) {
	var buf bytes.Buffer
	h := logger.NewRedactHandler(slog.NewJSONHandler(&buf, nil))
	l := slog.New(h)

	l.Info("user event", "contact", "scout1@example.com", "cc", "1234 5678 1234 5678")

	m := decodeLine(t, &buf)
	assert.Equal(t, "[REDACTED_EMAIL]", m["contact"])
	assert.Equal(t, "[REDACTED_CC]", m["cc"])
}

func TestRedactHandler_LeavesCleanAttributesAlone(t *testing.T) {
	var buf bytes.Buffer
	h := logger.NewRedactHandler(slog.NewJSONHandler(&buf, nil))
	l := slog.New(h)

	l.Info("status", "channel", "gs.pub.status", "count", 3)

	m := decodeLine(t, &buf)
	assert.Equal(t, "gs.pub.status", m["channel"])
	assert.Equal(t, float64(3), m["count"])
}

func TestSamplingHandler_AlwaysPassesErrors(t *testing.T) {
	var buf bytes.Buffer
	h := logger.NewSamplingHandler(slog.NewJSONHandler(&buf, nil), 0.0)
	l := slog.New(h)

	l.Error("boom")
	assert.NotEmpty(t, buf.String())
}

func TestSamplingHandler_DropsBelowRateZero(t *testing.T) {
	var buf bytes.Buffer
	h := logger.NewSamplingHandler(slog.NewJSONHandler(&buf, nil), 0.0)
	l := slog.New(h)

	for i := 0; i < 20; i++ {
		l.Info("hot path log")
	}
	assert.Empty(t, buf.String())
}

func TestSamplingHandler_PassesAllAtRateOne(t *testing.T) {
	var buf bytes.Buffer
	h := logger.NewSamplingHandler(slog.NewJSONHandler(&buf, nil), 1.0)
	l := slog.New(h)

	for i := 0; i < 5; i++ {
		l.Info("always logged")
	}
	lines := bytes.Count(buf.Bytes(), []byte("\n"))
	assert.Equal(t, 5, lines)
}

func TestAsyncHandler_EventuallyDeliversRecords(t *testing.T) {
	var buf bytes.Buffer
	h := logger.NewAsyncHandler(slog.NewJSONHandler(&buf, nil), 16, false)
	l := slog.New(h)

	l.Info("queued record")

	require.Eventually(t, func() bool {
		return buf.Len() > 0
	}, time.Second, 5*time.Millisecond)

	m := decodeLine(t, &buf)
	assert.Equal(t, "queued record", m["msg"])
}

func TestAsyncHandler_DropsOnFullBufferWhenConfigured(t *testing.T) {
	blockNext := make(chan struct{})
	blocking := slog.NewJSONHandler(blockingWriter{ready: blockNext}, nil)
	h := logger.NewAsyncHandler(blocking, 1, true)
	l := slog.New(h)

	for i := 0; i < 50; i++ {
		l.Info("fast producer")
	}
	close(blockNext)
}

// blockingWriter stalls the first Write until ready is closed, forcing the
// async handler's bounded channel to fill so dropOnFull is exercised.
type blockingWriter struct {
	ready chan struct{}
}

func (w blockingWriter) Write(p []byte) (int, error) {
	<-w.ready
	return len(p), nil
}

func TestTraceHandler_AddsNoAttrsWithoutSpan(t *testing.T) {
	var buf bytes.Buffer
	h := logger.NewTraceHandler(slog.NewJSONHandler(&buf, nil))
	l := slog.New(h)

	l.InfoContext(context.Background(), "no span here")

	m := decodeLine(t, &buf)
	_, hasTraceID := m["trace_id"]
	assert.False(t, hasTraceID)
}
