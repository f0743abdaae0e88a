package logger

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(buf *bytes.Buffer, format logFormat) (*structuredHandler, *asyncWriter) {
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	return newStructuredHandler(handlerConfig{
		level:    slog.LevelDebug,
		writer:   aw,
		format:   format,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	}), aw
}

func flushLine(t *testing.T, aw *asyncWriter, buf *bytes.Buffer) string {
	t.Helper()
	require.NoError(t, aw.Flush())
	require.NoError(t, aw.Close())
	return strings.TrimSpace(buf.String())
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	handler, aw := newTestHandler(buf, formatKV)
	ctx := WithRID(Background(), "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	LogEvent(ctx, slog.New(handler).With("component", "dispatch"), slog.LevelInfo, "intent.handled",
		slog.String("status", "ok"),
		slog.String("target", "support"),
	)

	tokens := strings.Split(flushLine(t, aw, buf), " ")
	expected := []string{"ts=", "level=INFO", "component=dispatch", "event=intent.handled", "status=ok", "rid=rid-123", "update_id=42", "user_id=7", "chat_id=9", "target=support"}
	require.GreaterOrEqual(t, len(tokens), len(expected))
	for i, prefix := range expected {
		assert.True(t, strings.HasPrefix(tokens[i], prefix), "token %d = %s, expected prefix %s", i, tokens[i], prefix)
	}
}

func TestStructuredHandlerJSONCompactRID(t *testing.T) {
	buf := &bytes.Buffer{}
	handler, aw := newTestHandler(buf, formatJSON)
	rawRID := "12:34:56"

	LogEvent(WithRID(Background(), rawRID), slog.New(handler), slog.LevelError, "support.fanout",
		slog.String("err", "boom"),
	)

	line := flushLine(t, aw, buf)
	require.True(t, strings.HasPrefix(line, `{"ts":`), line)
	assert.Contains(t, line, `"level":"ERROR"`)
	assert.Contains(t, line, `"component":"app"`)
	assert.Contains(t, line, `"rid":"`+CompactRID(rawRID)+`"`)
	assert.Contains(t, line, `"rid_full":"`+rawRID+`"`)
	assert.Contains(t, line, `"ts_unix_nano"`)
}

func TestStructuredHandlerDurationsAndGroups(t *testing.T) {
	buf := &bytes.Buffer{}
	handler, aw := newTestHandler(buf, formatKV)

	slog.New(handler).WithGroup("cache").Info("lookup",
		slog.Duration("duration", 1500*time.Microsecond),
		slog.String("empty", ""),
	)

	line := flushLine(t, aw, buf)
	assert.Contains(t, line, "event=lookup")
	assert.Contains(t, line, "cache.duration_ms=2")
	assert.NotContains(t, line, "cache.empty")
}

func TestStructuredHandlerRespectsLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	handler := newStructuredHandler(handlerConfig{level: slog.LevelWarn, writer: aw, format: formatKV})

	slog.New(handler).Info("skipped")
	slog.New(handler).Warn("kept")

	line := flushLine(t, aw, buf)
	assert.NotContains(t, line, "skipped")
	assert.Contains(t, line, "event=kept")
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 3)
	got := []bool{s.Allow(), s.Allow(), s.Allow(), s.Allow()}
	assert.Equal(t, []bool{true, false, false, true}, got)

	s.Set(0, 0)
	assert.True(t, s.Allow())

	n, d := parseRatioSpec("2/10")
	assert.Equal(t, 2, n)
	assert.Equal(t, 10, d)
	n, d = parseRatioSpec("25")
	assert.Equal(t, 1, n)
	assert.Equal(t, 25, d)
}
