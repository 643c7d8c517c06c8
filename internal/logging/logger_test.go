package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WithOutput(&buf), WithLevel(LevelWarn))

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "warn message")
	assert.Contains(t, lines[1], "error message")
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WithOutput(&buf), WithService("test-service"))

	logger.Info("token exchanged", "status", 200, "has_refresh", true)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "test-service", entry["service"])
	assert.Equal(t, "token exchanged", entry["message"])

	fields, ok := entry["fields"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(200), fields["status"])
	assert.Equal(t, true, fields["has_refresh"])
}

func TestLoggerCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WithOutput(&buf))

	ctx := WithCorrelationID(context.Background(), "abc-123")
	logger.InfoWithContext(ctx, "capture started")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "abc-123", entry["correlation_id"])
}

func TestGetCorrelationIDMissing(t *testing.T) {
	assert.Equal(t, "", GetCorrelationID(context.Background()))
}

func TestGenerateCorrelationID(t *testing.T) {
	id1 := GenerateCorrelationID()
	id2 := GenerateCorrelationID()
	assert.NotEmpty(t, id1)
	assert.NotEqual(t, id1, id2)
}
