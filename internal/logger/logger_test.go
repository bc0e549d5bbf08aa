package logger

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogFormat(t *testing.T) {
	assert.Equal(t, FormatConsole, ParseLogFormat("console"))
	assert.Equal(t, FormatConsole, ParseLogFormat("Console"))
	assert.Equal(t, FormatJSON, ParseLogFormat("json"))
	assert.Equal(t, FormatJSON, ParseLogFormat("anything-else"))
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	ResetForTesting()
	Setup(Config{
		Level:      "debug",
		Format:     FormatJSON,
		Output:     &buf,
		TimeFormat: time.RFC3339,
	})

	log := Get()
	log.Info("hello", map[string]interface{}{"book_id": "b1"})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "b1", entry["book_id"])
	assert.Equal(t, "info", entry["level"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	ResetForTesting()
	Setup(Config{Level: "warn", Format: FormatJSON, Output: &buf})

	log := Get()
	log.Debug("dropped")
	log.Info("dropped too")
	assert.Empty(t, buf.String())

	log.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestWithFieldsChild(t *testing.T) {
	var buf bytes.Buffer
	ResetForTesting()
	Setup(Config{Level: "info", Format: FormatJSON, Output: &buf})

	child := Get().With(map[string]interface{}{"component": "weread_client"})
	child.Info("fetching")

	assert.Contains(t, buf.String(), `"component":"weread_client"`)
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	// None of these should panic
	l.Info("x")
	l.Warn("x")
	l.Debug("x")
	l.Error("x")
}

func TestSetupReplacesPreviousConfiguration(t *testing.T) {
	var first, second bytes.Buffer
	ResetForTesting()
	Setup(Config{Level: "info", Format: FormatJSON, Output: &first})
	Get().Info("to first")

	Setup(Config{Level: "info", Format: FormatJSON, Output: &second})
	Get().Info("to second")

	assert.Contains(t, first.String(), "to first")
	assert.NotContains(t, first.String(), "to second")
	assert.Contains(t, second.String(), "to second")
}
