package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "texcompress.log")
	log, err := NewLogger(LoggerConfig{Level: "debug", Format: "json", FilePath: path, MaxSize: 1})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	WithRun(log, "run-42", "compress").Info("batch started")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry))
	assert.Equal(t, "batch started", entry["message"])
	assert.Equal(t, "run-42", entry["run_id"])
	assert.Equal(t, "compress", entry["operation"])
	assert.Contains(t, entry, "timestamp")
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger(LoggerConfig{Level: "chatty"})
	assert.Error(t, err)
}

func TestNewLogger_TextDefault(t *testing.T) {
	log, err := NewLogger(DefaultConfig())
	require.NoError(t, err)
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)
	assert.Equal(t, os.Stderr, log.Out)
}

func TestEntryHelpers(t *testing.T) {
	log := logrus.New()
	assert.Equal(t, "a.png", WithFile(log, "a.png").Data["file"])
	assert.Equal(t, "validate", WithOperation(log, "validate").Data["operation"])
}
