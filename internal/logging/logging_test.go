package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	closeFn, err := initWithWriter(&buf, Config{Level: slog.LevelInfo})
	require.NoError(t, err)
	defer func() { _ = closeFn() }()

	logger := ForService("recorder")
	logger.Info("recording saved", "path", "multichannel_2024-01-02_03-04-05.wav")
	logger.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "service=recorder")
	assert.Contains(t, out, "recording saved")
	assert.NotContains(t, out, "hidden")
}

func TestCustomLevelNames(t *testing.T) {
	var buf bytes.Buffer
	closeFn, err := initWithWriter(&buf, Config{Level: LevelTrace})
	require.NoError(t, err)
	defer func() { _ = closeFn() }()

	Trace("trace message")
	assert.Contains(t, buf.String(), "level=TRACE")
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	closeFn, err := initWithWriter(&buf, Config{Level: slog.LevelWarn})
	require.NoError(t, err)
	defer func() { _ = closeFn() }()

	ForService("test").Info("first")
	SetLevel(slog.LevelDebug)
	ForService("test").Debug("second")

	out := buf.String()
	assert.NotContains(t, out, "first")
	assert.Contains(t, out, "second")
}

func TestInitWithRotatingFile(t *testing.T) {
	var buf bytes.Buffer
	logPath := filepath.Join(t.TempDir(), "logs", "eventrec.log")

	closeFn, err := initWithWriter(&buf, Config{
		Level:      slog.LevelInfo,
		FilePath:   logPath,
		MaxSizeMB:  1,
		MaxBackups: 1,
		MaxAgeDays: 1,
	})
	require.NoError(t, err)

	ForService("capture").Info("event triggered", "channel", 8)
	require.NoError(t, closeFn())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)

	line := strings.TrimSpace(string(data))
	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &record))
	assert.Equal(t, "event triggered", record["msg"])
	assert.Equal(t, "capture", record["service"])
	assert.InDelta(t, 8, record["channel"], 0)

	assert.Contains(t, buf.String(), "event triggered", "console output must still be written")
}
