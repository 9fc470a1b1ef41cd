package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/eventrec/internal/conf"
)

func TestWriteSettingsRedactsSecrets(t *testing.T) {
	t.Parallel()
	s := &conf.Settings{}
	s.Trigger.MonitorChannels = []int{8, 10}
	s.MQTT.Password = "hunter2"
	s.Sentry.DSN = "https://key@example.invalid/1"

	var buf bytes.Buffer
	require.NoError(t, writeSettings(&buf, s))
	out := buf.String()
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "key@example")
	assert.Contains(t, out, redacted)

	// The caller's settings are untouched.
	assert.Equal(t, "hunter2", s.MQTT.Password)

	var decoded conf.Settings
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, []int{8, 10}, decoded.Trigger.MonitorChannels)
}

func TestInitCommandWritesDefaults(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cmd := initCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{path})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, conf.DefaultConfigYAML(), string(data))

	cmd = initCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{path})
	require.Error(t, cmd.Execute(), "existing file is kept without --force")

	cmd = initCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--force", path})
	require.NoError(t, cmd.Execute())
}
