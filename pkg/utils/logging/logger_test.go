package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLoggerInDir(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	logger, err := InitLoggerInDir(dir, "test", false, &console)
	require.NoError(t, err)

	logger.Debug("Debug only in file")
	logger.Info("Call added")
	require.NoError(t, logger.Sync())

	assert.Contains(t, console.String(), "Call added")
	assert.NotContains(t, console.String(), "Debug only in file")

	files, err := filepath.Glob(filepath.Join(dir, "test_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "Debug only in file", entry["msg"])
	assert.Equal(t, "test", entry["env"])
	assert.Contains(t, entry, "timestamp")
}

func TestInitLoggerInDir_Verbose(t *testing.T) {
	var console bytes.Buffer

	logger, err := InitLoggerInDir(t.TempDir(), "test", true, &console)
	require.NoError(t, err)

	logger.Debug("Geocoding address")
	require.NoError(t, logger.Sync())

	assert.Contains(t, console.String(), "Geocoding address")
}
