package logger

import (
	"bytes"
	"encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestNamedJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Options{Level: "debug", Format: "json"}, &buf, nil)

	l.Named("catalog").Infof("loaded %d episodes", 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "loaded 3 episodes", rec["msg"])
	assert.Equal(t, "catalog", rec["component"])
	assert.Equal(t, "INFO", rec["level"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Options{Level: "warn"}, &buf, nil)

	l.Infof("hidden")
	l.Warnf("shown %s", "here")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown here")
}

func TestRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	l := New(Options{Level: "info", File: path, MaxSizeMB: 1})
	l.Errorf("written to file")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "written to file"))
}
