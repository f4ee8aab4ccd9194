package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("warn", &buf)
	defer Init("info")

	Info("hidden", "k", "v")
	assert.Empty(t, buf.String())

	Warn("shown", "stack", "demo-app", "attempt", 3)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "shown", entry["message"])
	assert.Equal(t, "demo-app", entry["stack"])
	assert.Equal(t, float64(3), entry["attempt"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "debug", parseLevel("DEBUG").String())
	assert.Equal(t, "info", parseLevel("bogus").String())
	assert.Equal(t, "error", parseLevel("error").String())
}
