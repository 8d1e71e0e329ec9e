package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		SetLevel("INFO")
		SetFormat("text")
		SetRank(-1)
	})
	return &buf
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t)
	SetLevel("WARN")

	Info("hidden")
	Warn("shown %d", 1)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown 1")
	assert.False(t, Enabled(LevelDebug))
	assert.True(t, Enabled(LevelError))
}

func TestRankPrefix(t *testing.T) {
	buf := capture(t)
	SetRank(3)

	Info("hello")
	assert.Contains(t, buf.String(), "[RANK 003] hello")
}

func TestJSONFormat(t *testing.T) {
	buf := capture(t)
	SetFormat("json")
	SetRank(0)

	Error("boom: %s", "disk")

	var line jsonLine
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &line))
	assert.Equal(t, "ERROR", line.Level)
	assert.Equal(t, "boom: disk", line.Message)
	require.NotNil(t, line.Rank)
	assert.Equal(t, 0, *line.Rank)
}
