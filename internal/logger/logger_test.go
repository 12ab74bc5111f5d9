package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/kanopusdev/aurelis/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogBuffer_NewestFirst(t *testing.T) {
	b := &LogBuffer{limit: 10}
	b.Add("info", "first")
	b.Add("warn", "second")
	b.Add("error", "third")

	recent := b.GetRecent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "third", recent[0].Message)
	assert.Equal(t, "second", recent[1].Message)

	all := b.GetRecent(0)
	assert.Len(t, all, 3)
}

func TestLogBuffer_DropsOldestBeyondLimit(t *testing.T) {
	b := &LogBuffer{limit: 3}
	for i := 0; i < 5; i++ {
		b.Add("info", fmt.Sprintf("entry-%d", i))
	}

	recent := b.GetRecent(10)
	require.Len(t, recent, 3)
	assert.Equal(t, "entry-4", recent[0].Message)
	assert.Equal(t, "entry-2", recent[2].Message)
}

func TestLogBuffer_Clear(t *testing.T) {
	b := &LogBuffer{limit: 10}
	b.Add("info", "x")
	b.Clear()
	assert.Empty(t, b.GetRecent(10))
}

func TestNew_WritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "aurelis.log")

	log, err := New(config.LoggingConfig{Level: "debug", Output: path, MaxSize: 1})
	require.NoError(t, err)

	log.Info("hello from test")
	log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello from test"`)
	assert.Contains(t, string(data), `"level":"info"`)
}

func TestNew_BadLevelFallsBackToInfo(t *testing.T) {
	log, err := New(config.LoggingConfig{Level: "nonsense", ConsoleOutput: true})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(-1)) // debug stays off
}
