package log

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_WritesJSONWithApp(t *testing.T) {
	out := filepath.Join(t.TempDir(), "log.json")

	zl, err := NewLogger(WithLogLevel("debug"), WithOutputPaths(out), WithApp("viewcountd"))
	require.NoError(t, err)

	zl.Sugar().Infof("hello id=%d", 7)
	require.NoError(t, zl.Sync())

	b, err := os.ReadFile(out)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(b, &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "hello id=7", entry["msg"])
	assert.Equal(t, "viewcountd", entry["app"])
}

func TestNewLogger_LevelFilters(t *testing.T) {
	out := filepath.Join(t.TempDir(), "log.json")

	zl, err := NewLogger(WithLogLevel("warn"), WithOutputPaths(out))
	require.NoError(t, err)

	zl.Info("dropped")
	require.NoError(t, zl.Sync())

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Empty(t, b)
}

func TestNewLogger_BadOptions(t *testing.T) {
	_, err := NewLogger(WithLogLevel("loud"))
	assert.Error(t, err)

	_, err = NewLogger(WithEncoding("xml"))
	assert.Error(t, err)
}

func TestMust_Panics(t *testing.T) {
	assert.Panics(t, func() {
		MustSugar(WithLogLevel("nope"))
	})
}
