package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	assert.True(t, s.CountContentViews())
	assert.True(t, s.CountContentViewsAsync())
	assert.True(t, s.Enabled())
}

func TestLoad_File(t *testing.T) {
	tests := []struct {
		name      string
		file      string
		body      string
		wantViews bool
		wantAsync bool
	}{
		{
			name:      "yaml both on",
			file:      "statistics.yaml",
			body:      "count_content_views: true\ncount_content_views_ajax: true\n",
			wantViews: true,
			wantAsync: true,
		},
		{
			name:      "yaml async off",
			file:      "statistics.yaml",
			body:      "count_content_views: true\ncount_content_views_ajax: false\n",
			wantViews: true,
			wantAsync: false,
		},
		{
			name:      "json global off",
			file:      "statistics.json",
			body:      `{"count_content_views": false}`,
			wantViews: false,
			wantAsync: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Load(writeFile(t, tt.file, tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.wantViews, s.CountContentViews())
			assert.Equal(t, tt.wantAsync, s.CountContentViewsAsync())
			assert.Equal(t, tt.wantViews && tt.wantAsync, s.Enabled())
		})
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("VIEWCOUNT_COUNT_CONTENT_VIEWS", "false")

	s, err := Load(writeFile(t, "statistics.yaml", "count_content_views: true\n"))
	require.NoError(t, err)
	assert.False(t, s.CountContentViews())
	assert.False(t, s.Enabled())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestReload(t *testing.T) {
	path := writeFile(t, "statistics.yaml", "count_content_views_ajax: true\n")
	s, err := Load(path)
	require.NoError(t, err)
	require.True(t, s.Enabled())

	require.NoError(t, os.WriteFile(path, []byte("count_content_views_ajax: false\n"), 0o644))
	require.NoError(t, s.Reload())
	assert.False(t, s.Enabled())
}

func TestStatic(t *testing.T) {
	assert.True(t, Static(true).Enabled())
	assert.False(t, Static(false).Enabled())
}
