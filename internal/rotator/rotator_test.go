package rotator

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestSelectIndex(t *testing.T) {
	cfg := RotationConfig{ActiveFiles: []string{"a.md", "b.md"}, RotationIntervalSeconds: 100}

	assert.Equal(t, 0, SelectIndex(time.Unix(250, 0), cfg))
	assert.Equal(t, 1, SelectIndex(time.Unix(350, 0), cfg))
	assert.Equal(t, 0, SelectIndex(time.Unix(0, 0), cfg))
	assert.Equal(t, 1, SelectIndex(time.Unix(199, 999), cfg))

	for ts := int64(0); ts < 1000; ts += 37 {
		idx := SelectIndex(time.Unix(ts, 0), cfg)
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, len(cfg.ActiveFiles))
	}
}

func TestLoadConfig(t *testing.T) {
	testCases := []struct {
		name        string
		content     *string
		expected    RotationConfig
		expectError bool
	}{
		{
			name:     "valid config",
			content:  ptr(`{"activeFiles":["a.md","b.md"],"rotationIntervalSeconds":60}`),
			expected: RotationConfig{ActiveFiles: []string{"a.md", "b.md"}, RotationIntervalSeconds: 60},
		},
		{
			name:        "missing file falls back to defaults",
			content:     nil,
			expected:    DefaultConfig(),
			expectError: true,
		},
		{
			name:        "malformed json falls back to defaults",
			content:     ptr(`{"activeFiles": [`),
			expected:    DefaultConfig(),
			expectError: true,
		},
		{
			name:     "empty activeFiles keeps default list",
			content:  ptr(`{"activeFiles":[],"rotationIntervalSeconds":30}`),
			expected: RotationConfig{ActiveFiles: []string{DefaultFile}, RotationIntervalSeconds: 30},
		},
		{
			name:        "non-positive interval keeps default interval",
			content:     ptr(`{"activeFiles":["a.md"],"rotationIntervalSeconds":0}`),
			expected:    RotationConfig{ActiveFiles: []string{"a.md"}, RotationIntervalSeconds: DefaultInterval},
			expectError: true,
		},
		{
			name:        "overflowing interval keeps default interval",
			content:     ptr(`{"activeFiles":["a.md"],"rotationIntervalSeconds":1e300}`),
			expected:    RotationConfig{ActiveFiles: []string{"a.md"}, RotationIntervalSeconds: DefaultInterval},
			expectError: true,
		},
		{
			name:        "fractional interval keeps default interval",
			content:     ptr(`{"activeFiles":["a.md"],"rotationIntervalSeconds":90.5}`),
			expected:    RotationConfig{ActiveFiles: []string{"a.md"}, RotationIntervalSeconds: DefaultInterval},
			expectError: true,
		},
		{
			name:     "largest accepted interval",
			content:  ptr(`{"activeFiles":["a.md"],"rotationIntervalSeconds":2147483647}`),
			expected: RotationConfig{ActiveFiles: []string{"a.md"}, RotationIntervalSeconds: math.MaxInt32},
		},
		{
			name:        "wrong activeFiles type keeps default list",
			content:     ptr(`{"activeFiles":"a.md","rotationIntervalSeconds":45}`),
			expected:    RotationConfig{ActiveFiles: []string{DefaultFile}, RotationIntervalSeconds: 45},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "config.json")
			if tc.content != nil {
				writeFile(t, dir, "config.json", *tc.content)
			}

			cfg, err := LoadConfig(path)
			assert.Equal(t, tc.expected, cfg)
			if tc.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.NotEmpty(t, cfg.ActiveFiles)
		})
	}
}

func TestRotator_Select(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "# Alpha")
	writeFile(t, dir, "b.md", "# Bravo")
	writeFile(t, dir, "config.json", `{"activeFiles":["a.md","b.md"],"rotationIntervalSeconds":100}`)

	now := time.Unix(250, 0)
	r := New(dir, filepath.Join(dir, "config.json"), zap.NewNop(), WithClock(func() time.Time { return now }))

	content, err := r.Select()
	require.NoError(t, err)
	assert.Equal(t, "a.md", content.FileName)
	assert.Equal(t, "# Alpha", string(content.Body))
	assert.Equal(t, 100, content.Interval)

	now = time.Unix(350, 0)
	content, err = r.Select()
	require.NoError(t, err)
	assert.Equal(t, "b.md", content.FileName)
	assert.Equal(t, "# Bravo", string(content.Body))
}

func TestRotator_SelectDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, DefaultFile, "hello")

	r := New(dir, filepath.Join(dir, "config.json"), zap.NewNop())
	content, err := r.Select()
	require.NoError(t, err)
	assert.Equal(t, DefaultFile, content.FileName)
	assert.Equal(t, DefaultInterval, content.Interval)
}

func TestRotator_SelectMissingFile(t *testing.T) {
	testCases := []struct {
		name       string
		activeFile string
	}{
		{name: "file absent from the directory", activeFile: "missing.md"},
		{name: "hidden character in the configured name", activeFile: "a.md\u200b"},
		{name: "traversal outside the content directory", activeFile: "../secret.md"},
		{name: "absolute path", activeFile: "/etc/passwd"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			parent := t.TempDir()
			writeFile(t, parent, "secret.md", "top secret")
			dir := filepath.Join(parent, "content")
			require.NoError(t, os.Mkdir(dir, 0o755))
			writeFile(t, dir, "a.md", "# Alpha")

			r := New(dir, filepath.Join(dir, "config.json"), zap.NewNop())
			// Config is written after construction; it is read on every call.
			writeFile(t, dir, "config.json", `{"activeFiles":["`+tc.activeFile+`"],"rotationIntervalSeconds":60}`)

			_, err := r.Select()
			require.Error(t, err)

			var missing *MissingFileError
			require.True(t, errors.As(err, &missing))
			assert.Equal(t, tc.activeFile, missing.Name)
			assert.Contains(t, missing.Listing, "a.md")
			assert.Contains(t, err.Error(), tc.activeFile)
		})
	}
}

func ptr(s string) *string { return &s }
