package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	original := executable
	executable = func() (string, error) { return "/opt/commit-board/commit-board", nil }
	t.Cleanup(func() { executable = original })

	testCases := []struct {
		name           string
		env            map[string]string
		expectError    bool
		expectedErrMsg string
		check          func(t *testing.T, cfg *Config)
	}{
		{
			name: "happy path - defaults applied",
			env:  map[string]string{"GITHUB_TOKEN": "secret", "GITHUB_ORG": "acme"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "secret", cfg.GitHub.Token)
				assert.Equal(t, "acme", cfg.GitHub.Org)
				assert.Equal(t, "hackathon-dashboard", cfg.GitHub.UserAgent)
				assert.Equal(t, CounterREST, cfg.GitHub.Counter)
				assert.Equal(t, 15*time.Second, cfg.GitHub.RequestTimeout)
				assert.Equal(t, 3000, cfg.Server.Port)
				assert.Equal(t, "/opt/commit-board", cfg.BaseDir)
				assert.Equal(t, "/opt/commit-board/public", cfg.Server.StaticDir)
				assert.Equal(t, "/opt/commit-board", cfg.Info.ContentDir)
				assert.Equal(t, "/opt/commit-board/config.json", cfg.InfoConfigPath())
			},
		},
		{
			name: "PORT overrides the server port",
			env:  map[string]string{"GITHUB_TOKEN": "secret", "GITHUB_ORG": "acme", "PORT": "8081"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8081, cfg.Server.Port)
			},
		},
		{
			name: "base_dir anchors relative directories",
			env: map[string]string{
				"GITHUB_TOKEN":                  "secret",
				"GITHUB_ORG":                    "acme",
				"COMMIT_BOARD_BASE_DIR":         "/srv/board",
				"COMMIT_BOARD_INFO_CONTENT_DIR": "content",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/srv/board/public", cfg.Server.StaticDir)
				assert.Equal(t, "/srv/board/content", cfg.Info.ContentDir)
			},
		},
		{
			name: "absolute directories are kept",
			env: map[string]string{
				"GITHUB_TOKEN":                   "secret",
				"GITHUB_ORG":                     "acme",
				"COMMIT_BOARD_SERVER_STATIC_DIR": "/var/www/board",
				"COMMIT_BOARD_INFO_CONTENT_DIR":  "/etc/board/",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/var/www/board", cfg.Server.StaticDir)
				assert.Equal(t, "/etc/board", cfg.Info.ContentDir)
			},
		},
		{
			name:           "error case - token and org missing",
			env:            map[string]string{},
			expectError:    true,
			expectedErrMsg: "GITHUB_TOKEN, GITHUB_ORG",
		},
		{
			name:           "error case - unknown counter strategy",
			env:            map[string]string{"GITHUB_TOKEN": "secret", "GITHUB_ORG": "acme", "COMMIT_BOARD_GITHUB_COUNTER": "scrape"},
			expectError:    true,
			expectedErrMsg: "invalid github.counter",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("GITHUB_TOKEN", "")
			t.Setenv("GITHUB_ORG", "")
			t.Setenv("PORT", "")
			t.Setenv("COMMIT_BOARD_BASE_DIR", "")
			for k, val := range tc.env {
				t.Setenv(k, val)
			}

			v := viper.New()
			SetDefaults(v)
			cfg, err := Load(v)
			if err == nil {
				err = cfg.Validate()
			}

			if tc.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectedErrMsg)
				return
			}
			require.NoError(t, err)
			tc.check(t, cfg)
		})
	}
}
