package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialrss/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "socialrss.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
hostname = "feeds.example.com"
port = 8080
max_items = 20

[twitter]
bearer_token = "token"
user_id = "42"
page_size = 25

[vk]
access_token = "vk-token"

[replay]
mode = "write"
root = "/tmp/socialrss-cache"
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "feeds.example.com", cfg.Hostname)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 20, cfg.MaxItems)
	assert.Equal(t, "token", cfg.Twitter.BearerToken)
	assert.Equal(t, "42", cfg.Twitter.UserID)
	assert.Equal(t, 25, cfg.Twitter.PageSize)
	assert.Equal(t, "vk-token", cfg.VK.AccessToken)
	assert.Equal(t, "write", cfg.Replay.Mode)
	assert.Equal(t, "/tmp/socialrss-cache", cfg.Replay.Root)

	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
[vk]
access_token = "vk-token"
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, 30, cfg.MaxItems)
	assert.Equal(t, "live", cfg.Replay.Mode)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{
			name:    "no provider credentials",
			mutate:  func(c *config.Config) {},
			wantErr: true,
		},
		{
			name: "replay mode needs no credentials",
			mutate: func(c *config.Config) {
				c.Replay.Mode = "replay"
			},
			wantErr: false,
		},
		{
			name: "write mode without root",
			mutate: func(c *config.Config) {
				c.VK.AccessToken = "token"
				c.Replay.Mode = "write"
				c.Replay.Root = ""
			},
			wantErr: true,
		},
		{
			name: "twitter token without user id",
			mutate: func(c *config.Config) {
				c.Twitter.BearerToken = "token"
			},
			wantErr: true,
		},
		{
			name: "invalid port",
			mutate: func(c *config.Config) {
				c.VK.AccessToken = "token"
				c.Port = -1
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
