package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// TwitterConfig holds the Twitter API credentials and fetch settings.
type TwitterConfig struct {
	BearerToken string `toml:"bearer_token"`
	UserID      string `toml:"user_id"`
	PageSize    int    `toml:"page_size,omitempty"`
}

// VKConfig holds the VK API credentials and fetch settings.
type VKConfig struct {
	AccessToken string `toml:"access_token"`
	PageSize    int    `toml:"page_size,omitempty"`
}

// ReplayConfig selects the offline debug mode of the replay cache.
type ReplayConfig struct {
	Mode string `toml:"mode"`
	Root string `toml:"root"`
}

// Config is the top-level configuration, constructed once at startup
// and immutable afterwards.
type Config struct {
	Hostname string        `toml:"hostname"`
	Port     int           `toml:"port"`
	MaxItems int           `toml:"max_items"`
	Twitter  TwitterConfig `toml:"twitter"`
	VK       VKConfig      `toml:"vk"`
	Replay   ReplayConfig  `toml:"replay"`
}

// Default returns a configuration with the built-in defaults applied.
func Default() *Config {
	return &Config{
		Port:     3000,
		MaxItems: 30,
		Replay: ReplayConfig{
			Mode: "live",
			Root: "debug-cache",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := Default()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return config, nil
}

// Validate checks the loaded configuration. At least one provider must
// carry credentials, except in replay mode where no network access
// happens and tokens are not needed.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.MaxItems <= 0 {
		return fmt.Errorf("max_items must be positive, got %d", c.MaxItems)
	}
	if c.Replay.Mode != "live" && c.Replay.Root == "" {
		return fmt.Errorf("replay.root is required in %s mode", c.Replay.Mode)
	}
	if c.Replay.Mode == "replay" {
		return nil
	}
	if c.Twitter.BearerToken == "" && c.VK.AccessToken == "" {
		return fmt.Errorf("no provider credentials configured")
	}
	if c.Twitter.BearerToken != "" && c.Twitter.UserID == "" {
		return fmt.Errorf("twitter.user_id is required when twitter.bearer_token is set")
	}
	return nil
}
