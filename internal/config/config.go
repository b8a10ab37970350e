// Package config loads node configuration from ./config.json, then
// lets environment variables override individual fields (§2 ambient
// stack). A missing file is tolerated: the zero-config defaults plus
// whatever env vars are set are enough to boot.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

type DeezerConfig struct {
	DecryptKey string `json:"decryptKey" env:"WAVELINK_DEEZER_DECRYPT_KEY"`
	ARL        string `json:"arl" env:"WAVELINK_DEEZER_ARL"`
}

// Enabled reports whether enough Deezer config is present to register
// the source at all.
func (d DeezerConfig) Enabled() bool { return d.DecryptKey != "" }

type YoutubeConfig struct {
	UsePOToken bool   `json:"usePoToken" env:"WAVELINK_YOUTUBE_USE_PO_TOKEN"`
	UseOAuth   bool   `json:"useOauth" env:"WAVELINK_YOUTUBE_USE_OAUTH"`
	Cookies    string `json:"cookies" env:"WAVELINK_YOUTUBE_COOKIES"`
}

type Config struct {
	Port              int    `json:"port" env:"WAVELINK_PORT"`
	Address           string `json:"address" env:"WAVELINK_ADDRESS"`
	Authorization     string `json:"authorization" env:"WAVELINK_AUTHORIZATION"`
	PlayerUpdateSecs  int    `json:"playerUpdateSecs" env:"WAVELINK_PLAYER_UPDATE_SECS"`
	StatusUpdateSecs  int    `json:"statusUpdateSecs" env:"WAVELINK_STATUS_UPDATE_SECS"`
	ResumeTimeoutSecs int    `json:"resumeTimeoutSecs" env:"WAVELINK_RESUME_TIMEOUT_SECS"`

	Deezer  DeezerConfig  `json:"deezerConfig"`
	Youtube YoutubeConfig `json:"youtubeConfig"`
}

func defaults() *Config {
	return &Config{
		Port:              2333,
		Address:           "0.0.0.0",
		Authorization:     "youshallnotpass",
		PlayerUpdateSecs:  5,
		StatusUpdateSecs:  60,
		ResumeTimeoutSecs: 60,
	}
}

// Load reads path (normally "./config.json"), falling back to defaults
// if it doesn't exist, then applies any WAVELINK_* environment
// overrides on top.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// defaults plus whatever the environment supplies.
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: env overrides: %w", err)
	}
	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Address, c.Port)
}
