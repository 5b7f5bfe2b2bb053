package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const defaultServer = "http://localhost:8080"

// fileConfig is the on-disk ~/.config/studioctl/config.toml.
type fileConfig struct {
	Server            string `toml:"server"`
	Token             string `toml:"token"`
	Platform          string `toml:"platform"`
	ReconnectAttempts int    `toml:"reconnect_attempts"`
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "studioctl", "config.toml")
}

// loadConfig reads path when it exists and applies STUDIOCTL_SERVER and
// STUDIOCTL_TOKEN on top. A missing file is not an error.
func loadConfig(path string) (fileConfig, error) {
	cfg := fileConfig{Server: defaultServer, Platform: "twitter"}
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if v := strings.TrimSpace(os.Getenv("STUDIOCTL_SERVER")); v != "" {
		cfg.Server = v
	}
	if v := strings.TrimSpace(os.Getenv("STUDIOCTL_TOKEN")); v != "" {
		cfg.Token = v
	}
	return cfg, nil
}
