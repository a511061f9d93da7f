package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/enot3481-eng/messenger-app/internal/models"
)

// Config is the CLI configuration persisted as TOML under the user
// config dir.
type Config struct {
	ServerURL string        `toml:"server_url"`
	DataDir   string        `toml:"data_dir"`
	Profile   ProfileConfig `toml:"profile"`
}

// ProfileConfig is the local identity announced to the relay.
type ProfileConfig struct {
	ID       string `toml:"id"`
	Nickname string `toml:"nickname"`
	Tag      string `toml:"tag"`
	Email    string `toml:"email,omitempty"`
	Bio      string `toml:"bio,omitempty"`
}

func (p ProfileConfig) toModel() models.Profile {
	return models.Profile{
		ID:          p.ID,
		DisplayName: p.Nickname,
		Tag:         p.Tag,
		Email:       p.Email,
		Bio:         p.Bio,
	}
}

func configDir() (string, error) {
	if dir := os.Getenv("MESSENGER_CONFIG"); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "messenger"), nil
}

func configPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// loadConfig reads the TOML config; a missing file is an error telling
// the user to run init first.
func loadConfig() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("no configuration found, run 'messenger init' first")
		}
		return nil, err
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Profile.ID == "" {
		return nil, errors.New("config has no profile, run 'messenger init' first")
	}
	return &cfg, nil
}

func saveConfig(cfg *Config) error {
	dir, err := configDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, "config.toml")
	return os.WriteFile(path, data, 0600)
}

func (c *Config) storePath() string {
	return filepath.Join(c.DataDir, "messenger.db")
}
