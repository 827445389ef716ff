// Package config loads notifier settings from an optional YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"mounotify/mailer"
)

// Config holds everything the notifier binary needs.
type Config struct {
	DatabaseURL        string        `yaml:"database_url"`
	TaskName           string        `yaml:"task_name"`
	LockTimeoutMinutes int           `yaml:"lock_timeout_minutes"`
	Schedule           string        `yaml:"schedule"`
	SMTP               mailer.Config `yaml:"smtp"`
}

// Load reads the YAML file at path when it exists, then overlays
// environment variables, then applies defaults. An empty path skips the
// file entirely.
func Load(path string) (Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// optional file
		case err != nil:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("SMTP_HOST"); v != "" {
		c.SMTP.Host = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.SMTP.Port = port
		}
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		c.SMTP.Username = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		c.SMTP.Password = v
	}
	if v := os.Getenv("SMTP_FROM"); v != "" {
		c.SMTP.From = v
	}
}

func (c *Config) applyDefaults() {
	if c.TaskName == "" {
		c.TaskName = "send_monthly_mou_emails"
	}
	if c.LockTimeoutMinutes <= 0 {
		c.LockTimeoutMinutes = 30
	}
	if c.SMTP.From == "" {
		c.SMTP.From = c.SMTP.Username
	}
}
