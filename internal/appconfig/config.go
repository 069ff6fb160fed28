// Package appconfig manages application configuration and runtime file paths.
package appconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/treykane/ali-bastion/internal/util"
	"gopkg.in/yaml.v3"
)

// LaunchMode selects how the connection dispatcher hands control to ssh.
type LaunchMode string

const (
	// LaunchAuto replaces the process image where the platform allows it and
	// supervises a child process everywhere else.
	LaunchAuto LaunchMode = "auto"
	// LaunchExec always replaces the process image.
	LaunchExec LaunchMode = "exec"
	// LaunchSupervise always spawns ssh as a child and waits for it.
	LaunchSupervise LaunchMode = "supervise"
)

// ConnectConfig contains connection dispatch settings.
type ConnectConfig struct {
	LaunchMode LaunchMode `yaml:"launch_mode"`
	UsePTY     bool       `yaml:"use_pty"`
}

// PreflightConfig contains dependency check settings.
type PreflightConfig struct {
	AutoInstall bool `yaml:"auto_install"`
}

// UIConfig contains host picker display settings.
type UIConfig struct {
	AltScreen bool `yaml:"alt_screen"`
	NameWidth int  `yaml:"name_width"`
}

// Config holds application-level configuration.
type Config struct {
	RegistryPath string          `yaml:"registry_path"`
	Connect      ConnectConfig   `yaml:"connect"`
	Preflight    PreflightConfig `yaml:"preflight"`
	UI           UIConfig        `yaml:"ui"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Connect:   ConnectConfig{LaunchMode: LaunchAuto},
		Preflight: PreflightConfig{AutoInstall: true},
		UI:        UIConfig{AltScreen: true, NameWidth: util.DefaultNameWidth},
	}
}

// ConfigDir returns the application config directory path.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config/ali-bastion.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, util.AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home: %w", err)
	}
	return filepath.Join(home, ".config", util.AppName), nil
}

// DefaultRegistryPath returns ~/.ali-bastion/config.json.
func DefaultRegistryPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home: %w", err)
	}
	return filepath.Join(home, util.RegistryDirName, util.RegistryFileName), nil
}

// ResolveRegistryPath returns the configured registry path, expanding a
// leading "~/", or the default location when none is configured.
func (c Config) ResolveRegistryPath() (string, error) {
	p := strings.TrimSpace(c.RegistryPath)
	if p == "" {
		return DefaultRegistryPath()
	}
	if strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home: %w", err)
		}
		p = filepath.Join(home, p[2:])
	}
	return p, nil
}

// Load reads config.yaml from the config directory.
// If the file doesn't exist, creates it with defaults.
func Load() (Config, error) {
	d, err := ConfigDir()
	if err != nil {
		return Config{}, err
	}
	if err := os.MkdirAll(d, 0o700); err != nil {
		return Config{}, err
	}
	path := filepath.Join(d, "config.yaml")
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			if err := Save(cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return Config{}, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	normalize(&cfg)
	return cfg, nil
}

func normalize(cfg *Config) {
	switch LaunchMode(strings.ToLower(string(cfg.Connect.LaunchMode))) {
	case LaunchExec:
		cfg.Connect.LaunchMode = LaunchExec
	case LaunchSupervise:
		cfg.Connect.LaunchMode = LaunchSupervise
	default:
		cfg.Connect.LaunchMode = LaunchAuto
	}
	if cfg.UI.NameWidth <= 0 {
		cfg.UI.NameWidth = util.DefaultNameWidth
	}
}

// Save writes config to config.yaml.
func Save(cfg Config) error {
	d, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(d, 0o700); err != nil {
		return err
	}
	path := filepath.Join(d, "config.yaml")
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
