package config

import (
	"os"
	"path/filepath"

	"github.com/nlsh-dev/nlsh/internal/errors"
	"github.com/spf13/viper"
)

const (
	// ConfigDirName is the directory under ~/.config holding nlsh state.
	ConfigDirName = "nlsh"
	// ConfigFileName is the config file name.
	ConfigFileName = "config.yaml"
)

// Dir returns the nlsh config directory (~/.config/nlsh).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	return filepath.Join(home, ".config", ConfigDirName)
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return filepath.Join(Dir(), ConfigFileName)
}

// Load reads config from the specified path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found",
				"Run 'nlsh target add' to create one, or specify a path with --config")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is valid YAML")
	}

	return parseConfig(v, path)
}

// LoadOrDefault loads config from path (default path when empty), or returns
// defaults if the file doesn't exist yet.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	return Load(path)
}

// parseConfig converts viper config to our Config struct with defaults merged in.
func parseConfig(v *viper.Viper, path string) (*Config, error) {
	cfg := DefaultConfig()

	setDefaults(v)

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+path)
	}

	// Expand ~ in target identity files
	for name, target := range cfg.Targets {
		target.IdentityFile = ExpandHome(target.IdentityFile)
		cfg.Targets[name] = target
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults configures viper defaults merged into any loaded file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("hook.limit", 500)
	v.SetDefault("cache.ttl_days", 7)
	v.SetDefault("session.max_steps", DefaultMaxSteps)
}

// ExpandHome expands a leading ~/ to the user's home directory.
func ExpandHome(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
