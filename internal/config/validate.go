package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/nlsh-dev/nlsh/internal/errors"
)

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but nlsh only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Update nlsh, or fix the 'version' field in your config.")
	}

	for name, target := range cfg.Targets {
		if err := validateTarget(name, target); err != nil {
			return err
		}
	}

	if cfg.Default != "" {
		if _, ok := cfg.Targets[cfg.Default]; !ok {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Default target '%s' isn't defined", cfg.Default),
				"Add it with 'nlsh target add', or clear the default.")
		}
	}

	for group, members := range cfg.Groups {
		for _, member := range members {
			if _, ok := cfg.Targets[member]; !ok {
				return errors.New(errors.ErrConfig,
					fmt.Sprintf("Group '%s' references unknown target '%s'", group, member),
					"Every group member must be a defined target.")
			}
		}
	}

	if cfg.Hook.Limit < 0 {
		return errors.New(errors.ErrConfig,
			"hook.limit can't be negative",
			"Use a positive line count, e.g. 500.")
	}

	if cfg.Cache.TTLDays < 0 {
		return errors.New(errors.ErrConfig,
			"cache.ttl_days can't be negative",
			"Use a positive number of days, e.g. 7.")
	}

	if cfg.Session.MaxSteps < 0 {
		return errors.New(errors.ErrConfig,
			"session.max_steps can't be negative",
			"Use a positive cap like 20, or 0 for the default.")
	}

	if cfg.Session.CommandTimeout != "" {
		if _, err := time.ParseDuration(cfg.Session.CommandTimeout); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				fmt.Sprintf("'%s' doesn't look like a valid timeout", cfg.Session.CommandTimeout),
				"Try something like 30s, 2m, or 500ms.")
		}
	}

	return nil
}

// validateTarget checks a single target definition.
func validateTarget(name string, target Target) error {
	if strings.TrimSpace(name) == "" {
		return errors.New(errors.ErrConfig,
			"Target names can't be empty",
			"Give every target a name.")
	}
	if strings.ContainsAny(name, " \t/") {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Target name '%s' contains spaces or slashes", name),
			"Use a simple name like 'gpu-box' or 'staging'.")
	}
	if target.Host == "" {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Target '%s' has no host", name),
			"Set a hostname, IP, or ~/.ssh/config alias.")
	}
	if target.Port < 0 || target.Port > 65535 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Target '%s' has an invalid port %d", name, target.Port),
			"Ports must be between 1 and 65535 (0 means default).")
	}
	return nil
}

// ResolveTargets expands a group name or single target name into an ordered
// list of targets. A single target name yields a one-element list.
func (c *Config) ResolveTargets(name string) ([]string, error) {
	if members, ok := c.Groups[name]; ok {
		if len(members) == 0 {
			return nil, errors.New(errors.ErrConfig,
				fmt.Sprintf("Group '%s' is empty", name),
				"Add at least one target to the group.")
		}
		return members, nil
	}
	if _, ok := c.Targets[name]; ok {
		return []string{name}, nil
	}
	return nil, errors.New(errors.ErrConfig,
		fmt.Sprintf("No target or group named '%s'", name),
		"Check 'nlsh target list' for what's defined.")
}
