package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nlsh-dev/nlsh/internal/errors"
	"gopkg.in/yaml.v3"
)

// Store abstracts config persistence so the CLI and tests can share one
// read-modify-write path without touching the filesystem directly.
type Store interface {
	Load() (*Config, error)
	Save(cfg *Config) error
}

// FileStore persists config as YAML at a fixed path.
type FileStore struct {
	Path string
}

// NewFileStore creates a store for the given path (default path when empty).
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultPath()
	}
	return &FileStore{Path: path}
}

// Load reads the config file, returning defaults when it doesn't exist yet.
func (s *FileStore) Load() (*Config, error) {
	return LoadOrDefault(s.Path)
}

// Save writes the config as YAML, creating the directory if needed.
func (s *FileStore) Save(cfg *Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't serialize config",
			"This shouldn't happen - please report this bug!")
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't create config directory",
			"Check permissions on "+filepath.Dir(s.Path))
	}

	// Write via temp file + rename so a crash never leaves a half-written config.
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't write config file",
			"Check permissions on "+s.Path)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't replace config file",
			"Check permissions on "+s.Path)
	}
	return nil
}

// MemStore holds config in memory. Used in tests.
type MemStore struct {
	mu  sync.Mutex
	cfg *Config
}

// NewMemStore creates an in-memory store seeded with the given config
// (defaults when nil).
func NewMemStore(cfg *Config) *MemStore {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &MemStore{cfg: cfg}
}

func (s *MemStore) Load() (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Hand out a copy so callers can't mutate shared state.
	copied := *s.cfg
	copied.Targets = make(map[string]Target, len(s.cfg.Targets))
	for k, v := range s.cfg.Targets {
		copied.Targets[k] = v
	}
	copied.Groups = make(map[string][]string, len(s.cfg.Groups))
	for k, v := range s.cfg.Groups {
		copied.Groups[k] = append([]string(nil), v...)
	}
	return &copied, nil
}

func (s *MemStore) Save(cfg *Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	return nil
}

// AddTarget adds or replaces a target definition.
func (c *Config) AddTarget(name string, target Target) error {
	if err := validateTarget(name, target); err != nil {
		return err
	}
	if c.Targets == nil {
		c.Targets = make(map[string]Target)
	}
	c.Targets[name] = target
	return nil
}

// RemoveTarget deletes a target, clears it as default, and drops it from
// every group. Callers are responsible for also dropping the target's cached
// facts and closing its connection.
func (c *Config) RemoveTarget(name string) error {
	if _, ok := c.Targets[name]; !ok {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("No target named '%s'", name),
			"Check 'nlsh target list' for what's defined.")
	}
	delete(c.Targets, name)
	if c.Default == name {
		c.Default = ""
	}
	for group, members := range c.Groups {
		kept := members[:0]
		for _, member := range members {
			if member != name {
				kept = append(kept, member)
			}
		}
		c.Groups[group] = kept
	}
	return nil
}

// SetWorkDir updates a target's working directory.
func (c *Config) SetWorkDir(name, dir string) error {
	target, ok := c.Targets[name]
	if !ok {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("No target named '%s'", name),
			"Check 'nlsh target list' for what's defined.")
	}
	target.WorkDir = dir
	c.Targets[name] = target
	return nil
}

// SetDefault marks a target as the default session target.
func (c *Config) SetDefault(name string) error {
	if name != "" {
		if _, ok := c.Targets[name]; !ok {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("No target named '%s'", name),
				"Add it first with 'nlsh target add'.")
		}
	}
	c.Default = name
	return nil
}
