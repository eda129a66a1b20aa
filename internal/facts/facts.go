// Package facts caches static machine attributes (OS, shell, hostname) per
// target, so a session of many steps or a fleet-wide batch probes each
// machine at most once per TTL window.
package facts

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nlsh-dev/nlsh/internal/config"
	"github.com/nlsh-dev/nlsh/internal/logger"
	"github.com/nlsh-dev/nlsh/internal/runner"
)

// LocalName keys the local machine's cache entry.
const LocalName = "local"

// Facts are the cached attributes of one machine.
type Facts struct {
	OS        string    `json:"os"`
	OSVersion string    `json:"osVersion"`
	Shell     string    `json:"shell"`
	Hostname  string    `json:"hostname"`
	CachedAt  time.Time `json:"cachedAt"`
}

// probeScript prints one attribute per line in a fixed order.
const probeScript = `uname -s; uname -r; basename "${SHELL:-unknown}"; hostname`

// Prober runs the probe script. Satisfied by *runner.Runner.
type Prober interface {
	Run(ctx context.Context, target *config.Target, command string, opts runner.Options) (runner.Result, error)
}

// Cache is a TTL-bounded, file-backed facts cache keyed by target name.
type Cache struct {
	dir    string
	ttl    time.Duration
	prober Prober
	log    logger.Logger
}

// NewCache creates a cache rooted at dir (default facts directory when
// empty) with the TTL given in days.
func NewCache(dir string, ttlDays int, prober Prober, log logger.Logger) *Cache {
	if dir == "" {
		dir = filepath.Join(config.Dir(), "facts")
	}
	if log == nil {
		log = logger.Noop()
	}
	return &Cache{
		dir:    dir,
		ttl:    time.Duration(ttlDays) * 24 * time.Hour,
		prober: prober,
		log:    log,
	}
}

// Get returns the target's facts, probing the machine only on a cache miss,
// TTL expiry, or forced refresh. A nil target probes the local machine.
// Corrupted cache entries count as misses, never errors.
func (c *Cache) Get(ctx context.Context, name string, target *config.Target, force bool) (Facts, error) {
	if name == "" {
		name = LocalName
	}

	if !force {
		if cached, ok := c.read(name); ok {
			c.log.Debug("facts cache hit for %s", name)
			return cached, nil
		}
	}

	result, err := c.prober.Run(ctx, target, probeScript, runner.Options{})
	if err != nil {
		return Facts{}, err
	}

	probed := parseProbeOutput(result.Stdout)
	probed.CachedAt = time.Now().UTC()

	if err := c.write(name, probed); err != nil {
		// A write failure only costs the next call a probe.
		c.log.Warn("couldn't persist facts for %s: %v", name, err)
	}

	return probed, nil
}

// Peek returns cached facts without probing, reporting whether a fresh
// entry existed.
func (c *Cache) Peek(name string) (Facts, bool) {
	if name == "" {
		name = LocalName
	}
	return c.read(name)
}

// Invalidate drops a target's cache entry. Called on target removal.
func (c *Cache) Invalidate(name string) error {
	err := os.Remove(c.path(name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Dir exposes the cache directory path.
func (c *Cache) Dir() string {
	return c.dir
}

// read loads an entry, treating missing, unreadable, corrupt, or expired
// files identically as misses.
func (c *Cache) read(name string) (Facts, bool) {
	data, err := os.ReadFile(c.path(name))
	if err != nil {
		return Facts{}, false
	}

	var cached Facts
	if err := json.Unmarshal(data, &cached); err != nil {
		c.log.Debug("facts cache for %s is corrupt, treating as miss", name)
		return Facts{}, false
	}

	if cached.CachedAt.IsZero() || time.Since(cached.CachedAt) > c.ttl {
		return Facts{}, false
	}

	return cached, true
}

func (c *Cache) write(name string, f Facts) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path(name), data, 0o644)
}

func (c *Cache) path(name string) string {
	return filepath.Join(c.dir, name+".json")
}

// parseProbeOutput maps the probe script's fixed line order onto Facts.
// Missing lines leave fields empty rather than failing; partial facts still
// beat none for tailoring proposals.
func parseProbeOutput(stdout string) Facts {
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	get := func(i int) string {
		if i < len(lines) {
			return strings.TrimSpace(lines[i])
		}
		return ""
	}
	return Facts{
		OS:        get(0),
		OSVersion: get(1),
		Shell:     get(2),
		Hostname:  get(3),
	}
}
