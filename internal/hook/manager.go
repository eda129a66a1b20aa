package hook

import (
	"strings"

	"github.com/nlsh-dev/nlsh/internal/errors"
	"github.com/nlsh-dev/nlsh/internal/logger"
)

// FlagStore persists the hook's enabled flag so other commands can tell
// whether shell history capture is active without reparsing startup files.
type FlagStore interface {
	SetEnabled(enabled bool) error
}

// NoopFlagStore discards flag updates. Used when no config store is wired.
type NoopFlagStore struct{}

func (NoopFlagStore) SetEnabled(bool) error { return nil }

// Manager installs and removes the history capture hook in a shell's
// startup file. All edits are marker-delimited so install and uninstall
// are exact inverses.
type Manager struct {
	medium  Medium
	kind    Kind
	limit   int
	logPath string
	flags   FlagStore
	log     logger.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLimit overrides the number of history entries the hook retains.
func WithLimit(limit int) Option {
	return func(m *Manager) {
		if limit > 0 {
			m.limit = limit
		}
	}
}

// WithLogPath overrides where the hook writes its history log.
func WithLogPath(path string) Option {
	return func(m *Manager) {
		if path != "" {
			m.logPath = path
		}
	}
}

// WithFlagStore sets where the enabled flag is persisted.
func WithFlagStore(flags FlagStore) Option {
	return func(m *Manager) {
		if flags != nil {
			m.flags = flags
		}
	}
}

// WithLogger sets the manager's logger.
func WithLogger(log logger.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// NewManager builds a hook manager for the given shell kind.
func NewManager(medium Medium, kind Kind, opts ...Option) *Manager {
	m := &Manager{
		medium:  medium,
		kind:    kind,
		limit:   DefaultLimit,
		logPath: DefaultLogPath,
		flags:   NoopFlagStore{},
		log:     logger.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Kind reports the shell kind this manager targets.
func (m *Manager) Kind() Kind { return m.kind }

// StartupPath reports the startup file the manager edits, resolved for
// its medium.
func (m *Manager) StartupPath() string {
	return m.medium.Expand(StartupFile(m.kind))
}

// IsInstalled reports whether the startup file contains a hook block.
func (m *Manager) IsInstalled() (bool, error) {
	if m.kind == Unsupported {
		return false, nil
	}
	content, exists, err := m.medium.ReadFile(m.StartupPath())
	if err != nil {
		return false, errors.WrapWithCode(err, errors.ErrHook, "failed to read shell startup file", "")
	}
	if !exists {
		return false, nil
	}
	return strings.Contains(string(content), BeginMarker), nil
}

// Install appends the hook block to the shell startup file. Installing
// over an existing hook is a no-op that leaves the file byte-identical.
func (m *Manager) Install() error {
	if m.kind == Unsupported {
		return errors.New(errors.ErrHook,
			"shell history hook is not supported for this shell",
			"supported shells are zsh, bash and PowerShell")
	}

	startup := m.StartupPath()
	content, exists, err := m.medium.ReadFile(startup)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrHook, "failed to read shell startup file", "")
	}
	if exists && strings.Contains(string(content), BeginMarker) {
		m.log.Debug("hook already installed in %s", startup)
		return m.flags.SetEnabled(true)
	}

	if exists {
		// Best-effort backup before the first edit.
		if err := m.medium.WriteFile(startup+".nlsh.bak", content); err != nil {
			m.log.Warn("could not back up %s: %v", startup, err)
		}
	}

	logPath := m.medium.Expand(m.logPath)
	if dir := parentDir(logPath); dir != "" {
		if err := m.medium.MkdirAll(dir); err != nil {
			return errors.WrapWithCode(err, errors.ErrHook, "failed to create history log directory", "")
		}
	}

	script := GenerateScript(m.kind, m.limit, m.logPath)
	sep, tail := "", "\n"
	if len(content) > 0 && !strings.HasSuffix(string(content), "\n") {
		// A file with no final newline gets the separator instead of the
		// trailing newline. The two installed forms differ, so uninstall
		// can put the original bytes back exactly either way.
		sep, tail = "\n", ""
	}
	updated := append(content, []byte(sep+script+tail)...)
	if err := m.medium.WriteFile(startup, updated); err != nil {
		return errors.WrapWithCode(err, errors.ErrHook, "failed to update shell startup file", "")
	}
	m.log.Info("installed %s history hook in %s", m.kind, startup)
	return m.flags.SetEnabled(true)
}

// Uninstall removes the hook block and the history log. Removing an
// absent hook is a no-op.
func (m *Manager) Uninstall() error {
	if m.kind == Unsupported {
		return m.flags.SetEnabled(false)
	}

	startup := m.StartupPath()
	content, exists, err := m.medium.ReadFile(startup)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrHook, "failed to read shell startup file", "")
	}
	if exists {
		stripped, found := stripHookBlock(string(content))
		if found {
			if err := m.medium.WriteFile(startup, []byte(stripped)); err != nil {
				return errors.WrapWithCode(err, errors.ErrHook, "failed to update shell startup file", "")
			}
			m.log.Info("removed history hook from %s", startup)
		}
	}

	if err := m.medium.Remove(m.medium.Expand(m.logPath)); err != nil {
		m.log.Warn("could not remove history log: %v", err)
	}
	return m.flags.SetEnabled(false)
}

// Reinstall removes any existing hook block and installs a fresh one,
// picking up changed settings such as a new history limit.
func (m *Manager) Reinstall(reason string) error {
	if reason != "" {
		m.log.Debug("reinstalling history hook: %s", reason)
	}
	if err := m.Uninstall(); err != nil {
		return err
	}
	return m.Install()
}

// stripHookBlock removes the marker-delimited hook block, including the
// end marker's trailing newline, and reports whether a block was found.
// A block sitting at end-of-file without a trailing newline is the form
// Install writes over a file that had no final newline, so the separator
// newline before the block is removed with it.
func stripHookBlock(content string) (string, bool) {
	begin := strings.Index(content, BeginMarker)
	if begin < 0 {
		return content, false
	}
	end := strings.Index(content[begin:], EndMarker)
	if end < 0 {
		return content, false
	}
	end += begin + len(EndMarker)
	switch {
	case end < len(content) && content[end] == '\n':
		end++
	case end == len(content) && begin > 0 && content[begin-1] == '\n':
		begin--
	}
	return content[:begin] + content[end:], true
}

func parentDir(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return ""
	}
	return path[:idx]
}
