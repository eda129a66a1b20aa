// Package sshmux multiplexes SSH command execution over one authenticated
// transport per remote target. The first command to a target dials and
// authenticates; later commands reuse the same transport, so a session of
// many steps or a batch fan-out pays the handshake cost once per target.
package sshmux

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/nlsh-dev/nlsh/internal/config"
	"github.com/nlsh-dev/nlsh/internal/logger"
)

// Client is one authenticated transport to a target.
// The concrete implementation wraps golang.org/x/crypto/ssh; tests substitute
// fakes to exercise reuse without a network.
type Client interface {
	Exec(cmd string) (stdout, stderr []byte, exitCode int, err error)
	ExecStreamContext(ctx context.Context, cmd string, stdout, stderr io.Writer) (exitCode int, err error)
	Alive() bool
	Close() error
	Key() string
}

// DialFunc establishes a new transport. Replaceable in tests.
type DialFunc func(s Settings, timeout time.Duration) (Client, error)

// Mux owns at most one live transport per (user, host, port) key.
// Concurrent calls for the same target serialize on that target's entry
// rather than racing to create two transports.
type Mux struct {
	mu      sync.Mutex
	entries map[string]*muxEntry

	dialFunc DialFunc
	timeout  time.Duration
	log      logger.Logger
}

type muxEntry struct {
	mu     sync.Mutex
	client Client
}

// New creates an empty multiplexer.
func New(log logger.Logger) *Mux {
	if log == nil {
		log = logger.Noop()
	}
	return &Mux{
		entries:  make(map[string]*muxEntry),
		dialFunc: dial,
		timeout:  DefaultDialTimeout,
		log:      log,
	}
}

// SetDialFunc replaces the transport factory. Used in tests.
func (m *Mux) SetDialFunc(fn DialFunc) {
	m.dialFunc = fn
}

// SetTimeout sets the dial timeout for new transports.
func (m *Mux) SetTimeout(timeout time.Duration) {
	m.timeout = timeout
}

// Connect returns the live transport for the target, dialing lazily on first
// use. A dead cached transport is replaced. Dial failures are returned as
// ConnectionError and never retried here.
func (m *Mux) Connect(target config.Target) (Client, error) {
	settings := Resolve(target)
	entry := m.entry(settings.Key())

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.client != nil {
		if entry.client.Alive() {
			m.log.Debug("reusing transport for %s", settings.Key())
			return entry.client, nil
		}
		m.log.Debug("transport for %s went away, redialing", settings.Key())
		_ = entry.client.Close()
		entry.client = nil
	}

	client, err := m.dialFunc(settings, m.timeout)
	if err != nil {
		return nil, err
	}

	m.log.Debug("established transport for %s", settings.Key())
	entry.client = client
	return client, nil
}

// Close tears down the target's transport. No-op if none exists.
func (m *Mux) Close(target config.Target) error {
	settings := Resolve(target)
	entry := m.entry(settings.Key())

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.client == nil {
		return nil
	}
	err := entry.client.Close()
	entry.client = nil
	return err
}

// CloseAll tears down every live transport. Called on shutdown.
func (m *Mux) CloseAll() {
	m.mu.Lock()
	entries := make([]*muxEntry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	for _, entry := range entries {
		entry.mu.Lock()
		if entry.client != nil {
			_ = entry.client.Close()
			entry.client = nil
		}
		entry.mu.Unlock()
	}
}

// Size returns the number of live transports.
func (m *Mux) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, entry := range m.entries {
		entry.mu.Lock()
		if entry.client != nil {
			n++
		}
		entry.mu.Unlock()
	}
	return n
}

// entry returns the per-key entry, creating it if needed.
func (m *Mux) entry(key string) *muxEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		entry = &muxEntry{}
		m.entries[key] = entry
	}
	return entry
}
