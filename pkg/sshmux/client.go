package sshmux

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/term"
)

// ConnectionError is returned when establishing or reusing a transport fails.
// It is never retried here; callers decide what to do with a dead target.
type ConnectionError struct {
	Target string
	Cause  error
}

func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("can't connect to %s: %v", e.Target, e.Cause)
	}
	return fmt.Sprintf("can't connect to %s", e.Target)
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// sshClient wraps one authenticated SSH transport.
type sshClient struct {
	client  *ssh.Client
	key     string
	address string
}

// StrictHostKeyChecking controls host key verification.
// When false, verification is skipped (insecure, for CI/automation).
var StrictHostKeyChecking = true

// PasswordPrompter reads a password for the given connection key.
// Replaceable in tests. The default reads from the terminal without echo.
var PasswordPrompter = func(key string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s password: ", key)
	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

// DefaultDialTimeout bounds the TCP dial plus SSH handshake.
const DefaultDialTimeout = 10 * time.Second

// dial establishes a new authenticated transport for the resolved settings.
func dial(s Settings, timeout time.Duration) (Client, error) {
	key := s.Key()

	sshConfig, err := buildClientConfig(s, timeout)
	if err != nil {
		return nil, &ConnectionError{Target: key, Cause: err}
	}

	conn, err := net.DialTimeout("tcp", s.Address(), timeout)
	if err != nil {
		return nil, &ConnectionError{Target: key, Cause: err}
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, s.Address(), sshConfig)
	if err != nil {
		conn.Close()
		return nil, &ConnectionError{Target: key, Cause: err}
	}

	return &sshClient{
		client:  ssh.NewClient(sshConn, chans, reqs),
		key:     key,
		address: s.Address(),
	}, nil
}

// buildClientConfig assembles auth methods in precedence order:
// explicit identity file, password prompt, agent, then default key files.
func buildClientConfig(s Settings, timeout time.Duration) (*ssh.ClientConfig, error) {
	var authMethods []ssh.AuthMethod

	if s.IdentityFile != "" {
		keyAuth, err := keyFileAuth(s.IdentityFile)
		if err != nil {
			return nil, fmt.Errorf("identity file %s: %w", s.IdentityFile, err)
		}
		authMethods = append(authMethods, keyAuth)
	}

	if s.PasswordPrompt {
		key := s.Key()
		authMethods = append(authMethods, ssh.PasswordCallback(func() (string, error) {
			return PasswordPrompter(key)
		}))
	}

	if agentAuth := sshAgentAuth(); agentAuth != nil {
		authMethods = append(authMethods, agentAuth)
	}

	for _, keyPath := range defaultKeyFiles() {
		if keyPath == s.IdentityFile {
			continue
		}
		keyAuth, err := keyFileAuth(keyPath)
		if err != nil {
			continue
		}
		authMethods = append(authMethods, keyAuth)
	}

	if len(authMethods) == 0 {
		return nil, stderrors.New("no SSH auth methods available (check: ssh-add -l)")
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey() //nolint:gosec // Only when checking disabled below
	if StrictHostKeyChecking {
		var err error
		hostKeyCallback, err = knownHostsCallback()
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts: %w", err)
		}
	}

	return &ssh.ClientConfig{
		User:            s.User,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}, nil
}

func defaultKeyFiles() []string {
	return []string{
		filepath.Join(homeDir(), ".ssh", "id_ed25519"),
		filepath.Join(homeDir(), ".ssh", "id_rsa"),
		filepath.Join(homeDir(), ".ssh", "id_ecdsa"),
	}
}

// keyFileAuth returns an auth method using a private key file.
func keyFileAuth(keyPath string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		if strings.Contains(err.Error(), "encrypted") ||
			strings.Contains(err.Error(), "passphrase") ||
			bytes.Contains(key, []byte("ENCRYPTED")) {
			return nil, fmt.Errorf("key %s is passphrase protected, add it to the agent: ssh-add %s", keyPath, keyPath)
		}
		return nil, err
	}

	return ssh.PublicKeys(signer), nil
}

// agentConn holds the reusable SSH agent connection.
var (
	agentConn     net.Conn
	agentClient   agent.ExtendedAgent
	agentConnOnce sync.Once
)

// sshAgentAuth returns an auth method using the SSH agent if available.
// Returns nil if the agent is absent or has no keys loaded.
func sshAgentAuth() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	agentConnOnce.Do(func() {
		conn, err := net.Dial("unix", socket)
		if err != nil {
			return
		}
		agentConn = conn
		agentClient = agent.NewClient(conn)
	})

	if agentClient == nil {
		return nil
	}

	// An empty agent causes auth failures when placed before other methods.
	signers, err := agentClient.Signers()
	if err != nil || len(signers) == 0 {
		return nil
	}

	return ssh.PublicKeysCallback(agentClient.Signers)
}

// CloseAgent closes the SSH agent connection if one is open.
func CloseAgent() {
	if agentConn != nil {
		agentConn.Close()
	}
}

// knownHostsCallback verifies host keys against ~/.ssh/known_hosts,
// creating the file when missing.
func knownHostsCallback() (ssh.HostKeyCallback, error) {
	knownHostsPath := filepath.Join(homeDir(), ".ssh", "known_hosts")
	if _, err := os.Stat(knownHostsPath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(knownHostsPath), 0o700); err != nil {
			return nil, err
		}
		if err := os.WriteFile(knownHostsPath, []byte{}, 0o600); err != nil {
			return nil, err
		}
	}
	return knownhosts.New(knownHostsPath)
}
