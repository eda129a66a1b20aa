package hook

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nlsh-dev/nlsh/internal/config"
	"github.com/nlsh-dev/nlsh/internal/runner"
)

// Medium abstracts where the hook's files live: the local filesystem, or a
// remote target reached through the command runner. The install/uninstall
// algorithm is identical either way.
type Medium interface {
	// ReadFile returns the file's content and whether it exists.
	ReadFile(path string) (data []byte, exists bool, err error)
	WriteFile(path string, data []byte) error
	Remove(path string) error
	MkdirAll(path string) error
	// Expand resolves $HOME-style placeholders into a concrete path where
	// the medium needs one. Remote shells expand these themselves.
	Expand(path string) string
}

// LocalMedium operates on the local filesystem.
type LocalMedium struct{}

func (LocalMedium) ReadFile(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (LocalMedium) WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (LocalMedium) Remove(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (LocalMedium) MkdirAll(path string) error {
	return os.MkdirAll(path, 0o755)
}

func (LocalMedium) Expand(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	return strings.ReplaceAll(path, "$HOME", home)
}

// RemoteMedium performs the same operations by running commands on a target.
type RemoteMedium struct {
	Runner *runner.Runner
	Target config.Target
}

func (m RemoteMedium) run(command string) (runner.Result, error) {
	// Hook file operations always run in $HOME scope, never the target's
	// configured working directory.
	target := m.Target
	target.WorkDir = ""
	return m.Runner.Run(context.Background(), &target, command, runner.Options{})
}

func (m RemoteMedium) ReadFile(path string) ([]byte, bool, error) {
	result, err := m.run(fmt.Sprintf(`test -f %s && cat %s`, path, path))
	if err != nil {
		return nil, false, err
	}
	if result.ExitCode != 0 {
		return nil, false, nil
	}
	return []byte(result.Stdout), true, nil
}

func (m RemoteMedium) WriteFile(path string, data []byte) error {
	// heredoc and printf both mangle arbitrary content; base64 survives any shell.
	encoded := base64.StdEncoding.EncodeToString(data)
	cmd := fmt.Sprintf(`mkdir -p $(dirname %s) && printf '%%s' '%s' | base64 -d > %s`, path, encoded, path)
	result, err := m.run(cmd)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("remote write of %s failed: %s", path, strings.TrimSpace(result.Stderr))
	}
	return nil
}

func (m RemoteMedium) Remove(path string) error {
	result, err := m.run("rm -f " + path)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("remote remove of %s failed: %s", path, strings.TrimSpace(result.Stderr))
	}
	return nil
}

func (m RemoteMedium) MkdirAll(path string) error {
	result, err := m.run("mkdir -p " + path)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("remote mkdir of %s failed: %s", path, strings.TrimSpace(result.Stderr))
	}
	return nil
}

func (m RemoteMedium) Expand(path string) string {
	// The remote shell expands $HOME itself.
	return path
}
