package sshmux

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/kevinburke/ssh_config"
	"github.com/nlsh-dev/nlsh/internal/config"
)

// Settings holds fully resolved SSH connection parameters for one target.
type Settings struct {
	Host           string
	Port           int
	User           string
	IdentityFile   string
	PasswordPrompt bool
}

// sshConfigGet resolves one ssh_config key for a host alias from the
// user's ~/.ssh/config. Tests swap it for a lookup over decoded fixture
// content.
var sshConfigGet = func(alias, key string) string {
	return ssh_config.Get(alias, key)
}

// Resolve fills a target's blanks from ~/.ssh/config and environment defaults.
// Explicit target fields always win over ssh_config values.
func Resolve(target config.Target) Settings {
	s := Settings{
		Host:           target.Host,
		Port:           target.Port,
		User:           target.User,
		IdentityFile:   target.IdentityFile,
		PasswordPrompt: target.PasswordPrompt,
	}

	// ssh_config may map an alias to a real hostname and fill port/user/key.
	if hostname := sshConfigGet(target.Host, "HostName"); hostname != "" {
		s.Host = hostname
	}
	if s.Port == 0 {
		if port := sshConfigGet(target.Host, "Port"); port != "" {
			if p, err := strconv.Atoi(port); err == nil {
				s.Port = p
			}
		}
	}
	if s.User == "" {
		s.User = sshConfigGet(target.Host, "User")
	}
	if s.IdentityFile == "" {
		if identity := sshConfigGet(target.Host, "IdentityFile"); identity != "" && identity != "~/.ssh/identity" {
			s.IdentityFile = expandPath(identity)
		}
	}

	if s.Port == 0 {
		s.Port = 22
	}
	if s.User == "" {
		s.User = currentUser()
	}

	return s
}

// Key returns the multiplexing key. At most one live transport exists per key.
func (s Settings) Key() string {
	return fmt.Sprintf("%s@%s:%d", s.User, s.Host, s.Port)
}

// Address returns the host:port string for dialing.
func (s Settings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

func currentUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "root"
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func expandPath(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}
