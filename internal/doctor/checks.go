package doctor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/nlsh-dev/nlsh/internal/config"
	"github.com/nlsh-dev/nlsh/internal/hook"
)

// ConfigCheck verifies the config file loads and validates.
type ConfigCheck struct {
	Path string
}

func (c ConfigCheck) Name() string     { return "config file" }
func (c ConfigCheck) Category() string { return "CONFIG" }

func (c ConfigCheck) Run() CheckResult {
	path := c.Path
	if path == "" {
		path = config.DefaultPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "no config file yet, defaults in effect",
			Suggestion: "add a target with 'nlsh target add' to create one",
		}
	}
	if _, err := config.Load(path); err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    err.Error(),
			Suggestion: "fix or remove " + path,
		}
	}
	return CheckResult{Name: c.Name(), Status: StatusPass, Message: path}
}

// ProposerCheck verifies the configured proposal command exists.
type ProposerCheck struct {
	Command []string
}

func (c ProposerCheck) Name() string     { return "proposer command" }
func (c ProposerCheck) Category() string { return "PROPOSER" }

func (c ProposerCheck) Run() CheckResult {
	if len(c.Command) == 0 || c.Command[0] == "" {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "no proposer command configured",
			Suggestion: "set proposer.command in " + config.DefaultPath(),
		}
	}
	if _, err := exec.LookPath(c.Command[0]); err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("'%s' not found in PATH", c.Command[0]),
			Suggestion: "install it or correct proposer.command",
		}
	}
	return CheckResult{Name: c.Name(), Status: StatusPass, Message: c.Command[0]}
}

// ShellCheck verifies the login shell can host the history hook.
type ShellCheck struct {
	Shell string
}

func (c ShellCheck) Name() string     { return "login shell" }
func (c ShellCheck) Category() string { return "HOOK" }

func (c ShellCheck) Run() CheckResult {
	shell := c.Shell
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	kind := hook.DetectKind(shell)
	if kind == hook.Unsupported {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("'%s' can't host the history hook", shell),
			Suggestion: "zsh, bash and PowerShell are supported",
		}
	}
	return CheckResult{Name: c.Name(), Status: StatusPass, Message: kind.String()}
}

// HookCheck reports whether the history hook is installed and consistent
// with the recorded flag.
type HookCheck struct {
	Manager *hook.Manager
	Enabled bool
}

func (c HookCheck) Name() string     { return "history hook" }
func (c HookCheck) Category() string { return "HOOK" }

func (c HookCheck) Run() CheckResult {
	installed, err := c.Manager.IsInstalled()
	if err != nil {
		return CheckResult{Name: c.Name(), Status: StatusFail, Message: err.Error()}
	}
	if installed != c.Enabled {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("startup file says installed=%v but config says enabled=%v", installed, c.Enabled),
			Suggestion: "run 'nlsh hook reinstall' to resync",
		}
	}
	if !installed {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "not installed, proposals won't see shell history",
			Suggestion: "run 'nlsh hook install'",
		}
	}
	return CheckResult{Name: c.Name(), Status: StatusPass, Message: "installed in " + c.Manager.StartupPath()}
}

// CacheDirCheck verifies the facts cache directory is writable.
type CacheDirCheck struct {
	Dir string
}

func (c CacheDirCheck) Name() string     { return "facts cache" }
func (c CacheDirCheck) Category() string { return "CACHE" }

func (c CacheDirCheck) Run() CheckResult {
	dir := c.Dir
	if dir == "" {
		dir = filepath.Join(config.Dir(), "facts")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return CheckResult{Name: c.Name(), Status: StatusFail, Message: err.Error()}
	}
	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "cache directory is not writable",
			Suggestion: "check permissions on " + dir,
		}
	}
	os.Remove(probe)
	return CheckResult{Name: c.Name(), Status: StatusPass, Message: dir}
}

// TargetCheck validates one configured target's definition.
type TargetCheck struct {
	TargetName string
	Target     config.Target
}

func (c TargetCheck) Name() string     { return "target " + c.TargetName }
func (c TargetCheck) Category() string { return "TARGETS" }

func (c TargetCheck) Run() CheckResult {
	if c.Target.IdentityFile != "" {
		if _, err := os.Stat(c.Target.IdentityFile); err != nil {
			return CheckResult{
				Name:       c.Name(),
				Status:     StatusFail,
				Message:    "identity file " + c.Target.IdentityFile + " is missing",
				Suggestion: "fix the path or remove identity_file to use the agent",
			}
		}
	}
	return CheckResult{Name: c.Name(), Status: StatusPass, Message: c.Target.Host}
}

// CollectChecks assembles the standard check list for a config.
func CollectChecks(cfg *config.Config, configPath string, hookManager *hook.Manager) []Check {
	checks := []Check{
		ConfigCheck{Path: configPath},
		ProposerCheck{Command: cfg.Proposer.Command},
		ShellCheck{},
		CacheDirCheck{Dir: cfg.Cache.Dir},
	}
	if hookManager != nil {
		checks = append(checks, HookCheck{Manager: hookManager, Enabled: cfg.Hook.Enabled})
	}
	names := make([]string, 0, len(cfg.Targets))
	for name := range cfg.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		checks = append(checks, TargetCheck{TargetName: name, Target: cfg.Targets[name]})
	}
	return checks
}
