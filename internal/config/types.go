package config

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// DefaultMaxSteps caps the session loop when the config doesn't say.
const DefaultMaxSteps = 20

// Config represents the complete nlsh configuration file.
type Config struct {
	Version int `yaml:"version" mapstructure:"version"`

	// Targets maps target names to remote machine definitions.
	Targets map[string]Target `yaml:"targets" mapstructure:"targets"`

	// Default is the target used when none is specified. Empty means local.
	Default string `yaml:"default" mapstructure:"default"`

	// Groups maps group names to ordered lists of target names, for batch runs.
	Groups map[string][]string `yaml:"groups" mapstructure:"groups"`

	Hook     HookConfig     `yaml:"hook" mapstructure:"hook"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Session  SessionConfig  `yaml:"session" mapstructure:"session"`
	Proposer ProposerConfig `yaml:"proposer" mapstructure:"proposer"`
}

// Target defines a remote machine and its connection settings.
type Target struct {
	// Host is the hostname, IP, or ~/.ssh/config alias.
	Host string `yaml:"host" mapstructure:"host"`

	// Port is the SSH port. 0 means 22 (or the ssh_config value).
	Port int `yaml:"port" mapstructure:"port"`

	// User is the login user. Empty falls back to ssh_config, then $USER.
	User string `yaml:"user" mapstructure:"user"`

	// IdentityFile is an explicit private key path. Takes precedence over
	// every other auth method when set.
	IdentityFile string `yaml:"identity_file,omitempty" mapstructure:"identity_file"`

	// PasswordPrompt makes every connection prompt for a password instead
	// of trying keys or the agent.
	PasswordPrompt bool `yaml:"password_prompt,omitempty" mapstructure:"password_prompt"`

	// WorkDir is the directory commands run in on the target.
	WorkDir string `yaml:"workdir,omitempty" mapstructure:"workdir"`
}

// HookConfig controls the shell history hook.
type HookConfig struct {
	// Enabled records whether the hook is currently installed locally.
	// Flipped by install/uninstall, not edited by hand.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Limit is the number of history lines the hook log retains.
	// Baked into the generated script; changing it requires a reinstall.
	Limit int `yaml:"limit" mapstructure:"limit"`

	// LogPath is where the hook appends its JSON lines. Empty uses the default.
	LogPath string `yaml:"log_path,omitempty" mapstructure:"log_path"`
}

// CacheConfig controls the system facts cache.
type CacheConfig struct {
	// TTLDays is how long cached facts stay fresh, in days.
	TTLDays int `yaml:"ttl_days" mapstructure:"ttl_days"`

	// Dir overrides the facts cache directory. Empty uses the default.
	Dir string `yaml:"dir,omitempty" mapstructure:"dir"`
}

// SessionConfig controls the interactive step loop.
type SessionConfig struct {
	// MaxSteps bounds how many steps one session may run. The proposal
	// function decides continuation, but a misbehaving one shouldn't be
	// able to loop forever. 0 uses the default cap.
	MaxSteps int `yaml:"max_steps" mapstructure:"max_steps"`

	// CommandTimeout is a per-command timeout string ("2m", "30s").
	// Empty means no timeout.
	CommandTimeout string `yaml:"command_timeout,omitempty" mapstructure:"command_timeout"`
}

// ProposerConfig names the external command that turns prompts into steps.
// It receives a JSON request on stdin and prints a JSON proposal.
type ProposerConfig struct {
	Command []string `yaml:"command" mapstructure:"command"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Targets: make(map[string]Target),
		Groups:  make(map[string][]string),
		Hook: HookConfig{
			Enabled: false,
			Limit:   500,
		},
		Cache: CacheConfig{
			TTLDays: 7,
		},
		Session: SessionConfig{
			MaxSteps: DefaultMaxSteps,
		},
	}
}
