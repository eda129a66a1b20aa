package cli

import (
	"context"
	"os"
	"time"

	"github.com/nlsh-dev/nlsh/internal/config"
	"github.com/nlsh-dev/nlsh/internal/errors"
	"github.com/nlsh-dev/nlsh/internal/facts"
	"github.com/nlsh-dev/nlsh/internal/hook"
	"github.com/nlsh-dev/nlsh/internal/logger"
	"github.com/nlsh-dev/nlsh/internal/propose"
	"github.com/nlsh-dev/nlsh/internal/runner"
	"github.com/nlsh-dev/nlsh/internal/session"
	"github.com/nlsh-dev/nlsh/pkg/sshmux"
)

// historyContext caps how many recorded shell commands ride along with a
// proposal request.
const historyContext = 50

// app bundles the shared pieces every command needs: loaded config, the
// connection multiplexer, the runner on top of it, and the facts cache.
type app struct {
	cfg     *config.Config
	cfgPath string
	store   *config.FileStore
	mux     *sshmux.Mux
	runner  *runner.Runner
	facts   *facts.Cache
	log     logger.Logger
}

// newApp loads config and wires the stack. Call Close when done so any
// live connections shut down cleanly.
func newApp() (*app, error) {
	log := logger.NewEnvLogger("nlsh")

	path := configFlag
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}

	mux := sshmux.New(log)
	run := runner.New(mux, log)
	cache := facts.NewCache(cfg.Cache.Dir, cfg.Cache.TTLDays, run, log)

	return &app{
		cfg:     cfg,
		cfgPath: path,
		store:   config.NewFileStore(path),
		mux:     mux,
		runner:  run,
		facts:   cache,
		log:     log,
	}, nil
}

func (a *app) Close() {
	a.mux.CloseAll()
}

// proposer builds the configured external proposal function.
func (a *app) proposer() (propose.Func, error) {
	p, err := propose.NewCommandProposer(a.cfg.Proposer.Command, a.log)
	if err != nil {
		return nil, err
	}
	return p.Func(), nil
}

// resolveTarget maps a --target value (or the configured default) to a
// name and definition. Empty name with nil target means local.
func (a *app) resolveTarget(name string) (string, *config.Target, error) {
	if name == "" {
		name = a.cfg.Default
	}
	if name == "" || name == "local" {
		return "", nil, nil
	}
	target, ok := a.cfg.Targets[name]
	if !ok {
		return "", nil, errors.New(errors.ErrConfig,
			"No target named '"+name+"'",
			"Check 'nlsh target list' for what's defined.")
	}
	return name, &target, nil
}

// commandTimeout parses the configured per-command timeout.
func (a *app) commandTimeout() time.Duration {
	if timeoutFlag != "" {
		if d, err := time.ParseDuration(timeoutFlag); err == nil {
			return d
		}
	}
	if a.cfg.Session.CommandTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(a.cfg.Session.CommandTimeout)
	if err != nil {
		return 0
	}
	return d
}

// hookMedium picks the file medium for a hook operation: the local
// filesystem, or commands run on a remote target.
func (a *app) hookMedium(target *config.Target) hook.Medium {
	if target == nil {
		return hook.LocalMedium{}
	}
	return hook.RemoteMedium{Runner: a.runner, Target: *target}
}

// hookKind determines the shell kind to install for. Local installs read
// $SHELL; remote installs probe the target's facts.
func (a *app) hookKind(ctx context.Context, name string, target *config.Target) hook.Kind {
	if target == nil {
		return hook.DetectKind(os.Getenv("SHELL"))
	}
	machineFacts, err := a.facts.Get(ctx, name, target, false)
	if err != nil {
		a.log.Warn("could not probe %s for its shell: %v", name, err)
		return hook.Unsupported
	}
	return hook.DetectKind(machineFacts.Shell)
}

// hookManager assembles a manager for the given scope.
func (a *app) hookManager(ctx context.Context, name string, target *config.Target) *hook.Manager {
	opts := []hook.Option{
		hook.WithLimit(a.cfg.Hook.Limit),
		hook.WithLogPath(a.cfg.Hook.LogPath),
		hook.WithLogger(a.log),
	}
	if target == nil {
		// Only the local hook's state is tracked in config.
		opts = append(opts, hook.WithFlagStore(configFlagStore{a}))
	}
	return hook.NewManager(a.hookMedium(target), a.hookKind(ctx, name, target), opts...)
}

// historySource reads recorded shell history for proposal context. Local
// sessions read the local hook log; remote sessions read the target's.
func (a *app) historySource(target *config.Target) session.HistorySource {
	medium := a.hookMedium(target)
	logPath := a.cfg.Hook.LogPath
	return func() []string {
		entries, err := hook.ReadHistory(medium, logPath, historyContext)
		if err != nil {
			a.log.Debug("shell history unavailable: %v", err)
			return nil
		}
		return hook.FormatHistory(entries)
	}
}

// configFlagStore persists the hook enabled flag through the config file.
type configFlagStore struct {
	app *app
}

func (s configFlagStore) SetEnabled(enabled bool) error {
	s.app.cfg.Hook.Enabled = enabled
	return s.app.store.Save(s.app.cfg)
}
