package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/nlsh-dev/nlsh/internal/config"
	"github.com/nlsh-dev/nlsh/internal/ui"
)

var (
	addHostFlag     string
	addPortFlag     int
	addUserFlag     string
	addIdentityFlag string
	addPasswordFlag bool
	addWorkdirFlag  string
)

var targetCmd = &cobra.Command{
	Use:   "target",
	Short: "Manage remote targets",
}

var targetAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a remote target",
	Long: `Register a remote machine. Connection details left unset fall back to
~/.ssh/config, then sensible defaults.

Examples:
  nlsh target add gpu-box --host 10.0.0.5 --user ml
  nlsh target add staging --host staging.internal --identity ~/.ssh/staging_ed25519
  nlsh target add bastion --host bastion.example.com --password`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return targetAddCommand(args[0])
	},
}

var targetRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a target and its cached state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return targetRemoveCommand(args[0])
	},
}

var targetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered targets and groups",
	RunE: func(cmd *cobra.Command, args []string) error {
		return targetListCommand()
	},
}

var targetWorkdirCmd = &cobra.Command{
	Use:   "workdir <name> <dir>",
	Short: "Set the directory commands run in on a target",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return targetWorkdirCommand(args[0], args[1])
	},
}

var targetDefaultCmd = &cobra.Command{
	Use:   "default <name>",
	Short: "Set the target used when none is given",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return targetDefaultCommand(args[0])
	},
}

func init() {
	targetAddCmd.Flags().StringVar(&addHostFlag, "host", "", "hostname, IP, or ~/.ssh/config alias")
	targetAddCmd.Flags().IntVar(&addPortFlag, "port", 0, "SSH port (default 22)")
	targetAddCmd.Flags().StringVar(&addUserFlag, "user", "", "login user")
	targetAddCmd.Flags().StringVar(&addIdentityFlag, "identity", "", "private key path")
	targetAddCmd.Flags().BoolVar(&addPasswordFlag, "password", false, "prompt for a password on every connection")
	targetAddCmd.Flags().StringVar(&addWorkdirFlag, "workdir", "", "directory commands run in")
	targetAddCmd.MarkFlagRequired("host")

	targetCmd.AddCommand(targetAddCmd)
	targetCmd.AddCommand(targetRemoveCmd)
	targetCmd.AddCommand(targetListCmd)
	targetCmd.AddCommand(targetWorkdirCmd)
	targetCmd.AddCommand(targetDefaultCmd)
	rootCmd.AddCommand(targetCmd)
}

func targetAddCommand(name string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	target := config.Target{
		Host:           addHostFlag,
		Port:           addPortFlag,
		User:           addUserFlag,
		IdentityFile:   config.ExpandHome(addIdentityFlag),
		PasswordPrompt: addPasswordFlag,
		WorkDir:        addWorkdirFlag,
	}
	if err := a.cfg.AddTarget(name, target); err != nil {
		return err
	}
	if err := a.store.Save(a.cfg); err != nil {
		return err
	}
	fmt.Println(ui.Success("added " + name))
	return nil
}

func targetRemoveCommand(name string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	// Tear down everything the target left behind, not just its entry.
	if target, ok := a.cfg.Targets[name]; ok {
		a.mux.Close(target)
	}
	if err := a.cfg.RemoveTarget(name); err != nil {
		return err
	}
	if err := a.facts.Invalidate(name); err != nil {
		a.log.Warn("could not drop cached facts for %s: %v", name, err)
	}
	if err := a.store.Save(a.cfg); err != nil {
		return err
	}
	fmt.Println(ui.Success("removed " + name))
	return nil
}

func targetListCommand() error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if len(a.cfg.Targets) == 0 {
		fmt.Println(ui.Muted("no targets yet, add one with 'nlsh target add'"))
		return nil
	}

	names := make([]string, 0, len(a.cfg.Targets))
	for name := range a.cfg.Targets {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		target := a.cfg.Targets[name]
		line := fmt.Sprintf("%-16s %s", name, describeTarget(target))
		if name == a.cfg.Default {
			line += " " + ui.Info("(default)")
		}
		fmt.Println(line)
	}

	if len(a.cfg.Groups) > 0 {
		fmt.Println()
		groups := make([]string, 0, len(a.cfg.Groups))
		for group := range a.cfg.Groups {
			groups = append(groups, group)
		}
		sort.Strings(groups)
		for _, group := range groups {
			fmt.Printf("%-16s %s\n", group, ui.Muted(fmt.Sprintf("group of %d", len(a.cfg.Groups[group]))))
		}
	}
	return nil
}

func describeTarget(target config.Target) string {
	addr := target.Host
	if target.User != "" {
		addr = target.User + "@" + addr
	}
	if target.Port != 0 && target.Port != 22 {
		addr = fmt.Sprintf("%s:%d", addr, target.Port)
	}
	if target.WorkDir != "" {
		addr += ui.Muted("  workdir=" + target.WorkDir)
	}
	return addr
}

func targetWorkdirCommand(name, dir string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.cfg.SetWorkDir(name, dir); err != nil {
		return err
	}
	if err := a.store.Save(a.cfg); err != nil {
		return err
	}
	fmt.Println(ui.Success(fmt.Sprintf("%s now runs in %s", name, dir)))
	return nil
}

func targetDefaultCommand(name string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.cfg.SetDefault(name); err != nil {
		return err
	}
	if err := a.store.Save(a.cfg); err != nil {
		return err
	}
	fmt.Println(ui.Success(name + " is now the default target"))
	return nil
}
