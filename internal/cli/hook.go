package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nlsh-dev/nlsh/internal/config"
	"github.com/nlsh-dev/nlsh/internal/hook"
	"github.com/nlsh-dev/nlsh/internal/ui"
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Manage the shell history hook",
	Long: `The history hook is a small block added to your shell's startup file
that records every interactive command and its exit code. Proposals use
that history as context, so suggestions match how you actually work.

With --target the hook is managed on a remote machine instead, over the
same connection commands use.`,
}

var hookInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Add the history hook to the shell startup file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return hookCommand(cmd.Context(), func(m *hook.Manager) error {
			if err := m.Install(); err != nil {
				return err
			}
			fmt.Println(ui.Success("hook installed in " + m.StartupPath()))
			fmt.Println(ui.Muted("restart your shell or source the file to activate it"))
			return nil
		})
	},
}

var hookUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the hook and its history log",
	RunE: func(cmd *cobra.Command, args []string) error {
		return hookCommand(cmd.Context(), func(m *hook.Manager) error {
			if err := m.Uninstall(); err != nil {
				return err
			}
			fmt.Println(ui.Success("hook removed"))
			return nil
		})
	},
}

var hookReinstallCmd = &cobra.Command{
	Use:   "reinstall",
	Short: "Regenerate the hook with current settings",
	Long: `Remove and re-add the hook block. Needed after changing a setting the
script embeds literally, like hook.limit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return hookCommand(cmd.Context(), func(m *hook.Manager) error {
			if err := m.Reinstall("settings changed"); err != nil {
				return err
			}
			fmt.Println(ui.Success("hook reinstalled in " + m.StartupPath()))
			return nil
		})
	},
}

var hookStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the hook is installed",
	RunE: func(cmd *cobra.Command, args []string) error {
		return hookCommand(cmd.Context(), func(m *hook.Manager) error {
			if m.Kind() == hook.Unsupported {
				fmt.Println(ui.Warning("this shell can't host the hook (zsh, bash and PowerShell are supported)"))
				return nil
			}
			installed, err := m.IsInstalled()
			if err != nil {
				return err
			}
			if installed {
				fmt.Println(ui.Success(fmt.Sprintf("installed for %s in %s", m.Kind(), m.StartupPath())))
			} else {
				fmt.Println(ui.Muted("not installed, run 'nlsh hook install'"))
			}
			return nil
		})
	},
}

func init() {
	hookCmd.AddCommand(hookInstallCmd)
	hookCmd.AddCommand(hookUninstallCmd)
	hookCmd.AddCommand(hookReinstallCmd)
	hookCmd.AddCommand(hookStatusCmd)
	rootCmd.AddCommand(hookCmd)
}

// hookCommand builds a manager for the selected scope and applies fn.
func hookCommand(ctx context.Context, fn func(*hook.Manager) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	// Hooks go where you ask, not to the default target.
	var name string
	var target *config.Target
	if targetFlag != "" {
		if name, target, err = a.resolveTarget(targetFlag); err != nil {
			return err
		}
	}
	return fn(a.hookManager(ctx, name, target))
}
