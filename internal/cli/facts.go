package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nlsh-dev/nlsh/internal/ui"
)

var (
	factsRefreshFlag bool
	factsJSONFlag    bool
)

var factsCmd = &cobra.Command{
	Use:   "facts",
	Short: "Show cached system facts for a machine",
	Long: `Show the OS, shell, and hostname recorded for the local machine or a
target. Facts are probed once and cached; --refresh forces a new probe.

Examples:
  nlsh facts
  nlsh facts -t gpu-box --refresh`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return factsCommand(cmd)
	},
}

func init() {
	factsCmd.Flags().BoolVar(&factsRefreshFlag, "refresh", false, "probe again instead of using the cache")
	factsCmd.Flags().BoolVar(&factsJSONFlag, "json", false, "output in JSON format")
	rootCmd.AddCommand(factsCmd)
}

func factsCommand(cmd *cobra.Command) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	name, target, err := a.resolveTarget(targetFlag)
	if err != nil {
		return err
	}

	machineFacts, err := a.facts.Get(cmd.Context(), name, target, factsRefreshFlag)
	if err != nil {
		return err
	}

	if factsJSONFlag {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(machineFacts)
	}

	label := name
	if label == "" {
		label = "local"
	}
	fmt.Println(ui.Info(label))
	fmt.Printf("  os:       %s %s\n", machineFacts.OS, machineFacts.OSVersion)
	fmt.Printf("  shell:    %s\n", machineFacts.Shell)
	fmt.Printf("  hostname: %s\n", machineFacts.Hostname)
	fmt.Printf("  cached:   %s\n", ui.Muted(machineFacts.CachedAt.Format("2006-01-02 15:04:05 MST")))
	return nil
}
