package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nlsh-dev/nlsh/internal/doctor"
	"github.com/nlsh-dev/nlsh/internal/errors"
	"github.com/nlsh-dev/nlsh/internal/ui"
)

var doctorJSONFlag bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose config, proposer, hook, and target problems",
	RunE: func(cmd *cobra.Command, args []string) error {
		return doctorCommand(cmd.Context())
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorJSONFlag, "json", false, "output in JSON format")
	rootCmd.AddCommand(doctorCmd)
}

func doctorCommand(ctx context.Context) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	checks := doctor.CollectChecks(a.cfg, a.cfgPath, a.hookManager(ctx, "", nil))
	results := doctor.RunAll(checks)

	if doctorJSONFlag {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(results); err != nil {
			return err
		}
	} else {
		renderDoctorResults(checks, results)
	}

	if doctor.HasFailures(results) {
		return errors.NewExitError(1)
	}
	return nil
}

func renderDoctorResults(checks []doctor.Check, results []doctor.CheckResult) {
	category := ""
	for i, result := range results {
		if checks[i].Category() != category {
			category = checks[i].Category()
			fmt.Println(ui.Info(category))
		}
		switch result.Status {
		case doctor.StatusPass:
			fmt.Printf("  %s %s\n", ui.Success(result.Name), ui.Muted(result.Message))
		case doctor.StatusWarn:
			fmt.Printf("  %s %s\n", ui.Warning(result.Name), result.Message)
		default:
			fmt.Printf("  %s %s\n", ui.Failure(result.Name), result.Message)
		}
		if result.Suggestion != "" && result.Status != doctor.StatusPass {
			fmt.Printf("    %s\n", ui.Muted(result.Suggestion))
		}
	}

	counts := doctor.CountByStatus(results)
	fmt.Println()
	fmt.Printf("%d passed, %d warnings, %d failed\n",
		counts[doctor.StatusPass], counts[doctor.StatusWarn], counts[doctor.StatusFail])
}
