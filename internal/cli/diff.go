package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/girste/hardenspec/internal/baseline"
	herr "github.com/girste/hardenspec/internal/errors"
	"github.com/girste/hardenspec/internal/runner"
)

func newDiffCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "diff <baseline.yaml> <report.json>",
		Short: "Compare a saved JSON report against a baseline",
		Long: `Compare the rule statuses of a JSON report against a baseline saved with
run --save-baseline. Exits 1 when a rule regressed into FAIL or ERROR.

  hardenspec run --format json --output report.json
  hardenspec diff /var/lib/hardenspec/baseline.yaml report.json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := baseline.Load(args[0])
			if err != nil {
				return usageError(err)
			}
			report, err := loadReport(args[1])
			if err != nil {
				return usageError(err)
			}

			diff := baseline.Compare(base, report)
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(diff); err != nil {
					return err
				}
			} else {
				printDrift(out, diff)
			}

			if diff.Regressions > 0 {
				return &exitError{code: ExitFailed}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the drift as JSON")
	return cmd
}

func loadReport(path string) (*runner.Report, error) {
	//nolint:gosec // G304: path is given on the command line
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var report runner.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, herr.Wrap(herr.ErrParseFailure, "%s is not a JSON report", path)
	}
	if report.RunID == "" {
		return nil, herr.Wrap(herr.ErrParseFailure, "%s has no run ID", path)
	}
	return &report, nil
}
