package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/girste/hardenspec/internal/rules"
)

func newListCommand() *cobra.Command {
	var (
		domains  []string
		patterns []string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the rules in the catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			selected, err := rules.Select(rules.Catalogue(), domains, patterns)
			if err != nil {
				return usageError(err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(selected)
			}

			domain := ""
			for _, r := range selected {
				if r.Domain != domain {
					if domain != "" {
						fmt.Fprintln(out)
					}
					domain = r.Domain
					fmt.Fprintf(out, "[%s]\n", domain)
				}
				fmt.Fprintf(out, "  %-48s %s\n", r.ID, r.Description)
				if r.SkipReason != "" {
					fmt.Fprintf(out, "  %-48s skipped unless forced: %s\n", "", r.SkipReason)
				}
			}
			fmt.Fprintf(out, "\n%d rules in %d domains\n", len(selected), len(rules.Domains(selected)))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&domains, "domain", nil, "Only list rules of this domain (repeatable)")
	cmd.Flags().StringSliceVar(&patterns, "rule", nil, "Only list rules whose ID matches this glob (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the rules as JSON")
	return cmd
}
