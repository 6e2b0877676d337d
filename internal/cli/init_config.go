package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/girste/hardenspec/internal/config"
)

func newInitConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write a commented default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultPath()
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteDefault(path); err != nil {
				return usageError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
			return nil
		},
	}
}
