package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/girste/hardenspec/internal/mcp"
)

func newServeCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve list_rules and run_rules over MCP on stdio",
		Long: `Start an MCP server on stdin/stdout. Every run_rules call connects to the
configured target, evaluates the requested rules and returns the report.

  hardenspec serve --target ssh://audit@web1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			server := mcp.NewServer(cfg, g.version)

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
			defer signal.Stop(sigChan)

			errChan := make(chan error, 1)
			go func() {
				errChan <- server.Serve()
			}()

			select {
			case sig := <-sigChan:
				cmd.PrintErrf("Received %s signal, shutting down\n", sig)
				return nil
			case err := <-errChan:
				return err
			}
		},
	}
}
