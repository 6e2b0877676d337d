package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/girste/hardenspec/internal/attest"
	herr "github.com/girste/hardenspec/internal/errors"
)

func newVerifyCommand() *cobra.Command {
	var keyPath, sigPath string
	cmd := &cobra.Command{
		Use:   "verify --key <public.asc> <report>",
		Short: "Verify the OpenPGP signature of a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reportPath := args[0]
			if sigPath == "" {
				sigPath = reportPath + attest.SignatureSuffix
			}

			verifier, err := attest.NewVerifier(keyPath)
			if err != nil {
				return usageError(err)
			}
			keyID, err := verifier.VerifyFile(reportPath, sigPath)
			if herr.Is(err, herr.ErrSignature) {
				return &exitError{code: ExitFailed, err: err}
			}
			if err != nil {
				return usageError(err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Good signature on %s from key %s\n", reportPath, keyID)
			return nil
		},
	}
	cmd.Flags().StringVar(&keyPath, "key", "", "Armored or binary OpenPGP public key")
	cmd.Flags().StringVar(&sigPath, "signature", "", "Detached signature (default: <report>"+attest.SignatureSuffix+")")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}
