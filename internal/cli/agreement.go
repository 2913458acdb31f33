package cli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

// AgreementCmd returns the agreement command.
func AgreementCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agreement <project>",
		Short: "Print the agreement report for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.rounds.ComputeAgreement(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}
