package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/annolab/concord/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "concord",
		Short: "Inter-rater agreement scoring and reannotation orchestration",
		Long: `Concord scores inter-rater agreement over categorical annotations,
flags low-agreement units, and orchestrates targeted reannotation rounds
with full version history and a field-level audit trail.`,
	}

	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.AgreementCmd())
	rootCmd.AddCommand(cli.RoundsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
