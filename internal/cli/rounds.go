package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/annolab/concord/internal/domain/round"
	"github.com/annolab/concord/internal/domain/schema"
)

// RoundsCmd returns the rounds command group.
func RoundsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rounds",
		Short: "Manage reannotation rounds",
	}
	cmd.AddCommand(roundsCreateCmd())
	cmd.AddCommand(roundsListCmd())
	cmd.AddCommand(roundsProgressCmd())
	cmd.AddCommand(roundsCompleteCmd())
	cmd.AddCommand(roundsCancelCmd())
	return cmd
}

func roundsCreateCmd() *cobra.Command {
	var (
		group     string
		threshold float64
		createdBy string
	)
	cmd := &cobra.Command{
		Use:   "create <project>",
		Short: "Score a project and create a round over its low-agreement units",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("threshold") {
				threshold = a.cfg.Rounds.DefaultThreshold
			}

			result, err := a.rounds.CreateRound(cmd.Context(), round.CreateRequest{
				ProjectID: args[0],
				Group:     schema.GroupName(group),
				Threshold: threshold,
				CreatedBy: createdBy,
			})
			if err != nil {
				return err
			}

			if result.RoundID == "" {
				fmt.Println("no units below threshold, round not created")
				return nil
			}
			fmt.Printf("round %d created: %d units flagged, %d tasks\n",
				result.RoundNumber, result.UnitsFlagged, result.TasksCreated)
			return nil
		},
	}
	cmd.Flags().StringVar(&group, "group", string(schema.GroupPromise), "dimension group (promise or evidence)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "flagging threshold in [0,1] (default from config)")
	cmd.Flags().StringVar(&createdBy, "created-by", "", "who initiated the round")
	return cmd
}

func roundsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <project>",
		Short: "List a project's rounds, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			rounds, err := a.rounds.List(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rounds)
		},
	}
}

func roundsProgressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "progress <round-id>",
		Short: "Show per-unit completion against the quorum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			progress, err := a.rounds.Progress(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(progress)
		},
	}
}

func roundsCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <round-id>",
		Short: "Mark an active round completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return a.rounds.Complete(cmd.Context(), args[0])
		},
	}
}

func roundsCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <round-id>",
		Short: "Cancel an active round",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return a.rounds.Cancel(cmd.Context(), args[0])
		},
	}
}
