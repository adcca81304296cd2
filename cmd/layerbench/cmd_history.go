package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/layerbench/internal/report"
	"github.com/nvandessel/layerbench/internal/store"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse stored comparison results",
		Long: `Stored results live in <root>/.layerbench/results.db unless
store.dir is configured.

Examples:
  layerbench history list --protocol matter
  layerbench history show 6f1c...
  layerbench history metric transport_time
  layerbench history delete 6f1c...`,
	}

	cmd.AddCommand(
		newHistoryListCmd(),
		newHistoryShowCmd(),
		newHistoryMetricCmd(),
		newHistoryDeleteCmd(),
	)
	return cmd
}

// withStore runs fn against the results store.
func withStore(cmd *cobra.Command, fn func(app *appEnv, s store.ResultStore) error) error {
	app, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	s, err := app.openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(app, s)
}

func newHistoryListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored results, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			protocol, _ := cmd.Flags().GetString("protocol")
			limit, _ := cmd.Flags().GetInt("limit")

			return withStore(cmd, func(app *appEnv, s store.ResultStore) error {
				rows, err := s.List(cmd.Context(), store.ListOptions{Protocol: protocol, Limit: limit})
				if err != nil {
					return err
				}

				if app.jsonOut {
					if rows == nil {
						rows = []store.ResultSummary{}
					}
					return json.NewEncoder(cmd.OutOrStdout()).Encode(rows)
				}
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No stored results.")
					return nil
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tGENERATED\tA\tB\tVERDICTS\tA WINS\tB WINS\tEFF A\tEFF B")
				for _, r := range rows {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
						r.ID, r.GeneratedAt.Format(time.RFC3339), r.ProtocolA, r.ProtocolB,
						r.Verdicts, r.WinsA, r.WinsB,
						formatPtr(r.OverallEfficiencyA, "%.3f"), formatPtr(r.OverallEfficiencyB, "%.3f"))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().String("protocol", "", "Only results involving this protocol")
	cmd.Flags().Int("limit", 20, "Maximum rows (0 for all)")
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one stored result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(app *appEnv, s store.ResultStore) error {
				res, err := s.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if app.jsonOut {
					return report.Encode(cmd.OutOrStdout(), res)
				}
				printResult(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
}

func newHistoryMetricCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metric <name>",
		Short: "Show one metric's verdicts across stored results, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(app *appEnv, s store.ResultStore) error {
				points, err := s.MetricHistory(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				if app.jsonOut {
					if points == nil {
						points = []store.MetricPoint{}
					}
					return json.NewEncoder(cmd.OutOrStdout()).Encode(points)
				}
				if len(points) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No stored verdicts for %s.\n", args[0])
					return nil
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "GENERATED\tRESULT\tA\tB\tDELTA\tP\tWINNER")
				for _, p := range points {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
						p.GeneratedAt.Format(time.RFC3339), p.ResultID, p.ProtocolA, p.ProtocolB,
						formatPtr(p.DeltaPct, "%+.2f%%"), formatPtr(p.PValue, "%.4f"), p.Winner)
				}
				return tw.Flush()
			})
		},
	}
}

func newHistoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one stored result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(app *appEnv, s store.ResultStore) error {
				if err := s.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				if app.jsonOut {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{
						"status": "deleted",
						"id":     args[0],
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}
