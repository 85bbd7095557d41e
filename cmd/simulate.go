package main

import (
	"fmt"
	"io"

	"github.com/okian/rota/internal/simulation"

	"github.com/spf13/cobra"
)

func newSimulateCmd() *cobra.Command {
	sc := simulation.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the assignment engine against a synthetic marketplace",
		Long: `Generates operators, agents and tasks from a seed, fires concurrent
assignment requests at every task and reports how the work was spread across
experience bands. The run fails if any task ends up with two winners.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, l, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer syncLogger()

			report, err := simulation.Run(cmd.Context(), sc, l)
			if err != nil {
				return err
			}
			report.Log(cmd.Context(), l)
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&sc.Operators, "operators", sc.Operators, "number of operators")
	f.IntVar(&sc.Agents, "agents", sc.Agents, "number of posting agents")
	f.IntVar(&sc.Tasks, "tasks", sc.Tasks, "number of tasks")
	f.IntVar(&sc.Workers, "workers", sc.Workers, "concurrent assignment requests")
	f.IntVar(&sc.Contenders, "contenders", sc.Contenders, "requests per task")
	f.Uint64Var(&sc.Seed, "seed", sc.Seed, "seed for generation and rotation")
	return cmd
}

func printReport(w io.Writer, r *simulation.Report) {
	fmt.Fprintf(w, "tasks=%d assigned=%d unassigned=%d top_ranked_share=%.2f\n",
		r.Config.Tasks, r.Assigned, r.Unassigned, r.TopRankedShare())
	for _, b := range r.Bands() {
		fmt.Fprintf(w, "%-12s operators=%-5d wins=%-5d share=%.2f\n",
			b, r.OperatorsByBand[b], r.WinsByBand[b], r.WinShare(b))
	}
}
