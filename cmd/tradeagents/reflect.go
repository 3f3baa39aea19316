package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/run-bigpig/tradeagents/internal/report"
)

type reflectOptions struct {
	statePath string
	outcome   float64
}

func newReflectCmd(root *rootOptions) *cobra.Command {
	opts := &reflectOptions{}
	cmd := &cobra.Command{
		Use:   "reflect",
		Short: "Record the realised outcome of a past run into memory",
		Long: `Load a saved run and write one reflection record per participating role.
The outcome is the realised return or loss of the recommendation; its sign marks success.

Examples:
  tradeagents reflect --state results/BTCUSDT/2024-05-10 --outcome -150`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReflect(cmd, root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.statePath, "state", "", "run directory or full_state.json")
	cmd.Flags().Float64Var(&opts.outcome, "outcome", 0, "realised return/loss of the decision")
	_ = cmd.MarkFlagRequired("state")
	_ = cmd.MarkFlagRequired("outcome")
	return cmd
}

func runReflect(cmd *cobra.Command, root *rootOptions, opts *reflectOptions) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Memory.Enabled {
		return fmt.Errorf("memory.enabled is false, nothing to write to")
	}
	state, err := report.Load(opts.statePath)
	if err != nil {
		return fmt.Errorf("load run state: %w", err)
	}

	ctx, stop := runContext(cmd.Context())
	defer stop()

	a, err := newApp(ctx, cfg, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	records, err := a.orchestrator.Reflect(ctx, state, opts.outcome)
	for _, rec := range records {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%+.2f\n", rec.Role, rec.ID, rec.OutcomeScore)
	}
	return err
}
