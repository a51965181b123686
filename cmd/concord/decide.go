package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/concord/internal/policy"
)

type decideFlags struct {
	ctx     policy.Context
	execute bool
}

// decideOutput is what the decide command prints.
type decideOutput struct {
	Decision *policy.Decision        `json:"decision" yaml:"decision"`
	Report   *policy.ExecutionReport `json:"report,omitempty" yaml:"report,omitempty"`
}

func newDecideCmd(global *globalFlags) *cobra.Command {
	flags := &decideFlags{}

	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Choose a coordination strategy for a context",
		Long: `Decide computes the exploitation/exploration balance for the given context,
selects a strategy and builds executor assignments. With --execute the
assignments are dispatched and every result is scored.

Examples:
  # Low complexity, low risk: goal directed
  concord decide --goal "Fix the flaky login test" --complexity 3 --risk 0.1

  # Novel, risky work: exploratory, executed
  concord decide --goal "Rethink onboarding" --complexity 9 --risk 0.9 --novelty --execute`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, global)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			d, err := a.coord.Decide(ctx, flags.ctx)
			if err != nil {
				return err
			}
			out := decideOutput{Decision: d}
			if flags.execute {
				out.Report = a.coord.Execute(ctx, d)
			}
			if err := render(cmd.OutOrStdout(), global.output, out); err != nil {
				return err
			}
			return a.finish(cmd)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.ctx.Goal, "goal", "", "desired outcome")
	f.Float64Var(&flags.ctx.Complexity, "complexity", 5, "task complexity, 0-10")
	f.Float64Var(&flags.ctx.RiskTolerance, "risk", 0.5, "risk tolerance, 0-1")
	f.DurationVar(&flags.ctx.TimeConstraint, "time-constraint", time.Duration(0), "time available (0 = unconstrained)")
	f.BoolVar(&flags.ctx.NoveltyRequired, "novelty", false, "require novel approaches")
	f.StringSliceVar(&flags.ctx.RequiredCapabilities, "capability", nil, "required capability (repeatable)")
	f.IntVar(&flags.ctx.Priority, "priority", 0, "priority of generated tasks, 1-10 (0 = default)")
	f.BoolVar(&flags.execute, "execute", false, "dispatch the assignments and evaluate outcomes")
	return cmd
}
