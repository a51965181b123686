package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/concord/internal/execution"
	"github.com/fyrsmithlabs/concord/internal/task"
)

type runFlags struct {
	id           string
	priority     int
	capabilities []string
	files        []string
	phases       []string
	audit        int
}

// runOutput is what the run command prints.
type runOutput struct {
	Result *task.Result            `json:"result" yaml:"result"`
	Audit  []execution.AuditRecord `json:"audit,omitempty" yaml:"audit,omitempty"`
}

func newRunCmd(global *globalFlags) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run <description>",
		Short: "Run one task through the orchestrator",
		Long: `Run decomposes the task when a strategy matches, dispatches every subtask to
its best executor through pre- and post-execution validation, and prints the
synthesized result.

Examples:
  # Direct execution
  concord run "Summarize the incident report"

  # Multi-file analysis, one subtask per file
  concord run "Review these modules for error handling" --file auth.go --file billing.go

  # Multi-phase creative work with the audit trail
  concord run "Write a product launch story" --phase outline --phase draft --audit 10`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, global)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			t, err := task.New(task.Spec{
				ID:                   flags.id,
				Description:          strings.Join(args, " "),
				Priority:             flags.priority,
				RequiredCapabilities: flags.capabilities,
				Hints: task.Hints{
					Files:  flags.files,
					Phases: flags.phases,
				},
			})
			if err != nil {
				return err
			}

			out := runOutput{Result: a.coord.RunTask(ctx, t)}
			if flags.audit > 0 {
				out.Audit = a.coord.AuditHistory(flags.audit)
			}
			if err := render(cmd.OutOrStdout(), global.output, out); err != nil {
				return err
			}
			return a.finish(cmd)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.id, "id", "", "task id (generated when empty)")
	f.IntVar(&flags.priority, "priority", 5, "task priority, 1-10")
	f.StringSliceVar(&flags.capabilities, "capability", nil, "required capability (repeatable)")
	f.StringSliceVar(&flags.files, "file", nil, "file covered by a multi-file analysis (repeatable)")
	f.StringSliceVar(&flags.phases, "phase", nil, "phase of a multi-phase request, in order (repeatable)")
	f.IntVar(&flags.audit, "audit", 0, "include the last N audit records")
	return cmd
}
