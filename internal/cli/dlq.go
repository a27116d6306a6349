package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/creeyes/crmprueba/internal/worker"

	"github.com/spf13/cobra"
)

// NewDLQCommand groups the dead-letter commands.
func NewDLQCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect association writes that failed",
	}
	cmd.AddCommand(newDLQShowCommand(opts))
	return cmd
}

func newDLQShowCommand(opts *RootOptions) *cobra.Command {
	var limit int64
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the most recent dead letters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := opts.Connect(ctx)
			if err != nil {
				return err
			}
			defer env.Close(ctx)
			if env.Comp.DLQ == nil {
				return errors.New("redis is not configured (REDIS_URL)")
			}

			total, err := env.Comp.DLQ.Length(ctx, worker.QueueAssociations)
			if err != nil {
				return err
			}
			entries, err := env.Comp.DLQ.Peek(ctx, worker.QueueAssociations, limit)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts, entries, func(w io.Writer) {
				for _, e := range entries {
					fmt.Fprintf(w, "%s  %-20s %s  %s\n", e.FailedAt, e.JobType, string(e.Payload), e.Reason)
				}
				fmt.Fprintf(w, "%d of %d entries\n", len(entries), total)
			})
		},
	}
	cmd.Flags().Int64Var(&limit, "limit", 20, "entries to show")
	return cmd
}
