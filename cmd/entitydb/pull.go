package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newPullCmd exists mainly to make reconciliation an explicit,
// visible action: every command implicitly pulls and auto-merges on
// open, since each invocation is a fresh process reading from a
// shared adapter, but running it standalone reports the branch head
// the pull left it at.
func newPullCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Reconcile this branch against the shared adapter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, log, closeAdapter, err := openRepo(ctx, flags)
			if err != nil {
				return err
			}
			defer closeAdapter()

			head, err := r.Head()
			if err != nil {
				return err
			}
			log.Infow("pulled via cli", "branch", r.CurrentBranch(), "head", head)
			fmt.Fprintf(cmd.OutOrStdout(), "branch %s now at %s\n", r.CurrentBranch(), shortId(head))
			return nil
		},
	}
}
