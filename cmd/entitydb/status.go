package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current branch and head commit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, _, closeAdapter, err := openRepo(ctx, flags)
			if err != nil {
				return err
			}
			defer closeAdapter()

			head, err := r.Head()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "branch: %s\nhead:   %s\n", r.CurrentBranch(), shortId(head))

			g := r.Graph()
			for _, b := range g.Branches() {
				fmt.Fprintf(cmd.OutOrStdout(), "  branch %-16s head %s\n", b.Name, shortId(b.HeadCommitId))
			}
			return nil
		},
	}
}
