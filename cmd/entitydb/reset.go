package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResetCmd(flags *globalFlags) *cobra.Command {
	var n int

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Roll the current branch back by n commits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if n <= 0 {
				return fmt.Errorf("entitydb: --n must be positive")
			}
			ctx := cmd.Context()
			r, log, closeAdapter, err := openRepo(ctx, flags)
			if err != nil {
				return err
			}
			defer closeAdapter()

			if err := r.Reset(ctx, -n); err != nil {
				return err
			}
			log.Infow("reset via cli", "branch", r.CurrentBranch(), "n", n)
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d commit(s)\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&n, "n", 1, "number of trailing commits to undo")
	return cmd
}
