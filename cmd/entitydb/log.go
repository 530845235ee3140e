package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLogCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "log",
		Short: "Show the current branch's commits, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, _, closeAdapter, err := openRepo(ctx, flags)
			if err != nil {
				return err
			}
			defer closeAdapter()

			commits, err := r.Log()
			if err != nil {
				return err
			}
			if len(commits) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "(no commits)")
				return nil
			}
			for _, c := range commits {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %d changes  %q\n",
					shortId(c.Id), shortId(c.ParentId), c.DeltaData.Len(), c.Message)
			}
			return nil
		},
	}
}

func shortId(id string) string {
	if id == "" {
		return "-"
	}
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
