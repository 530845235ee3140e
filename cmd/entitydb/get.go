package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGetCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print an entity's current payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			ctx := cmd.Context()
			r, _, closeAdapter, err := openRepo(ctx, flags)
			if err != nil {
				return err
			}
			defer closeAdapter()

			e, ok := r.Get(id)
			if !ok {
				return fmt.Errorf("entitydb: %q not found", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "id=%s parentId=%s type=%s\n", e.Id, e.ParentId, e.Type)
			for k, v := range e.Payload {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s=%v\n", k, v)
			}
			return nil
		},
	}
}
