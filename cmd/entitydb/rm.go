package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"entitydb/pkg/delta"
	"entitydb/pkg/entity"
)

func newRmCmd(flags *globalFlags) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete an entity, committing the change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			ctx := cmd.Context()
			r, log, closeAdapter, err := openRepo(ctx, flags)
			if err != nil {
				return err
			}
			defer closeAdapter()

			existing, ok := r.Get(id)
			if !ok {
				return fmt.Errorf("entitydb: %q not found", id)
			}

			d := delta.New()
			if err := d.Merge(delta.Delete(id, entity.Dump(existing))); err != nil {
				return err
			}
			if message == "" {
				message = fmt.Sprintf("delete %s", id)
			}

			c, err := r.Commit(ctx, d, message)
			if err != nil {
				return err
			}
			log.Infow("committed via rm", "id", id, "commitId", c.Id)
			fmt.Fprintf(cmd.OutOrStdout(), "committed %s (%s)\n", c.Id, message)
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	return cmd
}
