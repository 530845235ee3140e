package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"entitydb/pkg/delta"
	"entitydb/pkg/entity"
)

func newPutCmd(flags *globalFlags) *cobra.Command {
	var (
		parentId string
		sets     []string
		message  string
	)

	cmd := &cobra.Command{
		Use:   "put <id>",
		Short: "Create or update an entity, committing the change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			fields, err := parseSets(sets)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			r, log, closeAdapter, err := openRepo(ctx, flags)
			if err != nil {
				return err
			}
			defer closeAdapter()

			d := delta.New()
			existing, ok := r.Get(id)
			var change delta.Change
			if !ok {
				dict := make(map[string]entity.Value, len(fields)+2)
				for k, v := range fields {
					dict[k] = v
				}
				dict["id"] = id
				dict["parentId"] = parentId
				dict["__type__"] = itemType
				change = delta.Create(id, dict)
				if message == "" {
					message = fmt.Sprintf("create %s", id)
				}
			} else {
				oldDump := entity.Dump(existing)
				reverse := make(map[string]entity.Value, len(fields))
				forward := make(map[string]entity.Value, len(fields))
				for k, v := range fields {
					reverse[k] = oldDump[k]
					forward[k] = v
				}
				change = delta.Update(id, reverse, forward)
				if message == "" {
					message = fmt.Sprintf("update %s", id)
				}
			}

			if change.KindOf() == delta.KindEmpty {
				fmt.Fprintf(cmd.OutOrStdout(), "no change for %s\n", id)
				return nil
			}
			if err := d.Merge(change); err != nil {
				return err
			}

			c, err := r.Commit(ctx, d, message)
			if err != nil {
				return err
			}
			log.Infow("committed via put", "id", id, "commitId", c.Id)
			fmt.Fprintf(cmd.OutOrStdout(), "committed %s (%s)\n", c.Id, message)
			return nil
		},
	}
	cmd.Flags().StringVar(&parentId, "parent", "", "parent entity id")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field=value pair, repeatable")
	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	return cmd
}

// parseSets turns "key=value" flag values into a payload field map.
func parseSets(sets []string) (map[string]entity.Value, error) {
	out := make(map[string]entity.Value, len(sets))
	for _, s := range sets {
		k, v, ok := strings.Cut(s, "=")
		if !ok {
			return nil, fmt.Errorf("entitydb: --set %q is not in key=value form", s)
		}
		out[k] = v
	}
	return out, nil
}
