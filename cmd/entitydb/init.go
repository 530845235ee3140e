package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"entitydb/pkg/replicaconfig"
)

func newInitCmd(flags *globalFlags) *cobra.Command {
	var writeConfigPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Register this replica's branch and write a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, log, closeAdapter, err := openRepo(ctx, flags)
			if err != nil {
				return err
			}
			defer closeAdapter()

			log.Infow("replica initialized", "branch", r.CurrentBranch())
			fmt.Fprintf(cmd.OutOrStdout(), "initialized branch %q\n", r.CurrentBranch())

			if writeConfigPath != "" {
				cfg, err := resolveConfig(flags)
				if err != nil {
					return err
				}
				if err := writeConfig(writeConfigPath, cfg); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote config to %s\n", writeConfigPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&writeConfigPath, "write-config", "", "also write the resolved config to this path")
	return cmd
}

func writeConfig(path string, cfg replicaconfig.Config) error {
	data, err := marshalConfig(cfg)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}
