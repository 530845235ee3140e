package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"entitydb/pkg/replicaconfig"
)

// globalFlags holds the persistent flags every subcommand reads
// through resolveConfig, mirroring the replicaId/branch/dataDir/adapter
// shape of replicaconfig.Config.
type globalFlags struct {
	configPath string
	replicaId  string
	branch     string
	dataDir    string
	adapter    string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "entitydb",
		Short:         "Inspect and mutate a versioned, branch-reconciling entity store",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "path to a replica config YAML file")
	pf.StringVar(&flags.replicaId, "replica", "", "replica id (defaults to the config file's value)")
	pf.StringVar(&flags.branch, "branch", "", "branch name (defaults to the replica id)")
	pf.StringVar(&flags.dataDir, "data-dir", "./entitydb-data", "data directory for the file adapter")
	pf.StringVar(&flags.adapter, "adapter", "", "adapter kind: memory, file, or cached-remote (default file)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug-level logging")

	root.AddCommand(
		newInitCmd(flags),
		newPutCmd(flags),
		newGetCmd(flags),
		newRmCmd(flags),
		newLogCmd(flags),
		newStatusCmd(flags),
		newResetCmd(flags),
		newPullCmd(flags),
	)
	return root
}

// newLogger builds the process-wide logger from verbosity: production
// config at info level by default, debug when --verbose is set.
func newLogger(verbose bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// resolveConfig merges a loaded config file (if --config was given)
// with flag overrides, falling back to replicaconfig.Default when no
// config file is present.
func resolveConfig(flags *globalFlags) (replicaconfig.Config, error) {
	var cfg replicaconfig.Config
	if flags.configPath != "" {
		loaded, err := replicaconfig.Load(flags.configPath)
		if err != nil {
			return replicaconfig.Config{}, err
		}
		cfg = loaded
	} else {
		replicaId := flags.replicaId
		if replicaId == "" {
			replicaId = "default"
		}
		cfg = replicaconfig.Default(replicaId, flags.dataDir)
	}

	if flags.replicaId != "" {
		cfg.ReplicaId = flags.replicaId
	}
	if flags.branch != "" {
		cfg.DefaultBranch = flags.branch
	}
	if flags.dataDir != "./entitydb-data" || cfg.DataDir == "" {
		cfg.DataDir = flags.dataDir
	}
	if flags.adapter != "" {
		cfg.Adapter = replicaconfig.AdapterKind(flags.adapter)
	}
	if cfg.DefaultBranch == "" {
		cfg.DefaultBranch = cfg.ReplicaId
	}
	return cfg, cfg.Validate()
}
