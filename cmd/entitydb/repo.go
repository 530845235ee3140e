package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"entitydb/pkg/clock"
	"entitydb/pkg/entity"
	"entitydb/pkg/entitystore"
	"entitydb/pkg/idgen"
	"entitydb/pkg/replicaconfig"
	"entitydb/pkg/repository"
	"entitydb/pkg/storageadapter"
)

// itemType is the single generic entity type the CLI registers: a
// schemaless bag of fields, since the CLI has no compile-time notion
// of a caller's domain types.
const itemType = "item"

func newRegistry() *entity.Registry {
	reg := entity.NewRegistry()
	reg.Register(itemType, func() *entity.Entity { return &entity.Entity{} })
	return reg
}

func indexConfigs() []entitystore.IndexConfig {
	return []entitystore.IndexConfig{
		{Name: "byType", Fields: []entitystore.Field{{Name: entitystore.TypeField, AllowedTypes: []string{itemType}}}},
	}
}

type loggingAdapter interface {
	SetLogger(*zap.SugaredLogger)
}

func buildAdapter(cfg replicaconfig.Config, log *zap.SugaredLogger) (storageadapter.Adapter, error) {
	var (
		adapter storageadapter.Adapter
		err     error
	)
	switch cfg.Adapter {
	case replicaconfig.AdapterMemory:
		adapter = storageadapter.NewMemory()
	case replicaconfig.AdapterFile:
		adapter, err = storageadapter.OpenFile(cfg.DataDir)
	case replicaconfig.AdapterCachedRemote:
		var backing storageadapter.Adapter
		backing, err = storageadapter.OpenFile(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		adapter, err = storageadapter.NewCachedRemote(backing)
	default:
		return nil, fmt.Errorf("entitydb: unsupported adapter kind %q", cfg.Adapter)
	}
	if err != nil {
		return nil, err
	}
	if la, ok := adapter.(loggingAdapter); ok {
		la.SetLogger(log)
	}
	return adapter, nil
}

// openRepo opens (or, for a never-seen-before branch, lazily
// registers) the replica's repository against the configured adapter.
// Every CLI invocation is a fresh process, so there is no long-lived
// Repository: state always comes back from the adapter.
func openRepo(ctx context.Context, flags *globalFlags) (*repository.Repository, *zap.SugaredLogger, func() error, error) {
	log, err := newLogger(flags.verbose)
	if err != nil {
		return nil, nil, nil, err
	}
	cfg, err := resolveConfig(flags)
	if err != nil {
		return nil, nil, nil, err
	}
	adapter, err := buildAdapter(cfg, log)
	if err != nil {
		return nil, nil, nil, err
	}

	r, err := repository.Open(ctx, repository.Options{
		Registry:     newRegistry(),
		IndexConfigs: indexConfigs(),
		Branch:       cfg.DefaultBranch,
		Adapter:      adapter,
		Clock:        clock.System{},
		IDs:          idgen.UUID{},
		Logger:       log,
		ReplicaId:    cfg.ReplicaId,
	})
	if err != nil {
		_ = adapter.Close()
		return nil, nil, nil, err
	}
	if err := r.EnsureBranch(ctx); err != nil {
		_ = adapter.Close()
		return nil, nil, nil, err
	}
	return r, log, func() error {
		r.Close()
		return adapter.Close()
	}, nil
}
