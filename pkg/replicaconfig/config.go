// Package replicaconfig loads the per-replica configuration a
// Repository is opened with: device/replica id, default branch name,
// data directory, and which storage adapter kind to construct. Backed
// by gopkg.in/yaml.v2, matching the teacher corpus's config-file
// convention.
package replicaconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// AdapterKind selects which storageadapter.Adapter a replica wires up.
type AdapterKind string

const (
	AdapterMemory       AdapterKind = "memory"
	AdapterFile         AdapterKind = "file"
	AdapterCachedRemote AdapterKind = "cached-remote"
)

// Config is one replica's configuration.
type Config struct {
	ReplicaId     string      `yaml:"replicaId"`
	DefaultBranch string      `yaml:"defaultBranch"`
	DataDir       string      `yaml:"dataDir"`
	Adapter       AdapterKind `yaml:"adapter"`
	RemoteURL     string      `yaml:"remoteURL,omitempty"`
}

// Default returns a Config with the file adapter and a branch named
// after replicaId, the shape cmd/entitydb starts from.
func Default(replicaId, dataDir string) Config {
	return Config{
		ReplicaId:     replicaId,
		DefaultBranch: replicaId,
		DataDir:       dataDir,
		Adapter:       AdapterFile,
	}
}

// Load reads and parses a replica config from a YAML file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("replicaconfig: reading %q: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("replicaconfig: parsing %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the required fields are present.
func (c Config) Validate() error {
	if c.ReplicaId == "" {
		return fmt.Errorf("replicaconfig: replicaId is required")
	}
	if c.DefaultBranch == "" {
		return fmt.Errorf("replicaconfig: defaultBranch is required")
	}
	switch c.Adapter {
	case AdapterMemory, AdapterFile, AdapterCachedRemote:
	default:
		return fmt.Errorf("replicaconfig: unknown adapter kind %q", c.Adapter)
	}
	if c.Adapter == AdapterFile && c.DataDir == "" {
		return fmt.Errorf("replicaconfig: dataDir is required for the file adapter")
	}
	return nil
}
