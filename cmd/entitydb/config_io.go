package main

import (
	"os"

	"gopkg.in/yaml.v2"

	"entitydb/pkg/replicaconfig"
)

func marshalConfig(cfg replicaconfig.Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

func writeFileAtomic(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}
