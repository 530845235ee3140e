package replicaconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_ValidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "replica.yaml")
	require.NoError(t, os.WriteFile(path, []byte("replicaId: device-1\ndefaultBranch: device-1\ndataDir: "+dir+"\nadapter: file\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "device-1", cfg.ReplicaId)
	require.Equal(t, AdapterFile, cfg.Adapter)
}

func TestValidate_RejectsUnknownAdapter(t *testing.T) {
	cfg := Config{ReplicaId: "d1", DefaultBranch: "d1", Adapter: "bogus"}
	require.Error(t, cfg.Validate())
}

func TestValidate_FileAdapterRequiresDataDir(t *testing.T) {
	cfg := Config{ReplicaId: "d1", DefaultBranch: "d1", Adapter: AdapterFile}
	require.Error(t, cfg.Validate())
}
