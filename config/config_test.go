package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testOwner = "0x1111111111111111111111111111111111111111"

func TestLoadWritesDefaultFileOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	require.Error(t, err, "first run must ask the operator to set the owner")
	require.Nil(t, cfg)
	require.FileExists(t, path)

	// The generated file still lacks an owner, so a plain reload fails too.
	cfg, err = Load(path)
	require.Error(t, err)
	require.Nil(t, cfg)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`OwnerAddress = "`+testOwner+`"`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:8645", cfg.RPCAddress)
	require.Equal(t, "./deald-data", cfg.DataDir)
	require.Equal(t, uint32(10), cfg.DefaultCommissionRate)
	require.Equal(t, 64, cfg.LogMaxSizeMB)
	require.Equal(t, 4, cfg.LogMaxBackups)
	require.False(t, cfg.AllowFaucet)

	owner := cfg.Owner()
	require.Equal(t, byte(0x11), owner[0])
	require.Equal(t, byte(0x11), owner[19])
}

func TestLoadHonoursExplicitValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
RPCAddress = "0.0.0.0:9000"
DataDir = "/var/lib/deald"
OwnerAddress = "` + testOwner + `"
DefaultCommissionRate = 25
AllowFaucet = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", cfg.RPCAddress)
	require.Equal(t, "/var/lib/deald", cfg.DataDir)
	require.Equal(t, uint32(25), cfg.DefaultCommissionRate)
	require.True(t, cfg.AllowFaucet)
}

func TestValidate(t *testing.T) {
	valid := &Config{OwnerAddress: testOwner, DefaultCommissionRate: 10}
	require.NoError(t, Validate(valid))

	require.Error(t, Validate(nil))
	require.Error(t, Validate(&Config{DefaultCommissionRate: 10}))
	require.Error(t, Validate(&Config{OwnerAddress: "not-an-address", DefaultCommissionRate: 10}))
	require.Error(t, Validate(&Config{OwnerAddress: testOwner, DefaultCommissionRate: 0}))
	require.Error(t, Validate(&Config{OwnerAddress: testOwner, DefaultCommissionRate: 100}))
}
