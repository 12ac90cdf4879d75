package node

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icon-project/minthub/chain/solana"
)

func TestConfig_FillEmpty(t *testing.T) {
	cfg := &Config{}
	cfg.FillEmpty()
	assert.Equal(t, DefaultRPCAddr, cfg.RPCAddr)
	assert.Equal(t, DefaultDBType, cfg.DBType)
	assert.Equal(t, DefaultBaseDir, cfg.BaseDir)
	assert.Equal(t, "debug", cfg.LogLevel)

	cfg = &Config{RPCAddr: ":8888", DBType: "mapdb"}
	cfg.FillEmpty()
	assert.Equal(t, ":8888", cfg.RPCAddr)
	assert.Equal(t, "mapdb", cfg.DBType)
}

func TestConfig_SaveLoad(t *testing.T) {
	name := filepath.Join(t.TempDir(), "config.json")
	cfg := &Config{
		RPCAddr: ":9090",
		Solana: &solana.Config{
			RPCEndpoint: "https://api.devnet.solana.com",
			FeePayer:    "treasury",
		},
		Credits: CreditsConfig{
			Endpoint: "http://credits:8080",
			Timeout:  3 * time.Second,
		},
	}
	cfg.FillEmpty()
	require.NoError(t, cfg.Save(name))

	var loaded Config
	require.NoError(t, loaded.Load(name))
	assert.Equal(t, cfg.RPCAddr, loaded.RPCAddr)
	require.NotNil(t, loaded.Solana)
	assert.Equal(t, cfg.Solana.RPCEndpoint, loaded.Solana.RPCEndpoint)
	assert.Equal(t, cfg.Credits.Endpoint, loaded.Credits.Endpoint)
	assert.Equal(t, name, loaded.FilePath)

	assert.Error(t, loaded.Load(filepath.Join(t.TempDir(), "missing.json")))
}

func TestResolveAbsolute(t *testing.T) {
	assert.Equal(t, "/a/b", ResolveAbsolute("/a/config.json", "b"))
	assert.Equal(t, "/x", ResolveAbsolute("/a/config.json", "/x"))
	abs, _ := filepath.Abs("b")
	assert.Equal(t, abs, ResolveAbsolute("", "b"))
}
