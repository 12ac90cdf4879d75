package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icon-project/minthub/common/log"
)

func TestNewNode_MemoryBacked(t *testing.T) {
	cfg := &Config{
		BaseDir: t.TempDir(),
		DBType:  "mapdb",
		Credits: CreditsConfig{Balance: 100},
	}
	n, err := NewNode(cfg, log.GlobalLogger())
	require.NoError(t, err)
	require.NotNil(t, n)

	// no chain configured; the registry stays empty
	assert.Empty(t, n.registry.Supported())
	assert.NotNil(t, n.store)
	assert.NotNil(t, n.svc)
	assert.NotNil(t, n.srv)
	assert.NoError(t, n.database.Close())
}
