package chain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icon-project/minthub/common/errors"
	"github.com/icon-project/minthub/module"
)

type stubEdition struct {
	bc module.Blockchain
}

func (s *stubEdition) Blockchain() module.Blockchain        { return s.bc }
func (s *stubEdition) ValidateAddress(addr string) error    { return nil }
func (s *stubEdition) CreateCollection(ctx context.Context, spec *module.CollectionSpec) (*module.TxResult, error) {
	return nil, ErrChainUnavailable
}
func (s *stubEdition) MintToCollection(ctx context.Context, spec *module.MintSpec) (*module.TxResult, error) {
	return nil, ErrChainUnavailable
}
func (s *stubEdition) UpdateMetadata(ctx context.Context, spec *module.UpdateSpec) (*module.TxResult, error) {
	return nil, ErrChainUnavailable
}
func (s *stubEdition) TransferMint(ctx context.Context, spec *module.TransferSpec) (*module.TxResult, error) {
	return nil, ErrChainUnavailable
}
func (s *stubEdition) CheckStatus(ctx context.Context, txRef string) (module.TxStatus, error) {
	return module.TxPending, nil
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry()
	sol := &stubEdition{bc: module.BlockchainSolana}
	r.Register(sol)

	ed, err := r.Resolve(module.BlockchainSolana)
	require.NoError(t, err)
	assert.Same(t, module.Edition(sol), ed)

	_, err = r.Resolve(module.BlockchainEthereum)
	assert.Error(t, err)
	assert.Equal(t, UnknownBlockchainError, errors.CodeOf(err))
}

func TestRegistry_Supported(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.Supported())

	r.Register(&stubEdition{bc: module.BlockchainSolana})
	r.Register(&stubEdition{bc: module.BlockchainPolygon})

	assert.Equal(t, []module.Blockchain{
		module.BlockchainPolygon,
		module.BlockchainSolana,
	}, r.Supported())
}

func TestErrorKinds(t *testing.T) {
	assert.True(t, IsTransient(ErrChainUnavailable))
	assert.False(t, IsTransient(ErrChainRejected))

	wrapped := errors.Wrapc(errors.New("rpc: connection refused"), ChainUnavailableError, "send failed")
	assert.True(t, IsTransient(wrapped))
	assert.Equal(t, "ChainUnavailable", KindOf(wrapped))
	assert.Equal(t, "NotFound", KindOf(ErrChainNotFound))
	assert.Equal(t, "Unknown", KindOf(errors.New("plain")))
}
