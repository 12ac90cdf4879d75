package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icon-project/minthub/chain"
	"github.com/icon-project/minthub/common/errors"
	"github.com/icon-project/minthub/common/log"
	"github.com/icon-project/minthub/module"
)

func newTestEdition(t *testing.T) *Edition {
	acc := types.NewAccount()
	raw, err := json.Marshal(bytesToInts(acc.PrivateKey))
	require.NoError(t, err)
	ed, err := NewEdition(&Config{
		RPCEndpoint: "http://localhost:8899",
		FeePayer:    string(raw),
	}, log.GlobalLogger())
	require.NoError(t, err)
	return ed
}

func bytesToInts(bs []byte) []int {
	ints := make([]int, len(bs))
	for i, b := range bs {
		ints[i] = int(b)
	}
	return ints
}

func TestParseKeypair(t *testing.T) {
	acc := types.NewAccount()

	intsJSON, err := json.Marshal(bytesToInts(acc.PrivateKey))
	require.NoError(t, err)
	parsed, err := parseKeypair(string(intsJSON))
	require.NoError(t, err)
	assert.Equal(t, acc.PublicKey, parsed.PublicKey)

	b64 := base64.StdEncoding.EncodeToString(acc.PrivateKey)
	parsed, err = parseKeypair(b64)
	require.NoError(t, err)
	assert.Equal(t, acc.PublicKey, parsed.PublicKey)

	_, err = parseKeypair("")
	assert.Error(t, err)
	_, err = parseKeypair("[1,2,3]")
	assert.Error(t, err)
	_, err = parseKeypair("!!not-base64!!")
	assert.Error(t, err)
}

func TestValidateAddress(t *testing.T) {
	ed := newTestEdition(t)

	acc := types.NewAccount()
	assert.NoError(t, ed.ValidateAddress(acc.PublicKey.ToBase58()))

	assert.Error(t, ed.ValidateAddress("0x52908400098527886E0F7030069857D2E4169EE7"))
	assert.Error(t, ed.ValidateAddress("abc"))
	assert.Error(t, ed.ValidateAddress(""))
}

func TestTransferMintValidatesOwner(t *testing.T) {
	ed := newTestEdition(t)

	mint := types.NewAccount()
	recipient := types.NewAccount()

	// the sender's token account derives from the recorded owner, so a
	// transfer without a valid owner never reaches the chain
	_, err := ed.TransferMint(context.Background(), &module.TransferSpec{
		MintAddress: mint.PublicKey.ToBase58(),
		Owner:       "not-an-address",
		Recipient:   recipient.PublicKey.ToBase58(),
	})
	assert.True(t, chain.ChainRejectedError.Equals(err))
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		msg  string
		code errors.Code
	}{
		{"Post http://localhost:8899: connection refused", chain.ChainUnavailableError},
		{"rpc response error: Blockhash not found", chain.ChainUnavailableError},
		{"rpc response error: node is behind by 100 slots", chain.ChainUnavailableError},
		{"Transaction simulation failed: Attempt to debit an account but found no record of a prior credit.", chain.InsufficientChainFundsError},
		{"insufficient lamports 0, need 2039280", chain.InsufficientChainFundsError},
		{"invalid param: could not find account", chain.ChainNotFoundError},
		{"Transaction simulation failed: Error processing Instruction 2: custom program error: 0x1", chain.ChainRejectedError},
	}
	for _, c := range cases {
		err := normalize(errors.New(c.msg), "SendTransaction")
		assert.Equalf(t, c.code, errors.CodeOf(err), "msg=%s", c.msg)
		assert.Contains(t, err.Error(), "SendTransaction")
	}
	assert.NoError(t, normalize(nil, "SendTransaction"))
}
