package polygon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum"

	"github.com/icon-project/minthub/chain"
	"github.com/icon-project/minthub/common/errors"
	"github.com/icon-project/minthub/common/log"
)

func TestTokenID_Deterministic(t *testing.T) {
	a := tokenID("mint-1")
	b := tokenID("mint-1")
	c := tokenID("mint-2")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestParseTokenAddress(t *testing.T) {
	id := tokenID("mint-1")
	addr := "0x52908400098527886E0F7030069857D2E4169EE7:" + id.String()

	parsed, err := parseTokenAddress(addr)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = parseTokenAddress("0x52908400098527886E0F7030069857D2E4169EE7")
	assert.Error(t, err)
	_, err = parseTokenAddress("0x5290:abc")
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		msg  string
		code errors.Code
	}{
		{"Post http://localhost:8545: connection refused", chain.ChainUnavailableError},
		{"nonce too low", chain.ChainUnavailableError},
		{"replacement transaction underpriced", chain.ChainUnavailableError},
		{"insufficient funds for gas * price + value", chain.InsufficientChainFundsError},
		{"execution reverted: ERC721: invalid token ID", chain.ChainRejectedError},
	}
	for _, c := range cases {
		err := normalize(errors.New(c.msg), "SendTransaction")
		assert.Equalf(t, c.code, errors.CodeOf(err), "msg=%s", c.msg)
	}
	assert.Equal(t, chain.ChainNotFoundError,
		errors.CodeOf(normalize(ethereum.NotFound, "TransactionReceipt")))
	assert.NoError(t, normalize(nil, "SendTransaction"))
}

func TestEditionABI(t *testing.T) {
	// ABI must parse and expose the four operations.
	cfg := &Config{
		RPCEndpoint:     "http://localhost:8545",
		PrivateKey:      "fad9c8855b740a0b7ed4c221dbad0f33a83a49cad6b3fe8d5817ac83d38b6a19",
		ContractAddress: "0x52908400098527886E0F7030069857D2E4169EE7",
		ChainID:         80001,
	}
	e, err := NewEdition(cfg, log.GlobalLogger())
	require.NoError(t, err)
	for _, name := range []string{"createEdition", "safeMint", "setTokenURI", "transferFrom"} {
		_, ok := e.abi.Methods[name]
		assert.Truef(t, ok, "method %s", name)
	}
	assert.NoError(t, e.ValidateAddress("0x52908400098527886E0F7030069857D2E4169EE7"))
	assert.Error(t, e.ValidateAddress("not-an-address"))
}
