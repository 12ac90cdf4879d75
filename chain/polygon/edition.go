/*
 * Copyright 2023 ICON Foundation
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package polygon

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/icon-project/minthub/chain"
	"github.com/icon-project/minthub/common/log"
	"github.com/icon-project/minthub/module"
)

// editionABI is the surface of the edition-drop contract the hub
// operates. The contract is deployed once per environment and keeps
// per-collection state internally, keyed by collection ID.
const editionABI = `[
  {"type":"function","name":"createEdition","inputs":[
    {"name":"collectionId","type":"uint256"},
    {"name":"name","type":"string"},
    {"name":"symbol","type":"string"},
    {"name":"baseURI","type":"string"},
    {"name":"maxSupply","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"safeMint","inputs":[
    {"name":"to","type":"address"},
    {"name":"tokenId","type":"uint256"},
    {"name":"uri","type":"string"}],"outputs":[]},
  {"type":"function","name":"setTokenURI","inputs":[
    {"name":"tokenId","type":"uint256"},
    {"name":"uri","type":"string"}],"outputs":[]},
  {"type":"function","name":"transferFrom","inputs":[
    {"name":"from","type":"address"},
    {"name":"to","type":"address"},
    {"name":"tokenId","type":"uint256"}],"outputs":[]}
]`

const defaultGasLimit = 300000

type Config struct {
	RPCEndpoint     string `json:"rpc_endpoint"`
	PrivateKey      string `json:"private_key"`
	ContractAddress string `json:"contract_address"`
	ChainID         int64  `json:"chain_id"`
	GasLimit        uint64 `json:"gas_limit,omitempty"`
}

// Edition drives NFT operations through the edition-drop contract with
// raw signed transactions. No receipt wait happens here; the executor
// polls CheckStatus.
type Edition struct {
	cli      *ethclient.Client
	abi      abi.ABI
	key      *ecdsa.PrivateKey
	from     ethcommon.Address
	contract ethcommon.Address
	chainID  *big.Int
	gasLimit uint64
	log      log.Logger
}

var _ module.Edition = (*Edition)(nil)

func NewEdition(cfg *Config, logger log.Logger) (*Edition, error) {
	parsed, err := abi.JSON(strings.NewReader(editionABI))
	if err != nil {
		return nil, err
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, chain.ChainRejectedError.Wrap(err, "InvalidPrivateKey")
	}
	if !ethcommon.IsHexAddress(cfg.ContractAddress) {
		return nil, chain.ChainRejectedError.Errorf("InvalidContractAddress(addr=%s)", cfg.ContractAddress)
	}
	cli, err := ethclient.Dial(cfg.RPCEndpoint)
	if err != nil {
		return nil, normalize(err, "Dial")
	}
	gasLimit := cfg.GasLimit
	if gasLimit == 0 {
		gasLimit = defaultGasLimit
	}
	return &Edition{
		cli:      cli,
		abi:      parsed,
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		contract: ethcommon.HexToAddress(cfg.ContractAddress),
		chainID:  big.NewInt(cfg.ChainID),
		gasLimit: gasLimit,
		log: logger.WithFields(log.Fields{
			log.FieldKeyChain: module.BlockchainPolygon,
		}),
	}, nil
}

func (e *Edition) Blockchain() module.Blockchain {
	return module.BlockchainPolygon
}

func (e *Edition) ValidateAddress(addr string) error {
	if !ethcommon.IsHexAddress(addr) {
		return chain.ChainRejectedError.Errorf("InvalidAddress(addr=%s)", addr)
	}
	return nil
}

// tokenID derives the deterministic ERC-721 token ID of an entity, so a
// resubmitted request maps to the same token and a transfer can address
// the token without extra chain reads.
func tokenID(entityID string) *big.Int {
	h := crypto.Keccak256([]byte(entityID))
	return new(big.Int).SetBytes(h[:8])
}

// tokenAddress renders the contract-scoped token reference recorded as
// the entity's on-chain address.
func (e *Edition) tokenAddress(id *big.Int) string {
	return e.contract.Hex() + ":" + id.String()
}

func parseTokenAddress(s string) (*big.Int, error) {
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return nil, chain.ChainRejectedError.Errorf("InvalidTokenAddress(addr=%s)", s)
	}
	id, ok := new(big.Int).SetString(s[idx+1:], 10)
	if !ok {
		return nil, chain.ChainRejectedError.Errorf("InvalidTokenAddress(addr=%s)", s)
	}
	return id, nil
}

func (e *Edition) submit(ctx context.Context, input []byte) (string, error) {
	nonce, err := e.cli.PendingNonceAt(ctx, e.from)
	if err != nil {
		return "", normalize(err, "PendingNonceAt")
	}
	gasPrice, err := e.cli.SuggestGasPrice(ctx)
	if err != nil {
		return "", normalize(err, "SuggestGasPrice")
	}
	tx := ethtypes.NewTransaction(nonce, e.contract, new(big.Int), e.gasLimit, gasPrice, input)
	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(e.chainID), e.key)
	if err != nil {
		return "", normalize(err, "SignTx")
	}
	if err := e.cli.SendTransaction(ctx, signed); err != nil {
		return "", normalize(err, "SendTransaction")
	}
	hash := signed.Hash().Hex()
	e.log.WithFields(log.Fields{"tx": hash}).Debugf("submitted transaction")
	return hash, nil
}

func (e *Edition) CreateCollection(ctx context.Context, spec *module.CollectionSpec) (*module.TxResult, error) {
	id := tokenID(spec.Collection)
	input, err := e.abi.Pack("createEdition", id, spec.Name, spec.Symbol,
		spec.MetadataURI, big.NewInt(spec.Supply))
	if err != nil {
		return nil, chain.ChainRejectedError.Wrap(err, "PackCreateEdition")
	}
	hash, err := e.submit(ctx, input)
	if err != nil {
		return nil, err
	}
	return &module.TxResult{
		Address: e.tokenAddress(id),
		TxRef:   hash,
	}, nil
}

func (e *Edition) MintToCollection(ctx context.Context, spec *module.MintSpec) (*module.TxResult, error) {
	if err := e.ValidateAddress(spec.Recipient); err != nil {
		return nil, err
	}
	id := tokenID(spec.Mint)
	input, err := e.abi.Pack("safeMint", ethcommon.HexToAddress(spec.Recipient),
		id, spec.MetadataURI)
	if err != nil {
		return nil, chain.ChainRejectedError.Wrap(err, "PackSafeMint")
	}
	hash, err := e.submit(ctx, input)
	if err != nil {
		return nil, err
	}
	return &module.TxResult{
		Address: e.tokenAddress(id),
		TxRef:   hash,
	}, nil
}

func (e *Edition) UpdateMetadata(ctx context.Context, spec *module.UpdateSpec) (*module.TxResult, error) {
	id, err := parseTokenAddress(spec.TargetAddress)
	if err != nil {
		return nil, err
	}
	input, err := e.abi.Pack("setTokenURI", id, spec.MetadataURI)
	if err != nil {
		return nil, chain.ChainRejectedError.Wrap(err, "PackSetTokenURI")
	}
	hash, err := e.submit(ctx, input)
	if err != nil {
		return nil, err
	}
	return &module.TxResult{TxRef: hash}, nil
}

func (e *Edition) TransferMint(ctx context.Context, spec *module.TransferSpec) (*module.TxResult, error) {
	if err := e.ValidateAddress(spec.Recipient); err != nil {
		return nil, err
	}
	id, err := parseTokenAddress(spec.MintAddress)
	if err != nil {
		return nil, err
	}
	from := e.from
	if spec.Owner != "" {
		if err := e.ValidateAddress(spec.Owner); err != nil {
			return nil, err
		}
		from = ethcommon.HexToAddress(spec.Owner)
	}
	input, err := e.abi.Pack("transferFrom", from,
		ethcommon.HexToAddress(spec.Recipient), id)
	if err != nil {
		return nil, chain.ChainRejectedError.Wrap(err, "PackTransferFrom")
	}
	hash, err := e.submit(ctx, input)
	if err != nil {
		return nil, err
	}
	return &module.TxResult{TxRef: hash}, nil
}

func (e *Edition) CheckStatus(ctx context.Context, txRef string) (module.TxStatus, error) {
	receipt, err := e.cli.TransactionReceipt(ctx, ethcommon.HexToHash(txRef))
	if err != nil {
		if err == ethereum.NotFound {
			return module.TxPending, nil
		}
		return module.TxPending, normalize(err, "TransactionReceipt")
	}
	if receipt.Status == ethtypes.ReceiptStatusSuccessful {
		return module.TxConfirmed, nil
	}
	return module.TxFailed, nil
}
