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

package solana

import (
	"context"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/associated_token_account"
	"github.com/blocto/solana-go-sdk/program/metaplex/token_metadata"
	"github.com/blocto/solana-go-sdk/program/system"
	"github.com/blocto/solana-go-sdk/program/token"
	"github.com/blocto/solana-go-sdk/rpc"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"

	"github.com/icon-project/minthub/chain"
	"github.com/icon-project/minthub/common/log"
	"github.com/icon-project/minthub/module"
)

// Edition drives NFT operations through the Metaplex token metadata
// program. The treasury keypair pays fees and acts as mint and update
// authority for every collection of the hub.
type Edition struct {
	cli      *client.Client
	feePayer types.Account
	log      log.Logger
}

var _ module.Edition = (*Edition)(nil)

func NewEdition(cfg *Config, logger log.Logger) (*Edition, error) {
	feePayer, err := parseKeypair(cfg.FeePayer)
	if err != nil {
		return nil, err
	}
	return &Edition{
		cli:      client.NewClient(cfg.RPCEndpoint),
		feePayer: feePayer,
		log: logger.WithFields(log.Fields{
			log.FieldKeyChain: module.BlockchainSolana,
		}),
	}, nil
}

func (e *Edition) Blockchain() module.Blockchain {
	return module.BlockchainSolana
}

func (e *Edition) ValidateAddress(addr string) error {
	bs, err := base58.Decode(addr)
	if err != nil {
		return chain.ChainRejectedError.Wrapf(err, "InvalidAddress(addr=%s)", addr)
	}
	if len(bs) != common.PublicKeyLength {
		return chain.ChainRejectedError.Errorf("InvalidAddress(addr=%s)", addr)
	}
	return nil
}

// mintNFT runs the Metaplex sequence shared by collection creation and
// minting: create mint account, initialize, write metadata, create the
// owner's token account, mint one unit, attach the master edition.
func (e *Edition) mintNFT(
	ctx context.Context,
	owner common.PublicKey,
	name, symbol, uri string,
	sellerFee uint16,
	maxSupply *uint64,
	collection *common.PublicKey,
) (*module.TxResult, error) {
	mint := types.NewAccount()

	ata, _, err := common.FindAssociatedTokenAddress(owner, mint.PublicKey)
	if err != nil {
		return nil, normalize(err, "FindAssociatedTokenAddress")
	}
	metadataPubkey, err := token_metadata.GetTokenMetaPubkey(mint.PublicKey)
	if err != nil {
		return nil, normalize(err, "GetTokenMetaPubkey")
	}
	masterEditionPubkey, err := token_metadata.GetMasterEdition(mint.PublicKey)
	if err != nil {
		return nil, normalize(err, "GetMasterEdition")
	}
	mintRent, err := e.cli.GetMinimumBalanceForRentExemption(ctx, token.MintAccountSize)
	if err != nil {
		return nil, normalize(err, "GetMinimumBalanceForRentExemption")
	}
	recent, err := e.cli.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, normalize(err, "GetLatestBlockhash")
	}

	var mdCollection *token_metadata.Collection
	if collection != nil {
		mdCollection = &token_metadata.Collection{Key: *collection}
	}

	tx, err := types.NewTransaction(types.NewTransactionParam{
		Signers: []types.Account{mint, e.feePayer},
		Message: types.NewMessage(types.NewMessageParam{
			FeePayer:        e.feePayer.PublicKey,
			RecentBlockhash: recent.Blockhash,
			Instructions: []types.Instruction{
				system.CreateAccount(system.CreateAccountParam{
					From:     e.feePayer.PublicKey,
					New:      mint.PublicKey,
					Owner:    common.TokenProgramID,
					Lamports: mintRent,
					Space:    token.MintAccountSize,
				}),
				token.InitializeMint(token.InitializeMintParam{
					Decimals:   0,
					Mint:       mint.PublicKey,
					MintAuth:   e.feePayer.PublicKey,
					FreezeAuth: &e.feePayer.PublicKey,
				}),
				token_metadata.CreateMetadataAccountV3(
					token_metadata.CreateMetadataAccountV3Param{
						Metadata:                metadataPubkey,
						Mint:                    mint.PublicKey,
						MintAuthority:           e.feePayer.PublicKey,
						UpdateAuthority:         e.feePayer.PublicKey,
						Payer:                   e.feePayer.PublicKey,
						UpdateAuthorityIsSigner: true,
						IsMutable:               true,
						Data: token_metadata.DataV2{
							Name:                 name,
							Symbol:               symbol,
							Uri:                  uri,
							SellerFeeBasisPoints: sellerFee,
							Creators: &[]token_metadata.Creator{
								{
									Address:  e.feePayer.PublicKey,
									Verified: true,
									Share:    100,
								},
							},
							Collection: mdCollection,
						},
					},
				),
				associated_token_account.CreateAssociatedTokenAccount(
					associated_token_account.CreateAssociatedTokenAccountParam{
						Funder:                 e.feePayer.PublicKey,
						Owner:                  owner,
						Mint:                   mint.PublicKey,
						AssociatedTokenAccount: ata,
					},
				),
				token.MintTo(token.MintToParam{
					Mint:   mint.PublicKey,
					To:     ata,
					Auth:   e.feePayer.PublicKey,
					Amount: 1,
				}),
				token_metadata.CreateMasterEditionV3(
					token_metadata.CreateMasterEditionParam{
						Edition:         masterEditionPubkey,
						Mint:            mint.PublicKey,
						UpdateAuthority: e.feePayer.PublicKey,
						MintAuthority:   e.feePayer.PublicKey,
						Metadata:        metadataPubkey,
						Payer:           e.feePayer.PublicKey,
						MaxSupply:       maxSupply,
					},
				),
			},
		}),
	})
	if err != nil {
		return nil, normalize(err, "NewTransaction")
	}

	sig, err := e.cli.SendTransaction(ctx, tx)
	if err != nil {
		return nil, normalize(err, "SendTransaction")
	}
	e.log.WithFields(log.Fields{
		"mint": mint.PublicKey.ToBase58(),
		"sig":  sig,
	}).Debugf("submitted nft mint")
	return &module.TxResult{
		Address: mint.PublicKey.ToBase58(),
		TxRef:   sig,
	}, nil
}

func (e *Edition) CreateCollection(ctx context.Context, spec *module.CollectionSpec) (*module.TxResult, error) {
	var maxSupply *uint64
	if spec.Supply > 0 {
		ms := uint64(spec.Supply)
		maxSupply = &ms
	}
	authority := e.feePayer.PublicKey
	if spec.Authority != "" {
		if err := e.ValidateAddress(spec.Authority); err != nil {
			return nil, err
		}
		authority = common.PublicKeyFromString(spec.Authority)
	}
	return e.mintNFT(ctx, authority, spec.Name, spec.Symbol, spec.MetadataURI,
		spec.SellerFeeBasisPoints, maxSupply, nil)
}

func (e *Edition) MintToCollection(ctx context.Context, spec *module.MintSpec) (*module.TxResult, error) {
	if err := e.ValidateAddress(spec.Recipient); err != nil {
		return nil, err
	}
	if err := e.ValidateAddress(spec.CollectionAddress); err != nil {
		return nil, err
	}
	recipient := common.PublicKeyFromString(spec.Recipient)
	collection := common.PublicKeyFromString(spec.CollectionAddress)
	maxSupply := uint64(1)
	return e.mintNFT(ctx, recipient, spec.Name, spec.Symbol, spec.MetadataURI,
		spec.SellerFeeBasisPoints, &maxSupply, &collection)
}

func (e *Edition) UpdateMetadata(ctx context.Context, spec *module.UpdateSpec) (*module.TxResult, error) {
	if err := e.ValidateAddress(spec.TargetAddress); err != nil {
		return nil, err
	}
	mint := common.PublicKeyFromString(spec.TargetAddress)
	metadataPubkey, err := token_metadata.GetTokenMetaPubkey(mint)
	if err != nil {
		return nil, normalize(err, "GetTokenMetaPubkey")
	}
	recent, err := e.cli.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, normalize(err, "GetLatestBlockhash")
	}
	tx, err := types.NewTransaction(types.NewTransactionParam{
		Signers: []types.Account{e.feePayer},
		Message: types.NewMessage(types.NewMessageParam{
			FeePayer:        e.feePayer.PublicKey,
			RecentBlockhash: recent.Blockhash,
			Instructions: []types.Instruction{
				token_metadata.UpdateMetadataAccountV2(
					token_metadata.UpdateMetadataAccountV2Param{
						MetadataAccount: metadataPubkey,
						UpdateAuthority: e.feePayer.PublicKey,
						Data: &token_metadata.DataV2{
							Name:                 spec.Name,
							Symbol:               spec.Symbol,
							Uri:                  spec.MetadataURI,
							SellerFeeBasisPoints: spec.SellerFeeBasisPoints,
							// updates replace the whole account data;
							// keep the creators written at mint
							Creators: &[]token_metadata.Creator{
								{
									Address:  e.feePayer.PublicKey,
									Verified: true,
									Share:    100,
								},
							},
						},
					},
				),
			},
		}),
	})
	if err != nil {
		return nil, normalize(err, "NewTransaction")
	}
	sig, err := e.cli.SendTransaction(ctx, tx)
	if err != nil {
		return nil, normalize(err, "SendTransaction")
	}
	return &module.TxResult{TxRef: sig}, nil
}

func (e *Edition) TransferMint(ctx context.Context, spec *module.TransferSpec) (*module.TxResult, error) {
	if err := e.ValidateAddress(spec.MintAddress); err != nil {
		return nil, err
	}
	if err := e.ValidateAddress(spec.Owner); err != nil {
		return nil, err
	}
	if err := e.ValidateAddress(spec.Recipient); err != nil {
		return nil, err
	}
	mint := common.PublicKeyFromString(spec.MintAddress)
	owner := common.PublicKeyFromString(spec.Owner)
	recipient := common.PublicKeyFromString(spec.Recipient)

	fromATA, _, err := common.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, normalize(err, "FindAssociatedTokenAddress")
	}
	toATA, _, err := common.FindAssociatedTokenAddress(recipient, mint)
	if err != nil {
		return nil, normalize(err, "FindAssociatedTokenAddress")
	}

	ins := make([]types.Instruction, 0, 2)
	toExists, err := e.accountExists(ctx, toATA.ToBase58())
	if err != nil {
		return nil, err
	}
	if !toExists {
		ins = append(ins, associated_token_account.CreateAssociatedTokenAccount(
			associated_token_account.CreateAssociatedTokenAccountParam{
				Funder:                 e.feePayer.PublicKey,
				Owner:                  recipient,
				Mint:                   mint,
				AssociatedTokenAccount: toATA,
			},
		))
	}
	ins = append(ins, token.Transfer(token.TransferParam{
		From:   fromATA,
		To:     toATA,
		Auth:   owner,
		Amount: 1,
	}))

	recent, err := e.cli.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, normalize(err, "GetLatestBlockhash")
	}
	tx, err := types.NewTransaction(types.NewTransactionParam{
		Signers: []types.Account{e.feePayer},
		Message: types.NewMessage(types.NewMessageParam{
			FeePayer:        e.feePayer.PublicKey,
			RecentBlockhash: recent.Blockhash,
			Instructions:    ins,
		}),
	})
	if err != nil {
		return nil, normalize(err, "NewTransaction")
	}
	sig, err := e.cli.SendTransaction(ctx, tx)
	if err != nil {
		return nil, normalize(err, "SendTransaction")
	}
	return &module.TxResult{TxRef: sig}, nil
}

func (e *Edition) CheckStatus(ctx context.Context, txRef string) (module.TxStatus, error) {
	status, err := e.cli.GetSignatureStatus(ctx, txRef)
	if err != nil {
		return module.TxPending, normalize(err, "GetSignatureStatus")
	}
	if status == nil {
		// unknown to the cluster yet; the watchdog decides when to give up
		return module.TxPending, nil
	}
	if status.Err != nil {
		return module.TxFailed, nil
	}
	if status.ConfirmationStatus != nil {
		switch *status.ConfirmationStatus {
		case rpc.CommitmentFinalized, rpc.CommitmentConfirmed:
			return module.TxConfirmed, nil
		}
	}
	return module.TxPending, nil
}

func (e *Edition) accountExists(ctx context.Context, address string) (bool, error) {
	_, err := e.cli.GetAccountInfo(ctx, address)
	if err == nil {
		return true, nil
	}
	nerr := normalize(err, "GetAccountInfo")
	if chain.ChainNotFoundError.Equals(nerr) {
		return false, nil
	}
	return false, nerr
}
