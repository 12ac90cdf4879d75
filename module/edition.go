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

package module

import (
	"context"
)

// TxStatus is the confirmation state of a submitted chain transaction.
type TxStatus int

const (
	TxPending TxStatus = iota
	TxConfirmed
	TxFailed
)

func (s TxStatus) String() string {
	switch s {
	case TxPending:
		return "pending"
	case TxConfirmed:
		return "confirmed"
	case TxFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TxResult is the result of a chain-mutating operation. Confirmed
// distinguishes a transaction already final from one merely accepted by
// the chain; the executor polls CheckStatus for the latter.
type TxResult struct {
	// Address is the chain address of the created entity, when the
	// operation creates one (collection or mint address).
	Address string

	// TxRef is the chain transaction signature or hash.
	TxRef string

	Confirmed bool
}

// CollectionSpec carries the payload of a create-collection operation.
type CollectionSpec struct {
	Collection           string
	Name                 string
	Symbol               string
	MetadataURI          string
	SellerFeeBasisPoints uint16
	Supply               int64 // 0 means unlimited
	Authority            string
}

// MintSpec carries the payload of a mint operation.
type MintSpec struct {
	Mint                 string
	CollectionAddress    string
	Recipient            string
	Name                 string
	Symbol               string
	MetadataURI          string
	SellerFeeBasisPoints uint16
}

// UpdateSpec carries the payload of a metadata update.
type UpdateSpec struct {
	TargetAddress        string
	Name                 string
	Symbol               string
	MetadataURI          string
	SellerFeeBasisPoints uint16
}

// TransferSpec carries the payload of a mint transfer.
type TransferSpec struct {
	MintAddress string
	Owner       string
	Recipient   string
}

// Edition is the chain adapter contract. One implementation exists per
// supported blockchain; the executor never touches chain SDKs directly.
//
// Implementations do not guarantee idempotency of the mutating
// operations. The executor keeps at most one outstanding submission per
// entity and operation, and resumes through CheckStatus after a crash.
// Every returned error carries one of the chain error codes; the raw SDK
// message is preserved by wrapping.
type Edition interface {
	// Blockchain returns which chain this adapter targets.
	Blockchain() Blockchain

	// ValidateAddress checks the chain-specific address format. It is
	// called before any credits charge so malformed recipients are
	// rejected for free.
	ValidateAddress(addr string) error

	// CreateCollection creates the on-chain collection container.
	CreateCollection(ctx context.Context, spec *CollectionSpec) (*TxResult, error)

	// MintToCollection issues one unit into the collection.
	MintToCollection(ctx context.Context, spec *MintSpec) (*TxResult, error)

	// UpdateMetadata rewrites the metadata of a mint or collection.
	UpdateMetadata(ctx context.Context, spec *UpdateSpec) (*TxResult, error)

	// TransferMint moves a mint to a new owner.
	TransferMint(ctx context.Context, spec *TransferSpec) (*TxResult, error)

	// CheckStatus reports the confirmation state of a submitted
	// transaction. It is read-only and safe to call any number of times.
	CheckStatus(ctx context.Context, txRef string) (TxStatus, error)
}

// EditionRegistry resolves the adapter for a blockchain.
type EditionRegistry interface {
	Resolve(bc Blockchain) (Edition, error)
}
