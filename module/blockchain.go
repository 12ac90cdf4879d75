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
	"github.com/icon-project/minthub/common/errors"
)

// Blockchain identifies the target chain of a collection. The value is
// recorded on the collection when its first request is accepted and every
// later operation resolves its adapter from it.
type Blockchain string

const (
	BlockchainSolana   Blockchain = "solana"
	BlockchainPolygon  Blockchain = "polygon"
	BlockchainEthereum Blockchain = "ethereum"
)

func ParseBlockchain(s string) (Blockchain, error) {
	switch bc := Blockchain(s); bc {
	case BlockchainSolana, BlockchainPolygon, BlockchainEthereum:
		return bc, nil
	default:
		return "", errors.IllegalArgumentError.Errorf("UnknownBlockchain(name=%s)", s)
	}
}

func (bc Blockchain) String() string {
	return string(bc)
}

// OperationKind is the kind of a requested operation.
type OperationKind string

const (
	OpCreate   OperationKind = "create"
	OpMint     OperationKind = "mint"
	OpUpdate   OperationKind = "update"
	OpTransfer OperationKind = "transfer"
	OpRetry    OperationKind = "retry"
)

func ParseOperationKind(s string) (OperationKind, error) {
	switch op := OperationKind(s); op {
	case OpCreate, OpMint, OpUpdate, OpTransfer, OpRetry:
		return op, nil
	default:
		return "", errors.IllegalArgumentError.Errorf("UnknownOperation(name=%s)", s)
	}
}

// EntityKind is the kind of the entity an operation targets.
type EntityKind string

const (
	KindCollection EntityKind = "collection"
	KindDrop       EntityKind = "drop"
	KindMint       EntityKind = "mint"
	KindTransfer   EntityKind = "transfer"
)

func ParseEntityKind(s string) (EntityKind, error) {
	switch k := EntityKind(s); k {
	case KindCollection, KindDrop, KindMint, KindTransfer:
		return k, nil
	default:
		return "", errors.IllegalArgumentError.Errorf("UnknownEntityKind(name=%s)", s)
	}
}

// EntityRef points at one drop, mint, collection or transfer record.
type EntityRef struct {
	Kind EntityKind `json:"kind" validate:"required"`
	ID   string     `json:"id" validate:"required"`
}

// Key returns the serialization key of the reference. All per-entity
// ordering (dispatcher lanes, current-attempt gates) hangs off this key.
func (r EntityRef) Key() string {
	return string(r.Kind) + "/" + r.ID
}

func (r EntityRef) String() string {
	return r.Key()
}
