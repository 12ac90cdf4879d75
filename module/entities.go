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
	"encoding/json"
)

// EntityStatus is the client-visible status of a drop, mint or collection.
// It is derived from the entity's current transaction attempt and never
// written independently of it.
type EntityStatus string

const (
	StatusPending EntityStatus = "pending"
	StatusCreated EntityStatus = "created"
	StatusMinted  EntityStatus = "minted"
	StatusFailed  EntityStatus = "failed"
)

// Collection is the on-chain grouping container for a drop's mints.
// Address is set exactly once, when the create operation confirms.
type Collection struct {
	ID         string
	Project    string
	Blockchain Blockchain
	Address    string
	Signature  string
	Status     EntityStatus
	CreatedAt  int64
}

func (c *Collection) Ref() EntityRef {
	return EntityRef{Kind: KindCollection, ID: c.ID}
}

// Drop is the client-managed logical NFT offering.
type Drop struct {
	ID         string
	Collection string
	Project    string
	Metadata   json.RawMessage
	Supply     int64 // 0 means unlimited
	Minted     int64
	Status     EntityStatus
	Paused     bool
	CreatedAt  int64
}

func (d *Drop) Ref() EntityRef {
	return EntityRef{Kind: KindDrop, ID: d.ID}
}

// SupplyLeft reports whether another mint may be issued from the drop.
func (d *Drop) SupplyLeft() bool {
	return d.Supply == 0 || d.Minted < d.Supply
}

// Mint is one issued NFT instance. Address is set exactly once, when the
// mint operation confirms.
type Mint struct {
	ID         string
	Drop       string
	Collection string
	Owner      string
	Address    string
	Signature  string
	Metadata   json.RawMessage
	Status     EntityStatus
	CreatedAt  int64
}

func (m *Mint) Ref() EntityRef {
	return EntityRef{Kind: KindMint, ID: m.ID}
}

// TransferRecord is one requested ownership change of a mint.
type TransferRecord struct {
	ID        string
	Mint      string
	Sender    string
	Recipient string
	Signature string
	Status    EntityStatus
	CreatedAt int64
}

func (t *TransferRecord) Ref() EntityRef {
	return EntityRef{Kind: KindTransfer, ID: t.ID}
}

// ProjectWallet is the treasury address a project uses as collection
// authority on one blockchain. Only the public address is kept; custody
// is external.
type ProjectWallet struct {
	Project    string
	Blockchain Blockchain
	Address    string
}
