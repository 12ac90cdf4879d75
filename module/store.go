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
	"time"
)

// RepairKind tells which ledger call the billing repair loop retries.
type RepairKind string

const (
	RepairFinalize RepairKind = "finalize"
	RepairReverse  RepairKind = "reverse"
)

// Reversal is a pending billing repair. It exists while a finalize or
// reverse call against the credits gate keeps failing; an un-settled
// charge is a billing bug, not a user-visible error, so the record
// survives restarts.
type Reversal struct {
	AuthID    string
	AttemptID string
	Kind      RepairKind
	Attempts  int
	NotBefore int64
}

// Store owns every persisted state transition of drops, mints,
// collections, transfers and their transaction attempts. All mutations
// are serialized internally; callers additionally keep per-entity order
// through the dispatcher.
type Store interface {
	PutCollection(c *Collection) error
	GetCollection(id string) (*Collection, error)

	PutDrop(d *Drop) error
	GetDrop(id string) (*Drop, error)
	ListDrops() ([]*Drop, error)

	PutMint(m *Mint) error
	GetMint(id string) (*Mint, error)
	ListMintsByDrop(dropID string) ([]*Mint, error)

	PutTransfer(t *TransferRecord) error
	GetTransfer(id string) (*TransferRecord, error)

	PutWallet(w *ProjectWallet) error
	GetWallet(project string, bc Blockchain) (*ProjectWallet, error)

	// CreateAttempt opens a new attempt for the entity and operation.
	// The attempt number is monotonically increasing per entity and
	// operation; prior is the superseded attempt when retrying, so the
	// held charge can be carried over.
	CreateAttempt(req RequestID, entity EntityRef, op OperationKind, bc Blockchain, prior *Attempt) (*Attempt, error)

	GetAttempt(id string) (*Attempt, error)
	AttemptByRequest(req RequestID) (*Attempt, error)
	CurrentAttempt(entity EntityRef, op OperationKind) (*Attempt, error)
	AttemptsByEntity(entity EntityRef, op OperationKind) ([]*Attempt, error)
	ListOpenAttempts() ([]*Attempt, error)

	// MarkSubmitted transitions pending → submitted. It must be
	// committed before the adapter is called so crash recovery can
	// resume through CheckStatus instead of resubmitting.
	MarkSubmitted(id string) (*Attempt, error)
	SetTxRef(id string, txRef string, address string) (*Attempt, error)
	MarkConfirmed(id string) (*Attempt, error)
	MarkFailedTransient(id string, code int, msg string, notBefore time.Time) (*Attempt, error)
	MarkFailedPermanent(id string, code int, msg string) (*Attempt, error)

	SetChargeHeld(id string, chargeID string) (*Attempt, error)
	SetChargeFinalized(id string) (*Attempt, error)
	SetChargeReversed(id string) (*Attempt, error)

	EnqueueReversal(r *Reversal) error
	RemoveReversal(authID string) error
	PendingReversals() ([]*Reversal, error)
}
