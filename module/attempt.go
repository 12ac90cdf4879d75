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

// AttemptState is the state of one transaction attempt.
//
//	Pending → Submitted → { Confirmed | FailedTransient | FailedPermanent }
//
// Confirmed and FailedPermanent are terminal. FailedTransient is resolved
// by the retry coordinator, either into a new pending attempt or into
// FailedPermanent when attempts are exhausted.
type AttemptState string

const (
	AttemptPending         AttemptState = "pending"
	AttemptSubmitted       AttemptState = "submitted"
	AttemptConfirmed       AttemptState = "confirmed"
	AttemptFailedTransient AttemptState = "failed_transient"
	AttemptFailedPermanent AttemptState = "failed_permanent"
)

// Terminal reports whether no further transition may happen on the record.
func (s AttemptState) Terminal() bool {
	return s == AttemptConfirmed || s == AttemptFailedPermanent
}

// ChargeState is the billing state of the credits charge tied to an
// attempt chain. At most one held authorization exists per chain, and a
// held charge reaches exactly one of finalized or reversed.
type ChargeState string

const (
	ChargeNone      ChargeState = "none"
	ChargeHeld      ChargeState = "held"
	ChargeFinalized ChargeState = "finalized"
	ChargeReversed  ChargeState = "reversed"
)

// RequestID correlates redeliveries of one logical operation request.
type RequestID string

// Attempt is one submission record of an operation against a chain
// adapter. Retries of the same request produce new records with
// increasing numbers; the credits charge is carried over.
type Attempt struct {
	ID          string
	Request     RequestID
	Entity      EntityRef
	Op          OperationKind
	Blockchain  Blockchain
	Number      int
	State       AttemptState
	TxRef       string
	Address     string
	ChargeID    string
	ChargeState ChargeState
	ErrorCode   int
	Error       string
	CreatedAt   int64
	UpdatedAt   int64
	NotBefore   int64
}

// EventOutcome is the outcome reported by a status event.
type EventOutcome string

const (
	OutcomeSubmitted       EventOutcome = "submitted"
	OutcomeConfirmed       EventOutcome = "confirmed"
	OutcomeFailedTransient EventOutcome = "failed_transient"
	OutcomeFailedPermanent EventOutcome = "failed_permanent"
)

// StatusEvent is emitted after every persisted attempt transition.
type StatusEvent struct {
	Request RequestID     `json:"request"`
	Entity  EntityRef     `json:"entity"`
	Op      OperationKind `json:"op"`
	Outcome EventOutcome  `json:"outcome"`
	Attempt int           `json:"attempt"`
	TxRef   string        `json:"tx_ref,omitempty"`
	Error   string        `json:"error,omitempty"`
	Time    int64         `json:"time"`
}

// EventSink consumes outbound status events. Sinks must not block; slow
// consumers are expected to buffer or drop on their own.
type EventSink interface {
	OnStatusEvent(ev *StatusEvent)
}

// OperationRequest is one inbound operation request. Request stays stable
// across redeliveries so the executor can resume instead of resubmitting.
type OperationRequest struct {
	Request RequestID     `json:"request"`
	Op      OperationKind `json:"op"`
	Entity  EntityRef     `json:"entity"`
	Payload []byte        `json:"payload,omitempty"`
}
