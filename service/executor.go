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

package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/icon-project/minthub/chain"
	"github.com/icon-project/minthub/common"
	"github.com/icon-project/minthub/common/errors"
	"github.com/icon-project/minthub/common/log"
	"github.com/icon-project/minthub/credits"
	"github.com/icon-project/minthub/module"
	"github.com/icon-project/minthub/store"
)

// executor drives one attempt through the state machine. It runs on
// dispatcher lanes, so per-entity calls never overlap; everything it
// needs to submit or resume is reconstructed from the store, which makes
// redelivery and crash recovery share one code path.
type executor struct {
	store         module.Store
	registry      module.EditionRegistry
	gate          module.CreditsGate
	costs         credits.CostTable
	policy        RetryPolicy
	submitTimeout time.Duration
	clock         common.Clock
	hub           *sinkHub
	coord         *Coordinator
	log           log.Logger
}

func (ex *executor) handle(t *task) {
	var err error
	switch t.kind {
	case taskRequest:
		err = ex.handleRequest(t.req)
	case taskResume:
		err = ex.handleResume(t.attemptID)
	case taskRedeliver:
		err = ex.handleRedeliver(t.attemptID)
	case taskReversal:
		err = ex.handleReversal(t.authID)
	}
	if err != nil {
		ex.log.Warnf("task failed kind=%d key=%s err=%+v", t.kind, t.key, err)
	}
}

//----------------------------------------
// inbound requests

func (ex *executor) handleRequest(req *module.OperationRequest) error {
	if prev, err := ex.store.AttemptByRequest(req.Request); err == nil {
		return ex.drive(prev)
	} else if !store.NotFoundError.Equals(err) {
		return err
	}

	op := req.Op
	payload := req.Payload
	retry := op == module.OpRetry
	if retry {
		var err error
		if op, payload, err = ex.prepareRetry(req); err != nil {
			return ex.reject(req, err)
		}
	}

	bc, err := ex.materialize(req, op, payload)
	if err != nil {
		return ex.reject(req, err)
	}

	attempt, err := ex.ensureAttempt(req.Request, req.Entity, op, bc, retry)
	if err != nil {
		return ex.reject(req, err)
	}
	if attempt == nil {
		// an attempt for the entity is already in flight or scheduled
		return nil
	}
	return ex.drive(attempt)
}

// reject reports a request the executor will not run. Requests that
// never matched an entity fail silently toward the store; rejections of
// existing entities surface as failure events.
func (ex *executor) reject(req *module.OperationRequest, err error) error {
	ex.hub.OnStatusEvent(&module.StatusEvent{
		Request: req.Request,
		Entity:  req.Entity,
		Op:      req.Op,
		Outcome: module.OutcomeFailedPermanent,
		Error:   errors.ToString(err),
		Time:    ex.clock.Now().UnixMilli(),
	})
	return err
}

// prepareRetry resolves an operator retry into the operation it
// restarts. Only entities whose last attempt failed permanently are
// eligible; the new chain starts with a fresh charge.
func (ex *executor) prepareRetry(req *module.OperationRequest) (module.OperationKind, json.RawMessage, error) {
	var p RetryPayload
	if err := decodePayload(req, &p); err != nil {
		return "", nil, err
	}
	op, err := module.ParseOperationKind(p.Op)
	if err != nil || op == module.OpRetry {
		return "", nil, ValidationError.Errorf("InvalidRetryTarget(op=%s)", p.Op)
	}
	history, err := ex.store.AttemptsByEntity(req.Entity, op)
	if err != nil {
		return "", nil, err
	}
	if len(history) == 0 {
		return "", nil, InvalidStateError.Errorf("NothingToRetry(entity=%s,op=%s)", req.Entity, op)
	}
	if last := history[len(history)-1]; last.State != module.AttemptFailedPermanent {
		return "", nil, InvalidStateError.Errorf(
			"RetryOnState(entity=%s,op=%s,state=%s)", req.Entity, op, last.State)
	}
	return op, p.Payload, nil
}

// materialize validates the request semantically and persists the
// records the operation works on, including the payload the submission
// is later rebuilt from. It never touches the chain.
func (ex *executor) materialize(
	req *module.OperationRequest, op module.OperationKind, payload json.RawMessage,
) (module.Blockchain, error) {
	switch op {
	case module.OpCreate:
		return ex.materializeCreate(req, payload)
	case module.OpMint:
		return ex.materializeMint(req, payload)
	case module.OpUpdate:
		return ex.materializeUpdate(req, payload)
	case module.OpTransfer:
		return ex.materializeTransfer(req, payload)
	default:
		return "", UnsupportedOperationError.Errorf("UnsupportedOperation(op=%s)", op)
	}
}

func (ex *executor) materializeCreate(req *module.OperationRequest, payload json.RawMessage) (module.Blockchain, error) {
	if req.Entity.Kind != module.KindDrop {
		return "", ValidationError.Errorf("CreateTarget(kind=%s)", req.Entity.Kind)
	}
	var p CreatePayload
	if err := decodeRaw(payload, req.Op, &p); err != nil {
		return "", err
	}
	bc, err := module.ParseBlockchain(p.Blockchain)
	if err != nil {
		return "", ValidationError.Wrapf(err, "UnknownBlockchain(name=%s)", p.Blockchain)
	}
	if _, err := ex.registry.Resolve(bc); err != nil {
		return "", ValidationError.Wrapf(err, "NoAdapter(chain=%s)", bc)
	}
	if _, err := ex.store.GetWallet(p.Project, bc); err != nil {
		if store.NotFoundError.Equals(err) {
			return "", ValidationError.Wrapf(err, "NoProjectWallet(project=%s,chain=%s)", p.Project, bc)
		}
		return "", err
	}

	drop, err := ex.store.GetDrop(req.Entity.ID)
	if store.NotFoundError.Equals(err) {
		col := &module.Collection{
			ID:         newID(),
			Project:    p.Project,
			Blockchain: bc,
			Status:     module.StatusPending,
			CreatedAt:  ex.clock.Now().UnixMilli(),
		}
		drop = &module.Drop{
			ID:         req.Entity.ID,
			Collection: col.ID,
			Project:    p.Project,
			Metadata:   payload,
			Supply:     p.Supply,
			Status:     module.StatusPending,
			CreatedAt:  ex.clock.Now().UnixMilli(),
		}
		if err := ex.store.PutCollection(col); err != nil {
			return "", err
		}
		if err := ex.store.PutDrop(drop); err != nil {
			return "", err
		}
		return bc, nil
	} else if err != nil {
		return "", err
	}
	col, err := ex.store.GetCollection(drop.Collection)
	if err != nil {
		return "", err
	}
	if col.Blockchain != bc {
		return "", ValidationError.Errorf(
			"BlockchainMismatch(drop=%s,was=%s,req=%s)", drop.ID, col.Blockchain, bc)
	}
	return bc, nil
}

func (ex *executor) materializeMint(req *module.OperationRequest, payload json.RawMessage) (module.Blockchain, error) {
	if req.Entity.Kind != module.KindMint {
		return "", ValidationError.Errorf("MintTarget(kind=%s)", req.Entity.Kind)
	}
	var p MintPayload
	if err := decodeRaw(payload, req.Op, &p); err != nil {
		return "", err
	}
	drop, err := ex.store.GetDrop(p.Drop)
	if err != nil {
		return "", ValidationError.Wrapf(err, "DropNotFound(id=%s)", p.Drop)
	}
	if drop.Paused {
		return "", ValidationError.Errorf("DropPaused(id=%s)", drop.ID)
	}
	col, err := ex.store.GetCollection(drop.Collection)
	if err != nil {
		return "", err
	}
	if col.Address == "" {
		return "", InvalidStateError.Errorf("CollectionNotConfirmed(drop=%s)", drop.ID)
	}
	ed, err := ex.registry.Resolve(col.Blockchain)
	if err != nil {
		return "", err
	}
	if err := ed.ValidateAddress(p.Recipient); err != nil {
		return "", ValidationError.Wrapf(err, "BadRecipient(addr=%s)", p.Recipient)
	}

	if _, err := ex.store.GetMint(req.Entity.ID); store.NotFoundError.Equals(err) {
		if !drop.SupplyLeft() {
			return "", ValidationError.Errorf(
				"SupplyExhausted(drop=%s,supply=%d)", drop.ID, drop.Supply)
		}
		mint := &module.Mint{
			ID:         req.Entity.ID,
			Drop:       drop.ID,
			Collection: col.ID,
			Owner:      p.Recipient,
			Metadata:   payload,
			Status:     module.StatusPending,
			CreatedAt:  ex.clock.Now().UnixMilli(),
		}
		if err := ex.store.PutMint(mint); err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	}
	return col.Blockchain, nil
}

func (ex *executor) materializeUpdate(req *module.OperationRequest, payload json.RawMessage) (module.Blockchain, error) {
	var p UpdatePayload
	if err := decodeRaw(payload, req.Op, &p); err != nil {
		return "", err
	}
	switch req.Entity.Kind {
	case module.KindDrop:
		drop, err := ex.store.GetDrop(req.Entity.ID)
		if err != nil {
			return "", ValidationError.Wrapf(err, "DropNotFound(id=%s)", req.Entity.ID)
		}
		col, err := ex.store.GetCollection(drop.Collection)
		if err != nil {
			return "", err
		}
		if col.Address == "" {
			return "", InvalidStateError.Errorf("CollectionNotConfirmed(drop=%s)", drop.ID)
		}
		if p.SellerFeeBasisPoints == nil {
			fee := storedSellerFee(drop.Metadata)
			p.SellerFeeBasisPoints = &fee
		}
		raw, err := json.Marshal(&p)
		if err != nil {
			return "", err
		}
		drop.Metadata = raw
		if err := ex.store.PutDrop(drop); err != nil {
			return "", err
		}
		return col.Blockchain, nil
	case module.KindMint:
		mint, err := ex.store.GetMint(req.Entity.ID)
		if err != nil {
			return "", ValidationError.Wrapf(err, "MintNotFound(id=%s)", req.Entity.ID)
		}
		if mint.Address == "" {
			return "", InvalidStateError.Errorf("MintNotConfirmed(id=%s)", mint.ID)
		}
		col, err := ex.store.GetCollection(mint.Collection)
		if err != nil {
			return "", err
		}
		if p.SellerFeeBasisPoints == nil {
			drop, err := ex.store.GetDrop(mint.Drop)
			if err != nil {
				return "", err
			}
			fee := storedSellerFee(mint.Metadata, drop.Metadata)
			p.SellerFeeBasisPoints = &fee
		}
		raw, err := json.Marshal(&p)
		if err != nil {
			return "", err
		}
		mint.Metadata = raw
		if err := ex.store.PutMint(mint); err != nil {
			return "", err
		}
		return col.Blockchain, nil
	default:
		return "", ValidationError.Errorf("UpdateTarget(kind=%s)", req.Entity.Kind)
	}
}

func (ex *executor) materializeTransfer(req *module.OperationRequest, payload json.RawMessage) (module.Blockchain, error) {
	if req.Entity.Kind != module.KindTransfer {
		return "", ValidationError.Errorf("TransferTarget(kind=%s)", req.Entity.Kind)
	}
	var p TransferPayload
	if err := decodeRaw(payload, req.Op, &p); err != nil {
		return "", err
	}
	mint, err := ex.store.GetMint(p.Mint)
	if err != nil {
		return "", ValidationError.Wrapf(err, "MintNotFound(id=%s)", p.Mint)
	}
	if mint.Address == "" {
		return "", InvalidStateError.Errorf("MintNotConfirmed(id=%s)", mint.ID)
	}
	col, err := ex.store.GetCollection(mint.Collection)
	if err != nil {
		return "", err
	}
	ed, err := ex.registry.Resolve(col.Blockchain)
	if err != nil {
		return "", err
	}
	if err := ed.ValidateAddress(p.Recipient); err != nil {
		return "", ValidationError.Wrapf(err, "BadRecipient(addr=%s)", p.Recipient)
	}

	if _, err := ex.store.GetTransfer(req.Entity.ID); store.NotFoundError.Equals(err) {
		tr := &module.TransferRecord{
			ID:        req.Entity.ID,
			Mint:      mint.ID,
			Sender:    mint.Owner,
			Recipient: p.Recipient,
			Status:    module.StatusPending,
			CreatedAt: ex.clock.Now().UnixMilli(),
		}
		if err := ex.store.PutTransfer(tr); err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	}
	return col.Blockchain, nil
}

// ensureAttempt opens the attempt for the request, or resolves what to
// do when one already exists for the entity and operation. A nil,nil
// return means another request owns the in-flight attempt.
func (ex *executor) ensureAttempt(
	req module.RequestID, entity module.EntityRef, op module.OperationKind,
	bc module.Blockchain, retry bool,
) (*module.Attempt, error) {
	cur, err := ex.store.CurrentAttempt(entity, op)
	if err != nil {
		if !store.NotFoundError.Equals(err) {
			return nil, err
		}
		// no in-flight attempt; for the one-shot operations a terminal
		// chain still owns the entity, and only an operator retry
		// reopens a permanent failure. Updates are repeatable, so a new
		// request always opens a fresh chain.
		if op != module.OpUpdate {
			history, err := ex.store.AttemptsByEntity(entity, op)
			if err != nil {
				return nil, err
			}
			if n := len(history); n > 0 {
				last := history[n-1]
				if last.State == module.AttemptConfirmed ||
					(last.State == module.AttemptFailedPermanent && !retry) {
					return last, nil
				}
			}
		}
		return ex.store.CreateAttempt(req, entity, op, bc, nil)
	}
	switch cur.State {
	case module.AttemptPending, module.AttemptSubmitted:
		// converge on the in-flight attempt instead of double-submitting
		return cur, nil
	case module.AttemptFailedTransient:
		// the retry coordinator owns the next attempt
		return nil, nil
	default:
		return ex.store.CreateAttempt(req, entity, op, bc, nil)
	}
}

//----------------------------------------
// driving

// drive advances one attempt from whatever state it is in. It is the
// shared entry of fresh submissions, redeliveries, confirmation polls
// and boot recovery.
func (ex *executor) drive(a *module.Attempt) error {
	switch a.State {
	case module.AttemptPending:
		return ex.submit(a)
	case module.AttemptSubmitted:
		return ex.resume(a)
	case module.AttemptConfirmed:
		ex.emit(a, module.OutcomeConfirmed)
		return nil
	case module.AttemptFailedPermanent:
		ex.emit(a, module.OutcomeFailedPermanent)
		return nil
	default:
		// failed_transient: the redeliver timer is armed
		return nil
	}
}

func (ex *executor) submit(a *module.Attempt) error {
	if a.ChargeState == module.ChargeNone {
		if cost := ex.costs.Cost(a.Op); cost > 0 {
			authID, err := ex.gate.Authorize(context.Background(), cost, a.ID)
			if err != nil {
				if credits.InsufficientCreditsError.Equals(err) {
					return ex.failPermanent(a, InsufficientCreditsError.Wrapf(err,
						"InsufficientCredits(attempt=%s)", a.ID))
				}
				// gate unavailable; no hold was placed, retry later
				return ex.failTransient(a, err)
			}
			if a, err = ex.store.SetChargeHeld(a.ID, authID); err != nil {
				return err
			}
		}
	}

	a, err := ex.store.MarkSubmitted(a.ID)
	if err != nil {
		return err
	}

	call, err := ex.buildSubmission(a)
	if err != nil {
		return ex.failPermanent(a, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), ex.submitTimeout)
	res, err := call(ctx)
	cancel()
	if err != nil {
		if chain.IsTransient(err) || errors.Is(err, context.DeadlineExceeded) {
			return ex.failTransient(a, err)
		}
		return ex.failPermanent(a, err)
	}

	if a, err = ex.store.SetTxRef(a.ID, res.TxRef, res.Address); err != nil {
		return err
	}
	if res.Confirmed {
		return ex.confirm(a)
	}
	ex.emit(a, module.OutcomeSubmitted)
	ex.coord.schedulePoll(a)
	return nil
}

// resume re-enters a submitted attempt. With a txRef it asks the chain;
// without one the adapter call never returned, and resubmission waits
// out the submit timeout first.
func (ex *executor) resume(a *module.Attempt) error {
	age := time.Duration(ex.clock.Now().UnixMilli()-a.UpdatedAt) * time.Millisecond

	if a.TxRef == "" {
		if age < ex.submitTimeout {
			ex.coord.schedulePoll(a)
			return nil
		}
		return ex.failTransient(a, chain.ChainUnavailableError.Errorf(
			"SubmissionLost(attempt=%s)", a.ID))
	}

	ed, err := ex.registry.Resolve(a.Blockchain)
	if err != nil {
		return ex.failPermanent(a, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), ex.submitTimeout)
	status, err := ed.CheckStatus(ctx, a.TxRef)
	cancel()
	if err != nil {
		if age >= ex.submitTimeout {
			return ex.failTransient(a, chain.ChainUnavailableError.Wrapf(err,
				"StatusUnavailable(tx=%s)", a.TxRef))
		}
		ex.coord.schedulePoll(a)
		return nil
	}
	switch status {
	case module.TxConfirmed:
		return ex.confirm(a)
	case module.TxFailed:
		return ex.failPermanent(a, chain.ChainRejectedError.Errorf(
			"TransactionFailed(tx=%s)", a.TxRef))
	default:
		if age >= ex.submitTimeout {
			return ex.failTransient(a, chain.ChainUnavailableError.Errorf(
				"ConfirmationTimeout(tx=%s)", a.TxRef))
		}
		ex.coord.schedulePoll(a)
		return nil
	}
}

func (ex *executor) confirm(a *module.Attempt) error {
	a, err := ex.store.MarkConfirmed(a.ID)
	if err != nil {
		if store.InvalidTransitionError.Equals(err) {
			return nil
		}
		return err
	}
	ex.settleCharge(a, module.RepairFinalize)
	if err := ex.applyConfirmed(a); err != nil {
		return err
	}
	ex.emit(a, module.OutcomeConfirmed)
	return nil
}

func (ex *executor) failTransient(a *module.Attempt, cause error) error {
	if a.Number >= ex.policy.MaxAttempts {
		return ex.failPermanent(a, RetriesExhaustedError.Wrapf(cause,
			"RetriesExhausted(attempt=%s,n=%d)", a.ID, a.Number))
	}
	delay := ex.policy.delayFor(a.Number)
	notBefore := ex.clock.Now().Add(delay)
	a, err := ex.store.MarkFailedTransient(a.ID,
		int(errors.CodeOf(cause)), failureMessage(cause), notBefore)
	if err != nil {
		return err
	}
	ex.emit(a, module.OutcomeFailedTransient)
	ex.coord.scheduleRedeliver(a, delay)
	return nil
}

func (ex *executor) failPermanent(a *module.Attempt, cause error) error {
	a, err := ex.store.MarkFailedPermanent(a.ID, int(errors.CodeOf(cause)), failureMessage(cause))
	if err != nil {
		return err
	}
	ex.settleCharge(a, module.RepairReverse)
	if err := ex.applyFailed(a); err != nil {
		return err
	}
	ex.emit(a, module.OutcomeFailedPermanent)
	return nil
}

// settleCharge finalizes or reverses the held authorization. A failed
// gate call becomes a pending repair; the charge record moves only when
// the ledger acknowledged.
func (ex *executor) settleCharge(a *module.Attempt, kind module.RepairKind) {
	if a.ChargeState != module.ChargeHeld {
		return
	}
	var err error
	if kind == module.RepairFinalize {
		err = ex.gate.Finalize(context.Background(), a.ChargeID)
	} else {
		err = ex.gate.Reverse(context.Background(), a.ChargeID)
	}
	switch {
	case err == nil:
		if kind == module.RepairFinalize {
			_, err = ex.store.SetChargeFinalized(a.ID)
		} else {
			_, err = ex.store.SetChargeReversed(a.ID)
		}
		if err != nil {
			// the ledger settled but the record did not; park a repair
			// so the charge state catches up instead of staying held
			ex.log.Warnf("charge settle record failed attempt=%s err=%+v", a.ID, err)
			r := &module.Reversal{
				AuthID:    a.ChargeID,
				AttemptID: a.ID,
				Kind:      kind,
				NotBefore: ex.clock.Now().Add(ex.policy.BaseDelay).UnixMilli(),
			}
			if err := ex.store.EnqueueReversal(r); err != nil {
				ex.log.Errorf("reversal enqueue failed auth=%s err=%+v", a.ChargeID, err)
				return
			}
			ex.coord.scheduleRepair(a.ChargeID, ex.policy.BaseDelay)
		}
	case credits.Retryable(err):
		r := &module.Reversal{
			AuthID:    a.ChargeID,
			AttemptID: a.ID,
			Kind:      kind,
			NotBefore: ex.clock.Now().Add(ex.policy.BaseDelay).UnixMilli(),
		}
		if err := ex.store.EnqueueReversal(r); err != nil {
			ex.log.Errorf("reversal enqueue failed auth=%s err=%+v", a.ChargeID, err)
			return
		}
		ex.coord.scheduleRepair(a.ChargeID, ex.policy.BaseDelay)
	default:
		ex.log.Errorf("charge settle rejected attempt=%s auth=%s kind=%s err=%+v",
			a.ID, a.ChargeID, kind, err)
	}
}

//----------------------------------------
// entity projections

// applyConfirmed projects a confirmed attempt onto its entity records.
// It runs exactly once per attempt, guarded by the confirmed transition.
func (ex *executor) applyConfirmed(a *module.Attempt) error {
	switch a.Op {
	case module.OpCreate:
		drop, err := ex.store.GetDrop(a.Entity.ID)
		if err != nil {
			return err
		}
		col, err := ex.store.GetCollection(drop.Collection)
		if err != nil {
			return err
		}
		if col.Address == "" {
			col.Address = a.Address
		}
		col.Signature = a.TxRef
		col.Status = module.StatusCreated
		drop.Status = module.StatusCreated
		if err := ex.store.PutCollection(col); err != nil {
			return err
		}
		return ex.store.PutDrop(drop)
	case module.OpMint:
		mint, err := ex.store.GetMint(a.Entity.ID)
		if err != nil {
			return err
		}
		if mint.Address == "" {
			mint.Address = a.Address
		}
		mint.Signature = a.TxRef
		mint.Status = module.StatusMinted
		if err := ex.store.PutMint(mint); err != nil {
			return err
		}
		drop, err := ex.store.GetDrop(mint.Drop)
		if err != nil {
			return err
		}
		drop.Minted++
		return ex.store.PutDrop(drop)
	case module.OpUpdate:
		if a.Entity.Kind == module.KindMint {
			mint, err := ex.store.GetMint(a.Entity.ID)
			if err != nil {
				return err
			}
			mint.Signature = a.TxRef
			return ex.store.PutMint(mint)
		}
		drop, err := ex.store.GetDrop(a.Entity.ID)
		if err != nil {
			return err
		}
		col, err := ex.store.GetCollection(drop.Collection)
		if err != nil {
			return err
		}
		col.Signature = a.TxRef
		return ex.store.PutCollection(col)
	case module.OpTransfer:
		tr, err := ex.store.GetTransfer(a.Entity.ID)
		if err != nil {
			return err
		}
		mint, err := ex.store.GetMint(tr.Mint)
		if err != nil {
			return err
		}
		mint.Owner = tr.Recipient
		if err := ex.store.PutMint(mint); err != nil {
			return err
		}
		tr.Signature = a.TxRef
		tr.Status = module.StatusCreated
		return ex.store.PutTransfer(tr)
	}
	return nil
}

func (ex *executor) applyFailed(a *module.Attempt) error {
	switch a.Op {
	case module.OpCreate:
		drop, err := ex.store.GetDrop(a.Entity.ID)
		if err != nil {
			return err
		}
		drop.Status = module.StatusFailed
		if err := ex.store.PutDrop(drop); err != nil {
			return err
		}
		col, err := ex.store.GetCollection(drop.Collection)
		if err != nil {
			return err
		}
		col.Status = module.StatusFailed
		return ex.store.PutCollection(col)
	case module.OpMint:
		mint, err := ex.store.GetMint(a.Entity.ID)
		if err != nil {
			return err
		}
		mint.Status = module.StatusFailed
		return ex.store.PutMint(mint)
	case module.OpTransfer:
		tr, err := ex.store.GetTransfer(a.Entity.ID)
		if err != nil {
			return err
		}
		tr.Status = module.StatusFailed
		return ex.store.PutTransfer(tr)
	}
	return nil
}

//----------------------------------------
// submission rebuild

type submitFunc func(ctx context.Context) (*module.TxResult, error)

// buildSubmission reconstructs the adapter call for an attempt purely
// from persisted records, so fresh submissions, redeliveries and
// post-restart recovery run identical code.
func (ex *executor) buildSubmission(a *module.Attempt) (submitFunc, error) {
	ed, err := ex.registry.Resolve(a.Blockchain)
	if err != nil {
		return nil, err
	}
	switch a.Op {
	case module.OpCreate:
		drop, err := ex.store.GetDrop(a.Entity.ID)
		if err != nil {
			return nil, err
		}
		col, err := ex.store.GetCollection(drop.Collection)
		if err != nil {
			return nil, err
		}
		var p CreatePayload
		if err := json.Unmarshal(drop.Metadata, &p); err != nil {
			return nil, errors.CriticalFormatError.Wrapf(err, "BadDropMetadata(id=%s)", drop.ID)
		}
		wallet, err := ex.store.GetWallet(drop.Project, a.Blockchain)
		if err != nil {
			return nil, err
		}
		spec := &module.CollectionSpec{
			Collection:           col.ID,
			Name:                 p.Name,
			Symbol:               p.Symbol,
			MetadataURI:          p.MetadataURI,
			SellerFeeBasisPoints: p.SellerFeeBasisPoints,
			Supply:               drop.Supply,
			Authority:            wallet.Address,
		}
		return func(ctx context.Context) (*module.TxResult, error) {
			return ed.CreateCollection(ctx, spec)
		}, nil
	case module.OpMint:
		mint, err := ex.store.GetMint(a.Entity.ID)
		if err != nil {
			return nil, err
		}
		col, err := ex.store.GetCollection(mint.Collection)
		if err != nil {
			return nil, err
		}
		drop, err := ex.store.GetDrop(mint.Drop)
		if err != nil {
			return nil, err
		}
		var p MintPayload
		if err := json.Unmarshal(mint.Metadata, &p); err != nil {
			return nil, errors.CriticalFormatError.Wrapf(err, "BadMintMetadata(id=%s)", mint.ID)
		}
		spec := &module.MintSpec{
			Mint:                 mint.ID,
			CollectionAddress:    col.Address,
			Recipient:            mint.Owner,
			Name:                 p.Name,
			Symbol:               p.Symbol,
			MetadataURI:          p.MetadataURI,
			SellerFeeBasisPoints: storedSellerFee(mint.Metadata, drop.Metadata),
		}
		return func(ctx context.Context) (*module.TxResult, error) {
			return ed.MintToCollection(ctx, spec)
		}, nil
	case module.OpUpdate:
		var target string
		var raw json.RawMessage
		var fee uint16
		if a.Entity.Kind == module.KindMint {
			mint, err := ex.store.GetMint(a.Entity.ID)
			if err != nil {
				return nil, err
			}
			drop, err := ex.store.GetDrop(mint.Drop)
			if err != nil {
				return nil, err
			}
			target, raw = mint.Address, mint.Metadata
			fee = storedSellerFee(mint.Metadata, drop.Metadata)
		} else {
			drop, err := ex.store.GetDrop(a.Entity.ID)
			if err != nil {
				return nil, err
			}
			col, err := ex.store.GetCollection(drop.Collection)
			if err != nil {
				return nil, err
			}
			target, raw = col.Address, drop.Metadata
			fee = storedSellerFee(drop.Metadata)
		}
		var p UpdatePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, errors.CriticalFormatError.Wrapf(err, "BadMetadata(entity=%s)", a.Entity)
		}
		spec := &module.UpdateSpec{
			TargetAddress:        target,
			Name:                 p.Name,
			Symbol:               p.Symbol,
			MetadataURI:          p.MetadataURI,
			SellerFeeBasisPoints: fee,
		}
		return func(ctx context.Context) (*module.TxResult, error) {
			return ed.UpdateMetadata(ctx, spec)
		}, nil
	case module.OpTransfer:
		tr, err := ex.store.GetTransfer(a.Entity.ID)
		if err != nil {
			return nil, err
		}
		mint, err := ex.store.GetMint(tr.Mint)
		if err != nil {
			return nil, err
		}
		spec := &module.TransferSpec{
			MintAddress: mint.Address,
			Owner:       tr.Sender,
			Recipient:   tr.Recipient,
		}
		return func(ctx context.Context) (*module.TxResult, error) {
			return ed.TransferMint(ctx, spec)
		}, nil
	default:
		return nil, UnsupportedOperationError.Errorf("UnsupportedOperation(op=%s)", a.Op)
	}
}

//----------------------------------------
// resumption entries

func (ex *executor) handleResume(attemptID string) error {
	a, err := ex.store.GetAttempt(attemptID)
	if err != nil {
		return err
	}
	return ex.drive(a)
}

func (ex *executor) handleRedeliver(attemptID string) error {
	prior, err := ex.store.GetAttempt(attemptID)
	if err != nil {
		return err
	}
	if prior.State != module.AttemptFailedTransient {
		return nil
	}
	next, err := ex.store.CreateAttempt(prior.Request, prior.Entity, prior.Op, prior.Blockchain, prior)
	if err != nil {
		return err
	}
	return ex.drive(next)
}

func (ex *executor) handleReversal(authID string) error {
	pending, err := ex.store.PendingReversals()
	if err != nil {
		return err
	}
	var r *module.Reversal
	for _, p := range pending {
		if p.AuthID == authID {
			r = p
			break
		}
	}
	if r == nil {
		return nil
	}

	var gerr error
	if r.Kind == module.RepairFinalize {
		gerr = ex.gate.Finalize(context.Background(), r.AuthID)
	} else {
		gerr = ex.gate.Reverse(context.Background(), r.AuthID)
	}
	if gerr != nil {
		if credits.Retryable(gerr) {
			r.Attempts++
			delay := ex.policy.delayFor(r.Attempts)
			r.NotBefore = ex.clock.Now().Add(delay).UnixMilli()
			if err := ex.store.EnqueueReversal(r); err != nil {
				return err
			}
			ex.coord.scheduleRepair(r.AuthID, delay)
			return nil
		}
		if !credits.AuthorizationStateError.Equals(gerr) {
			ex.log.Errorf("billing repair rejected auth=%s kind=%s err=%+v", r.AuthID, r.Kind, gerr)
			return ex.store.RemoveReversal(r.AuthID)
		}
		// the ledger already settled this authorization; the record
		// below still needs to catch up
	}

	var serr error
	if r.Kind == module.RepairFinalize {
		_, serr = ex.store.SetChargeFinalized(r.AttemptID)
	} else {
		_, serr = ex.store.SetChargeReversed(r.AttemptID)
	}
	if serr != nil && !store.InvalidTransitionError.Equals(serr) {
		return serr
	}
	return ex.store.RemoveReversal(r.AuthID)
}

//----------------------------------------

func (ex *executor) emit(a *module.Attempt, outcome module.EventOutcome) {
	ex.hub.OnStatusEvent(&module.StatusEvent{
		Request: a.Request,
		Entity:  a.Entity,
		Op:      a.Op,
		Outcome: outcome,
		Attempt: a.Number,
		TxRef:   a.TxRef,
		Error:   a.Error,
		Time:    ex.clock.Now().UnixMilli(),
	})
}

func failureMessage(err error) string {
	if kind := chain.KindOf(err); kind != "Unknown" {
		return kind + ": " + err.Error()
	}
	return err.Error()
}

func decodeRaw(payload json.RawMessage, op module.OperationKind, out interface{}) error {
	if len(payload) == 0 {
		return ValidationError.Errorf("EmptyPayload(op=%s)", op)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return ValidationError.Wrapf(err, "MalformedPayload(op=%s)", op)
	}
	return nil
}
