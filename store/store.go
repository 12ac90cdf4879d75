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

package store

import (
	"sync"
	"time"

	"github.com/gofrs/uuid"

	"github.com/icon-project/minthub/common"
	"github.com/icon-project/minthub/common/db"
	"github.com/icon-project/minthub/common/errors"
	"github.com/icon-project/minthub/common/log"
	"github.com/icon-project/minthub/module"
)

const (
	dropListKey     = "drops"
	mintListPrefix  = "mints|"
	openAttemptsKey = "open"
)

// Store is the durable repository of drops, mints, collections and
// transaction attempts. Every mutation happens under one lock; the
// service layer additionally serializes per entity, so the lock is
// about crash consistency, not ordering.
type Store struct {
	lock  sync.Mutex
	clock common.Clock
	log   log.Logger

	collections *db.CodedBucket
	drops       *db.CodedBucket
	mints       *db.CodedBucket
	transfers   *db.CodedBucket
	wallets     *db.CodedBucket
	attempts    *db.CodedBucket
	byRequest   *db.CodedBucket
	current     *db.CodedBucket
	history     *db.CodedBucket
	reversals   *db.CodedBucket
	index       *db.CodedBucket
}

var _ module.Store = (*Store)(nil)

func New(database db.Database, clock common.Clock, logger log.Logger) (*Store, error) {
	s := &Store{
		clock: clock,
		log:   logger.WithFields(log.Fields{log.FieldKeyModule: "store"}),
	}
	for _, b := range []struct {
		id     db.BucketID
		target **db.CodedBucket
	}{
		{db.Collections, &s.collections},
		{db.Drops, &s.drops},
		{db.Mints, &s.mints},
		{db.Transfers, &s.transfers},
		{db.Wallets, &s.wallets},
		{db.Attempts, &s.attempts},
		{db.AttemptByRequest, &s.byRequest},
		{db.CurrentAttempt, &s.current},
		{db.AttemptHistory, &s.history},
		{db.Reversals, &s.reversals},
		{db.ListIndex, &s.index},
	} {
		bk, err := db.NewCodedBucket(database, b.id, nil)
		if err != nil {
			return nil, err
		}
		*b.target = bk
	}
	return s, nil
}

func (s *Store) now() int64 {
	return s.clock.Now().UnixMilli()
}

func entityKey(entity module.EntityRef, op module.OperationKind) string {
	return entity.Key() + "|" + string(op)
}

func walletKey(project string, bc module.Blockchain) string {
	return project + "|" + string(bc)
}

func translate(err error, format string, args ...interface{}) error {
	if err != nil && errors.NotFoundError.Equals(err) {
		return NotFoundError.Wrapf(err, format, args...)
	}
	return err
}

func (s *Store) getListInLock(key string) ([]string, error) {
	var l []string
	if err := s.index.Get(key, &l); err != nil {
		if errors.NotFoundError.Equals(err) {
			return nil, nil
		}
		return nil, err
	}
	return l, nil
}

func (s *Store) appendListInLock(key string, id string) error {
	l, err := s.getListInLock(key)
	if err != nil {
		return err
	}
	return s.index.Set(key, append(l, id))
}

func (s *Store) removeFromListInLock(key string, id string) error {
	l, err := s.getListInLock(key)
	if err != nil {
		return err
	}
	for i, v := range l {
		if v == id {
			return s.index.Set(key, append(l[:i:i], l[i+1:]...))
		}
	}
	return nil
}

//----------------------------------------
// entities

func (s *Store) PutCollection(c *module.Collection) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.collections.Set(c.ID, c)
}

func (s *Store) GetCollection(id string) (*module.Collection, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	c := new(module.Collection)
	if err := s.collections.Get(id, c); err != nil {
		return nil, translate(err, "CollectionNotFound(id=%s)", id)
	}
	return c, nil
}

func (s *Store) PutDrop(d *module.Drop) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	has, err := s.drops.Has(d.ID)
	if err != nil {
		return err
	}
	if err := s.drops.Set(d.ID, d); err != nil {
		return err
	}
	if !has {
		return s.appendListInLock(dropListKey, d.ID)
	}
	return nil
}

func (s *Store) GetDrop(id string) (*module.Drop, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	d := new(module.Drop)
	if err := s.drops.Get(id, d); err != nil {
		return nil, translate(err, "DropNotFound(id=%s)", id)
	}
	return d, nil
}

func (s *Store) ListDrops() ([]*module.Drop, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	ids, err := s.getListInLock(dropListKey)
	if err != nil {
		return nil, err
	}
	drops := make([]*module.Drop, 0, len(ids))
	for _, id := range ids {
		d := new(module.Drop)
		if err := s.drops.Get(id, d); err != nil {
			return nil, err
		}
		drops = append(drops, d)
	}
	return drops, nil
}

func (s *Store) PutMint(m *module.Mint) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	has, err := s.mints.Has(m.ID)
	if err != nil {
		return err
	}
	if err := s.mints.Set(m.ID, m); err != nil {
		return err
	}
	if !has {
		return s.appendListInLock(mintListPrefix+m.Drop, m.ID)
	}
	return nil
}

func (s *Store) GetMint(id string) (*module.Mint, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	m := new(module.Mint)
	if err := s.mints.Get(id, m); err != nil {
		return nil, translate(err, "MintNotFound(id=%s)", id)
	}
	return m, nil
}

func (s *Store) ListMintsByDrop(dropID string) ([]*module.Mint, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	ids, err := s.getListInLock(mintListPrefix + dropID)
	if err != nil {
		return nil, err
	}
	mints := make([]*module.Mint, 0, len(ids))
	for _, id := range ids {
		m := new(module.Mint)
		if err := s.mints.Get(id, m); err != nil {
			return nil, err
		}
		mints = append(mints, m)
	}
	return mints, nil
}

func (s *Store) PutTransfer(t *module.TransferRecord) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.transfers.Set(t.ID, t)
}

func (s *Store) GetTransfer(id string) (*module.TransferRecord, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	t := new(module.TransferRecord)
	if err := s.transfers.Get(id, t); err != nil {
		return nil, translate(err, "TransferNotFound(id=%s)", id)
	}
	return t, nil
}

func (s *Store) PutWallet(w *module.ProjectWallet) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.wallets.Set(walletKey(w.Project, w.Blockchain), w)
}

func (s *Store) GetWallet(project string, bc module.Blockchain) (*module.ProjectWallet, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	w := new(module.ProjectWallet)
	if err := s.wallets.Get(walletKey(project, bc), w); err != nil {
		return nil, translate(err, "WalletNotFound(project=%s,chain=%s)", project, bc)
	}
	return w, nil
}

//----------------------------------------
// attempts

func (s *Store) CreateAttempt(
	req module.RequestID, entity module.EntityRef, op module.OperationKind,
	bc module.Blockchain, prior *module.Attempt,
) (*module.Attempt, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	key := entityKey(entity, op)

	var currentID string
	if err := s.current.Get(key, &currentID); err == nil {
		cur := new(module.Attempt)
		if err := s.attempts.Get(currentID, cur); err != nil {
			return nil, err
		}
		if !cur.State.Terminal() {
			if prior == nil || prior.ID != cur.ID {
				return nil, OutstandingAttemptError.Errorf(
					"OutstandingAttempt(entity=%s,op=%s,attempt=%s)", entity.Key(), op, cur.ID)
			}
			if cur.State != module.AttemptFailedTransient {
				return nil, InvalidTransitionError.Errorf(
					"RetryFromState(entity=%s,state=%s)", entity.Key(), cur.State)
			}
		}
	} else if !errors.NotFoundError.Equals(err) {
		return nil, err
	}

	ids, err := s.getListInLock("h|" + key)
	if err != nil {
		return nil, err
	}

	attempt := &module.Attempt{
		ID:          uuid.Must(uuid.NewV4()).String(),
		Request:     req,
		Entity:      entity,
		Op:          op,
		Blockchain:  bc,
		Number:      len(ids) + 1,
		State:       module.AttemptPending,
		ChargeState: module.ChargeNone,
		CreatedAt:   s.now(),
		UpdatedAt:   s.now(),
	}
	if prior != nil && prior.ChargeState == module.ChargeHeld {
		// the held charge follows the logical request into the retry
		attempt.ChargeID = prior.ChargeID
		attempt.ChargeState = module.ChargeHeld
	}

	if err := s.attempts.Set(attempt.ID, attempt); err != nil {
		return nil, err
	}
	if err := s.byRequest.Set(string(req), attempt.ID); err != nil {
		return nil, err
	}
	if err := s.current.Set(key, attempt.ID); err != nil {
		return nil, err
	}
	if err := s.appendListInLock("h|"+key, attempt.ID); err != nil {
		return nil, err
	}
	if err := s.appendListInLock(openAttemptsKey, attempt.ID); err != nil {
		return nil, err
	}
	return attempt, nil
}

func (s *Store) GetAttempt(id string) (*module.Attempt, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.getAttemptInLock(id)
}

func (s *Store) getAttemptInLock(id string) (*module.Attempt, error) {
	a := new(module.Attempt)
	if err := s.attempts.Get(id, a); err != nil {
		return nil, translate(err, "AttemptNotFound(id=%s)", id)
	}
	return a, nil
}

func (s *Store) AttemptByRequest(req module.RequestID) (*module.Attempt, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	var id string
	if err := s.byRequest.Get(string(req), &id); err != nil {
		return nil, translate(err, "RequestNotFound(id=%s)", req)
	}
	return s.getAttemptInLock(id)
}

func (s *Store) CurrentAttempt(entity module.EntityRef, op module.OperationKind) (*module.Attempt, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	var id string
	if err := s.current.Get(entityKey(entity, op), &id); err != nil {
		return nil, translate(err, "NoCurrentAttempt(entity=%s,op=%s)", entity.Key(), op)
	}
	return s.getAttemptInLock(id)
}

func (s *Store) AttemptsByEntity(entity module.EntityRef, op module.OperationKind) ([]*module.Attempt, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	ids, err := s.getListInLock("h|" + entityKey(entity, op))
	if err != nil {
		return nil, err
	}
	attempts := make([]*module.Attempt, 0, len(ids))
	for _, id := range ids {
		a, err := s.getAttemptInLock(id)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, nil
}

func (s *Store) ListOpenAttempts() ([]*module.Attempt, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	ids, err := s.getListInLock(openAttemptsKey)
	if err != nil {
		return nil, err
	}
	attempts := make([]*module.Attempt, 0, len(ids))
	for _, id := range ids {
		a, err := s.getAttemptInLock(id)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, nil
}

func (s *Store) transitionInLock(
	id string, from []module.AttemptState, to module.AttemptState,
	update func(a *module.Attempt),
) (*module.Attempt, error) {
	a, err := s.getAttemptInLock(id)
	if err != nil {
		return nil, err
	}
	legal := false
	for _, st := range from {
		if a.State == st {
			legal = true
			break
		}
	}
	if !legal {
		return nil, InvalidTransitionError.Errorf(
			"InvalidTransition(attempt=%s,from=%s,to=%s)", id, a.State, to)
	}
	a.State = to
	a.UpdatedAt = s.now()
	if update != nil {
		update(a)
	}
	if err := s.attempts.Set(a.ID, a); err != nil {
		return nil, err
	}
	if to.Terminal() {
		if err := s.current.Delete(entityKey(a.Entity, a.Op)); err != nil {
			return nil, err
		}
		if err := s.removeFromListInLock(openAttemptsKey, a.ID); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (s *Store) MarkSubmitted(id string) (*module.Attempt, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.transitionInLock(id,
		[]module.AttemptState{module.AttemptPending},
		module.AttemptSubmitted, nil)
}

func (s *Store) SetTxRef(id string, txRef string, address string) (*module.Attempt, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	a, err := s.getAttemptInLock(id)
	if err != nil {
		return nil, err
	}
	if a.State != module.AttemptSubmitted {
		return nil, InvalidTransitionError.Errorf(
			"TxRefOnState(attempt=%s,state=%s)", id, a.State)
	}
	a.TxRef = txRef
	a.Address = address
	a.UpdatedAt = s.now()
	if err := s.attempts.Set(a.ID, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) MarkConfirmed(id string) (*module.Attempt, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.transitionInLock(id,
		[]module.AttemptState{module.AttemptSubmitted},
		module.AttemptConfirmed, nil)
}

func (s *Store) MarkFailedTransient(id string, code int, msg string, notBefore time.Time) (*module.Attempt, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.transitionInLock(id,
		[]module.AttemptState{module.AttemptPending, module.AttemptSubmitted},
		module.AttemptFailedTransient,
		func(a *module.Attempt) {
			a.ErrorCode = code
			a.Error = msg
			a.NotBefore = notBefore.UnixMilli()
		})
}

func (s *Store) MarkFailedPermanent(id string, code int, msg string) (*module.Attempt, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.transitionInLock(id,
		[]module.AttemptState{
			module.AttemptPending,
			module.AttemptSubmitted,
			module.AttemptFailedTransient,
		},
		module.AttemptFailedPermanent,
		func(a *module.Attempt) {
			a.ErrorCode = code
			a.Error = msg
		})
}

//----------------------------------------
// charges

func (s *Store) chargeTransitionInLock(
	id string, from module.ChargeState, to module.ChargeState,
	update func(a *module.Attempt),
) (*module.Attempt, error) {
	a, err := s.getAttemptInLock(id)
	if err != nil {
		return nil, err
	}
	if a.ChargeState != from {
		return nil, InvalidTransitionError.Errorf(
			"InvalidChargeTransition(attempt=%s,from=%s,to=%s)", id, a.ChargeState, to)
	}
	a.ChargeState = to
	a.UpdatedAt = s.now()
	if update != nil {
		update(a)
	}
	if err := s.attempts.Set(a.ID, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) SetChargeHeld(id string, chargeID string) (*module.Attempt, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.chargeTransitionInLock(id, module.ChargeNone, module.ChargeHeld,
		func(a *module.Attempt) {
			a.ChargeID = chargeID
		})
}

func (s *Store) SetChargeFinalized(id string) (*module.Attempt, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.chargeTransitionInLock(id, module.ChargeHeld, module.ChargeFinalized, nil)
}

func (s *Store) SetChargeReversed(id string) (*module.Attempt, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.chargeTransitionInLock(id, module.ChargeHeld, module.ChargeReversed, nil)
}

//----------------------------------------
// billing repair

func (s *Store) EnqueueReversal(r *module.Reversal) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	has, err := s.reversals.Has(r.AuthID)
	if err != nil {
		return err
	}
	if err := s.reversals.Set(r.AuthID, r); err != nil {
		return err
	}
	if !has {
		return s.appendListInLock("reversals", r.AuthID)
	}
	return nil
}

func (s *Store) RemoveReversal(authID string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.reversals.Delete(authID); err != nil {
		return err
	}
	return s.removeFromListInLock("reversals", authID)
}

func (s *Store) PendingReversals() ([]*module.Reversal, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	ids, err := s.getListInLock("reversals")
	if err != nil {
		return nil, err
	}
	rs := make([]*module.Reversal, 0, len(ids))
	for _, id := range ids {
		r := new(module.Reversal)
		if err := s.reversals.Get(id, r); err != nil {
			return nil, err
		}
		rs = append(rs, r)
	}
	return rs, nil
}
