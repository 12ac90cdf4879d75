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
	"sync"
	"time"

	"github.com/icon-project/minthub/common"
	"github.com/icon-project/minthub/common/log"
	"github.com/icon-project/minthub/module"
)

// Coordinator owns every timer of the service: retry backoff,
// confirmation polls and billing repair. Timers only enqueue tasks into
// the dispatcher; state decisions stay with the executor on the lanes.
type Coordinator struct {
	clock        common.Clock
	pollInterval time.Duration
	dispatcher   *Dispatcher
	store        module.Store
	log          log.Logger

	lock   sync.Mutex
	timers map[string]common.Timer
}

func newCoordinator(
	clock common.Clock, pollInterval time.Duration,
	dispatcher *Dispatcher, st module.Store, logger log.Logger,
) *Coordinator {
	return &Coordinator{
		clock:        clock,
		pollInterval: pollInterval,
		dispatcher:   dispatcher,
		store:        st,
		log:          logger.WithFields(log.Fields{log.FieldKeyModule: "coordinator"}),
		timers:       make(map[string]common.Timer),
	}
}

func (c *Coordinator) armInLock(key string, delay time.Duration, fire func()) {
	if t, ok := c.timers[key]; ok {
		t.Stop()
	}
	c.timers[key] = c.clock.AfterFunc(delay, func() {
		c.lock.Lock()
		delete(c.timers, key)
		c.lock.Unlock()
		fire()
	})
}

// scheduleRedeliver arms the backoff timer of a transiently failed
// attempt. Firing opens the follow-up attempt on the entity's lane.
func (c *Coordinator) scheduleRedeliver(a *module.Attempt, delay time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()

	id, key := a.ID, a.Entity.Key()
	c.armInLock("r|"+id, delay, func() {
		if err := c.dispatcher.submitRedeliver(id, key); err != nil {
			c.log.Warnf("redeliver enqueue failed attempt=%s err=%+v", id, err)
		}
	})
}

// schedulePoll arms the next confirmation check of a submitted attempt.
func (c *Coordinator) schedulePoll(a *module.Attempt) {
	c.lock.Lock()
	defer c.lock.Unlock()

	id, key := a.ID, a.Entity.Key()
	c.armInLock("p|"+id, c.pollInterval, func() {
		if err := c.dispatcher.submitResume(id, key); err != nil {
			c.log.Warnf("resume enqueue failed attempt=%s err=%+v", id, err)
		}
	})
}

// scheduleRepair arms the next settlement retry of a stuck charge.
func (c *Coordinator) scheduleRepair(authID string, delay time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.armInLock("b|"+authID, delay, func() {
		if err := c.dispatcher.submitReversal(authID); err != nil {
			c.log.Warnf("repair enqueue failed auth=%s err=%+v", authID, err)
		}
	})
}

// recover re-arms the schedule from the store after a restart: pending
// and submitted attempts resume on their lanes, transient failures wait
// out their backoff, stuck charges re-enter billing repair.
func (c *Coordinator) recover() error {
	open, err := c.store.ListOpenAttempts()
	if err != nil {
		return err
	}
	now := c.clock.Now().UnixMilli()
	for _, a := range open {
		switch a.State {
		case module.AttemptPending, module.AttemptSubmitted:
			if err := c.dispatcher.submitResume(a.ID, a.Entity.Key()); err != nil {
				return err
			}
		case module.AttemptFailedTransient:
			delay := time.Duration(a.NotBefore-now) * time.Millisecond
			if delay < 0 {
				delay = 0
			}
			c.scheduleRedeliver(a, delay)
		}
	}

	pending, err := c.store.PendingReversals()
	if err != nil {
		return err
	}
	for _, r := range pending {
		delay := time.Duration(r.NotBefore-now) * time.Millisecond
		if delay < 0 {
			delay = 0
		}
		c.scheduleRepair(r.AuthID, delay)
	}
	if len(open) > 0 || len(pending) > 0 {
		c.log.Infof("recovered attempts=%d repairs=%d", len(open), len(pending))
	}
	return nil
}

// stop cancels every armed timer.
func (c *Coordinator) stop() {
	c.lock.Lock()
	defer c.lock.Unlock()

	for key, t := range c.timers {
		t.Stop()
		delete(c.timers, key)
	}
}
