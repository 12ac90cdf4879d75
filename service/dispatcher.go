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
	"hash/fnv"
	"sync"

	"github.com/icon-project/minthub/common/errors"
	"github.com/icon-project/minthub/common/log"
	"github.com/icon-project/minthub/module"
)

const (
	DefaultLanes    = 8
	defaultLaneSize = 256
)

type taskKind int

const (
	taskRequest taskKind = iota
	taskResume
	taskRedeliver
	taskReversal
)

// task is one unit of lane work. Request tasks carry the inbound
// operation; resume, redeliver and reversal tasks reference existing
// records by ID.
type task struct {
	kind      taskKind
	req       *module.OperationRequest
	attemptID string
	authID    string
	key       string
}

// Dispatcher fans tasks out to a fixed set of lanes. All tasks sharing
// one entity key land on the same lane and execute in order; distinct
// entities run in parallel.
type Dispatcher struct {
	lanes   []chan *task
	handler func(*task)
	log     log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDispatcher(lanes int, handler func(*task), logger log.Logger) *Dispatcher {
	if lanes <= 0 {
		lanes = DefaultLanes
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		lanes:   make([]chan *task, lanes),
		handler: handler,
		log:     logger.WithFields(log.Fields{log.FieldKeyModule: "dispatcher"}),
		ctx:     ctx,
		cancel:  cancel,
	}
	for i := range d.lanes {
		d.lanes[i] = make(chan *task, defaultLaneSize)
	}
	return d
}

func (d *Dispatcher) Start() {
	for i := range d.lanes {
		d.wg.Add(1)
		go d.run(d.lanes[i])
	}
}

func (d *Dispatcher) run(lane chan *task) {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case t := <-lane:
			d.handler(t)
		}
	}
}

// Stop cancels the lane workers and waits for in-flight tasks. Queued
// tasks are abandoned; boot recovery rebuilds them from the store.
func (d *Dispatcher) Stop() {
	d.cancel()
	d.wg.Wait()
}

func (d *Dispatcher) laneFor(key string) chan *task {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return d.lanes[h.Sum32()%uint32(len(d.lanes))]
}

func (d *Dispatcher) enqueue(t *task) error {
	select {
	case <-d.ctx.Done():
		return errors.ErrInterrupted
	case d.laneFor(t.key) <- t:
		return nil
	default:
		return errors.InvalidStateError.Errorf("LaneFull(key=%s)", t.key)
	}
}

// SubmitRequest queues one inbound operation request.
func (d *Dispatcher) SubmitRequest(req *module.OperationRequest) error {
	return d.enqueue(&task{kind: taskRequest, req: req, key: req.Entity.Key()})
}

func (d *Dispatcher) submitResume(attemptID string, key string) error {
	return d.enqueue(&task{kind: taskResume, attemptID: attemptID, key: key})
}

func (d *Dispatcher) submitRedeliver(attemptID string, key string) error {
	return d.enqueue(&task{kind: taskRedeliver, attemptID: attemptID, key: key})
}

func (d *Dispatcher) submitReversal(authID string) error {
	return d.enqueue(&task{kind: taskReversal, authID: authID, key: authID})
}
