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
	"time"

	"github.com/gofrs/uuid"
	validator "gopkg.in/go-playground/validator.v9"

	"github.com/icon-project/minthub/common"
	"github.com/icon-project/minthub/common/log"
	"github.com/icon-project/minthub/credits"
	"github.com/icon-project/minthub/module"
)

// Config carries the tunables of the execution core.
type Config struct {
	Lanes         int               `json:"lanes"`
	Policy        RetryPolicy       `json:"retry"`
	PollInterval  time.Duration     `json:"poll_interval"`
	SubmitTimeout time.Duration     `json:"submit_timeout"`
	Costs         credits.CostTable `json:"costs"`
}

func (c *Config) normalize() {
	if c.Lanes <= 0 {
		c.Lanes = DefaultLanes
	}
	if c.Policy.BaseDelay <= 0 {
		c.Policy.BaseDelay = DefaultBaseDelay
	}
	if c.Policy.MaxDelay <= 0 {
		c.Policy.MaxDelay = DefaultMaxDelay
	}
	if c.Policy.MaxAttempts <= 0 {
		c.Policy.MaxAttempts = DefaultMaxAttempts
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = DefaultSubmitTimeout
	}
	if c.Costs == nil {
		c.Costs = credits.DefaultCosts()
	}
}

// Manager is the execution core: it validates inbound operation
// requests, orders them onto lanes, and drives each one through the
// attempt state machine against the chain adapters and the credits gate.
type Manager struct {
	cfg        Config
	store      module.Store
	dispatcher *Dispatcher
	executor   *executor
	coord      *Coordinator
	hub        *sinkHub
	validate   *validator.Validate
	log        log.Logger
}

func NewManager(
	cfg Config, st module.Store, registry module.EditionRegistry,
	gate module.CreditsGate, clock common.Clock, logger log.Logger,
) *Manager {
	cfg.normalize()
	l := logger.WithFields(log.Fields{log.FieldKeyModule: "service"})

	m := &Manager{
		cfg:      cfg,
		store:    st,
		hub:      &sinkHub{},
		validate: validator.New(),
		log:      l,
	}
	ex := &executor{
		store:         st,
		registry:      registry,
		gate:          gate,
		costs:         cfg.Costs,
		policy:        cfg.Policy,
		submitTimeout: cfg.SubmitTimeout,
		clock:         clock,
		hub:           m.hub,
		log:           l,
	}
	m.dispatcher = NewDispatcher(cfg.Lanes, ex.handle, logger)
	m.coord = newCoordinator(clock, cfg.PollInterval, m.dispatcher, st, logger)
	ex.coord = m.coord
	m.executor = ex
	return m
}

// AddSink registers an outbound event consumer. Must be called before
// Start.
func (m *Manager) AddSink(s module.EventSink) {
	m.hub.Add(s)
}

// Start spins up the lanes and re-arms the schedule from the store.
func (m *Manager) Start() error {
	m.dispatcher.Start()
	if err := m.coord.recover(); err != nil {
		return err
	}
	m.log.Infoln("service started")
	return nil
}

func (m *Manager) Term() {
	m.coord.stop()
	m.dispatcher.Stop()
	m.log.Infoln("service stopped")
}

// Submit validates and queues one operation request. Validation here
// covers shape only; semantic checks run on the lane, where they are
// ordered against the entity's other operations.
func (m *Manager) Submit(req *module.OperationRequest) error {
	if req.Request == "" {
		req.Request = module.RequestID(newID())
	}
	if req.Entity.ID == "" {
		return ValidationError.New("MissingEntityID")
	}
	if _, err := module.ParseEntityKind(string(req.Entity.Kind)); err != nil {
		return ValidationError.Wrapf(err, "BadEntityKind(kind=%s)", req.Entity.Kind)
	}
	if err := m.validatePayload(req); err != nil {
		return err
	}
	if err := m.dispatcher.SubmitRequest(req); err != nil {
		return err
	}
	m.hub.OnRequest(req.Op)
	return nil
}

func (m *Manager) validatePayload(req *module.OperationRequest) error {
	var target interface{}
	switch req.Op {
	case module.OpCreate:
		target = &CreatePayload{}
	case module.OpMint:
		target = &MintPayload{}
	case module.OpUpdate:
		target = &UpdatePayload{}
	case module.OpTransfer:
		target = &TransferPayload{}
	case module.OpRetry:
		target = &RetryPayload{}
	default:
		return UnsupportedOperationError.Errorf("UnsupportedOperation(op=%s)", req.Op)
	}
	if err := decodePayload(req, target); err != nil {
		return err
	}
	if err := m.validate.Struct(target); err != nil {
		return ValidationError.Wrapf(err, "InvalidPayload(op=%s)", req.Op)
	}
	return nil
}

// PauseDrop flips the paused flag of a drop. Paused drops reject new
// mint requests; in-flight attempts are not interrupted.
func (m *Manager) PauseDrop(id string, paused bool) error {
	drop, err := m.store.GetDrop(id)
	if err != nil {
		return err
	}
	drop.Paused = paused
	return m.store.PutDrop(drop)
}

func newID() string {
	return uuid.Must(uuid.NewV4()).String()
}
