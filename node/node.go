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

package node

import (
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/icon-project/minthub/chain"
	"github.com/icon-project/minthub/chain/polygon"
	"github.com/icon-project/minthub/chain/solana"
	"github.com/icon-project/minthub/common"
	"github.com/icon-project/minthub/common/db"
	"github.com/icon-project/minthub/common/errors"
	"github.com/icon-project/minthub/common/log"
	"github.com/icon-project/minthub/credits"
	"github.com/icon-project/minthub/module"
	"github.com/icon-project/minthub/server"
	"github.com/icon-project/minthub/server/metric"
	"github.com/icon-project/minthub/service"
	"github.com/icon-project/minthub/store"
)

// Node is the composition root: it opens the database and wires the
// store, the chain adapters, the credits gate, the execution core and
// the REST server together.
type Node struct {
	cfg      *Config
	logger   log.Logger
	database db.Database
	store    *store.Store
	registry *chain.Registry
	gate     module.CreditsGate
	svc      *service.Manager
	srv      *server.Manager
}

func NewNode(cfg *Config, logger log.Logger) (*Node, error) {
	cfg.FillEmpty()

	if cfg.DBType != "mapdb" {
		if err := os.MkdirAll(cfg.DBDir(), 0700); err != nil {
			return nil, errors.Wrapf(err, "fail to create db_dir=%s", cfg.DBDir())
		}
	}
	database, err := db.Open(cfg.DBDir(), cfg.DBType, "minthub")
	if err != nil {
		return nil, errors.Wrapf(err, "fail to open database type=%s dir=%s",
			cfg.DBType, cfg.DBDir())
	}

	st, err := store.New(database, &common.GoTimeClock{}, logger)
	if err != nil {
		return nil, err
	}

	registry := chain.NewRegistry()
	if cfg.Solana != nil {
		ed, err := solana.NewEdition(cfg.Solana, logger)
		if err != nil {
			return nil, errors.Wrap(err, "fail to make solana edition")
		}
		registry.Register(ed)
	}
	if cfg.Polygon != nil {
		ed, err := polygon.NewEdition(cfg.Polygon, logger)
		if err != nil {
			return nil, errors.Wrap(err, "fail to make polygon edition")
		}
		registry.Register(ed)
	}
	if len(registry.Supported()) == 0 {
		logger.Warnf("no chain configured; requests will be rejected")
	}

	var gate module.CreditsGate
	if cfg.Credits.Endpoint != "" {
		gate = credits.NewClient(cfg.Credits.Endpoint, cfg.Credits.Timeout, logger)
	} else {
		logger.Warnf("no credits endpoint; using memory gate balance=%d",
			cfg.Credits.Balance)
		gate = credits.NewMemoryGate(cfg.Credits.Balance)
	}

	svc := service.NewManager(cfg.Service, st, registry, gate,
		&common.GoTimeClock{}, logger)
	svc.AddSink(service.NewLogSink(logger))
	svc.AddSink(metric.NewAttemptMetric())

	system := map[string]interface{}{
		"buildVersion": cfg.BuildVersion,
		"buildTags":    cfg.BuildTags,
		"rpcAddr":      cfg.RPCAddr,
		"dbType":       cfg.DBType,
	}
	srv := server.NewManager(cfg.RPCAddr, svc, st, registry, system, logger)
	svc.AddSink(srv.EventSink())

	return &Node{
		cfg:      cfg,
		logger:   logger,
		database: database,
		store:    st,
		registry: registry,
		gate:     gate,
		svc:      svc,
		srv:      srv,
	}, nil
}

// Run starts the execution core and the REST server and blocks until
// either fails or Stop is called.
func (n *Node) Run() error {
	if err := n.svc.Start(); err != nil {
		return err
	}
	g := &errgroup.Group{}
	g.Go(n.srv.Start)
	err := g.Wait()
	n.svc.Term()
	n.database.Close()
	return err
}

func (n *Node) Stop() error {
	return n.srv.Stop()
}
