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

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/icon-project/minthub/chain"
	"github.com/icon-project/minthub/common/log"
	"github.com/icon-project/minthub/module"
	"github.com/icon-project/minthub/server/metric"
	"github.com/icon-project/minthub/service"
)

// Manager serves the REST and websocket surface of the execution core.
type Manager struct {
	e        *echo.Echo
	addr     string
	svc      *service.Manager
	store    module.Store
	registry *chain.Registry
	wssm     *wsSessionManager
	system   map[string]interface{}
	log      log.Logger
}

func NewManager(
	addr string, svc *service.Manager, st module.Store,
	registry *chain.Registry, system map[string]interface{}, logger log.Logger,
) *Manager {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = HTTPErrorHandler

	return &Manager{
		e:        e,
		addr:     addr,
		svc:      svc,
		store:    st,
		registry: registry,
		wssm:     newWSSessionManager(),
		system:   system,
		log:      logger.WithFields(log.Fields{log.FieldKeyModule: "server"}),
	}
}

// EventSink returns the websocket fan-out; the node registers it with
// the service before starting.
func (srv *Manager) EventSink() module.EventSink {
	return srv.wssm
}

func (srv *Manager) Start() error {
	srv.setRoutes()
	srv.log.Infof("listening addr=%s", srv.addr)
	if err := srv.e.Start(srv.addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (srv *Manager) setRoutes() {
	srv.e.Use(middleware.Recover())
	srv.e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		MaxAge: 3600,
	}))

	g := srv.e.Group("/api/v1")
	g.POST("/requests", srv.handleSubmit)
	g.GET("/drops", srv.handleListDrops)
	g.GET("/drops/:id", srv.handleGetDrop)
	g.GET("/drops/:id/mints", srv.handleListMints)
	g.POST("/drops/:id/pause", srv.handlePause(true))
	g.POST("/drops/:id/resume", srv.handlePause(false))
	g.GET("/mints/:id", srv.handleGetMint)
	g.GET("/attempts/:id", srv.handleGetAttempt)
	g.GET("/entities/:kind/:id/attempts", srv.handleEntityAttempts)
	g.POST("/wallets", srv.handlePutWallet)

	srv.e.GET("/ws/events", srv.wssm.RunEventSession)
	srv.e.GET("/metrics", echo.WrapHandler(metric.PrometheusExporter()))
	srv.e.GET("/admin/system", srv.handleSystem)
}

func (srv *Manager) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.wssm.StopAllSessions()
	return srv.e.Shutdown(ctx)
}

//----------------------------------------
// handlers

type submitRequest struct {
	RequestID  string          `json:"request_id"`
	Op         string          `json:"op"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id"`
	Payload    json.RawMessage `json:"payload"`
}

type submitResponse struct {
	RequestID string           `json:"request_id"`
	Entity    module.EntityRef `json:"entity"`
	Attempt   *module.Attempt  `json:"attempt,omitempty"`
}

func (srv *Manager) handleSubmit(c echo.Context) error {
	var body submitRequest
	if err := c.Bind(&body); err != nil {
		return service.ValidationError.Wrap(err, "MalformedBody")
	}
	op, err := module.ParseOperationKind(body.Op)
	if err != nil {
		return service.ValidationError.Wrapf(err, "BadOperation(op=%s)", body.Op)
	}
	kind, err := module.ParseEntityKind(body.EntityKind)
	if err != nil {
		return service.ValidationError.Wrapf(err, "BadEntityKind(kind=%s)", body.EntityKind)
	}
	req := &module.OperationRequest{
		Request: module.RequestID(body.RequestID),
		Op:      op,
		Entity:  module.EntityRef{Kind: kind, ID: body.EntityID},
		Payload: body.Payload,
	}
	if err := srv.svc.Submit(req); err != nil {
		return err
	}

	resp := &submitResponse{RequestID: string(req.Request), Entity: req.Entity}
	if a, err := srv.store.AttemptByRequest(req.Request); err == nil {
		resp.Attempt = a
	}
	return c.JSON(http.StatusAccepted, resp)
}

func (srv *Manager) handleListDrops(c echo.Context) error {
	drops, err := srv.store.ListDrops()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, drops)
}

func (srv *Manager) handleGetDrop(c echo.Context) error {
	drop, err := srv.store.GetDrop(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, drop)
}

func (srv *Manager) handleListMints(c echo.Context) error {
	if _, err := srv.store.GetDrop(c.Param("id")); err != nil {
		return err
	}
	mints, err := srv.store.ListMintsByDrop(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, mints)
}

func (srv *Manager) handlePause(paused bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := srv.svc.PauseDrop(c.Param("id"), paused); err != nil {
			return err
		}
		return srv.handleGetDrop(c)
	}
}

func (srv *Manager) handleGetMint(c echo.Context) error {
	mint, err := srv.store.GetMint(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, mint)
}

func (srv *Manager) handleGetAttempt(c echo.Context) error {
	a, err := srv.store.GetAttempt(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (srv *Manager) handleEntityAttempts(c echo.Context) error {
	kind, err := module.ParseEntityKind(c.Param("kind"))
	if err != nil {
		return service.ValidationError.Wrapf(err, "BadEntityKind(kind=%s)", c.Param("kind"))
	}
	op, err := module.ParseOperationKind(c.QueryParam("op"))
	if err != nil {
		return service.ValidationError.Wrapf(err, "BadOperation(op=%s)", c.QueryParam("op"))
	}
	attempts, err := srv.store.AttemptsByEntity(
		module.EntityRef{Kind: kind, ID: c.Param("id")}, op)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, attempts)
}

type walletRequest struct {
	Project    string `json:"project"`
	Blockchain string `json:"blockchain"`
	Address    string `json:"address"`
}

func (srv *Manager) handlePutWallet(c echo.Context) error {
	var body walletRequest
	if err := c.Bind(&body); err != nil {
		return service.ValidationError.Wrap(err, "MalformedBody")
	}
	if body.Project == "" || body.Address == "" {
		return service.ValidationError.New("MissingField")
	}
	bc, err := module.ParseBlockchain(body.Blockchain)
	if err != nil {
		return service.ValidationError.Wrapf(err, "BadBlockchain(name=%s)", body.Blockchain)
	}
	ed, err := srv.registry.Resolve(bc)
	if err != nil {
		return err
	}
	if err := ed.ValidateAddress(body.Address); err != nil {
		return service.ValidationError.Wrapf(err, "BadAddress(addr=%s)", body.Address)
	}
	w := &module.ProjectWallet{
		Project:    body.Project,
		Blockchain: bc,
		Address:    body.Address,
	}
	if err := srv.store.PutWallet(w); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, w)
}

func (srv *Manager) handleSystem(c echo.Context) error {
	resp := make(map[string]interface{}, len(srv.system)+1)
	for k, v := range srv.system {
		resp[k] = v
	}
	resp["chains"] = srv.registry.Supported()
	return c.JSON(http.StatusOK, resp)
}
