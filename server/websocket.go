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
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/icon-project/minthub/module"
)

const (
	configMaxSession  = 100
	sessionQueueSize  = 64
	sessionPingPeriod = 30 * time.Second
	sessionWriteWait  = 10 * time.Second
)

// wsSession is one event subscription. Events are queued onto a bounded
// channel; a subscriber that stops reading is dropped rather than
// allowed to stall the emit path.
type wsSession struct {
	c      *websocket.Conn
	filter module.EntityRef // zero value matches everything
	queue  chan *module.StatusEvent
	done   chan struct{}
}

func (s *wsSession) matches(ev *module.StatusEvent) bool {
	if s.filter.Kind != "" && s.filter.Kind != ev.Entity.Kind {
		return false
	}
	if s.filter.ID != "" && s.filter.ID != ev.Entity.ID {
		return false
	}
	return true
}

type wsSessionManager struct {
	sync.Mutex
	maxSession int
	sessions   []*wsSession
}

func newWSSessionManager() *wsSessionManager {
	return &wsSessionManager{
		maxSession: configMaxSession,
	}
}

var _ module.EventSink = (*wsSessionManager)(nil)

// OnStatusEvent fans a status event out to matching sessions. Sessions
// with a full queue are closed.
func (wm *wsSessionManager) OnStatusEvent(ev *module.StatusEvent) {
	wm.Lock()
	defer wm.Unlock()

	for i := 0; i < len(wm.sessions); i++ {
		wss := wm.sessions[i]
		if !wss.matches(ev) {
			continue
		}
		select {
		case wss.queue <- ev:
		default:
			wm.stopSessionAt(i)
			i--
		}
	}
}

func (wm *wsSessionManager) NewSession(c *websocket.Conn, filter module.EntityRef) *wsSession {
	wm.Lock()
	defer wm.Unlock()

	if len(wm.sessions) >= wm.maxSession {
		return nil
	}
	wss := &wsSession{
		c:      c,
		filter: filter,
		queue:  make(chan *module.StatusEvent, sessionQueueSize),
		done:   make(chan struct{}),
	}
	wm.sessions = append(wm.sessions, wss)
	return wss
}

func (wm *wsSessionManager) stopSessionAt(i int) {
	wss := wm.sessions[i]
	if wss.c != nil {
		close(wss.done)
		wss.c.Close()
		wss.c = nil
	}
	last := len(wm.sessions) - 1
	wm.sessions[i] = wm.sessions[last]
	wm.sessions[last] = nil
	wm.sessions = wm.sessions[:last]
}

func (wm *wsSessionManager) StopSession(wss *wsSession) {
	wm.Lock()
	defer wm.Unlock()

	for i := 0; i < len(wm.sessions); i++ {
		if wss == wm.sessions[i] {
			wm.stopSessionAt(i)
		}
	}
}

func (wm *wsSessionManager) StopAllSessions() {
	wm.Lock()
	defer wm.Unlock()

	for i := 0; i < len(wm.sessions); i++ {
		wss := wm.sessions[i]
		if wss.c != nil {
			close(wss.done)
			wss.c.Close()
			wss.c = nil
		}
	}
	wm.sessions = nil
}

// RunEventSession upgrades the connection and streams status events
// until the peer goes away. Filtering by entity kind and id comes from
// the query string.
func (wm *wsSessionManager) RunEventSession(ctx echo.Context) error {
	filter := module.EntityRef{
		Kind: module.EntityKind(ctx.QueryParam("kind")),
		ID:   ctx.QueryParam("id"),
	}
	if filter.Kind != "" {
		if _, err := module.ParseEntityKind(string(filter.Kind)); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "bad entity kind")
		}
	}

	upgrader := Upgrader()
	c, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		return err
	}

	wss := wm.NewSession(c, filter)
	if wss == nil {
		c.Close()
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many stream sessions")
	}
	defer func() {
		wm.StopSession(wss)
	}()

	ech := make(chan error)
	go readLoop(c, ech)

	ping := time.NewTicker(sessionPingPeriod)
	defer ping.Stop()

	for {
		select {
		case err = <-ech:
			return err
		case <-wss.done:
			return nil
		case <-ping.C:
			if err := c.WriteControl(websocket.PingMessage, nil,
				time.Now().Add(sessionWriteWait)); err != nil {
				return err
			}
		case ev := <-wss.queue:
			c.SetWriteDeadline(time.Now().Add(sessionWriteWait))
			if err := c.WriteJSON(ev); err != nil {
				return err
			}
		}
	}
}

func Upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{}
}

func readLoop(c *websocket.Conn, ech chan<- error) {
	for {
		if _, _, err := c.NextReader(); err != nil {
			ech <- err
			break
		}
	}
}
