/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package net

import (
	"sync"
	"time"

	log "github.com/AlexStocks/log4go"
	jerrors "github.com/juju/errors"

	"github.com/zhukovaskychina/xmysql-protocol/server"
	"github.com/zhukovaskychina/xmysql-protocol/server/auth"
	"github.com/zhukovaskychina/xmysql-protocol/server/common"
	"github.com/zhukovaskychina/xmysql-protocol/server/conf"
	"github.com/zhukovaskychina/xmysql-protocol/server/dispatcher"
	"github.com/zhukovaskychina/xmysql-protocol/server/protocol"
	msession "github.com/zhukovaskychina/xmysql-protocol/server/session"
	"github.com/zhukovaskychina/xmysql-protocol/util"
)

var errTooManySessions = jerrors.New("too many MySQL sessions")

// Phase is the connection state machine position.
type Phase int

const (
	PhaseGreeting Phase = iota
	PhaseAwaitHandshakeResponse
	PhaseAuthenticating
	PhaseCommandLoop
	PhaseClosing
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseGreeting:
		return "Greeting"
	case PhaseAwaitHandshakeResponse:
		return "AwaitHandshakeResponse"
	case PhaseAuthenticating:
		return "Authenticating"
	case PhaseCommandLoop:
		return "CommandLoop"
	case PhaseClosing:
		return "Closing"
	default:
		return "Closed"
	}
}

// MySQLMessageHandler owns every live connection of the server and routes
// transport events to the per-connection state machines.
type MySQLMessageHandler struct {
	rwlock         sync.RWMutex
	cfg            *conf.Cfg
	provider       auth.IdentityProvider
	backendFactory server.BackendFactory
	sessionMap     map[Session]*protoConn
}

func NewMySQLMessageHandler(cfg *conf.Cfg, provider auth.IdentityProvider, factory server.BackendFactory) *MySQLMessageHandler {
	if provider == nil {
		provider = &auth.AcceptAllProvider{}
	}
	return &MySQLMessageHandler{
		cfg:            cfg,
		provider:       provider,
		backendFactory: factory,
		sessionMap:     make(map[Session]*protoConn),
	}
}

func (m *MySQLMessageHandler) OnOpen(session Session) error {
	m.rwlock.RLock()
	count := len(m.sessionMap)
	m.rwlock.RUnlock()
	if m.cfg.SessionNumber > 0 && count >= m.cfg.SessionNumber {
		return errTooManySessions
	}

	log.Info("got session:%s", session.Stat())
	pc := newProtoConn(m.cfg, session, m.provider, m.backendFactory)

	m.rwlock.Lock()
	m.sessionMap[session] = pc
	m.rwlock.Unlock()

	if err := pc.sendGreeting(); err != nil {
		m.rwlock.Lock()
		delete(m.sessionMap, session)
		m.rwlock.Unlock()
		return err
	}
	return nil
}

func (m *MySQLMessageHandler) OnClose(session Session) {
	m.rwlock.Lock()
	pc, ok := m.sessionMap[session]
	delete(m.sessionMap, session)
	m.rwlock.Unlock()
	if ok {
		pc.teardown()
	}
	session.Close()
}

func (m *MySQLMessageHandler) OnError(session Session, err error) {
	log.Warn("session %s read loop died: %v", session.Stat(), err)
}

func (m *MySQLMessageHandler) OnCron(session Session) {
	timeout := m.cfg.SessionTimeoutDuration
	if timeout > 0 && time.Since(session.GetActive()) > timeout {
		log.Warn("session %s idle for more than %v, closing", session.Stat(), timeout)
		session.Close()
	}
}

func (m *MySQLMessageHandler) OnMessage(session Session, pkg interface{}) {
	recPkg, ok := pkg.(*protocol.MySQLPackage)
	if !ok {
		log.Error("invalid package type: %T", pkg)
		return
	}

	m.rwlock.RLock()
	pc, ok := m.sessionMap[session]
	m.rwlock.RUnlock()
	if !ok {
		log.Error("no protocol state for session %s", session.Stat())
		session.Close()
		return
	}

	if err := pc.onFrame(recPkg); err != nil {
		pc.fatal(err)
	}
}

// SessionCount reports the number of live connections.
func (m *MySQLMessageHandler) SessionCount() int {
	m.rwlock.RLock()
	defer m.rwlock.RUnlock()
	return len(m.sessionMap)
}

/////////////////////////////////////////
// per-connection protocol state machine
/////////////////////////////////////////

// protoConn drives one connection through
// Greeting -> AwaitHandshakeResponse -> Authenticating -> CommandLoop ->
// Closing -> Closed. It owns the sequence counters and the auth exchange.
type protoConn struct {
	cfg            *conf.Cfg
	transport      Session
	provider       auth.IdentityProvider
	backendFactory server.BackendFactory

	phase    Phase
	asm      protocol.Assembler
	sess     *msession.MySQLServerSessionImpl
	handler  *dispatcher.CommandHandler
	greeting *protocol.HandshakeV10
	plugin   auth.Plugin

	authUser      string
	usingPassword bool
	pendingDB     string
}

func newProtoConn(cfg *conf.Cfg, transport Session, provider auth.IdentityProvider, factory server.BackendFactory) *protoConn {
	return &protoConn{
		cfg:            cfg,
		transport:      transport,
		provider:       provider,
		backendFactory: factory,
		phase:          PhaseGreeting,
		sess:           msession.NewMySQLServerSession(transport.ID(), transport.RemoteAddr()),
	}
}

// WritePacket frames one logical packet, drawing sequence ids from the
// shared counter. It implements dispatcher.PacketWriter.
func (c *protoConn) WritePacket(payload []byte) error {
	buff := protocol.WriteFrames(nil, payload, c.asm.SeqRef())
	return c.transport.WriteBytes(buff)
}

func (c *protoConn) sendGreeting() error {
	charset := byte(common.CharacterSetUtf8)
	if id, ok := common.CharacterSetMap[c.cfg.CharacterSet]; ok {
		charset = id
	}
	c.asm.Reset()
	c.greeting = protocol.NewHandshakeV10(
		c.sess.ConnectionID(), c.cfg.ServerVersion, charset, c.cfg.DefaultAuthPlugin)
	if err := c.WritePacket(c.greeting.Encode()); err != nil {
		return jerrors.Trace(err)
	}
	c.phase = PhaseAwaitHandshakeResponse
	return nil
}

// onFrame feeds one wire frame into the assembler; complete logical
// packets fall through to onPacket.
func (c *protoConn) onFrame(pkg *protocol.MySQLPackage) error {
	if c.phase == PhaseClosing || c.phase == PhaseClosed {
		return nil
	}
	// every command starts a new sequencing phase with seq 0
	if c.phase == PhaseCommandLoop && !c.asm.Partial() && c.asm.NextSeq() != 0 {
		c.asm.Reset()
	}
	payload, done, err := c.asm.Feed(pkg)
	if err != nil {
		// let the aborting-connection packet continue the client's chain
		c.asm.SetSeq(pkg.Header.PacketId + 1)
		return jerrors.Trace(err)
	}
	if !done {
		return nil
	}
	return c.onPacket(payload)
}

func (c *protoConn) onPacket(payload []byte) error {
	switch c.phase {
	case PhaseAwaitHandshakeResponse:
		return c.onHandshakeResponse(payload)
	case PhaseAuthenticating:
		return c.advanceAuth(payload)
	case PhaseCommandLoop:
		return c.onCommand(payload)
	default:
		return jerrors.Errorf("client packet in phase %s", c.phase)
	}
}

func (c *protoConn) onHandshakeResponse(payload []byte) error {
	resp, err := protocol.DecodeHandshakeResponse(payload)
	if err != nil {
		return jerrors.Trace(err)
	}

	// the negotiated set is the intersection; it is frozen for the
	// session from here on
	c.sess.Capabilities = resp.Capabilities & protocol.ServerCapabilities()
	if resp.CharSet != 0 {
		c.sess.CharsetIndex = resp.CharSet
	}
	c.sess.Attrs = resp.Attrs
	c.authUser = resp.User
	c.usingPassword = len(resp.AuthResponse) > 0
	c.pendingDB = resp.Database

	return c.beginAuth(resp.User, resp.AuthPluginName, resp.AuthResponse)
}

// beginAuth selects the server plugin for the user and either verifies the
// in-hand response or asks the client to switch plugins.
func (c *protoConn) beginAuth(user, clientPlugin string, authResponse []byte) error {
	record := c.provider.GetUser(user)
	if record == nil {
		return c.rejectAuth()
	}
	serverPlugin := record.AuthPlugin
	if serverPlugin == "" {
		serverPlugin = c.cfg.DefaultAuthPlugin
	}

	c.phase = PhaseAuthenticating

	if clientPlugin != serverPlugin {
		// plugin mismatch: restart the exchange under the server's
		// choice with fresh plugin data
		seed := util.RandomBytes(20)
		plugin, err := auth.NewPlugin(serverPlugin, record, c.provider, seed)
		if err != nil {
			log.Warn("conn %d: %v", c.sess.ConnectionID(), err)
			return c.rejectAuth()
		}
		c.plugin = plugin
		return c.WritePacket(protocol.EncodeAuthSwitchRequest(serverPlugin, plugin.InitialData()))
	}

	plugin, err := auth.NewPlugin(serverPlugin, record, c.provider, c.greeting.AuthSeed())
	if err != nil {
		log.Warn("conn %d: %v", c.sess.ConnectionID(), err)
		return c.rejectAuth()
	}
	c.plugin = plugin
	return c.advanceAuth(authResponse)
}

// advanceAuth feeds one client payload to the plugin and acts on the
// verdict.
func (c *protoConn) advanceAuth(clientData []byte) error {
	if c.plugin == nil {
		return jerrors.New("auth data with no active plugin")
	}
	step := c.plugin.Step(clientData)
	switch step.Kind {
	case auth.StepContinue:
		return c.WritePacket(protocol.EncodeAuthMoreData(step.Data))
	case auth.StepAccept:
		identity := step.Identity
		if identity == "" {
			identity = c.authUser
		}
		return c.finishAuth(identity)
	default:
		log.Warn("conn %d auth rejected for %q: %s", c.sess.ConnectionID(), c.authUser, step.Reason)
		return c.rejectAuth()
	}
}

func (c *protoConn) finishAuth(identity string) error {
	c.plugin = nil
	c.sess.SetUser(identity)

	if c.handler == nil {
		backend := c.backendFactory(c.sess)
		c.handler = dispatcher.NewCommandHandler(c.cfg, c.sess, backend)
		if err := backend.Init(c.sess); err != nil {
			log.Error("conn %d backend init: %v", c.sess.ConnectionID(), err)
			return c.rejectAuth()
		}
	}

	if c.pendingDB != "" {
		if err := c.handler.Backend().UseDB(c.pendingDB); err != nil {
			ep := protocol.NewErrorPacket(common.NewSQLError1(common.ER_BAD_DB_ERROR, c.pendingDB))
			if werr := c.WritePacket(ep.Encode(c.sess.Capabilities)); werr != nil {
				return jerrors.Trace(werr)
			}
			c.close()
			return nil
		}
		c.sess.SetDatabase(c.pendingDB)
		c.pendingDB = ""
	}

	ok := &protocol.OK{StatusFlags: c.sess.StatusFlags}
	if err := c.WritePacket(ok.Encode(c.sess.Capabilities)); err != nil {
		return jerrors.Trace(err)
	}
	c.phase = PhaseCommandLoop
	return nil
}

func (c *protoConn) rejectAuth() error {
	usingPassword := "NO"
	if c.usingPassword {
		usingPassword = "YES"
	}
	se := common.NewSQLError1(common.ER_ACCESS_DENIED_ERROR,
		c.authUser, c.transport.RemoteAddr(), usingPassword)
	ep := protocol.NewErrorPacket(se)
	if err := c.WritePacket(ep.Encode(c.sess.Capabilities)); err != nil {
		return jerrors.Trace(err)
	}
	c.close()
	return nil
}

func (c *protoConn) onCommand(payload []byte) error {
	res, err := c.handler.HandleCommand(c, payload)
	if err != nil {
		return jerrors.Trace(err)
	}
	switch res.Action {
	case dispatcher.ActionQuit:
		c.close()
		return nil
	case dispatcher.ActionChangeUser:
		cu := res.ChangeUser
		// authentication restarts on the live connection: only the
		// connection id survives
		c.sess.ResetState()
		if err := c.handler.Backend().Reset(); err != nil {
			log.Warn("conn %d backend reset: %v", c.sess.ConnectionID(), err)
		}
		if cu.CharSet != 0 {
			c.sess.CharsetIndex = uint8(cu.CharSet)
		}
		c.authUser = cu.User
		c.usingPassword = len(cu.AuthResponse) > 0
		c.pendingDB = cu.Database
		return c.beginAuth(cu.User, cu.AuthPluginName, cu.AuthResponse)
	}
	return nil
}

// fatal ends the connection on a protocol error. Before the command loop
// the stream just closes; inside it, a last 1152 packet goes out first.
func (c *protoConn) fatal(err error) {
	log.Error("conn %d fatal in phase %s: %+v",
		c.sess.ConnectionID(), c.phase, jerrors.ErrorStack(err))
	if c.phase == PhaseCommandLoop && !c.transport.IsClosed() {
		se := common.NewSQLError1(common.ER_ABORTING_CONNECTION,
			c.sess.ConnectionID(), c.sess.Database(), c.sess.User(), err.Error())
		ep := protocol.NewErrorPacket(se)
		if werr := c.WritePacket(ep.Encode(c.sess.Capabilities)); werr != nil {
			log.Warn("conn %d: writing the aborting-connection packet failed: %v",
				c.sess.ConnectionID(), werr)
		}
	}
	c.close()
}

func (c *protoConn) close() {
	c.phase = PhaseClosing
	c.transport.Close()
}

// teardown runs once when the transport is gone.
func (c *protoConn) teardown() {
	if c.phase == PhaseClosed {
		return
	}
	c.phase = PhaseClosed
	if c.handler != nil {
		c.handler.Backend().Close()
	}
}
