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
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/AlexStocks/log4go"
	gxbytes "github.com/dubbogo/gost/bytes"
	gxcontext "github.com/dubbogo/gost/context"
	gxtime "github.com/dubbogo/gost/time"
	jerrors "github.com/juju/errors"

	"github.com/zhukovaskychina/xmysql-protocol/logger"
)

const (
	maxReadBufLen    = 4 * 1024
	netIOTimeout     = 30e9
	period           = 60 * 1e9 // 1 minute
	pendingDuration  = 3e9
	MaxWheelTimeSpan = 900e9 // 900s, 15 minute

	defaultSessionName    = "session"
	defaultTCPSessionName = "tcp-session"

	outputFormat = "session %s, Read Bytes: %d, Write Bytes: %d, Read Pkgs: %d, Write Pkgs: %d"
)

var (
	ErrSessionClosed = jerrors.New("session already closed")

	wheel *gxtime.Wheel
)

func init() {
	span := 100e6 // 100ms
	buckets := MaxWheelTimeSpan / span
	wheel = gxtime.NewWheel(time.Duration(span), int(buckets))
}

func GetTimeWheel() *gxtime.Wheel {
	return wheel
}

// Session is one transport session: the read loop plus the write surface
// the protocol engine emits into.
type Session interface {
	Connection
	Stat() string
	IsClosed() bool

	SetEventListener(EventListener)
	SetName(string)
	SetMaxMsgLen(int)
	SetReader(Reader)

	GetAttribute(interface{}) interface{}
	SetAttribute(interface{}, interface{})
	RemoveAttribute(interface{})

	WriteBytes([]byte) error
	Close()

	run()
}

// EventListener handles the session lifecycle events.
type EventListener interface {
	// OnOpen is invoked when the session is established; returning an
	// error refuses it.
	OnOpen(Session) error

	// OnClose is invoked when the session is torn down.
	OnClose(Session)

	// OnError is invoked when the read loop dies.
	OnError(Session, error)

	// OnCron is the periodic housekeeping hook.
	OnCron(Session)

	// OnMessage is invoked once per packet the Reader produced.
	OnMessage(Session, interface{})
}

// Reader splits the inbound byte stream into packets.
type Reader interface {
	// Read parses one packet from data. A nil packet with nil error means
	// more bytes are needed; the int is how many bytes were consumed.
	Read(Session, []byte) (interface{}, int, error)
}

type session struct {
	name string

	Connection
	listener EventListener
	reader   Reader

	maxMsgLen int32
	period    time.Duration
	wait      time.Duration

	once  *sync.Once
	done  chan struct{}
	attrs *gxcontext.ValuesContext

	grNum int32
	wlock sync.Mutex
	lock  sync.RWMutex
}

func newSession(conn Connection) *session {
	ss := &session{
		name:       defaultSessionName,
		Connection: conn,
		maxMsgLen:  maxReadBufLen,
		period:     period,
		wait:       pendingDuration,
		once:       &sync.Once{},
		done:       make(chan struct{}),
		attrs:      gxcontext.NewValuesContext(context.Background()),
	}

	ss.Connection.setSession(ss)
	ss.SetWriteTimeout(netIOTimeout)
	ss.SetReadTimeout(netIOTimeout)

	return ss
}

func newTCPSession(conn net.Conn) Session {
	c := newMySQLTCPConn(conn)
	ss := newSession(c)
	ss.name = defaultTCPSessionName
	return ss
}

// NewStreamSession builds a session over caller-supplied streams.
func NewStreamSession(reader io.Reader, writer io.Writer, closer io.Closer, peer string) Session {
	c := NewMysqlStreamConn(reader, writer, closer, peer)
	ss := newSession(c)
	ss.name = "stream-session"
	return ss
}

// Stat returns the connect statistic data.
func (s *session) Stat() string {
	var conn *mysqlConn
	switch c := s.Connection.(type) {
	case *MysqlTCPConn:
		conn = &c.mysqlConn
	case *MysqlStreamConn:
		conn = &c.mysqlConn
	default:
		return ""
	}
	return fmt.Sprintf(
		outputFormat,
		s.sessionToken(),
		atomic.LoadUint32(&(conn.readBytes)),
		atomic.LoadUint32(&(conn.writeBytes)),
		atomic.LoadUint32(&(conn.readPkgNum)),
		atomic.LoadUint32(&(conn.writePkgNum)),
	)
}

// IsClosed checks whether the session has been closed.
func (s *session) IsClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// SetMaxMsgLen sets the maximum wire frame length the reader accepts.
func (s *session) SetMaxMsgLen(length int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.maxMsgLen = int32(length)
}

func (s *session) SetName(name string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.name = name
}

func (s *session) SetEventListener(listener EventListener) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.listener = listener
}

func (s *session) SetReader(reader Reader) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.reader = reader
}

func (s *session) GetAttribute(key interface{}) interface{} {
	s.lock.RLock()
	if s.attrs == nil {
		s.lock.RUnlock()
		return nil
	}
	ret, flag := s.attrs.Get(key)
	s.lock.RUnlock()

	if !flag {
		return nil
	}
	return ret
}

func (s *session) SetAttribute(key interface{}, value interface{}) {
	s.lock.Lock()
	if s.attrs != nil {
		s.attrs.Set(key, value)
	}
	s.lock.Unlock()
}

func (s *session) RemoveAttribute(key interface{}) {
	s.lock.Lock()
	if s.attrs != nil {
		s.attrs.Delete(key)
	}
	s.lock.Unlock()
}

func (s *session) sessionToken() string {
	if s.IsClosed() || s.Connection == nil {
		return "session-closed"
	}
	return fmt.Sprintf("{%s:%d:%s<->%s}",
		s.name, s.ID(), s.LocalAddr(), s.RemoteAddr())
}

// WriteBytes writes raw bytes to the stream. The protocol engine holds the
// write end for a whole logical packet, so fragments never interleave.
func (s *session) WriteBytes(pkg []byte) error {
	if s.IsClosed() {
		return ErrSessionClosed
	}
	s.wlock.Lock()
	defer s.wlock.Unlock()
	if _, err := s.Connection.send(pkg); err != nil {
		return jerrors.Annotatef(err, "s.Connection.Write(pkg len:%d)", len(pkg))
	}
	s.incWritePkgNum()
	return nil
}

func (s *session) run() {
	if s.Connection == nil || s.listener == nil || s.reader == nil {
		errStr := fmt.Sprintf("session{name:%s, conn:%#v, listener:%#v, reader:%#v}",
			s.name, s.Connection, s.listener, s.reader)
		log.Error(errStr)
		panic(errStr)
	}

	s.UpdateActive()
	if err := s.listener.OnOpen(s); err != nil {
		log.Error("[OnOpen] session %s, error: %#v", s.Stat(), err)
		s.Close()
		return
	}

	atomic.AddInt32(&(s.grNum), 2)
	go s.handlePackage()
	go s.cronLoop()
}

func (s *session) cronLoop() {
	defer atomic.AddInt32(&(s.grNum), -1)
	for {
		select {
		case <-s.done:
			return
		case <-wheel.After(s.period):
			s.listener.OnCron(s)
		}
	}
}

func (s *session) handlePackage() {
	var err error

	defer func() {
		if r := recover(); r != nil {
			const size = 64 << 10
			rBuf := make([]byte, size)
			rBuf = rBuf[:runtime.Stack(rBuf, false)]
			log.Error("[session.handlePackage] panic session %s: err=%s%s", s.sessionToken(), r, rBuf)
		}

		grNum := atomic.AddInt32(&(s.grNum), -1)
		log.Info("%s, [session.handlePackage] gr will exit now, left gr num %d", s.sessionToken(), grNum)
		if err != nil {
			log.Error("%s, [session.handlePackage] error:%+v", s.sessionToken(), jerrors.ErrorStack(err))
			s.listener.OnError(s, err)
		}
		s.listener.OnClose(s)
		s.stop()
	}()

	err = s.handleTCPPackage()
}

// handleTCPPackage pulls stream bytes into frames.
func (s *session) handleTCPPackage() error {
	var (
		ok       bool
		err      error
		netError net.Error
		exit     bool
		bufLen   int
		pkgLen   int
		bufp     *[]byte
		buf      []byte
		pktBuf   *bytes.Buffer
		pkg      interface{}
	)

	bufp = gxbytes.GetBytes(maxReadBufLen)
	buf = *bufp
	pktBuf = gxbytes.GetBytesBuffer()

	defer func() {
		gxbytes.PutBytes(bufp)
		gxbytes.PutBytesBuffer(pktBuf)
	}()

	for {
		if s.IsClosed() {
			err = nil
			// do not handle the left stream in pktBuf and exit asap.
			break
		}

		bufLen = 0
		for {
			// for clause for the network timeout condition check
			bufLen, err = s.Connection.recv(buf)
			if err != nil {
				if netError, ok = jerrors.Cause(err).(net.Error); ok && netError.Timeout() {
					break
				}
				if jerrors.Cause(err) == io.EOF {
					logger.Debugf("%s, [session.conn.read] = eof", s.sessionToken())
					err = nil
					exit = true
					break
				}
				log.Error("%s, [session.conn.read] = error:%+v", s.sessionToken(), jerrors.ErrorStack(err))
				exit = true
			}
			break
		}
		if exit {
			break
		}
		if 0 == bufLen {
			continue
		}

		pktBuf.Write(buf[:bufLen])
		for {
			if pktBuf.Len() <= 0 {
				break
			}
			pkg, pkgLen, err = s.reader.Read(s, pktBuf.Bytes())
			if err == nil && s.maxMsgLen > 0 && pkgLen > int(s.maxMsgLen) {
				err = jerrors.Errorf("pkgLen %d > session max message len %d", pkgLen, s.maxMsgLen)
			}
			if err != nil {
				log.Warn("%s, [session.handleTCPPackage] = len{%d}, error:%+v",
					s.sessionToken(), pkgLen, jerrors.ErrorStack(err))
				exit = true
				break
			}
			if pkg == nil {
				break // need more bytes
			}
			s.UpdateActive()
			s.incReadPkgNum()
			s.listener.OnMessage(s, pkg)
			pktBuf.Next(pkgLen)
		}
		if exit {
			break
		}
	}

	return jerrors.Trace(err)
}

func (s *session) stop() {
	select {
	case <-s.done:
		return
	default:
		s.once.Do(func() {
			close(s.done)
			s.Connection.close((int)((int64)(s.wait) / 1e9))
		})
	}
}

// Close shuts the session down. It is thread safe and idempotent.
func (s *session) Close() {
	s.stop()
	log.Info("%s closed now. its current gr num is %d",
		s.sessionToken(), atomic.LoadInt32(&(s.grNum)))
}
