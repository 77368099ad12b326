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
	"compress/flate"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/snappy"
	jerrors "github.com/juju/errors"
	"github.com/pierrec/lz4/v4"
)

var (
	launchTime = time.Now()

	connID uint32
)

// NextConnectionID hands out process-wide connection ids.
func NextConnectionID() uint32 {
	return atomic.AddUint32(&connID, 1)
}

// CompressType selects the transport-level compression of the raw stream.
// This sits below the MySQL protocol; the MySQL compressed protocol itself
// is not implemented.
type CompressType int

const (
	CompressNone CompressType = iota
	CompressZip
	CompressSnappy
	CompressLz4
)

// Connection is the transport a session runs on.
type Connection interface {
	ID() uint32
	SetCompressType(CompressType) error
	LocalAddr() string
	RemoteAddr() string
	incReadPkgNum()
	incWritePkgNum()
	// UpdateActive updates session's active time
	UpdateActive()
	// GetActive returns the session's active time
	GetActive() time.Time
	readTimeout() time.Duration
	// SetReadTimeout sets deadline for the future read calls.
	SetReadTimeout(time.Duration)
	writeTimeout() time.Duration
	// SetWriteTimeout sets deadline for the future write calls.
	SetWriteTimeout(time.Duration)
	send(interface{}) (int, error)
	recv([]byte) (int, error)
	// close discards the connection after waitSec seconds.
	close(waitSec int)
	setSession(Session)
}

// mysqlConn is the statistics and deadline base shared by every transport.
type mysqlConn struct {
	id            uint32
	compress      CompressType
	readBytes     uint32
	writeBytes    uint32
	readPkgNum    uint32
	writePkgNum   uint32
	active        int64 // last active, in nanoseconds since launch
	rTimeout      time.Duration
	wTimeout      time.Duration
	rLastDeadline time.Time
	wLastDeadline time.Time
	local         string
	peer          string
	ss            Session
}

func (c *mysqlConn) ID() uint32 {
	return c.id
}

func (c *mysqlConn) LocalAddr() string {
	return c.local
}

func (c *mysqlConn) RemoteAddr() string {
	return c.peer
}

func (c *mysqlConn) incReadPkgNum() {
	atomic.AddUint32(&c.readPkgNum, 1)
}

func (c *mysqlConn) incWritePkgNum() {
	atomic.AddUint32(&c.writePkgNum, 1)
}

func (c *mysqlConn) UpdateActive() {
	atomic.StoreInt64(&(c.active), int64(time.Since(launchTime)))
}

func (c *mysqlConn) GetActive() time.Time {
	return launchTime.Add(time.Duration(atomic.LoadInt64(&(c.active))))
}

func (c *mysqlConn) readTimeout() time.Duration {
	return c.rTimeout
}

func (c *mysqlConn) writeTimeout() time.Duration {
	return c.wTimeout
}

func (c *mysqlConn) SetReadTimeout(rTimeout time.Duration) {
	if rTimeout < 1 {
		panic("@rTimeout < 1")
	}
	c.rTimeout = rTimeout
}

func (c *mysqlConn) SetWriteTimeout(wTimeout time.Duration) {
	if wTimeout < 1 {
		panic("@wTimeout < 1")
	}
	c.wTimeout = wTimeout
}

func (c *mysqlConn) setSession(ss Session) {
	c.ss = ss
}

/////////////////////////////////////////
// tcp connection
/////////////////////////////////////////

// MysqlTCPConn runs the protocol over a net.Conn.
type MysqlTCPConn struct {
	mysqlConn
	once   sync.Once
	conn   net.Conn
	reader io.Reader
	writer io.Writer
}

func newMySQLTCPConn(conn net.Conn) *MysqlTCPConn {
	if conn == nil {
		panic("newMySQLTCPConn(conn is nil)")
	}
	var local, peer string
	if conn.LocalAddr() != nil {
		local = conn.LocalAddr().String()
	}
	if conn.RemoteAddr() != nil {
		peer = conn.RemoteAddr().String()
	}
	return &MysqlTCPConn{
		mysqlConn: mysqlConn{
			id:       NextConnectionID(),
			compress: CompressNone,
			local:    local,
			peer:     peer,
		},
		conn:   conn,
		reader: io.Reader(conn),
		writer: io.Writer(conn),
	}
}

// SetCompressType swaps the stream codec.
func (t *MysqlTCPConn) SetCompressType(c CompressType) error {
	switch c {
	case CompressNone:
		t.reader = io.Reader(t.conn)
		t.writer = io.Writer(t.conn)
	case CompressZip:
		t.reader = flate.NewReader(t.conn)
		w, err := flate.NewWriter(t.conn, flate.DefaultCompression)
		if err != nil {
			return jerrors.Trace(err)
		}
		t.writer = w
	case CompressSnappy:
		t.reader = snappy.NewReader(t.conn)
		t.writer = snappy.NewBufferedWriter(t.conn)
	case CompressLz4:
		t.reader = lz4.NewReader(t.conn)
		t.writer = lz4.NewWriter(t.conn)
	default:
		return jerrors.Errorf("illegal comparess type %d", c)
	}
	t.compress = c
	return nil
}

func (t *MysqlTCPConn) recv(p []byte) (int, error) {
	var (
		err         error
		currentTime time.Time
		length      int
	)

	if t.compress == CompressNone && t.rTimeout > 0 {
		// Optimization: update read deadline only if more than 25%
		// of the last read deadline exceeded.
		// See https://github.com/golang/go/issues/15133 for details.
		currentTime = time.Now()
		if currentTime.Sub(t.rLastDeadline) > (t.rTimeout >> 2) {
			if err = t.conn.SetReadDeadline(currentTime.Add(t.rTimeout)); err != nil {
				return 0, jerrors.Trace(err)
			}
			t.rLastDeadline = currentTime
		}
	}

	length, err = t.reader.Read(p)
	atomic.AddUint32(&t.readBytes, uint32(length))
	return length, jerrors.Trace(err)
}

func (t *MysqlTCPConn) send(pkg interface{}) (int, error) {
	var (
		err         error
		currentTime time.Time
		length      int
	)

	if t.compress == CompressNone && t.wTimeout > 0 {
		currentTime = time.Now()
		if currentTime.Sub(t.wLastDeadline) > (t.wTimeout >> 2) {
			if err = t.conn.SetWriteDeadline(currentTime.Add(t.wTimeout)); err != nil {
				return 0, jerrors.Trace(err)
			}
			t.wLastDeadline = currentTime
		}
	}

	if p, ok := pkg.([]byte); ok {
		length, err = t.writer.Write(p)
		if err == nil {
			atomic.AddUint32(&t.writeBytes, uint32(len(p)))
		}
		return length, jerrors.Trace(err)
	}
	return 0, jerrors.Errorf("illegal @pkg{%#v} type", pkg)
}

func (t *MysqlTCPConn) close(waitSec int) {
	t.once.Do(func() {
		if writer, ok := t.writer.(*snappy.Writer); ok {
			writer.Close()
		}
		if writer, ok := t.writer.(*lz4.Writer); ok {
			writer.Close()
		}
		if conn := t.conn; conn != nil {
			if tcpConn, ok := conn.(*net.TCPConn); ok && waitSec > 0 {
				tcpConn.SetLinger(waitSec)
			}
			conn.Close()
		}
	})
}

/////////////////////////////////////////
// stream connection
/////////////////////////////////////////

// MysqlStreamConn runs the protocol over an already-established pair of
// byte streams, the embedding entry point: the caller owns the transport
// bootstrap (unix sockets, TLS, in-memory pipes) and hands the engine the
// two stream ends plus a peer description.
type MysqlStreamConn struct {
	mysqlConn
	once   sync.Once
	reader io.Reader
	writer io.Writer
	closer io.Closer
}

func NewMysqlStreamConn(reader io.Reader, writer io.Writer, closer io.Closer, peer string) *MysqlStreamConn {
	return &MysqlStreamConn{
		mysqlConn: mysqlConn{
			id:    NextConnectionID(),
			local: "stream",
			peer:  peer,
		},
		reader: reader,
		writer: writer,
		closer: closer,
	}
}

func (s *MysqlStreamConn) SetCompressType(c CompressType) error {
	if c != CompressNone {
		return jerrors.New("stream connections negotiate compression outside the engine")
	}
	return nil
}

func (s *MysqlStreamConn) recv(p []byte) (int, error) {
	length, err := s.reader.Read(p)
	atomic.AddUint32(&s.readBytes, uint32(length))
	return length, jerrors.Trace(err)
}

func (s *MysqlStreamConn) send(pkg interface{}) (int, error) {
	if p, ok := pkg.([]byte); ok {
		length, err := s.writer.Write(p)
		if err == nil {
			atomic.AddUint32(&s.writeBytes, uint32(len(p)))
		}
		return length, jerrors.Trace(err)
	}
	return 0, jerrors.Errorf("illegal @pkg{%#v} type", pkg)
}

func (s *MysqlStreamConn) close(int) {
	s.once.Do(func() {
		if s.closer != nil {
			s.closer.Close()
		}
	})
}
