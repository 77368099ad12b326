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
	jerrors "github.com/juju/errors"

	"github.com/zhukovaskychina/xmysql-protocol/server/protocol"
)

// MySQLPkgHandler splits the inbound stream into wire frames. Sequence
// checking and multi-frame reassembly happen in the connection state
// machine, which owns the counters.
type MySQLPkgHandler struct {
}

func NewMySQLPkgHandler() *MySQLPkgHandler {
	return &MySQLPkgHandler{}
}

func (h *MySQLPkgHandler) Read(ss Session, data []byte) (interface{}, int, error) {
	pkg, pkgLen, err := protocol.ReadPackage(data)
	if err != nil {
		if jerrors.Cause(err) == protocol.ErrNotEnoughStream {
			return nil, 0, nil
		}
		return nil, 0, jerrors.Trace(err)
	}
	return pkg, pkgLen, nil
}
