package protocol

import (
	"github.com/zhukovaskychina/xmysql-protocol/server/common"
	"github.com/zhukovaskychina/xmysql-protocol/util"
)

// OK carries the fields of an OK packet; Header is 0x00 for a plain OK and
// 0xFE for the DEPRECATE_EOF result-set terminator form.
type OK struct {
	Header       byte
	AffectedRows uint64
	InsertID     uint64
	StatusFlags  uint16
	Warnings     uint16
	Info         string
	SessionState []byte
}

// Encode renders the OK payload for the negotiated capabilities.
func (ok *OK) Encode(capabilities uint32) []byte {
	header := ok.Header
	if header != 0xFE {
		header = 0x00
	}
	buff := make([]byte, 0, 32+len(ok.Info))
	buff = util.WriteByte(buff, header)
	buff = util.WriteLength(buff, int64(ok.AffectedRows))
	buff = util.WriteLength(buff, int64(ok.InsertID))
	if capabilities&common.CLIENT_PROTOCOL_41 != 0 {
		buff = util.WriteUB2(buff, ok.StatusFlags)
		buff = util.WriteUB2(buff, ok.Warnings)
	} else if capabilities&common.CLIENT_TRANSACTIONS != 0 {
		buff = util.WriteUB2(buff, ok.StatusFlags)
	}
	if capabilities&common.CLIENT_SESSION_TRACK != 0 {
		if len(ok.Info) > 0 || len(ok.SessionState) > 0 {
			buff = util.WriteWithLength(buff, []byte(ok.Info))
		}
		if len(ok.SessionState) > 0 {
			// the state-changes block follows the info string; the flag in
			// the status field announces it
			buff = util.WriteWithLength(buff, ok.SessionState)
		}
	} else if len(ok.Info) > 0 {
		buff = util.WriteBytes(buff, []byte(ok.Info))
	}
	return buff
}

// DecodeOk parses an OK payload; used by the loopback tests.
func DecodeOk(buff []byte, capabilities uint32) *OK {
	ok := new(OK)
	var cursor int
	cursor, ok.Header = util.ReadByte(buff, cursor)
	cursor, ok.AffectedRows, _, _ = util.ReadLength(buff, cursor)
	cursor, ok.InsertID, _, _ = util.ReadLength(buff, cursor)
	if capabilities&common.CLIENT_PROTOCOL_41 != 0 {
		cursor, ok.StatusFlags = util.ReadUB2(buff, cursor)
		cursor, ok.Warnings = util.ReadUB2(buff, cursor)
	}
	if cursor < len(buff) {
		if capabilities&common.CLIENT_SESSION_TRACK != 0 {
			var info string
			cursor, info, _ = util.ReadLengthString(buff, cursor)
			ok.Info = info
			if cursor < len(buff) && ok.StatusFlags&common.SERVER_SESSION_STATE_CHANGED != 0 {
				_, ok.SessionState, _ = util.ReadLengthBytes(buff, cursor)
			}
		} else {
			_, ok.Info = util.ReadString(buff, cursor)
		}
	}
	return ok
}
