package protocol

import (
	"github.com/zhukovaskychina/xmysql-protocol/server/common"
	"github.com/zhukovaskychina/xmysql-protocol/util"
)

var (
	SqlstateMarker  = byte('#')
	DefaultSqlstate = "HY000"
)

type ErrorPacket struct {
	ErrorCode    uint16
	SqlState     string
	ErrorMessage string
}

// NewErrorPacket builds an error payload from a SQLError.
func NewErrorPacket(se *common.SQLError) *ErrorPacket {
	return &ErrorPacket{
		ErrorCode:    se.Num,
		SqlState:     se.State,
		ErrorMessage: se.Message,
	}
}

// Encode renders the ERR payload: 0xFF, code, '#'+sqlstate on 4.1, message.
func (ep *ErrorPacket) Encode(capabilities uint32) []byte {
	state := ep.SqlState
	if len(state) != 5 {
		state = DefaultSqlstate
	}
	buff := make([]byte, 0, 9+len(ep.ErrorMessage))
	buff = util.WriteByte(buff, 0xFF)
	buff = util.WriteUB2(buff, ep.ErrorCode)
	if capabilities&common.CLIENT_PROTOCOL_41 != 0 {
		buff = util.WriteByte(buff, SqlstateMarker)
		buff = util.WriteBytes(buff, []byte(state))
	}
	buff = util.WriteBytes(buff, []byte(ep.ErrorMessage))
	return buff
}

// DecodeError parses an ERR payload; used by the loopback tests.
func DecodeError(buff []byte, capabilities uint32) *ErrorPacket {
	ep := new(ErrorPacket)
	cursor := 1 // 0xFF tag
	cursor, ep.ErrorCode = util.ReadUB2(buff, cursor)
	if capabilities&common.CLIENT_PROTOCOL_41 != 0 && cursor < len(buff) && buff[cursor] == SqlstateMarker {
		cursor++
		var state []byte
		cursor, state = util.ReadBytes(buff, cursor, 5)
		ep.SqlState = string(state)
	}
	_, ep.ErrorMessage = util.ReadString(buff, cursor)
	return ep
}
