package protocol

import (
	"github.com/zhukovaskychina/xmysql-protocol/server/common"
	"github.com/zhukovaskychina/xmysql-protocol/util"
)

type EOFPacket struct {
	WarningCount uint16
	Status       uint16
}

func NewEOFPacket() *EOFPacket {
	return &EOFPacket{Status: common.SERVER_STATUS_AUTOCOMMIT}
}

// Encode renders the EOF payload (tag 0xFE, warnings, status on 4.1).
func (eofPacket *EOFPacket) Encode(capabilities uint32) []byte {
	buff := make([]byte, 0, 5)
	buff = util.WriteByte(buff, 0xFE)
	if capabilities&common.CLIENT_PROTOCOL_41 != 0 {
		buff = util.WriteUB2(buff, eofPacket.WarningCount)
		buff = util.WriteUB2(buff, eofPacket.Status)
	}
	return buff
}

// IsEOFPacket recognizes an EOF payload: 0xFE tag and a short body, which
// distinguishes it from the 0xFE length prefix of a large row.
func IsEOFPacket(body []byte) bool {
	return len(body) > 0 && body[0] == 0xFE && len(body) < 9
}
