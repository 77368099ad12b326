package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/xmysql-protocol/server/common"
)

func TestOKRoundTrip(t *testing.T) {
	caps := common.CLIENT_PROTOCOL_41
	ok := &OK{
		AffectedRows: 3,
		InsertID:     7,
		StatusFlags:  common.SERVER_STATUS_AUTOCOMMIT,
		Warnings:     1,
		Info:         "Rows matched: 3",
	}
	decoded := DecodeOk(ok.Encode(caps), caps)
	assert.Equal(t, byte(0x00), decoded.Header)
	assert.Equal(t, uint64(3), decoded.AffectedRows)
	assert.Equal(t, uint64(7), decoded.InsertID)
	assert.Equal(t, uint16(common.SERVER_STATUS_AUTOCOMMIT), decoded.StatusFlags)
	assert.Equal(t, uint16(1), decoded.Warnings)
	assert.Equal(t, "Rows matched: 3", decoded.Info)
}

func TestOKDeprecateEOFTerminator(t *testing.T) {
	caps := common.CLIENT_PROTOCOL_41 | common.CLIENT_DEPRECATE_EOF
	ok := &OK{Header: 0xFE, StatusFlags: common.SERVER_STATUS_AUTOCOMMIT}
	payload := ok.Encode(caps)
	assert.Equal(t, byte(0xFE), payload[0])
	assert.True(t, len(payload) < 9+MaxPayloadLen)
}

func TestOKSessionTrackInfoIsLengthEncoded(t *testing.T) {
	caps := common.CLIENT_PROTOCOL_41 | common.CLIENT_SESSION_TRACK
	ok := &OK{StatusFlags: common.SERVER_STATUS_AUTOCOMMIT, Info: "hi"}
	payload := ok.Encode(caps)
	// header(1) + affected(1) + insert(1) + status(2) + warnings(2), then
	// lenenc info
	assert.Equal(t, byte(2), payload[7])
	assert.Equal(t, "hi", string(payload[8:]))

	decoded := DecodeOk(payload, caps)
	assert.Equal(t, "hi", decoded.Info)
}

func TestErrorPacketRoundTrip(t *testing.T) {
	caps := common.CLIENT_PROTOCOL_41
	ep := NewErrorPacket(common.NewSQLError1(common.ER_UNKNOWN_COM_ERROR))
	payload := ep.Encode(caps)

	require.Equal(t, byte(0xFF), payload[0])
	decoded := DecodeError(payload, caps)
	assert.Equal(t, uint16(1047), decoded.ErrorCode)
	assert.Equal(t, "08S01", decoded.SqlState)
	assert.Contains(t, decoded.ErrorMessage, "Unknown command")
}

func TestErrorPacketDefaultsSqlstate(t *testing.T) {
	ep := &ErrorPacket{ErrorCode: 1105, SqlState: "bad", ErrorMessage: "boom"}
	decoded := DecodeError(ep.Encode(common.CLIENT_PROTOCOL_41), common.CLIENT_PROTOCOL_41)
	assert.Equal(t, DefaultSqlstate, decoded.SqlState)
}

func TestEOFPacket(t *testing.T) {
	eof := &EOFPacket{WarningCount: 2, Status: common.SERVER_STATUS_AUTOCOMMIT | common.SERVER_MORE_RESULTS_EXISTS}
	payload := eof.Encode(common.CLIENT_PROTOCOL_41)
	require.Equal(t, 5, len(payload))
	assert.Equal(t, byte(0xFE), payload[0])
	assert.Equal(t, byte(2), payload[1])
	assert.True(t, IsEOFPacket(payload))
	assert.False(t, IsEOFPacket([]byte{0x00, 0x00}))
}
