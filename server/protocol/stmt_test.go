package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/xmysql-protocol/server/common"
	"github.com/zhukovaskychina/xmysql-protocol/util"
)

func TestStmtPrepareOKLayout(t *testing.T) {
	p := &StmtPrepareOK{StatementID: 1, ColumnCount: 2, ParamCount: 3, WarningCount: 0}
	payload := p.Encode()
	require.Equal(t, 12, len(payload))
	assert.Equal(t, byte(0x00), payload[0])
	_, id := util.ReadUB4(payload, 1)
	assert.Equal(t, uint32(1), id)
	_, cols := util.ReadUB2(payload, 5)
	assert.Equal(t, uint16(2), cols)
	_, params := util.ReadUB2(payload, 7)
	assert.Equal(t, uint16(3), params)
}

// buildExecuteBody renders a COM_STMT_EXECUTE body (opcode stripped), the
// way libmysql does.
func buildExecuteBody(stmtID uint32, types []byte, unsigned []bool, values [][]byte, nulls []bool) []byte {
	body := util.WriteUB4(nil, stmtID)
	body = util.WriteByte(body, 0x00)   // flags
	body = util.WriteUB4(body, 1)       // iteration count
	n := len(types)
	if n == 0 {
		return body
	}
	mask := make([]byte, (n+7)/8)
	for i, isNull := range nulls {
		if isNull {
			mask[i/8] |= 1 << uint(i%8)
		}
	}
	body = util.WriteBytes(body, mask)
	body = util.WriteByte(body, 1) // new-params-bound
	for i, tp := range types {
		body = util.WriteByte(body, tp)
		if unsigned[i] {
			body = util.WriteByte(body, 0x80)
		} else {
			body = util.WriteByte(body, 0x00)
		}
	}
	for i, v := range values {
		if !nulls[i] {
			body = util.WriteBytes(body, v)
		}
	}
	return body
}

func TestStmtExecuteDecodeWithNull(t *testing.T) {
	// execute of "SELECT ?, ?" with [NULL, 42]
	body := buildExecuteBody(5,
		[]byte{common.COLUMN_TYPE_NULL, common.COLUMN_TYPE_LONG},
		[]bool{false, false},
		[][]byte{nil, {0x2A, 0x00, 0x00, 0x00}},
		[]bool{true, false})

	se, cursor, err := DecodeStmtExecuteHeader(body)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), se.StatementID)
	require.NoError(t, se.DecodeStmtExecuteParams(body, cursor, 2, nil, common.CLIENT_PROTOCOL_41))

	require.Len(t, se.Params, 2)
	assert.True(t, se.NewParamsBound)
	assert.True(t, se.NullParams[0])
	assert.Nil(t, se.Params[0])
	assert.Equal(t, int64(42), se.Params[1])
}

func TestStmtExecuteReusesBoundTypes(t *testing.T) {
	body := util.WriteUB4(nil, 9)
	body = util.WriteByte(body, 0x00)
	body = util.WriteUB4(body, 1)
	body = util.WriteBytes(body, []byte{0x00}) // null bitmap, nothing null
	body = util.WriteByte(body, 0)             // new-params-bound = 0
	body = util.WriteUB4(body, 7)              // one LONG value

	se, cursor, err := DecodeStmtExecuteHeader(body)
	require.NoError(t, err)

	prev := []uint16{common.COLUMN_TYPE_LONG}
	require.NoError(t, se.DecodeStmtExecuteParams(body, cursor, 1, prev, common.CLIENT_PROTOCOL_41))
	assert.False(t, se.NewParamsBound)
	assert.Equal(t, int64(7), se.Params[0])

	// without previously bound types the same body is an error
	se2, cursor2, err := DecodeStmtExecuteHeader(body)
	require.NoError(t, err)
	assert.Error(t, se2.DecodeStmtExecuteParams(body, cursor2, 1, nil, common.CLIENT_PROTOCOL_41))
}

func TestStmtLongDataDecode(t *testing.T) {
	body := util.WriteUB4(nil, 3)
	body = util.WriteUB2(body, 1)
	body = util.WriteBytes(body, []byte("chunk-a"))

	ld, err := DecodeStmtLongData(body)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), ld.StatementID)
	assert.Equal(t, uint16(1), ld.ParamID)
	assert.Equal(t, []byte("chunk-a"), ld.Data)

	_, err = DecodeStmtLongData([]byte{1, 2})
	assert.Error(t, err)
}

func TestDecodeQueryWithoutAttributeCapability(t *testing.T) {
	sql, attrs, err := DecodeQuery([]byte("SELECT 1"), common.CLIENT_PROTOCOL_41)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", sql)
	assert.Nil(t, attrs)
}

func TestDecodeQueryWithAttributes(t *testing.T) {
	caps := common.CLIENT_PROTOCOL_41 | common.CLIENT_QUERY_ATTRIBUTES

	body := util.WriteLength(nil, 1) // parameter count
	body = util.WriteLength(body, 1) // parameter set count
	body = util.WriteBytes(body, []byte{0x00})
	body = util.WriteByte(body, 1) // new params bind flag
	body = util.WriteByte(body, common.COLUMN_TYPE_VAR_STRING)
	body = util.WriteByte(body, 0x00)
	body = util.WriteWithLength(body, []byte("trace_id"))
	body = util.WriteWithLength(body, []byte("abc-123"))
	body = util.WriteBytes(body, []byte("SELECT 2"))

	sql, attrs, err := DecodeQuery(body, caps)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 2", sql)
	require.Len(t, attrs, 1)
	assert.Equal(t, "trace_id", attrs[0].Name)
	assert.Equal(t, []byte("abc-123"), attrs[0].Value)
}

func TestDecodeQueryZeroAttributes(t *testing.T) {
	caps := common.CLIENT_PROTOCOL_41 | common.CLIENT_QUERY_ATTRIBUTES
	body := util.WriteLength(nil, 0)
	body = util.WriteLength(body, 1)
	body = util.WriteBytes(body, []byte("PING-ish"))

	sql, attrs, err := DecodeQuery(body, caps)
	require.NoError(t, err)
	assert.Equal(t, "PING-ish", sql)
	assert.Empty(t, attrs)
}
