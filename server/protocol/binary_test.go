package protocol

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/xmysql-protocol/server/common"
)

func TestBinaryRowNullBitmap(t *testing.T) {
	fields := []*FieldPacket{
		GetField("a", common.COLUMN_TYPE_LONG),
		GetField("b", common.COLUMN_TYPE_LONG),
	}
	row, err := EncodeBinaryRow(fields, []interface{}{nil, int64(42)})
	require.NoError(t, err)

	// header, one bitmap byte with bit (0+2) set, then 42 as a 4-byte LONG
	assert.Equal(t, []byte{0x00, 0x04, 0x2A, 0x00, 0x00, 0x00}, row)
}

func TestBinaryRowBitmapSpansBytes(t *testing.T) {
	fields := make([]*FieldPacket, 8)
	values := make([]interface{}, 8)
	for i := range fields {
		fields[i] = GetField("c", common.COLUMN_TYPE_TINY)
		values[i] = nil
	}
	row, err := EncodeBinaryRow(fields, values)
	require.NoError(t, err)
	// 8 columns + 2 reserved bits need two bitmap bytes
	require.Equal(t, 3, len(row))
	assert.Equal(t, byte(0x00), row[0])
	assert.Equal(t, byte(0xFC), row[1])
	assert.Equal(t, byte(0x03), row[2])
}

func TestBinaryIntRoundTrip(t *testing.T) {
	cases := []struct {
		fieldType byte
		value     interface{}
		unsigned  bool
	}{
		{common.COLUMN_TYPE_TINY, int64(-5), false},
		{common.COLUMN_TYPE_TINY, uint64(200), true},
		{common.COLUMN_TYPE_SHORT, int64(-300), false},
		{common.COLUMN_TYPE_LONG, int64(-70000), false},
		{common.COLUMN_TYPE_LONG, uint64(3000000000), true},
		{common.COLUMN_TYPE_LONGLONG, int64(-1), false},
		{common.COLUMN_TYPE_LONGLONG, uint64(0xFFFFFFFFFFFFFFFF), true},
	}
	for _, c := range cases {
		buff, err := EncodeBinaryValue(nil, c.fieldType, c.value)
		require.NoError(t, err)
		_, got, err := DecodeBinaryValue(buff, 0, c.fieldType, c.unsigned)
		require.NoError(t, err)
		assert.Equal(t, c.value, got, "type %d", c.fieldType)
	}
}

func TestBinaryFloatRoundTrip(t *testing.T) {
	buff, err := EncodeBinaryValue(nil, common.COLUMN_TYPE_DOUBLE, 3.25)
	require.NoError(t, err)
	_, got, err := DecodeBinaryValue(buff, 0, common.COLUMN_TYPE_DOUBLE, false)
	require.NoError(t, err)
	assert.Equal(t, 3.25, got)

	buff, err = EncodeBinaryValue(nil, common.COLUMN_TYPE_FLOAT, float32(1.5))
	require.NoError(t, err)
	require.Equal(t, 4, len(buff))
	_, got, err = DecodeBinaryValue(buff, 0, common.COLUMN_TYPE_FLOAT, false)
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), got)
}

func TestBinaryDateTimeLengths(t *testing.T) {
	// zero value, date-only, second precision, microsecond precision
	cases := []struct {
		value  time.Time
		length byte
	}{
		{time.Time{}, 0},
		{time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), 4},
		{time.Date(2024, 5, 1, 13, 45, 59, 0, time.UTC), 7},
		{time.Date(2024, 5, 1, 13, 45, 59, 123456000, time.UTC), 11},
	}
	for _, c := range cases {
		buff, err := EncodeBinaryValue(nil, common.COLUMN_TYPE_DATETIME, c.value)
		require.NoError(t, err)
		require.Equal(t, c.length, buff[0])
		require.Equal(t, int(c.length)+1, len(buff))

		_, got, err := DecodeBinaryValue(buff, 0, common.COLUMN_TYPE_DATETIME, false)
		require.NoError(t, err)
		if c.length == 0 {
			assert.True(t, got.(time.Time).IsZero())
		} else {
			assert.True(t, c.value.Equal(got.(time.Time)), "want %v got %v", c.value, got)
		}
	}
}

func TestBinaryTimeLengths(t *testing.T) {
	cases := []struct {
		value  time.Duration
		length byte
	}{
		{0, 0},
		{-(26*time.Hour + 30*time.Minute), 8},
		{3*time.Hour + 2*time.Minute + time.Second + 42*time.Microsecond, 12},
	}
	for _, c := range cases {
		buff, err := EncodeBinaryValue(nil, common.COLUMN_TYPE_TIME, c.value)
		require.NoError(t, err)
		require.Equal(t, c.length, buff[0])

		_, got, err := DecodeBinaryValue(buff, 0, common.COLUMN_TYPE_TIME, false)
		require.NoError(t, err)
		assert.Equal(t, c.value, got)
	}
}

func TestBinaryDecimalRoundTrip(t *testing.T) {
	d := decimal.RequireFromString("-12345.6789")
	buff, err := EncodeBinaryValue(nil, common.COLUMN_TYPE_NEWDECIMAL, d)
	require.NoError(t, err)

	_, got, err := DecodeBinaryValue(buff, 0, common.COLUMN_TYPE_NEWDECIMAL, false)
	require.NoError(t, err)
	assert.True(t, d.Equal(got.(decimal.Decimal)))
}

func TestBinaryStringFamily(t *testing.T) {
	buff, err := EncodeBinaryValue(nil, common.COLUMN_TYPE_VAR_STRING, "hello")
	require.NoError(t, err)
	_, got, err := DecodeBinaryValue(buff, 0, common.COLUMN_TYPE_VAR_STRING, false)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestTextRowEncoding(t *testing.T) {
	row, err := EncodeTextRow([]interface{}{int64(1), nil, "x"}, common.CharacterSetUtf8)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, '1', 0xFB, 0x01, 'x'}, row)
}

func TestFieldPacketRoundTrip(t *testing.T) {
	fp := GetField("id", common.COLUMN_TYPE_LONGLONG)
	fp.TableName = []byte("t")
	fp.OrgTableName = []byte("t")
	fp.DBName = []byte("db")

	decoded, err := DecodeFieldPacket(fp.Encode())
	require.NoError(t, err)
	assert.Equal(t, []byte("id"), decoded.Name)
	assert.Equal(t, []byte("t"), decoded.TableName)
	assert.Equal(t, []byte("db"), decoded.DBName)
	assert.Equal(t, byte(common.COLUMN_TYPE_LONGLONG), decoded.Types)
	assert.Equal(t, uint16(common.CharacterSetBinary), decoded.CharsetIndex)
	assert.NotZero(t, decoded.Flags&common.BINARY_FLAG)
}
