package protocol

import (
	"math"
	"time"

	jerrors "github.com/juju/errors"
	"github.com/shopspring/decimal"

	"github.com/zhukovaskychina/xmysql-protocol/server/common"
	"github.com/zhukovaskychina/xmysql-protocol/util"
)

// EncodeBinaryRow renders one row of the binary protocol: 0x00 header, the
// NULL bitmap with its 2-bit offset, then each non-null value encoded per
// its column type.
func EncodeBinaryRow(fields []*FieldPacket, values []interface{}) ([]byte, error) {
	if len(fields) != len(values) {
		return nil, jerrors.Errorf("row has %d values for %d columns", len(values), len(fields))
	}
	nullMask := make([]byte, (len(fields)+7+2)/8)
	body := make([]byte, 0, 64)
	var err error
	for i, v := range values {
		if v == nil {
			bytePos := (i + 2) / 8
			bitPos := uint((i + 2) % 8)
			nullMask[bytePos] |= 1 << bitPos
			continue
		}
		body, err = EncodeBinaryValue(body, fields[i].Types, v)
		if err != nil {
			return nil, jerrors.Trace(err)
		}
	}
	buff := make([]byte, 0, 1+len(nullMask)+len(body))
	buff = util.WriteByte(buff, 0x00)
	buff = util.WriteBytes(buff, nullMask)
	buff = util.WriteBytes(buff, body)
	return buff, nil
}

// EncodeBinaryValue appends one non-null value in its binary representation.
func EncodeBinaryValue(buff []byte, fieldType byte, value interface{}) ([]byte, error) {
	switch fieldType {
	case common.COLUMN_TYPE_TINY:
		n, err := toInt64(value)
		if err != nil {
			return nil, err
		}
		return util.WriteByte(buff, byte(n)), nil
	case common.COLUMN_TYPE_SHORT, common.COLUMN_TYPE_YEAR:
		n, err := toInt64(value)
		if err != nil {
			return nil, err
		}
		return util.WriteUB2(buff, uint16(n)), nil
	case common.COLUMN_TYPE_LONG, common.COLUMN_TYPE_INT24:
		n, err := toInt64(value)
		if err != nil {
			return nil, err
		}
		return util.WriteUB4(buff, uint32(n)), nil
	case common.COLUMN_TYPE_LONGLONG:
		if u, ok := value.(uint64); ok {
			return util.WriteUB8(buff, u), nil
		}
		n, err := toInt64(value)
		if err != nil {
			return nil, err
		}
		return util.WriteUB8(buff, uint64(n)), nil
	case common.COLUMN_TYPE_FLOAT:
		f, err := toFloat64(value)
		if err != nil {
			return nil, err
		}
		return util.WriteUB4(buff, math.Float32bits(float32(f))), nil
	case common.COLUMN_TYPE_DOUBLE:
		f, err := toFloat64(value)
		if err != nil {
			return nil, err
		}
		return util.WriteUB8(buff, math.Float64bits(f)), nil
	case common.COLUMN_TYPE_DATE, common.COLUMN_TYPE_DATETIME, common.COLUMN_TYPE_TIMESTAMP,
		common.COLUMN_TYPE_NEWDATE:
		t, ok := value.(time.Time)
		if !ok {
			return nil, jerrors.Errorf("binary %d wants time.Time, got %T", fieldType, value)
		}
		return encodeBinaryDateTime(buff, t), nil
	case common.COLUMN_TYPE_TIME:
		d, ok := value.(time.Duration)
		if !ok {
			return nil, jerrors.Errorf("binary TIME wants time.Duration, got %T", value)
		}
		return encodeBinaryDuration(buff, d), nil
	case common.COLUMN_TYPE_DECIMAL, common.COLUMN_TYPE_NEWDECIMAL:
		switch v := value.(type) {
		case decimal.Decimal:
			return util.WriteWithLength(buff, []byte(v.String())), nil
		case string:
			return util.WriteWithLength(buff, []byte(v)), nil
		case []byte:
			return util.WriteWithLength(buff, v), nil
		}
		return nil, jerrors.Errorf("binary DECIMAL wants decimal.Decimal, got %T", value)
	default:
		// the length-encoded string family: VARCHAR, VAR_STRING, STRING,
		// BLOB variants, JSON, ENUM, SET, BIT, GEOMETRY
		text, err := FormatTextValue(value, common.CharacterSetUtf8)
		if err != nil {
			return nil, jerrors.Trace(err)
		}
		return util.WriteWithLength(buff, text), nil
	}
}

func encodeBinaryDateTime(buff []byte, t time.Time) []byte {
	micro := t.Nanosecond() / 1000
	switch {
	case t.IsZero():
		return util.WriteByte(buff, 0)
	case micro != 0:
		buff = util.WriteByte(buff, 11)
		buff = util.WriteUB2(buff, uint16(t.Year()))
		buff = util.WriteByte(buff, byte(t.Month()))
		buff = util.WriteByte(buff, byte(t.Day()))
		buff = util.WriteByte(buff, byte(t.Hour()))
		buff = util.WriteByte(buff, byte(t.Minute()))
		buff = util.WriteByte(buff, byte(t.Second()))
		return util.WriteUB4(buff, uint32(micro))
	case t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0:
		buff = util.WriteByte(buff, 7)
		buff = util.WriteUB2(buff, uint16(t.Year()))
		buff = util.WriteByte(buff, byte(t.Month()))
		buff = util.WriteByte(buff, byte(t.Day()))
		buff = util.WriteByte(buff, byte(t.Hour()))
		buff = util.WriteByte(buff, byte(t.Minute()))
		return util.WriteByte(buff, byte(t.Second()))
	default:
		buff = util.WriteByte(buff, 4)
		buff = util.WriteUB2(buff, uint16(t.Year()))
		buff = util.WriteByte(buff, byte(t.Month()))
		return util.WriteByte(buff, byte(t.Day()))
	}
}

func encodeBinaryDuration(buff []byte, d time.Duration) []byte {
	if d == 0 {
		return util.WriteByte(buff, 0)
	}
	var negative byte
	if d < 0 {
		negative = 1
		d = -d
	}
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second
	d -= seconds * time.Second
	micro := d / time.Microsecond

	if micro != 0 {
		buff = util.WriteByte(buff, 12)
	} else {
		buff = util.WriteByte(buff, 8)
	}
	buff = util.WriteByte(buff, negative)
	buff = util.WriteUB4(buff, uint32(days))
	buff = util.WriteByte(buff, byte(hours))
	buff = util.WriteByte(buff, byte(minutes))
	buff = util.WriteByte(buff, byte(seconds))
	if micro != 0 {
		buff = util.WriteUB4(buff, uint32(micro))
	}
	return buff
}

// DecodeBinaryValue parses one parameter value of a COM_STMT_EXECUTE body.
func DecodeBinaryValue(buff []byte, cursor int, fieldType byte, unsigned bool) (int, interface{}, error) {
	need := func(n int) error {
		if cursor+n > len(buff) {
			return jerrors.Trace(util.ErrBufferExhausted)
		}
		return nil
	}
	switch fieldType {
	case common.COLUMN_TYPE_NULL:
		return cursor, nil, nil
	case common.COLUMN_TYPE_TINY:
		if err := need(1); err != nil {
			return cursor, nil, err
		}
		cursor, b := util.ReadByte(buff, cursor)
		if unsigned {
			return cursor, uint64(b), nil
		}
		return cursor, int64(int8(b)), nil
	case common.COLUMN_TYPE_SHORT, common.COLUMN_TYPE_YEAR:
		if err := need(2); err != nil {
			return cursor, nil, err
		}
		cursor, u := util.ReadUB2(buff, cursor)
		if unsigned {
			return cursor, uint64(u), nil
		}
		return cursor, int64(int16(u)), nil
	case common.COLUMN_TYPE_LONG, common.COLUMN_TYPE_INT24:
		if err := need(4); err != nil {
			return cursor, nil, err
		}
		cursor, u := util.ReadUB4(buff, cursor)
		if unsigned {
			return cursor, uint64(u), nil
		}
		return cursor, int64(int32(u)), nil
	case common.COLUMN_TYPE_LONGLONG:
		if err := need(8); err != nil {
			return cursor, nil, err
		}
		cursor, u := util.ReadUB8(buff, cursor)
		if unsigned {
			return cursor, u, nil
		}
		return cursor, int64(u), nil
	case common.COLUMN_TYPE_FLOAT:
		if err := need(4); err != nil {
			return cursor, nil, err
		}
		cursor, u := util.ReadUB4(buff, cursor)
		return cursor, math.Float32frombits(u), nil
	case common.COLUMN_TYPE_DOUBLE:
		if err := need(8); err != nil {
			return cursor, nil, err
		}
		cursor, u := util.ReadUB8(buff, cursor)
		return cursor, math.Float64frombits(u), nil
	case common.COLUMN_TYPE_DATE, common.COLUMN_TYPE_DATETIME, common.COLUMN_TYPE_TIMESTAMP,
		common.COLUMN_TYPE_NEWDATE:
		return decodeBinaryDateTime(buff, cursor)
	case common.COLUMN_TYPE_TIME:
		return decodeBinaryDuration(buff, cursor)
	case common.COLUMN_TYPE_DECIMAL, common.COLUMN_TYPE_NEWDECIMAL:
		cursor, raw, err := util.ReadLengthBytes(buff, cursor)
		if err != nil {
			return cursor, nil, jerrors.Trace(err)
		}
		if raw == nil {
			return cursor, nil, nil
		}
		dec, err := decimal.NewFromString(string(raw))
		if err != nil {
			return cursor, nil, jerrors.Annotatef(err, "bad decimal %q", raw)
		}
		return cursor, dec, nil
	default:
		cursor, raw, err := util.ReadLengthBytes(buff, cursor)
		if err != nil {
			return cursor, nil, jerrors.Trace(err)
		}
		return cursor, raw, nil
	}
}

func decodeBinaryDateTime(buff []byte, cursor int) (int, interface{}, error) {
	if cursor >= len(buff) {
		return cursor, nil, jerrors.Trace(util.ErrBufferExhausted)
	}
	cursor, length := util.ReadByte(buff, cursor)
	if cursor+int(length) > len(buff) {
		return cursor, nil, jerrors.Trace(util.ErrBufferExhausted)
	}
	var year uint16
	var month, day, hour, minute, second byte
	var micro uint32
	switch length {
	case 0:
		return cursor, time.Time{}, nil
	case 11:
		c := cursor
		c, year = util.ReadUB2(buff, c)
		c, month = util.ReadByte(buff, c)
		c, day = util.ReadByte(buff, c)
		c, hour = util.ReadByte(buff, c)
		c, minute = util.ReadByte(buff, c)
		c, second = util.ReadByte(buff, c)
		_, micro = util.ReadUB4(buff, c)
	case 7:
		c := cursor
		c, year = util.ReadUB2(buff, c)
		c, month = util.ReadByte(buff, c)
		c, day = util.ReadByte(buff, c)
		c, hour = util.ReadByte(buff, c)
		c, minute = util.ReadByte(buff, c)
		_, second = util.ReadByte(buff, c)
	case 4:
		c := cursor
		c, year = util.ReadUB2(buff, c)
		c, month = util.ReadByte(buff, c)
		_, day = util.ReadByte(buff, c)
	default:
		return cursor, nil, jerrors.Errorf("illegal datetime length %d", length)
	}
	t := time.Date(int(year), time.Month(month), int(day),
		int(hour), int(minute), int(second), int(micro)*1000, time.UTC)
	return cursor + int(length), t, nil
}

func decodeBinaryDuration(buff []byte, cursor int) (int, interface{}, error) {
	if cursor >= len(buff) {
		return cursor, nil, jerrors.Trace(util.ErrBufferExhausted)
	}
	cursor, length := util.ReadByte(buff, cursor)
	if cursor+int(length) > len(buff) {
		return cursor, nil, jerrors.Trace(util.ErrBufferExhausted)
	}
	if length == 0 {
		return cursor, time.Duration(0), nil
	}
	if length != 8 && length != 12 {
		return cursor, nil, jerrors.Errorf("illegal time length %d", length)
	}
	c := cursor
	c, negative := util.ReadByte(buff, c)
	c, days := util.ReadUB4(buff, c)
	c, hours := util.ReadByte(buff, c)
	c, minutes := util.ReadByte(buff, c)
	c, seconds := util.ReadByte(buff, c)
	var micro uint32
	if length == 12 {
		_, micro = util.ReadUB4(buff, c)
	}
	d := time.Duration(days)*24*time.Hour +
		time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(micro)*time.Microsecond
	if negative == 1 {
		d = -d
	}
	return cursor + int(length), d, nil
}

func toInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}
	return 0, jerrors.Errorf("cannot coerce %T to integer", value)
}

func toFloat64(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	}
	n, err := toInt64(value)
	if err != nil {
		return 0, jerrors.Errorf("cannot coerce %T to float", value)
	}
	return float64(n), nil
}
