package protocol

import (
	"fmt"
	"strconv"
	"time"

	jerrors "github.com/juju/errors"
	"github.com/piex/transcode"
	"github.com/shopspring/decimal"

	"github.com/zhukovaskychina/xmysql-protocol/server/common"
	"github.com/zhukovaskychina/xmysql-protocol/util"
)

var NULL_MARK = byte(0xFB)

// RowDataPacket encodes one row of a text result set: every value is a
// length-encoded string, NULL is the single 0xFB marker.
type RowDataPacket struct {
	FieldValues [][]byte
}

func NewRowDataPacket() *RowDataPacket {
	return new(RowDataPacket)
}

func (rd *RowDataPacket) Add(value []byte) {
	rd.FieldValues = append(rd.FieldValues, value)
}

// Encode renders the row payload.
func (rd *RowDataPacket) Encode() []byte {
	buff := make([]byte, 0, 64)
	for _, v := range rd.FieldValues {
		if v == nil {
			buff = util.WriteByte(buff, NULL_MARK)
		} else {
			buff = util.WriteWithLength(buff, v)
		}
	}
	return buff
}

// EncodeTextRow renders a row of Go values as a text row payload; the
// charset id decides whether string values are transcoded off utf8.
func EncodeTextRow(values []interface{}, charsetIndex uint8) ([]byte, error) {
	rd := NewRowDataPacket()
	for _, v := range values {
		text, err := FormatTextValue(v, charsetIndex)
		if err != nil {
			return nil, jerrors.Trace(err)
		}
		rd.Add(text)
	}
	return rd.Encode(), nil
}

// FormatTextValue renders one value in the canonical textual representation.
// A nil return means SQL NULL.
func FormatTextValue(value interface{}, charsetIndex uint8) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case int:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case int8:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case int16:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case int32:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case int64:
		return strconv.AppendInt(nil, v, 10), nil
	case uint:
		return strconv.AppendUint(nil, uint64(v), 10), nil
	case uint8:
		return strconv.AppendUint(nil, uint64(v), 10), nil
	case uint16:
		return strconv.AppendUint(nil, uint64(v), 10), nil
	case uint32:
		return strconv.AppendUint(nil, uint64(v), 10), nil
	case uint64:
		return strconv.AppendUint(nil, v, 10), nil
	case float32:
		return strconv.AppendFloat(nil, float64(v), 'f', -1, 32), nil
	case float64:
		return strconv.AppendFloat(nil, v, 'f', -1, 64), nil
	case bool:
		if v {
			return []byte("1"), nil
		}
		return []byte("0"), nil
	case decimal.Decimal:
		return []byte(v.String()), nil
	case string:
		return transcodeText(v, charsetIndex), nil
	case []byte:
		return v, nil
	case time.Time:
		return []byte(formatTime(v)), nil
	case time.Duration:
		return []byte(formatDuration(v)), nil
	default:
		return nil, jerrors.Errorf("unsupported value type %T", value)
	}
}

// transcodeText converts a utf8 string to the client charset. Only the
// charsets the transcoder knows are converted; anything else passes
// through as utf8.
func transcodeText(s string, charsetIndex uint8) []byte {
	switch charsetIndex {
	case common.CharacterSetMap["gbk"]:
		return transcode.FromString(s).Encode("GBK").ToByteArray()
	case common.CharacterSetMap["gb2312"]:
		return transcode.FromString(s).Encode("GB2312").ToByteArray()
	default:
		return []byte(s)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "0000-00-00 00:00:00"
	}
	if t.Nanosecond() != 0 {
		return t.Format("2006-01-02 15:04:05.000000")
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatDuration(d time.Duration) string {
	neg := ""
	if d < 0 {
		neg = "-"
		d = -d
	}
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second
	d -= seconds * time.Second
	if d == 0 {
		return fmt.Sprintf("%s%02d:%02d:%02d", neg, hours, minutes, seconds)
	}
	return fmt.Sprintf("%s%02d:%02d:%02d.%06d", neg, hours, minutes, seconds, d/time.Microsecond)
}
