package protocol

import (
	jerrors "github.com/juju/errors"

	"github.com/zhukovaskychina/xmysql-protocol/server/common"
	"github.com/zhukovaskychina/xmysql-protocol/util"
)

// CURSOR_TYPE / execute flag bits.
const (
	CursorTypeNoCursor        = 0x00
	CursorTypeReadOnly        = 0x01
	ParameterCountAvailable   = 0x08
	paramUnsignedFlag         = 0x8000
)

// QueryAttribute is one attribute of a COM_QUERY or COM_STMT_EXECUTE
// attribute block.
type QueryAttribute struct {
	Name  string
	Value interface{}
}

// StmtPrepareOK is the leading packet of a COM_STMT_PREPARE response.
type StmtPrepareOK struct {
	StatementID  uint32
	ColumnCount  uint16
	ParamCount   uint16
	WarningCount uint16
}

func (p *StmtPrepareOK) Encode() []byte {
	buff := make([]byte, 0, 12)
	buff = util.WriteByte(buff, 0x00)
	buff = util.WriteUB4(buff, p.StatementID)
	buff = util.WriteUB2(buff, p.ColumnCount)
	buff = util.WriteUB2(buff, p.ParamCount)
	buff = util.WriteByte(buff, 0x00) // filler
	buff = util.WriteUB2(buff, p.WarningCount)
	return buff
}

// StmtExecute is the decoded COM_STMT_EXECUTE body.
type StmtExecute struct {
	StatementID    uint32
	Flags          byte
	IterationCount uint32
	NewParamsBound bool
	ParamTypes     []uint16 // low byte type code, 0x8000 marks unsigned
	Params         []interface{}
	NullParams     []bool
	Attrs          []QueryAttribute
}

// DecodeStmtExecuteHeader reads the fixed prefix; the parameter section
// needs the statement's registered parameter count, so it is decoded in a
// second step.
func DecodeStmtExecuteHeader(body []byte) (*StmtExecute, int, error) {
	if len(body) < 9 {
		return nil, 0, jerrors.Trace(ErrNotEnoughStream)
	}
	se := new(StmtExecute)
	cursor := 0
	cursor, se.StatementID = util.ReadUB4(body, cursor)
	cursor, se.Flags = util.ReadByte(body, cursor)
	cursor, se.IterationCount = util.ReadUB4(body, cursor)
	return se, cursor, nil
}

// DecodeStmtExecuteParams reads the parameter block. prevTypes are the
// types bound by an earlier execute of the same statement; they apply when
// the new-params-bound flag is zero.
func (se *StmtExecute) DecodeStmtExecuteParams(body []byte, cursor int, paramCount int, prevTypes []uint16, capabilities uint32) error {
	if capabilities&common.CLIENT_QUERY_ATTRIBUTES != 0 && se.Flags&ParameterCountAvailable != 0 {
		var n uint64
		var err error
		cursor, n, _, err = util.ReadLength(body, cursor)
		if err != nil {
			return jerrors.Trace(err)
		}
		// attribute parameters ride behind the statement's own
		paramCount = int(n)
	}
	if paramCount <= 0 {
		return nil
	}

	maskLen := (paramCount + 7) / 8
	if cursor+maskLen+1 > len(body) {
		return jerrors.Trace(ErrNotEnoughStream)
	}
	var nullMask []byte
	cursor, nullMask = util.ReadBytes(body, cursor, maskLen)

	var bound byte
	cursor, bound = util.ReadByte(body, cursor)
	se.NewParamsBound = bound == 1

	withNames := capabilities&common.CLIENT_QUERY_ATTRIBUTES != 0 && se.Flags&ParameterCountAvailable != 0
	names := make([]string, paramCount)
	if se.NewParamsBound {
		se.ParamTypes = make([]uint16, paramCount)
		for i := 0; i < paramCount; i++ {
			if cursor+2 > len(body) {
				return jerrors.Trace(ErrNotEnoughStream)
			}
			var t, f byte
			cursor, t = util.ReadByte(body, cursor)
			cursor, f = util.ReadByte(body, cursor)
			se.ParamTypes[i] = uint16(t)
			if f&0x80 != 0 {
				se.ParamTypes[i] |= paramUnsignedFlag
			}
			if withNames {
				var err error
				cursor, names[i], err = util.ReadLengthString(body, cursor)
				if err != nil {
					return jerrors.Trace(err)
				}
			}
		}
	} else {
		if len(prevTypes) < paramCount {
			return jerrors.New("no parameter types bound")
		}
		se.ParamTypes = prevTypes[:paramCount]
	}

	se.Params = make([]interface{}, paramCount)
	se.NullParams = make([]bool, paramCount)
	for i := 0; i < paramCount; i++ {
		if nullMask[i/8]&(1<<uint(i%8)) != 0 {
			se.NullParams[i] = true
			continue
		}
		fieldType := byte(se.ParamTypes[i])
		unsigned := se.ParamTypes[i]&paramUnsignedFlag != 0
		var v interface{}
		var err error
		cursor, v, err = DecodeBinaryValue(body, cursor, fieldType, unsigned)
		if err != nil {
			return jerrors.Trace(err)
		}
		se.Params[i] = v
	}
	for i, name := range names {
		if name != "" {
			se.Attrs = append(se.Attrs, QueryAttribute{Name: name, Value: se.Params[i]})
		}
	}
	return nil
}

// StmtLongData is the decoded COM_STMT_SEND_LONG_DATA body.
type StmtLongData struct {
	StatementID uint32
	ParamID     uint16
	Data        []byte
}

func DecodeStmtLongData(body []byte) (*StmtLongData, error) {
	if len(body) < 6 {
		return nil, jerrors.Trace(ErrNotEnoughStream)
	}
	ld := new(StmtLongData)
	cursor := 0
	cursor, ld.StatementID = util.ReadUB4(body, cursor)
	cursor, ld.ParamID = util.ReadUB2(body, cursor)
	ld.Data = make([]byte, len(body)-cursor)
	copy(ld.Data, body[cursor:])
	return ld, nil
}

// DecodeStmtID reads the statement id of COM_STMT_CLOSE / COM_STMT_RESET.
func DecodeStmtID(body []byte) (uint32, error) {
	if len(body) < 4 {
		return 0, jerrors.Trace(ErrNotEnoughStream)
	}
	_, id := util.ReadUB4(body, 0)
	return id, nil
}

// DecodeQuery splits a COM_QUERY body into the optional attribute block and
// the SQL text. The attribute block is only present when the capability was
// negotiated.
func DecodeQuery(body []byte, capabilities uint32) (string, []QueryAttribute, error) {
	if capabilities&common.CLIENT_QUERY_ATTRIBUTES == 0 {
		return string(body), nil, nil
	}
	cursor := 0
	cursor, paramCount, _, err := util.ReadLength(body, cursor)
	if err != nil {
		return "", nil, jerrors.Trace(err)
	}
	cursor, _, _, err = util.ReadLength(body, cursor) // parameter_set_count, always 1
	if err != nil {
		return "", nil, jerrors.Trace(err)
	}
	var attrs []QueryAttribute
	if paramCount > 0 {
		n := int(paramCount)
		maskLen := (n + 7) / 8
		if cursor+maskLen+1 > len(body) {
			return "", nil, jerrors.Trace(ErrNotEnoughStream)
		}
		var nullMask []byte
		cursor, nullMask = util.ReadBytes(body, cursor, maskLen)
		cursor++ // new_params_bind_flag, always 1 for COM_QUERY

		types := make([]uint16, n)
		names := make([]string, n)
		for i := 0; i < n; i++ {
			if cursor+2 > len(body) {
				return "", nil, jerrors.Trace(ErrNotEnoughStream)
			}
			var t, f byte
			cursor, t = util.ReadByte(body, cursor)
			cursor, f = util.ReadByte(body, cursor)
			types[i] = uint16(t)
			if f&0x80 != 0 {
				types[i] |= paramUnsignedFlag
			}
			if cursor, names[i], err = util.ReadLengthString(body, cursor); err != nil {
				return "", nil, jerrors.Trace(err)
			}
		}
		for i := 0; i < n; i++ {
			var v interface{}
			if nullMask[i/8]&(1<<uint(i%8)) == 0 {
				if cursor, v, err = DecodeBinaryValue(body, cursor, byte(types[i]), types[i]&paramUnsignedFlag != 0); err != nil {
					return "", nil, jerrors.Trace(err)
				}
			}
			attrs = append(attrs, QueryAttribute{Name: names[i], Value: v})
		}
	}
	_, sql := util.ReadString(body, cursor)
	return sql, attrs, nil
}

// EncodeAuthSwitchRequest renders the auth-switch-request payload.
func EncodeAuthSwitchRequest(plugin string, pluginData []byte) []byte {
	buff := make([]byte, 0, 2+len(plugin)+len(pluginData))
	buff = util.WriteByte(buff, 0xFE)
	buff = util.WriteWithNull(buff, []byte(plugin))
	buff = util.WriteBytes(buff, pluginData)
	buff = util.WriteByte(buff, 0x00)
	return buff
}

// EncodeAuthMoreData renders an auth-more-data payload (0x01 tag).
func EncodeAuthMoreData(data []byte) []byte {
	buff := make([]byte, 0, 1+len(data))
	buff = util.WriteByte(buff, 0x01)
	return util.WriteBytes(buff, data)
}
