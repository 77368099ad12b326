package protocol

import (
	"github.com/zhukovaskychina/xmysql-protocol/server/common"
	"github.com/zhukovaskychina/xmysql-protocol/util"
)

var DEFAULT_CATALOG = []byte("def")

// FieldPacket is one column definition of a result set.
type FieldPacket struct {
	CataLog      []byte
	DBName       []byte
	TableName    []byte
	OrgTableName []byte
	Name         []byte
	OrgName      []byte
	CharsetIndex uint16
	Length       uint32
	Types        byte
	Flags        uint16
	Decimals     byte
	Definition   []byte // default value, COM_FIELD_LIST only
}

func NewFieldPacket() *FieldPacket {
	fp := new(FieldPacket)
	fp.CataLog = DEFAULT_CATALOG
	fp.CharsetIndex = common.CharacterSetUtf8
	return fp
}

// GetField builds a minimal column definition for a name and type code.
func GetField(name string, fieldType byte) *FieldPacket {
	fp := NewFieldPacket()
	fp.Name = []byte(name)
	fp.OrgName = []byte(name)
	fp.Types = fieldType
	switch fieldType {
	case common.COLUMN_TYPE_TINY, common.COLUMN_TYPE_SHORT, common.COLUMN_TYPE_LONG,
		common.COLUMN_TYPE_LONGLONG, common.COLUMN_TYPE_INT24, common.COLUMN_TYPE_FLOAT,
		common.COLUMN_TYPE_DOUBLE, common.COLUMN_TYPE_YEAR:
		fp.CharsetIndex = common.CharacterSetBinary
		fp.Flags = common.BINARY_FLAG
		fp.Length = 21
	case common.COLUMN_TYPE_BLOB, common.COLUMN_TYPE_TINY_BLOB, common.COLUMN_TYPE_MEDIUM_BLOB,
		common.COLUMN_TYPE_LONG_BLOB:
		fp.CharsetIndex = common.CharacterSetBinary
		fp.Flags = common.BLOB_FLAG | common.BINARY_FLAG
		fp.Length = 0xFFFF
	default:
		fp.Length = 0xFF
	}
	return fp
}

// Encode renders the column definition payload.
func (fp *FieldPacket) Encode() []byte {
	catalog := fp.CataLog
	if catalog == nil {
		catalog = DEFAULT_CATALOG
	}
	buff := make([]byte, 0, 64+len(fp.Name))
	buff = util.WriteWithLength(buff, catalog)
	buff = util.WriteWithLength(buff, fp.DBName)
	buff = util.WriteWithLength(buff, fp.TableName)
	buff = util.WriteWithLength(buff, fp.OrgTableName)
	buff = util.WriteWithLength(buff, fp.Name)
	buff = util.WriteWithLength(buff, fp.OrgName)

	buff = util.WriteByte(buff, 0x0C) // length of the fixed fields
	buff = util.WriteUB2(buff, fp.CharsetIndex)
	buff = util.WriteUB4(buff, fp.Length)
	buff = util.WriteByte(buff, fp.Types)
	buff = util.WriteUB2(buff, fp.Flags)
	buff = util.WriteByte(buff, fp.Decimals)
	buff = util.WriteUB2(buff, 0) // filler

	if fp.Definition != nil {
		buff = util.WriteWithLength(buff, fp.Definition)
	}
	return buff
}

// DecodeFieldPacket parses a column definition; used by the loopback tests.
func DecodeFieldPacket(buff []byte) (*FieldPacket, error) {
	fp := new(FieldPacket)
	var cursor int
	var err error
	read := func() []byte {
		if err != nil {
			return nil
		}
		var b []byte
		cursor, b, err = util.ReadLengthBytes(buff, cursor)
		return b
	}
	fp.CataLog = read()
	fp.DBName = read()
	fp.TableName = read()
	fp.OrgTableName = read()
	fp.Name = read()
	fp.OrgName = read()
	if err != nil {
		return nil, err
	}
	cursor++ // fixed-length marker 0x0C
	cursor, fp.CharsetIndex = util.ReadUB2(buff, cursor)
	cursor, fp.Length = util.ReadUB4(buff, cursor)
	cursor, fp.Types = util.ReadByte(buff, cursor)
	cursor, fp.Flags = util.ReadUB2(buff, cursor)
	_, fp.Decimals = util.ReadByte(buff, cursor)
	return fp, nil
}
