package util

import (
	jerrors "github.com/juju/errors"
)

var ErrBufferExhausted = jerrors.New("buffer exhausted")

func ReadBytes(buff []byte, cursor int, offset int) (int, []byte) {
	if offset <= 0 {
		return cursor, nil
	}
	return cursor + offset, buff[cursor : cursor+offset]
}

func ReadByte(buff []byte, cursor int) (int, byte) {
	return cursor + 1, buff[cursor]
}

func ReadUB2(buff []byte, cursor int) (int, uint16) {
	i := uint16(buff[cursor])
	i |= uint16(buff[cursor+1]) << 8
	return cursor + 2, i
}

func ReadUB3(buff []byte, cursor int) (int, uint32) {
	i := uint32(buff[cursor])
	i |= uint32(buff[cursor+1]) << 8
	i |= uint32(buff[cursor+2]) << 16
	return cursor + 3, i
}

func ReadUB4(buff []byte, cursor int) (int, uint32) {
	i := uint32(buff[cursor])
	i |= uint32(buff[cursor+1]) << 8
	i |= uint32(buff[cursor+2]) << 16
	i |= uint32(buff[cursor+3]) << 24
	return cursor + 4, i
}

func ReadUB6(buff []byte, cursor int) (int, uint64) {
	i := uint64(buff[cursor])
	i |= uint64(buff[cursor+1]) << 8
	i |= uint64(buff[cursor+2]) << 16
	i |= uint64(buff[cursor+3]) << 24
	i |= uint64(buff[cursor+4]) << 32
	i |= uint64(buff[cursor+5]) << 40
	return cursor + 6, i
}

func ReadUB8(buff []byte, cursor int) (int, uint64) {
	i := uint64(buff[cursor])
	i |= uint64(buff[cursor+1]) << 8
	i |= uint64(buff[cursor+2]) << 16
	i |= uint64(buff[cursor+3]) << 24
	i |= uint64(buff[cursor+4]) << 32
	i |= uint64(buff[cursor+5]) << 40
	i |= uint64(buff[cursor+6]) << 48
	i |= uint64(buff[cursor+7]) << 56
	return cursor + 8, i
}

// ReadLength reads a length-encoded integer. The 0xFB marker is reported
// through the null flag; it only carries meaning in row context.
func ReadLength(buff []byte, cursor int) (int, uint64, bool, error) {
	if cursor >= len(buff) {
		return cursor, 0, false, jerrors.Trace(ErrBufferExhausted)
	}
	first := buff[cursor]
	cursor++
	switch {
	case first < 0xFB:
		return cursor, uint64(first), false, nil
	case first == 0xFB:
		return cursor, 0, true, nil
	case first == 0xFC:
		if cursor+2 > len(buff) {
			return cursor, 0, false, jerrors.Trace(ErrBufferExhausted)
		}
		cursor, u16 := ReadUB2(buff, cursor)
		return cursor, uint64(u16), false, nil
	case first == 0xFD:
		if cursor+3 > len(buff) {
			return cursor, 0, false, jerrors.Trace(ErrBufferExhausted)
		}
		cursor, u24 := ReadUB3(buff, cursor)
		return cursor, uint64(u24), false, nil
	case first == 0xFE:
		if cursor+8 > len(buff) {
			return cursor, 0, false, jerrors.Trace(ErrBufferExhausted)
		}
		cursor, u64 := ReadUB8(buff, cursor)
		return cursor, u64, false, nil
	default: // 0xFF is never a legal length prefix
		return cursor, 0, false, jerrors.Errorf("illegal length prefix 0x%02X", first)
	}
}

// ReadLengthString reads a length-encoded string.
func ReadLengthString(buff []byte, cursor int) (int, string, error) {
	cursor, strLen, null, err := ReadLength(buff, cursor)
	if err != nil {
		return cursor, "", jerrors.Trace(err)
	}
	if null {
		return cursor, "", nil
	}
	if cursor+int(strLen) > len(buff) {
		return cursor, "", jerrors.Trace(ErrBufferExhausted)
	}
	cursor, tmp := ReadBytes(buff, cursor, int(strLen))
	return cursor, string(tmp), nil
}

// ReadLengthBytes reads a length-encoded byte string; a 0xFB marker yields nil.
func ReadLengthBytes(buff []byte, cursor int) (int, []byte, error) {
	cursor, length, null, err := ReadLength(buff, cursor)
	if err != nil {
		return cursor, nil, jerrors.Trace(err)
	}
	if null {
		return cursor, nil, nil
	}
	if cursor+int(length) > len(buff) {
		return cursor, nil, jerrors.Trace(ErrBufferExhausted)
	}
	out := make([]byte, length)
	copy(out, buff[cursor:cursor+int(length)])
	return cursor + int(length), out, nil
}

// ReadWithNull reads bytes up to (exclusive) the next 0x00.
func ReadWithNull(buff []byte, cursor int) (int, []byte, error) {
	ret := []byte{}
	for {
		if cursor >= len(buff) {
			return cursor, nil, jerrors.Trace(ErrBufferExhausted)
		}
		if buff[cursor] != 0 {
			ret = append(ret, buff[cursor])
			cursor++
		} else {
			cursor++
			break
		}
	}
	return cursor, ret, nil
}

func ReadStringWithNull(buff []byte, cursor int) (int, string, error) {
	cursor, tmp, err := ReadWithNull(buff, cursor)
	return cursor, string(tmp), err
}

// ReadString consumes the rest of the buffer (string<EOF>).
func ReadString(buff []byte, cursor int) (int, string) {
	cursor, tmp := ReadBytes(buff, cursor, len(buff)-cursor)
	return cursor, string(tmp)
}

// GetLength returns the encoded size of a length-encoded integer.
func GetLength(length int64) int {
	u := uint64(length)
	if u < 251 {
		return 1
	} else if u < 0x10000 {
		return 3
	} else if u < 0x1000000 {
		return 4
	} else {
		return 9
	}
}

// GetLengthBytes returns the encoded size of a length-encoded byte string.
func GetLengthBytes(buff []byte) int {
	return GetLength(int64(len(buff))) + len(buff)
}
