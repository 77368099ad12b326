package util

func WriteByte(buf []byte, b byte) []byte {
	return append(buf, b)
}

func WriteBytes(buf []byte, from []byte) []byte {
	return append(buf, from...)
}

func WriteUB2(buf []byte, i uint16) []byte {
	buf = append(buf, byte(i&0xFF))
	buf = append(buf, byte((i>>8)&0xFF))
	return buf
}

func WriteUB3(buf []byte, i uint32) []byte {
	buf = append(buf, byte(i&0xFF))
	buf = append(buf, byte((i>>8)&0xFF))
	buf = append(buf, byte((i>>16)&0xFF))
	return buf
}

func WriteUB4(buf []byte, i uint32) []byte {
	buf = append(buf, byte(i&0xFF))
	buf = append(buf, byte((i>>8)&0xFF))
	buf = append(buf, byte((i>>16)&0xFF))
	buf = append(buf, byte((i>>24)&0xFF))
	return buf
}

func WriteUB6(buf []byte, i uint64) []byte {
	buf = append(buf, byte(i&0xFF))
	buf = append(buf, byte((i>>8)&0xFF))
	buf = append(buf, byte((i>>16)&0xFF))
	buf = append(buf, byte((i>>24)&0xFF))
	buf = append(buf, byte((i>>32)&0xFF))
	buf = append(buf, byte((i>>40)&0xFF))
	return buf
}

func WriteUB8(buf []byte, i uint64) []byte {
	buf = append(buf, byte(i&0xFF))
	buf = append(buf, byte((i>>8)&0xFF))
	buf = append(buf, byte((i>>16)&0xFF))
	buf = append(buf, byte((i>>24)&0xFF))
	buf = append(buf, byte((i>>32)&0xFF))
	buf = append(buf, byte((i>>40)&0xFF))
	buf = append(buf, byte((i>>48)&0xFF))
	buf = append(buf, byte((i>>56)&0xFF))
	return buf
}

// WriteLength appends a length-encoded integer in its shortest legal form.
// Values 251..255 must use the 0xFC form since 0xFB..0xFF are markers.
func WriteLength(buf []byte, length int64) []byte {
	u := uint64(length)
	if u < 251 {
		buf = WriteByte(buf, byte(u))
	} else if u < 0x10000 {
		buf = WriteByte(buf, 0xFC)
		buf = WriteUB2(buf, uint16(u))
	} else if u < 0x1000000 {
		buf = WriteByte(buf, 0xFD)
		buf = WriteUB3(buf, uint32(u))
	} else {
		buf = WriteByte(buf, 0xFE)
		buf = WriteUB8(buf, u)
	}
	return buf
}

func WriteWithNull(buf []byte, from []byte) []byte {
	buf = WriteBytes(buf, from)
	return append(buf, byte(0))
}

func WriteWithLength(buf []byte, from []byte) []byte {
	buf = WriteLength(buf, int64(len(from)))
	return WriteBytes(buf, from)
}

// WriteWithLengthWithNullValue writes a length-encoded byte string, or the
// given marker byte when the value is nil.
func WriteWithLengthWithNullValue(buf []byte, from []byte, nullValue byte) []byte {
	if from == nil {
		return WriteByte(buf, nullValue)
	}
	return WriteWithLength(buf, from)
}
