package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLengthEncodedIntRoundTrip(t *testing.T) {
	cases := []struct {
		value uint64
		size  int
	}{
		{0, 1},
		{250, 1},
		{251, 3},
		{0xFFFF, 3},
		{0x10000, 4},
		{0xFFFFFF, 4},
		{0x1000000, 9},
		{0xFFFFFFFFFFFFFFFF, 9},
	}
	for _, c := range cases {
		buff := WriteLength(nil, int64(c.value))
		require.Equal(t, c.size, len(buff), "value %d should use the shortest form", c.value)
		require.Equal(t, c.size, GetLength(int64(c.value)))

		cursor, got, null, err := ReadLength(buff, 0)
		require.NoError(t, err)
		assert.False(t, null)
		assert.Equal(t, c.value, got)
		assert.Equal(t, len(buff), cursor)
	}
}

func TestLengthEncodedNullMarker(t *testing.T) {
	_, _, null, err := ReadLength([]byte{0xFB}, 0)
	require.NoError(t, err)
	assert.True(t, null)

	_, _, _, err = ReadLength([]byte{0xFF}, 0)
	assert.Error(t, err)
}

func TestLengthEncodedTruncated(t *testing.T) {
	for _, buff := range [][]byte{{}, {0xFC, 0x01}, {0xFD, 0x01, 0x02}, {0xFE, 1, 2, 3, 4, 5, 6, 7}} {
		_, _, _, err := ReadLength(buff, 0)
		assert.Error(t, err, "buff %v", buff)
	}
}

func TestFixedIntRoundTrip(t *testing.T) {
	buff := WriteUB2(nil, 0xBEEF)
	_, u16 := ReadUB2(buff, 0)
	assert.Equal(t, uint16(0xBEEF), u16)

	buff = WriteUB3(nil, 0xFFFFFE)
	_, u24 := ReadUB3(buff, 0)
	assert.Equal(t, uint32(0xFFFFFE), u24)

	buff = WriteUB4(nil, 0xDEADBEEF)
	_, u32 := ReadUB4(buff, 0)
	assert.Equal(t, uint32(0xDEADBEEF), u32)

	buff = WriteUB6(nil, 0xFFFFFFFFFFFE)
	_, u48 := ReadUB6(buff, 0)
	assert.Equal(t, uint64(0xFFFFFFFFFFFE), u48)

	buff = WriteUB8(nil, 0x123456789ABCDEF0)
	_, u64 := ReadUB8(buff, 0)
	assert.Equal(t, uint64(0x123456789ABCDEF0), u64)
}

func TestNullTerminatedString(t *testing.T) {
	buff := WriteWithNull(nil, []byte("root"))
	cursor, s, err := ReadStringWithNull(buff, 0)
	require.NoError(t, err)
	assert.Equal(t, "root", s)
	assert.Equal(t, 5, cursor)

	_, _, err = ReadStringWithNull([]byte("no-null"), 0)
	assert.Error(t, err)
}

func TestLengthEncodedString(t *testing.T) {
	buff := WriteWithLength(nil, []byte("hello"))
	cursor, s, err := ReadLengthString(buff, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
	assert.Equal(t, len(buff), cursor)

	buff = WriteWithLengthWithNullValue(nil, nil, 0xFB)
	_, v, err := ReadLengthBytes(buff, 0)
	require.NoError(t, err)
	assert.Nil(t, v)
}
