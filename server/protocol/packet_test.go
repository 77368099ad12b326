package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func splitFrames(t *testing.T, wire []byte) []*MySQLPackage {
	t.Helper()
	var frames []*MySQLPackage
	for len(wire) > 0 {
		pkg, n, err := ReadPackage(wire)
		require.NoError(t, err)
		frames = append(frames, pkg)
		wire = wire[n:]
	}
	return frames
}

func TestFrameRoundTrip(t *testing.T) {
	sizes := []int{0, 1, 100, MaxPayloadLen - 1, MaxPayloadLen, MaxPayloadLen + 10, 2 * MaxPayloadLen}
	for _, size := range sizes {
		payload := make([]byte, size)
		for i := range payload {
			payload[i] = byte(i)
		}

		var seq byte
		wire := WriteFrames(nil, payload, &seq)

		var asm Assembler
		var got []byte
		var done bool
		for _, pkg := range splitFrames(t, wire) {
			var err error
			got, done, err = asm.Feed(pkg)
			require.NoError(t, err)
		}
		require.True(t, done, "size %d", size)
		assert.Equal(t, payload, got, "size %d", size)
		assert.Equal(t, seq, asm.NextSeq())
	}
}

func TestFrameSplitAtBoundary(t *testing.T) {
	// a payload of 2^24+5 bytes must travel as one full frame plus a
	// 6-byte continuation
	payload := make([]byte, MaxPayloadLen+6)
	var seq byte
	wire := WriteFrames(nil, payload, &seq)

	frames := splitFrames(t, wire)
	require.Len(t, frames, 2)
	assert.Equal(t, uint32(MaxPayloadLen), frames[0].Header.PacketLength)
	assert.Equal(t, byte(0), frames[0].Header.PacketId)
	assert.Equal(t, uint32(6), frames[1].Header.PacketLength)
	assert.Equal(t, byte(1), frames[1].Header.PacketId)
}

func TestFrameSplitExactMultiple(t *testing.T) {
	// an exact multiple of the frame limit needs a trailing empty frame
	payload := make([]byte, MaxPayloadLen)
	var seq byte
	wire := WriteFrames(nil, payload, &seq)

	frames := splitFrames(t, wire)
	require.Len(t, frames, 2)
	assert.Equal(t, uint32(MaxPayloadLen), frames[0].Header.PacketLength)
	assert.Equal(t, uint32(0), frames[1].Header.PacketLength)
}

func TestReadPackageShortStream(t *testing.T) {
	_, _, err := ReadPackage([]byte{0x01, 0x00})
	assert.Equal(t, ErrNotEnoughStream, err)

	// header promises more bytes than buffered
	_, _, err = ReadPackage([]byte{0x05, 0x00, 0x00, 0x00, 0x01})
	assert.Equal(t, ErrNotEnoughStream, err)
}

func TestAssemblerSequenceGap(t *testing.T) {
	var asm Assembler
	pkg := &MySQLPackage{Header: PacketHeader{PacketLength: 1, PacketId: 3}, Body: []byte{0x0E}}
	_, _, err := asm.Feed(pkg)
	require.Error(t, err)

	// a contiguous chain is accepted and the counter advances per frame
	asm.Reset()
	for i := 0; i < 3; i++ {
		pkg := &MySQLPackage{Header: PacketHeader{PacketLength: 1, PacketId: byte(i)}, Body: []byte{0x01}}
		_, done, err := asm.Feed(pkg)
		require.NoError(t, err)
		require.True(t, done)
	}
	assert.Equal(t, byte(3), asm.NextSeq())
}

func TestAssemblerSequenceWraps(t *testing.T) {
	seq := byte(255)
	wire := WriteFrames(nil, make([]byte, 10), &seq)
	require.Equal(t, byte(0), seq)

	pkg, _, err := ReadPackage(wire)
	require.NoError(t, err)
	assert.Equal(t, byte(255), pkg.Header.PacketId)
}
