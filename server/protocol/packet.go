package protocol

import (
	jerrors "github.com/juju/errors"

	"github.com/zhukovaskychina/xmysql-protocol/util"
)

// MaxPayloadLen is the largest payload a single wire frame can carry.
// Logical packets of this size or larger continue in follow-up frames.
const MaxPayloadLen = 1<<24 - 1

var (
	ErrNotEnoughStream = jerrors.New("packet stream is not enough")
	ErrBadSequence     = jerrors.New("packet out of sequence")
)

// PacketHeader is the 4-byte wire frame header.
type PacketHeader struct {
	PacketLength uint32
	PacketId     byte
}

// MySQLPackage is one physical wire frame.
type MySQLPackage struct {
	Header PacketHeader
	Body   []byte
}

// ReadPackage parses one frame from the head of data. It returns
// ErrNotEnoughStream until a whole frame is buffered; the second return
// value is the number of bytes consumed.
func ReadPackage(data []byte) (*MySQLPackage, int, error) {
	if len(data) < 4 {
		return nil, 0, ErrNotEnoughStream
	}
	_, length := util.ReadUB3(data, 0)
	if len(data) < 4+int(length) {
		return nil, 0, ErrNotEnoughStream
	}
	pkg := &MySQLPackage{
		Header: PacketHeader{PacketLength: length, PacketId: data[3]},
		Body:   make([]byte, length),
	}
	copy(pkg.Body, data[4:4+int(length)])
	return pkg, 4 + int(length), nil
}

// WriteFrames appends the wire frames for one logical packet to buf,
// advancing *seq once per frame. Payloads of MaxPayloadLen or more are
// split into full frames followed by a final short (possibly empty) frame.
func WriteFrames(buf []byte, payload []byte, seq *byte) []byte {
	for {
		n := len(payload)
		if n >= MaxPayloadLen {
			n = MaxPayloadLen
		}
		buf = util.WriteUB3(buf, uint32(n))
		buf = util.WriteByte(buf, *seq)
		*seq++
		buf = util.WriteBytes(buf, payload[:n])
		payload = payload[n:]
		if n < MaxPayloadLen {
			break
		}
	}
	return buf
}

// Assembler rebuilds logical packets from wire frames and enforces the
// sequence-id discipline. The same counter is shared with the write side
// through NextSeq/SeqRef so replies continue the chain.
type Assembler struct {
	expected byte
	pending  []byte
	partial  bool
}

// Reset starts a new sequencing phase (new command, new auth exchange).
func (a *Assembler) Reset() {
	a.expected = 0
	a.pending = nil
	a.partial = false
}

// NextSeq returns the sequence id the next frame (either direction) must
// carry.
func (a *Assembler) NextSeq() byte {
	return a.expected
}

// SeqRef exposes the counter for WriteFrames.
func (a *Assembler) SeqRef() *byte {
	return &a.expected
}

// SetSeq forces the counter; used to let an error response continue the
// chain after an out-of-sequence frame.
func (a *Assembler) SetSeq(seq byte) {
	a.expected = seq
}

// Feed consumes one inbound frame. done reports a complete logical packet
// in payload; a sequence gap is a protocol error.
func (a *Assembler) Feed(pkg *MySQLPackage) (payload []byte, done bool, err error) {
	if pkg.Header.PacketId != a.expected {
		return nil, false, jerrors.Annotatef(ErrBadSequence,
			"got %d, want %d", pkg.Header.PacketId, a.expected)
	}
	a.expected++
	a.pending = append(a.pending, pkg.Body...)
	if pkg.Header.PacketLength == MaxPayloadLen {
		a.partial = true
		return nil, false, nil
	}
	body := a.pending
	if body == nil {
		body = []byte{}
	}
	a.pending = nil
	a.partial = false
	return body, true, nil
}

// Partial reports whether a multi-frame logical packet is mid-flight.
func (a *Assembler) Partial() bool {
	return a.partial
}
