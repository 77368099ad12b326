package protocol

import (
	jerrors "github.com/juju/errors"

	"github.com/zhukovaskychina/xmysql-protocol/server/common"
	"github.com/zhukovaskychina/xmysql-protocol/util"
)

const ProtocolVersion = 10

// ServerCapabilities is the fixed capability set this server advertises.
func ServerCapabilities() uint32 {
	var capabilities uint32
	capabilities |= common.CLIENT_LONG_PASSWORD
	capabilities |= common.CLIENT_FOUND_ROWS
	capabilities |= common.CLIENT_LONG_FLAG
	capabilities |= common.CLIENT_CONNECT_WITH_DB
	capabilities |= common.CLIENT_PROTOCOL_41
	capabilities |= common.CLIENT_TRANSACTIONS
	capabilities |= common.CLIENT_SECURE_CONNECTION
	capabilities |= common.CLIENT_MULTI_RESULTS
	capabilities |= common.CLIENT_PS_MULTI_RESULTS
	capabilities |= common.CLIENT_PLUGIN_AUTH
	capabilities |= common.CLIENT_CONNECT_ATTRS
	capabilities |= common.CLIENT_PLUGIN_AUTH_LENENC_CLIENT_DATA
	capabilities |= common.CLIENT_SESSION_TRACK
	capabilities |= common.CLIENT_DEPRECATE_EOF
	capabilities |= common.CLIENT_QUERY_ATTRIBUTES
	return capabilities
}

// HandshakeV10 is the initial server greeting.
type HandshakeV10 struct {
	ProtocolVersion byte
	ServerVersion   string
	ConnectionID    uint32
	Seed            []byte // first 8 bytes of the auth nonce
	RestOfSeed      []byte // remaining 12 bytes
	Capabilities    uint32
	CharSet         byte
	StatusFlags     uint16
	AuthPluginName  string
}

// NewHandshakeV10 builds a greeting with a fresh 20-byte nonce.
func NewHandshakeV10(connectionID uint32, serverVersion string, charset byte, plugin string) *HandshakeV10 {
	nonce := util.RandomBytes(20)
	return &HandshakeV10{
		ProtocolVersion: ProtocolVersion,
		ServerVersion:   serverVersion,
		ConnectionID:    connectionID,
		Seed:            nonce[:8],
		RestOfSeed:      nonce[8:],
		Capabilities:    ServerCapabilities(),
		CharSet:         charset,
		StatusFlags:     common.SERVER_STATUS_AUTOCOMMIT,
		AuthPluginName:  plugin,
	}
}

// AuthSeed returns the full 20-byte nonce.
func (h *HandshakeV10) AuthSeed() []byte {
	seed := make([]byte, 0, 20)
	seed = append(seed, h.Seed...)
	return append(seed, h.RestOfSeed...)
}

// Encode renders the greeting payload (no frame header).
func (h *HandshakeV10) Encode() []byte {
	buff := make([]byte, 0, 128)
	buff = util.WriteByte(buff, h.ProtocolVersion)
	buff = util.WriteWithNull(buff, []byte(h.ServerVersion))
	buff = util.WriteUB4(buff, h.ConnectionID)
	buff = util.WriteBytes(buff, h.Seed)
	buff = util.WriteByte(buff, 0x00)
	buff = util.WriteUB2(buff, uint16(h.Capabilities))
	buff = util.WriteByte(buff, h.CharSet)
	buff = util.WriteUB2(buff, h.StatusFlags)
	buff = util.WriteUB2(buff, uint16(h.Capabilities>>16))
	// length of the auth plugin data: 20 bytes of nonce + trailing 0x00
	buff = util.WriteByte(buff, 21)
	buff = util.WriteBytes(buff, make([]byte, 10))
	buff = util.WriteWithNull(buff, h.RestOfSeed)
	buff = util.WriteWithNull(buff, []byte(h.AuthPluginName))
	return buff
}

// DecodeHandshakeV10 parses a greeting payload; the client side of the
// codec, kept for the loopback tests.
func DecodeHandshakeV10(buff []byte) (*HandshakeV10, error) {
	h := new(HandshakeV10)
	var cursor int
	var tmp []byte
	var err error

	cursor, h.ProtocolVersion = util.ReadByte(buff, cursor)
	if cursor, tmp, err = util.ReadWithNull(buff, cursor); err != nil {
		return nil, jerrors.Trace(err)
	}
	h.ServerVersion = string(tmp)
	cursor, h.ConnectionID = util.ReadUB4(buff, cursor)
	cursor, h.Seed = util.ReadBytes(buff, cursor, 8)
	cursor++ // filler
	cursor, capLow := util.ReadUB2(buff, cursor)
	cursor, h.CharSet = util.ReadByte(buff, cursor)
	cursor, h.StatusFlags = util.ReadUB2(buff, cursor)
	cursor, capHigh := util.ReadUB2(buff, cursor)
	h.Capabilities = uint32(capLow) | uint32(capHigh)<<16
	cursor++ // auth plugin data length
	cursor, _ = util.ReadBytes(buff, cursor, 10)
	if cursor, tmp, err = util.ReadWithNull(buff, cursor); err != nil {
		return nil, jerrors.Trace(err)
	}
	h.RestOfSeed = tmp
	if cursor, tmp, err = util.ReadWithNull(buff, cursor); err != nil {
		return nil, jerrors.Trace(err)
	}
	h.AuthPluginName = string(tmp)
	return h, nil
}

// HandshakeResponse41 is the first client packet after the greeting.
type HandshakeResponse41 struct {
	Capabilities   uint32
	MaxPacketSize  uint32
	CharSet        byte
	User           string
	AuthResponse   []byte
	Database       string
	AuthPluginName string
	Attrs          map[string]string
}

// DecodeHandshakeResponse parses the handshake response payload. Clients
// that do not speak the 4.1 protocol are rejected.
func DecodeHandshakeResponse(buff []byte) (*HandshakeResponse41, error) {
	if len(buff) < 32 {
		return nil, jerrors.Annotatef(ErrNotEnoughStream, "handshake response of %d bytes", len(buff))
	}
	r := new(HandshakeResponse41)
	var cursor int
	var err error

	cursor, r.Capabilities = util.ReadUB4(buff, cursor)
	if r.Capabilities&common.CLIENT_PROTOCOL_41 == 0 {
		return nil, jerrors.New("pre-4.1 client protocol is not supported")
	}
	cursor, r.MaxPacketSize = util.ReadUB4(buff, cursor)
	cursor, r.CharSet = util.ReadByte(buff, cursor)
	cursor, _ = util.ReadBytes(buff, cursor, 23)

	if cursor, r.User, err = util.ReadStringWithNull(buff, cursor); err != nil {
		return nil, jerrors.Trace(err)
	}

	switch {
	case r.Capabilities&common.CLIENT_PLUGIN_AUTH_LENENC_CLIENT_DATA != 0:
		if cursor, r.AuthResponse, err = util.ReadLengthBytes(buff, cursor); err != nil {
			return nil, jerrors.Trace(err)
		}
	case r.Capabilities&common.CLIENT_SECURE_CONNECTION != 0:
		if cursor >= len(buff) {
			return nil, jerrors.Trace(ErrNotEnoughStream)
		}
		var n byte
		cursor, n = util.ReadByte(buff, cursor)
		if cursor+int(n) > len(buff) {
			return nil, jerrors.Trace(ErrNotEnoughStream)
		}
		cursor, r.AuthResponse = util.ReadBytes(buff, cursor, int(n))
	default:
		var tmp []byte
		if cursor, tmp, err = util.ReadWithNull(buff, cursor); err != nil {
			return nil, jerrors.Trace(err)
		}
		r.AuthResponse = tmp
	}

	if r.Capabilities&common.CLIENT_CONNECT_WITH_DB != 0 && cursor < len(buff) {
		if cursor, r.Database, err = util.ReadStringWithNull(buff, cursor); err != nil {
			return nil, jerrors.Trace(err)
		}
	}
	if r.Capabilities&common.CLIENT_PLUGIN_AUTH != 0 && cursor < len(buff) {
		if cursor, r.AuthPluginName, err = util.ReadStringWithNull(buff, cursor); err != nil {
			return nil, jerrors.Trace(err)
		}
	}
	if r.Capabilities&common.CLIENT_CONNECT_ATTRS != 0 && cursor < len(buff) {
		if r.Attrs, err = decodeConnAttrs(buff, cursor); err != nil {
			return nil, jerrors.Trace(err)
		}
	}
	return r, nil
}

func decodeConnAttrs(buff []byte, cursor int) (map[string]string, error) {
	cursor, total, _, err := util.ReadLength(buff, cursor)
	if err != nil {
		return nil, jerrors.Trace(err)
	}
	end := cursor + int(total)
	if end > len(buff) {
		end = len(buff)
	}
	attrs := make(map[string]string)
	for cursor < end {
		var key, value string
		if cursor, key, err = util.ReadLengthString(buff, cursor); err != nil {
			return nil, jerrors.Trace(err)
		}
		if cursor, value, err = util.ReadLengthString(buff, cursor); err != nil {
			return nil, jerrors.Trace(err)
		}
		attrs[key] = value
	}
	return attrs, nil
}

// Encode renders the handshake response; the client side of the codec.
func (r *HandshakeResponse41) Encode() []byte {
	buff := make([]byte, 0, 128)
	buff = util.WriteUB4(buff, r.Capabilities)
	buff = util.WriteUB4(buff, r.MaxPacketSize)
	buff = util.WriteByte(buff, r.CharSet)
	buff = util.WriteBytes(buff, make([]byte, 23))
	buff = util.WriteWithNull(buff, []byte(r.User))
	switch {
	case r.Capabilities&common.CLIENT_PLUGIN_AUTH_LENENC_CLIENT_DATA != 0:
		buff = util.WriteWithLength(buff, r.AuthResponse)
	case r.Capabilities&common.CLIENT_SECURE_CONNECTION != 0:
		buff = util.WriteByte(buff, byte(len(r.AuthResponse)))
		buff = util.WriteBytes(buff, r.AuthResponse)
	default:
		buff = util.WriteWithNull(buff, r.AuthResponse)
	}
	if r.Capabilities&common.CLIENT_CONNECT_WITH_DB != 0 {
		buff = util.WriteWithNull(buff, []byte(r.Database))
	}
	if r.Capabilities&common.CLIENT_PLUGIN_AUTH != 0 {
		buff = util.WriteWithNull(buff, []byte(r.AuthPluginName))
	}
	if r.Capabilities&common.CLIENT_CONNECT_ATTRS != 0 {
		attrs := make([]byte, 0, 32)
		for k, v := range r.Attrs {
			attrs = util.WriteWithLength(attrs, []byte(k))
			attrs = util.WriteWithLength(attrs, []byte(v))
		}
		buff = util.WriteLength(buff, int64(len(attrs)))
		buff = util.WriteBytes(buff, attrs)
	}
	return buff
}

// ChangeUser is the decoded COM_CHANGE_USER payload (opcode stripped).
type ChangeUser struct {
	User           string
	AuthResponse   []byte
	Database       string
	CharSet        uint16
	AuthPluginName string
	Attrs          map[string]string
}

// DecodeChangeUser parses a COM_CHANGE_USER body given the negotiated
// capabilities.
func DecodeChangeUser(buff []byte, capabilities uint32) (*ChangeUser, error) {
	cu := new(ChangeUser)
	var cursor int
	var err error

	if cursor, cu.User, err = util.ReadStringWithNull(buff, cursor); err != nil {
		return nil, jerrors.Trace(err)
	}
	if capabilities&common.CLIENT_SECURE_CONNECTION != 0 {
		if cursor >= len(buff) {
			return nil, jerrors.Trace(ErrNotEnoughStream)
		}
		var n byte
		cursor, n = util.ReadByte(buff, cursor)
		if cursor+int(n) > len(buff) {
			return nil, jerrors.Trace(ErrNotEnoughStream)
		}
		cursor, cu.AuthResponse = util.ReadBytes(buff, cursor, int(n))
	} else {
		var tmp []byte
		if cursor, tmp, err = util.ReadWithNull(buff, cursor); err != nil {
			return nil, jerrors.Trace(err)
		}
		cu.AuthResponse = tmp
	}
	if cursor, cu.Database, err = util.ReadStringWithNull(buff, cursor); err != nil {
		return nil, jerrors.Trace(err)
	}
	if cursor+2 <= len(buff) {
		cursor, cu.CharSet = util.ReadUB2(buff, cursor)
	}
	if capabilities&common.CLIENT_PLUGIN_AUTH != 0 && cursor < len(buff) {
		if cursor, cu.AuthPluginName, err = util.ReadStringWithNull(buff, cursor); err != nil {
			return nil, jerrors.Trace(err)
		}
	}
	if capabilities&common.CLIENT_CONNECT_ATTRS != 0 && cursor < len(buff) {
		if cu.Attrs, err = decodeConnAttrs(buff, cursor); err != nil {
			return nil, jerrors.Trace(err)
		}
	}
	return cu, nil
}
