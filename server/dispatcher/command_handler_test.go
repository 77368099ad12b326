package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/xmysql-protocol/server"
	"github.com/zhukovaskychina/xmysql-protocol/server/common"
	"github.com/zhukovaskychina/xmysql-protocol/server/conf"
	"github.com/zhukovaskychina/xmysql-protocol/server/protocol"
	msession "github.com/zhukovaskychina/xmysql-protocol/server/session"
	"github.com/zhukovaskychina/xmysql-protocol/util"
)

type captureWriter struct {
	packets [][]byte
}

func (w *captureWriter) WritePacket(payload []byte) error {
	p := make([]byte, len(payload))
	copy(p, payload)
	w.packets = append(w.packets, p)
	return nil
}

func newTestHandler(caps uint32) (*CommandHandler, *server.StaticBackend, *captureWriter) {
	cfg := conf.NewCfg()
	sess := msession.NewMySQLServerSession(1, "127.0.0.1:40000")
	sess.Capabilities = caps
	backend := server.NewStaticBackend()
	h := NewCommandHandler(cfg, sess, backend)
	return h, backend, &captureWriter{}
}

func selectOneResult() *server.ResultSet {
	return &server.ResultSet{
		Columns: []*protocol.FieldPacket{protocol.GetField("1", common.COLUMN_TYPE_LONGLONG)},
		Rows:    [][]interface{}{{int64(1)}},
	}
}

func TestPingRespondsOK(t *testing.T) {
	h, _, w := newTestHandler(common.CLIENT_PROTOCOL_41)
	res, err := h.HandleCommand(w, []byte{common.COM_PING})
	require.NoError(t, err)
	assert.Equal(t, ActionContinue, res.Action)
	require.Len(t, w.packets, 1)
	assert.Equal(t, byte(0x00), w.packets[0][0])
}

func TestUnknownCommand(t *testing.T) {
	h, _, w := newTestHandler(common.CLIENT_PROTOCOL_41)
	res, err := h.HandleCommand(w, []byte{0x2A})
	require.NoError(t, err)
	assert.Equal(t, ActionContinue, res.Action)

	require.Len(t, w.packets, 1)
	ep := protocol.DecodeError(w.packets[0], common.CLIENT_PROTOCOL_41)
	assert.Equal(t, uint16(1047), ep.ErrorCode)
	assert.Equal(t, "08S01", ep.SqlState)
	assert.Contains(t, ep.ErrorMessage, "Unknown command")
}

func TestUnsupportedStmtFetch(t *testing.T) {
	h, _, w := newTestHandler(common.CLIENT_PROTOCOL_41)
	res, err := h.HandleCommand(w, []byte{common.COM_STMT_FETCH})
	require.NoError(t, err)
	assert.Equal(t, ActionContinue, res.Action)
	ep := protocol.DecodeError(w.packets[0], common.CLIENT_PROTOCOL_41)
	assert.Equal(t, uint16(1289), ep.ErrorCode)
}

func TestQuitReturnsQuitAction(t *testing.T) {
	h, _, w := newTestHandler(common.CLIENT_PROTOCOL_41)
	res, err := h.HandleCommand(w, []byte{common.COM_QUIT})
	require.NoError(t, err)
	assert.Equal(t, ActionQuit, res.Action)
	assert.Empty(t, w.packets)
}

func TestComSleepIsFatal(t *testing.T) {
	h, _, w := newTestHandler(common.CLIENT_PROTOCOL_41)
	_, err := h.HandleCommand(w, []byte{common.COM_SLEEP})
	assert.Error(t, err)
	assert.Empty(t, w.packets)
}

func TestQueryTextResultWithEOF(t *testing.T) {
	h, backend, w := newTestHandler(common.CLIENT_PROTOCOL_41)
	backend.Register("SELECT 1", selectOneResult())

	body := append([]byte{common.COM_QUERY}, []byte("SELECT 1")...)
	_, err := h.HandleCommand(w, body)
	require.NoError(t, err)

	// column count, column def, EOF, row, EOF
	require.Len(t, w.packets, 5)
	assert.Equal(t, []byte{0x01}, w.packets[0])
	fp, err := protocol.DecodeFieldPacket(w.packets[1])
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), fp.Name)
	assert.True(t, protocol.IsEOFPacket(w.packets[2]))
	assert.Equal(t, []byte{0x01, '1'}, w.packets[3])
	assert.True(t, protocol.IsEOFPacket(w.packets[4]))

	// the terminator carries the autocommit flag
	_, status := util.ReadUB2(w.packets[4], 3)
	assert.NotZero(t, status&common.SERVER_STATUS_AUTOCOMMIT)
}

func TestQueryTextResultDeprecateEOF(t *testing.T) {
	caps := common.CLIENT_PROTOCOL_41 | common.CLIENT_DEPRECATE_EOF
	h, backend, w := newTestHandler(caps)
	backend.Register("SELECT 1", selectOneResult())

	body := append([]byte{common.COM_QUERY}, []byte("SELECT 1")...)
	_, err := h.HandleCommand(w, body)
	require.NoError(t, err)

	// no EOF between defs and rows; terminator is the 0xFE OK form
	require.Len(t, w.packets, 4)
	assert.Equal(t, []byte{0x01}, w.packets[0])
	assert.Equal(t, []byte{0x01, '1'}, w.packets[2])
	assert.Equal(t, byte(0xFE), w.packets[3][0])
}

func TestQueryBackendSQLErrorStaysInLoop(t *testing.T) {
	h, backend, w := newTestHandler(common.CLIENT_PROTOCOL_41)
	backend.QueryFunc = func(sql string, attrs []protocol.QueryAttribute) (*server.ResultSet, error) {
		return nil, common.NewSQLError1(common.ER_NO_SUCH_TABLE, "missing")
	}
	res, err := h.HandleCommand(w, append([]byte{common.COM_QUERY}, []byte("SELECT * FROM missing")...))
	require.NoError(t, err)
	assert.Equal(t, ActionContinue, res.Action)

	ep := protocol.DecodeError(w.packets[0], common.CLIENT_PROTOCOL_41)
	assert.Equal(t, uint16(1146), ep.ErrorCode)
}

func TestQueryBackendPanicBecomes1105(t *testing.T) {
	h, backend, w := newTestHandler(common.CLIENT_PROTOCOL_41)
	backend.QueryFunc = func(sql string, attrs []protocol.QueryAttribute) (*server.ResultSet, error) {
		panic("backend bug")
	}
	_, err := h.HandleCommand(w, append([]byte{common.COM_QUERY}, []byte("SELECT 1")...))
	require.NoError(t, err)

	ep := protocol.DecodeError(w.packets[0], common.CLIENT_PROTOCOL_41)
	assert.Equal(t, uint16(1105), ep.ErrorCode)
}

func TestMultiResultSet(t *testing.T) {
	h, backend, w := newTestHandler(common.CLIENT_PROTOCOL_41)
	first := selectOneResult()
	first.More = selectOneResult()
	backend.Register("CALL p()", first)

	_, err := h.HandleCommand(w, append([]byte{common.COM_QUERY}, []byte("CALL p()")...))
	require.NoError(t, err)

	// two full result sets: 5 + 5 packets
	require.Len(t, w.packets, 10)
	// the first terminator announces more results
	_, status := util.ReadUB2(w.packets[4], 3)
	assert.NotZero(t, status&common.SERVER_MORE_RESULTS_EXISTS)
	_, status = util.ReadUB2(w.packets[9], 3)
	assert.Zero(t, status&common.SERVER_MORE_RESULTS_EXISTS)
}

func TestInitDBUnknownDatabase(t *testing.T) {
	h, backend, w := newTestHandler(common.CLIENT_PROTOCOL_41)
	backend.Databases = map[string]bool{"orders": true}

	_, err := h.HandleCommand(w, append([]byte{common.COM_INIT_DB}, []byte("nope")...))
	require.NoError(t, err)
	ep := protocol.DecodeError(w.packets[0], common.CLIENT_PROTOCOL_41)
	assert.Equal(t, uint16(1049), ep.ErrorCode)

	w.packets = nil
	_, err = h.HandleCommand(w, append([]byte{common.COM_INIT_DB}, []byte("orders")...))
	require.NoError(t, err)
	assert.Equal(t, byte(0x00), w.packets[0][0])
	assert.Equal(t, "orders", h.sess.Database())
}

func TestStatisticsIsBareString(t *testing.T) {
	h, _, w := newTestHandler(common.CLIENT_PROTOCOL_41)
	_, err := h.HandleCommand(w, []byte{common.COM_STATISTICS})
	require.NoError(t, err)
	require.Len(t, w.packets, 1)
	assert.Contains(t, string(w.packets[0]), "Uptime:")
	assert.Contains(t, string(w.packets[0]), "Questions:")
}

func TestProcessInfo(t *testing.T) {
	h, _, w := newTestHandler(common.CLIENT_PROTOCOL_41)
	_, err := h.HandleCommand(w, []byte{common.COM_PROCESS_INFO})
	require.NoError(t, err)
	// 8 columns: count + 8 defs + EOF + 1 row + EOF
	require.Len(t, w.packets, 12)
	assert.Equal(t, []byte{0x08}, w.packets[0])
}

func TestFieldList(t *testing.T) {
	h, backend, w := newTestHandler(common.CLIENT_PROTOCOL_41)
	backend.SchemaMap["probe"] = map[string]string{"id": "bigint"}

	body := append([]byte{common.COM_FIELD_LIST}, []byte("probe")...)
	body = append(body, 0x00)
	body = append(body, []byte("%")...)
	_, err := h.HandleCommand(w, body)
	require.NoError(t, err)

	require.Len(t, w.packets, 2)
	fp, err := protocol.DecodeFieldPacket(w.packets[0])
	require.NoError(t, err)
	assert.Equal(t, []byte("id"), fp.Name)
	assert.Equal(t, byte(common.COLUMN_TYPE_LONGLONG), fp.Types)
	assert.True(t, protocol.IsEOFPacket(w.packets[1]))

	w.packets = nil
	body = append([]byte{common.COM_FIELD_LIST}, []byte("ghost")...)
	body = append(body, 0x00)
	_, err = h.HandleCommand(w, body)
	require.NoError(t, err)
	ep := protocol.DecodeError(w.packets[0], common.CLIENT_PROTOCOL_41)
	assert.Equal(t, uint16(1146), ep.ErrorCode)
}

func TestChangeUserReturnsAction(t *testing.T) {
	caps := common.CLIENT_PROTOCOL_41 | common.CLIENT_SECURE_CONNECTION
	h, _, w := newTestHandler(caps)

	payload := []byte("bob")
	payload = append(payload, 0x00)
	payload = append(payload, 0x00) // empty auth response
	payload = append(payload, 0x00) // empty database

	res, err := h.HandleCommand(w, append([]byte{common.COM_CHANGE_USER}, payload...))
	require.NoError(t, err)
	require.Equal(t, ActionChangeUser, res.Action)
	require.NotNil(t, res.ChangeUser)
	assert.Equal(t, "bob", res.ChangeUser.User)
}

func TestResetConnection(t *testing.T) {
	h, backend, w := newTestHandler(common.CLIENT_PROTOCOL_41)
	h.sess.Registry.Put("SELECT 1", 0, nil)
	h.sess.SetParamByName("k", "v")

	_, err := h.HandleCommand(w, []byte{common.COM_RESET_CONNECTION})
	require.NoError(t, err)
	assert.Equal(t, byte(0x00), w.packets[0][0])
	assert.Equal(t, 0, h.sess.Registry.Count())
	assert.Nil(t, h.sess.GetParamByName("k"))
	assert.Equal(t, 1, backend.ResetCount())
}

func TestCountParamMarkers(t *testing.T) {
	assert.Equal(t, 2, CountParamMarkers("SELECT ?, ?"))
	assert.Equal(t, 1, CountParamMarkers(`SELECT '?', "?", ?`))
	assert.Equal(t, 0, CountParamMarkers("SELECT `a?b` FROM t"))
	assert.Equal(t, 1, CountParamMarkers(`SELECT '\'?', ?`))
	assert.Equal(t, 0, CountParamMarkers("SELECT 1"))
}
