package dispatcher

import (
	"fmt"
	"strings"
	"time"

	log "github.com/AlexStocks/log4go"
	jerrors "github.com/juju/errors"

	"github.com/zhukovaskychina/xmysql-protocol/server"
	"github.com/zhukovaskychina/xmysql-protocol/server/common"
	"github.com/zhukovaskychina/xmysql-protocol/server/conf"
	"github.com/zhukovaskychina/xmysql-protocol/server/protocol"
	"github.com/zhukovaskychina/xmysql-protocol/server/session"
)

// PacketWriter frames and sequences one logical packet onto the wire.
type PacketWriter interface {
	WritePacket(payload []byte) error
}

// Action tells the connection loop what to do after a command.
type Action int

const (
	ActionContinue Action = iota
	ActionQuit
	ActionChangeUser
)

// Result is the outcome of one dispatched command.
type Result struct {
	Action     Action
	ChangeUser *protocol.ChangeUser
}

// CommandHandler decodes command packets and routes them to the session
// backend. One handler serves one connection for its whole life.
type CommandHandler struct {
	cfg     *conf.Cfg
	sess    *session.MySQLServerSessionImpl
	backend server.SessionBackend

	started   time.Time
	questions uint64
}

func NewCommandHandler(cfg *conf.Cfg, sess *session.MySQLServerSessionImpl, backend server.SessionBackend) *CommandHandler {
	return &CommandHandler{
		cfg:     cfg,
		sess:    sess,
		backend: backend,
		started: time.Now(),
	}
}

// Backend returns the attached session backend.
func (h *CommandHandler) Backend() server.SessionBackend {
	return h.backend
}

// SetBackend replaces the attached session backend.
func (h *CommandHandler) SetBackend(backend server.SessionBackend) {
	h.backend = backend
}

// HandleCommand processes one command packet. Errors returned here are
// fatal protocol errors; everything recoverable has already been written
// as an error packet.
func (h *CommandHandler) HandleCommand(w PacketWriter, body []byte) (Result, error) {
	if len(body) == 0 {
		return Result{}, jerrors.New("empty command packet")
	}
	opcode := body[0]
	payload := body[1:]
	h.sess.UpdateActive()
	h.questions++

	log.Debug("conn %d dispatch %s", h.sess.ConnectionID(), common.CommandString(opcode))

	switch opcode {
	case common.COM_QUIT:
		return Result{Action: ActionQuit}, nil

	case common.COM_PING:
		return Result{}, h.writeOK(w, 0, 0, "")

	case common.COM_INIT_DB:
		return Result{}, h.handleInitDB(w, payload)

	case common.COM_QUERY:
		return Result{}, h.handleQuery(w, payload)

	case common.COM_FIELD_LIST:
		return Result{}, h.handleFieldList(w, payload)

	case common.COM_STATISTICS:
		return Result{}, h.handleStatistics(w)

	case common.COM_PROCESS_INFO:
		return Result{}, h.handleProcessInfo(w)

	case common.COM_CHANGE_USER:
		cu, err := protocol.DecodeChangeUser(payload, h.sess.Capabilities)
		if err != nil {
			return Result{}, jerrors.Trace(err)
		}
		return Result{Action: ActionChangeUser, ChangeUser: cu}, nil

	case common.COM_STMT_PREPARE:
		return Result{}, h.handleStmtPrepare(w, payload)

	case common.COM_STMT_EXECUTE:
		return Result{}, h.handleStmtExecute(w, payload)

	case common.COM_STMT_CLOSE:
		if id, err := protocol.DecodeStmtID(payload); err == nil {
			h.sess.Registry.Close(id)
		}
		// no response by protocol
		return Result{}, nil

	case common.COM_STMT_RESET:
		return Result{}, h.handleStmtReset(w, payload)

	case common.COM_STMT_SEND_LONG_DATA:
		// errors are silent: the command has no response packet
		if ld, err := protocol.DecodeStmtLongData(payload); err == nil {
			if ps, err := h.sess.Registry.Get(ld.StatementID); err == nil {
				ps.AppendLongData(ld.ParamID, ld.Data)
			}
		}
		return Result{}, nil

	case common.COM_RESET_CONNECTION:
		h.sess.ResetState()
		if err := h.backend.Reset(); err != nil {
			return Result{}, h.writeBackendError(w, err)
		}
		return Result{}, h.writeOK(w, 0, 0, "")

	case common.COM_STMT_FETCH, common.COM_SET_OPTION:
		se := common.NewSQLError1(common.ER_FEATURE_DISABLED,
			common.CommandString(opcode), "not supported by this server")
		return Result{}, h.writeError(w, se)

	case common.COM_SLEEP:
		// never sent by real clients; a stream that produces it is broken
		return Result{}, jerrors.New("unexpected COM_SLEEP from client")

	default:
		se := common.NewSQLError(common.ER_UNKNOWN_COM_ERROR, "08S01",
			"Unknown command 0x%02x", opcode)
		return Result{}, h.writeError(w, se)
	}
}

func (h *CommandHandler) handleInitDB(w PacketWriter, payload []byte) error {
	db := string(payload)
	if err := h.backend.UseDB(db); err != nil {
		if se, ok := err.(*common.SQLError); ok {
			return h.writeError(w, se)
		}
		return h.writeError(w, common.NewSQLError1(common.ER_BAD_DB_ERROR, db))
	}
	h.sess.SetDatabase(db)
	return h.writeOK(w, 0, 0, "")
}

func (h *CommandHandler) handleQuery(w PacketWriter, payload []byte) error {
	sql, attrs, err := protocol.DecodeQuery(payload, h.sess.Capabilities)
	if err != nil {
		return jerrors.Trace(err)
	}
	rs, err := h.callQuery(sql, attrs)
	if err != nil {
		return h.writeBackendError(w, err)
	}
	return h.WriteResultSet(w, rs, false)
}

// callQuery shields the connection from backend panics; an embedding bug
// becomes error 1105 instead of a dead session.
func (h *CommandHandler) callQuery(sql string, attrs []protocol.QueryAttribute) (rs *server.ResultSet, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("conn %d query panic: %v", h.sess.ConnectionID(), r)
			rs, err = nil, common.NewSQLError(common.ER_UNKNOWN_ERROR, "", "query failed: %v", r)
		}
	}()
	return h.backend.Query(sql, attrs)
}

func (h *CommandHandler) callExecute(id uint32, sql string, params []interface{}, attrs []protocol.QueryAttribute) (rs *server.ResultSet, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("conn %d execute panic: %v", h.sess.ConnectionID(), r)
			rs, err = nil, common.NewSQLError(common.ER_UNKNOWN_ERROR, "", "execute failed: %v", r)
		}
	}()
	return h.backend.Execute(id, sql, params, attrs)
}

func (h *CommandHandler) handleFieldList(w PacketWriter, payload []byte) error {
	table, _, err := splitFieldList(payload)
	if err != nil {
		return jerrors.Trace(err)
	}
	schema := h.backend.Schema()
	columns, ok := schema[table]
	if !ok {
		return h.writeError(w, common.NewSQLError1(common.ER_NO_SUCH_TABLE, table))
	}
	for name, typeName := range columns {
		fp := protocol.GetField(name, typeNameToCode(typeName))
		fp.TableName = []byte(table)
		fp.OrgTableName = []byte(table)
		fp.DBName = []byte(h.sess.Database())
		fp.Definition = []byte{} // no default value
		if err := w.WritePacket(fp.Encode()); err != nil {
			return jerrors.Trace(err)
		}
	}
	return h.writeTerminator(w, h.sess.StatusFlags)
}

func splitFieldList(payload []byte) (table string, wildcard string, err error) {
	idx := -1
	for i, b := range payload {
		if b == 0x00 {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", "", jerrors.New("malformed COM_FIELD_LIST")
	}
	return string(payload[:idx]), string(payload[idx+1:]), nil
}

func (h *CommandHandler) handleStatistics(w PacketWriter) error {
	uptime := int64(time.Since(h.started).Seconds())
	qps := float64(h.questions) / float64(uptime+1)
	stats := fmt.Sprintf(
		"Uptime: %d  Threads: 1  Questions: %d  Slow queries: 0  Opens: 0  Flush tables: 1  Open tables: %d  Queries per second avg: %.3f",
		uptime, h.questions, len(h.backend.Schema()), qps)
	// COM_STATISTICS answers a bare string, not an OK packet
	return w.WritePacket([]byte(stats))
}

func (h *CommandHandler) handleProcessInfo(w PacketWriter) error {
	cols := []*protocol.FieldPacket{
		protocol.GetField("Id", common.COLUMN_TYPE_LONGLONG),
		protocol.GetField("User", common.COLUMN_TYPE_VAR_STRING),
		protocol.GetField("Host", common.COLUMN_TYPE_VAR_STRING),
		protocol.GetField("db", common.COLUMN_TYPE_VAR_STRING),
		protocol.GetField("Command", common.COLUMN_TYPE_VAR_STRING),
		protocol.GetField("Time", common.COLUMN_TYPE_LONG),
		protocol.GetField("State", common.COLUMN_TYPE_VAR_STRING),
		protocol.GetField("Info", common.COLUMN_TYPE_VAR_STRING),
	}
	var db interface{}
	if h.sess.Database() != "" {
		db = h.sess.Database()
	}
	rs := &server.ResultSet{
		Columns: cols,
		Rows: [][]interface{}{{
			uint64(h.sess.ConnectionID()),
			h.sess.User(),
			h.sess.RemoteAddr(),
			db,
			"Query",
			int64(0),
			"executing",
			"PROCESSLIST",
		}},
	}
	return h.WriteResultSet(w, rs, false)
}

func (h *CommandHandler) handleStmtPrepare(w PacketWriter, payload []byte) error {
	sql := string(payload)
	paramCount, columns, err := h.backend.Prepare(sql)
	if err != nil {
		return h.writeBackendError(w, err)
	}
	if paramCount < 0 {
		paramCount = CountParamMarkers(sql)
	}
	ps := h.sess.Registry.Put(sql, paramCount, columns)

	prepareOK := &protocol.StmtPrepareOK{
		StatementID: ps.ID,
		ColumnCount: uint16(len(columns)),
		ParamCount:  uint16(paramCount),
	}
	if err := w.WritePacket(prepareOK.Encode()); err != nil {
		return jerrors.Trace(err)
	}

	deprecateEOF := h.sess.Capabilities&common.CLIENT_DEPRECATE_EOF != 0
	if paramCount > 0 {
		for i := 0; i < paramCount; i++ {
			fp := protocol.GetField("?", common.COLUMN_TYPE_VAR_STRING)
			if err := w.WritePacket(fp.Encode()); err != nil {
				return jerrors.Trace(err)
			}
		}
		if !deprecateEOF {
			if err := h.writeEOF(w, h.sess.StatusFlags); err != nil {
				return err
			}
		}
	}
	if len(columns) > 0 {
		for _, fp := range columns {
			if err := w.WritePacket(fp.Encode()); err != nil {
				return jerrors.Trace(err)
			}
		}
		if !deprecateEOF {
			if err := h.writeEOF(w, h.sess.StatusFlags); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *CommandHandler) handleStmtExecute(w PacketWriter, payload []byte) error {
	se, cursor, err := protocol.DecodeStmtExecuteHeader(payload)
	if err != nil {
		return jerrors.Trace(err)
	}
	ps, err := h.sess.Registry.Get(se.StatementID)
	if err != nil {
		return h.writeError(w, common.NewSQLError1(common.ER_UNKNOWN_STMT_HANDLER,
			se.StatementID, "mysqld_stmt_execute"))
	}
	if err := se.DecodeStmtExecuteParams(payload, cursor, ps.ParamCount, ps.ParamTypes, h.sess.Capabilities); err != nil {
		return jerrors.Trace(err)
	}
	if se.NewParamsBound {
		ps.ParamTypes = se.ParamTypes
	}
	params := ps.MergeLongData(se.Params)

	rs, err := h.callExecute(ps.ID, ps.SQL, params, se.Attrs)
	if err != nil {
		return h.writeBackendError(w, err)
	}
	return h.WriteResultSet(w, rs, true)
}

func (h *CommandHandler) handleStmtReset(w PacketWriter, payload []byte) error {
	id, err := protocol.DecodeStmtID(payload)
	if err != nil {
		return jerrors.Trace(err)
	}
	ps, err := h.sess.Registry.Get(id)
	if err != nil {
		return h.writeError(w, common.NewSQLError1(common.ER_UNKNOWN_STMT_HANDLER,
			id, "mysqld_stmt_reset"))
	}
	ps.ClearLongData()
	return h.writeOK(w, 0, 0, "")
}

// CountParamMarkers counts '?' placeholders outside quoted runs; the
// fallback when the backend does not report a parameter count.
func CountParamMarkers(sql string) int {
	count := 0
	var quote byte
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '?':
			count++
		}
	}
	return count
}

func typeNameToCode(typeName string) byte {
	switch strings.ToLower(typeName) {
	case "tinyint", "tiny", "bool", "boolean":
		return common.COLUMN_TYPE_TINY
	case "smallint", "short":
		return common.COLUMN_TYPE_SHORT
	case "int", "integer":
		return common.COLUMN_TYPE_LONG
	case "bigint", "longlong":
		return common.COLUMN_TYPE_LONGLONG
	case "float":
		return common.COLUMN_TYPE_FLOAT
	case "double", "real":
		return common.COLUMN_TYPE_DOUBLE
	case "decimal", "numeric":
		return common.COLUMN_TYPE_NEWDECIMAL
	case "date":
		return common.COLUMN_TYPE_DATE
	case "time":
		return common.COLUMN_TYPE_TIME
	case "datetime":
		return common.COLUMN_TYPE_DATETIME
	case "timestamp":
		return common.COLUMN_TYPE_TIMESTAMP
	case "year":
		return common.COLUMN_TYPE_YEAR
	case "json":
		return common.COLUMN_TYPE_JSON
	case "blob":
		return common.COLUMN_TYPE_BLOB
	case "text", "varchar":
		return common.COLUMN_TYPE_VAR_STRING
	default:
		return common.COLUMN_TYPE_VAR_STRING
	}
}
