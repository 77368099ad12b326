package session

import (
	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xmysql-protocol/server/protocol"
	"github.com/zhukovaskychina/xmysql-protocol/util"
)

// PreparedStatement is one entry of a session's statement registry.
type PreparedStatement struct {
	ID         uint32
	SQL        string
	SQLHash    uint64
	ParamCount int
	Columns    []*protocol.FieldPacket
	ParamTypes []uint16 // bound on first execute, reused while unchanged

	longData map[uint16][]byte
}

// AppendLongData accumulates a COM_STMT_SEND_LONG_DATA chunk.
func (ps *PreparedStatement) AppendLongData(paramID uint16, data []byte) {
	if ps.longData == nil {
		ps.longData = make(map[uint16][]byte)
	}
	ps.longData[paramID] = append(ps.longData[paramID], data...)
}

// MergeLongData overlays accumulated long-data buffers onto the decoded
// parameter values and clears the buffers, as execute consumes them.
func (ps *PreparedStatement) MergeLongData(params []interface{}) []interface{} {
	if len(ps.longData) == 0 {
		return params
	}
	for paramID, data := range ps.longData {
		if int(paramID) < len(params) {
			params[int(paramID)] = data
		}
	}
	ps.longData = nil
	return params
}

// ClearLongData drops the accumulated buffers (COM_STMT_RESET).
func (ps *PreparedStatement) ClearLongData() {
	ps.longData = nil
}

// Registry maps statement ids to their records for one session. Ids start
// at 1 and are never reused within the session. Sessions are single
// threaded by protocol design, so no locking.
type Registry struct {
	nextID uint32
	stmts  map[uint32]*PreparedStatement
}

func NewRegistry() *Registry {
	return &Registry{
		nextID: 1,
		stmts:  make(map[uint32]*PreparedStatement),
	}
}

// Put registers a prepared statement and assigns its id. Identical SQL
// text keeps distinct ids, but the hash lets the backend correlate
// duplicate prepares cheaply.
func (r *Registry) Put(sql string, paramCount int, columns []*protocol.FieldPacket) *PreparedStatement {
	ps := &PreparedStatement{
		ID:         r.nextID,
		SQL:        sql,
		SQLHash:    util.HashCode([]byte(sql)),
		ParamCount: paramCount,
		Columns:    columns,
	}
	r.nextID++
	r.stmts[ps.ID] = ps
	return ps
}

// Get locates a statement by id.
func (r *Registry) Get(id uint32) (*PreparedStatement, error) {
	ps, ok := r.stmts[id]
	if !ok {
		return nil, errors.Errorf("unknown prepared statement %d", id)
	}
	return ps, nil
}

// Close deallocates a statement; closing an unknown id is not an error, as
// COM_STMT_CLOSE has no response to carry one.
func (r *Registry) Close(id uint32) {
	delete(r.stmts, id)
}

// Clear drops every statement (change-user, reset-connection, close).
func (r *Registry) Clear() {
	r.stmts = make(map[uint32]*PreparedStatement)
}

// Count reports the number of live statements.
func (r *Registry) Count() int {
	return len(r.stmts)
}
