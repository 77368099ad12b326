package server

import (
	"strings"

	"github.com/zhukovaskychina/xmysql-protocol/server/common"
	"github.com/zhukovaskychina/xmysql-protocol/server/protocol"
)

// StaticBackend is the reference SessionBackend: canned results keyed by
// SQL text, optional function hooks, a schema map. The bundled demo server
// and the engine tests run on it; real embedders bring their own backend.
type StaticBackend struct {
	session MySQLServerSession

	Results   map[string]*ResultSet
	SchemaMap map[string]map[string]string
	Databases map[string]bool

	// QueryFunc and ExecuteFunc, when set, take precedence over Results.
	QueryFunc   func(sql string, attrs []protocol.QueryAttribute) (*ResultSet, error)
	ExecuteFunc func(statementID uint32, sql string, params []interface{}, attrs []protocol.QueryAttribute) (*ResultSet, error)
	PrepareFunc func(sql string) (int, []*protocol.FieldPacket, error)

	resetCount int
	closed     bool
}

func NewStaticBackend() *StaticBackend {
	return &StaticBackend{
		Results:   make(map[string]*ResultSet),
		SchemaMap: make(map[string]map[string]string),
	}
}

// Register binds a canned result to an exact SQL text.
func (b *StaticBackend) Register(sql string, rs *ResultSet) {
	b.Results[strings.TrimSpace(sql)] = rs
}

func (b *StaticBackend) Init(session MySQLServerSession) error {
	b.session = session
	return nil
}

func (b *StaticBackend) Query(sql string, attrs []protocol.QueryAttribute) (*ResultSet, error) {
	if b.QueryFunc != nil {
		return b.QueryFunc(sql, attrs)
	}
	if rs, ok := b.Results[strings.TrimSpace(sql)]; ok {
		return rs, nil
	}
	// anything unregistered behaves as a statement with no rows
	return &ResultSet{}, nil
}

func (b *StaticBackend) Prepare(sql string) (int, []*protocol.FieldPacket, error) {
	if b.PrepareFunc != nil {
		return b.PrepareFunc(sql)
	}
	var columns []*protocol.FieldPacket
	if rs, ok := b.Results[strings.TrimSpace(sql)]; ok {
		columns = rs.Columns
	}
	// negative count delegates the marker scan to the dispatcher
	return -1, columns, nil
}

func (b *StaticBackend) Execute(statementID uint32, sql string, params []interface{}, attrs []protocol.QueryAttribute) (*ResultSet, error) {
	if b.ExecuteFunc != nil {
		return b.ExecuteFunc(statementID, sql, params, attrs)
	}
	if rs, ok := b.Results[strings.TrimSpace(sql)]; ok {
		return rs, nil
	}
	return &ResultSet{}, nil
}

func (b *StaticBackend) Schema() map[string]map[string]string {
	return b.SchemaMap
}

func (b *StaticBackend) UseDB(db string) error {
	if len(b.Databases) == 0 || b.Databases[db] {
		return nil
	}
	return common.NewSQLError1(common.ER_BAD_DB_ERROR, db)
}

func (b *StaticBackend) Reset() error {
	b.resetCount++
	return nil
}

func (b *StaticBackend) Close() {
	b.closed = true
}

// ResetCount reports how many times the session state was cleared.
func (b *StaticBackend) ResetCount() int {
	return b.resetCount
}

// Closed reports whether the connection released the backend.
func (b *StaticBackend) Closed() bool {
	return b.closed
}
