package server

import (
	"time"

	"github.com/zhukovaskychina/xmysql-protocol/server/protocol"
)

// MySQLServerSession is the per-connection view handed to the embedding
// application: identity, selected database and the session parameter bag.
type MySQLServerSession interface {
	ConnectionID() uint32

	RemoteAddr() string

	User() string

	Database() string

	SetDatabase(db string)

	GetLastActiveTime() time.Time

	GetParamByName(name string) interface{}

	SetParamByName(name string, value interface{})
}

// ResultSet is what a session backend returns for a query or an execute.
// More chains the next result set of a multi-resultset response.
type ResultSet struct {
	Columns      []*protocol.FieldPacket
	Rows         [][]interface{}
	AffectedRows uint64
	LastInsertID uint64
	Warnings     uint16
	Info         string
	More         *ResultSet
}

// SessionBackend computes results for one session. The protocol engine
// never parses SQL; every statement is delegated here. Returned errors of
// type *common.SQLError travel to the client verbatim, anything else is
// reported as error 1105.
type SessionBackend interface {
	// Init is called once, after authentication succeeds.
	Init(session MySQLServerSession) error

	// Query serves COM_QUERY.
	Query(sql string, attrs []protocol.QueryAttribute) (*ResultSet, error)

	// Prepare serves COM_STMT_PREPARE: the number of parameter markers and
	// the result columns, when known.
	Prepare(sql string) (paramCount int, columns []*protocol.FieldPacket, err error)

	// Execute serves COM_STMT_EXECUTE for a statement prepared earlier.
	Execute(statementID uint32, sql string, params []interface{}, attrs []protocol.QueryAttribute) (*ResultSet, error)

	// Schema exposes table -> column -> type name, serving COM_FIELD_LIST
	// and the open-table count of COM_STATISTICS. May return nil.
	Schema() map[string]map[string]string

	// UseDB serves COM_INIT_DB.
	UseDB(db string) error

	// Reset clears backend session state (COM_RESET_CONNECTION, COM_CHANGE_USER).
	Reset() error

	// Close is called once when the connection ends.
	Close()
}

// BackendFactory builds one backend per accepted connection.
type BackendFactory func(session MySQLServerSession) SessionBackend
