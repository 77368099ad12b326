package session

import (
	"time"

	"github.com/zhukovaskychina/xmysql-protocol/server/common"
)

// MySQLServerSessionImpl is the engine-side session state: negotiated
// capabilities and charset, identity, the current database, status flags
// and the prepared-statement registry. It implements
// server.MySQLServerSession.
type MySQLServerSessionImpl struct {
	connID         uint32
	remoteAddr     string
	user           string
	database       string
	lastActiveTime time.Time
	params         map[string]interface{}

	Capabilities uint32
	CharsetIndex uint8
	StatusFlags  uint16
	Attrs        map[string]string

	Registry *Registry
}

func NewMySQLServerSession(connID uint32, remoteAddr string) *MySQLServerSessionImpl {
	return &MySQLServerSessionImpl{
		connID:         connID,
		remoteAddr:     remoteAddr,
		lastActiveTime: time.Now(),
		params:         make(map[string]interface{}),
		CharsetIndex:   common.CharacterSetUtf8,
		StatusFlags:    common.SERVER_STATUS_AUTOCOMMIT,
		Registry:       NewRegistry(),
	}
}

func (m *MySQLServerSessionImpl) ConnectionID() uint32 {
	return m.connID
}

func (m *MySQLServerSessionImpl) RemoteAddr() string {
	return m.remoteAddr
}

func (m *MySQLServerSessionImpl) User() string {
	return m.user
}

func (m *MySQLServerSessionImpl) SetUser(user string) {
	m.user = user
}

func (m *MySQLServerSessionImpl) Database() string {
	return m.database
}

func (m *MySQLServerSessionImpl) SetDatabase(db string) {
	m.database = db
}

func (m *MySQLServerSessionImpl) GetLastActiveTime() time.Time {
	return m.lastActiveTime
}

func (m *MySQLServerSessionImpl) UpdateActive() {
	m.lastActiveTime = time.Now()
}

func (m *MySQLServerSessionImpl) GetParamByName(name string) interface{} {
	return m.params[name]
}

func (m *MySQLServerSessionImpl) SetParamByName(name string, value interface{}) {
	m.params[name] = value
}

// ResetState drops everything but the identity: prepared statements,
// session parameters, status flags. Used by COM_RESET_CONNECTION.
func (m *MySQLServerSessionImpl) ResetState() {
	m.Registry.Clear()
	m.params = make(map[string]interface{})
	m.StatusFlags = common.SERVER_STATUS_AUTOCOMMIT
}
