package auth

import (
	"github.com/zhukovaskychina/xmysql-protocol/server/common"
	"github.com/zhukovaskychina/xmysql-protocol/util"
)

// UserRecord is one account as the identity provider stores it. AuthString
// is the plugin-specific credential: SHA1(SHA1(password)) for
// mysql_native_password, the clear bytes for mysql_clear_password, an
// opaque provider blob for authentication_kerberos.
type UserRecord struct {
	Username   string
	AuthPlugin string
	AuthString []byte
}

// IdentityProvider resolves accounts for the authentication driver. The
// engine only drives the handshake; what a credential means is decided
// here.
type IdentityProvider interface {
	// GetUser returns the account record, or nil when the user is unknown.
	GetUser(username string) *UserRecord

	// Plugins lists the plugin names this provider can serve.
	Plugins() []string
}

// GSSProvider is the optional extension for authentication_kerberos: one
// token exchange step. state is opaque continuation data threaded through
// the rounds; done reports a completed context and the authenticated
// identity.
type GSSProvider interface {
	GssStep(state interface{}, clientToken []byte) (newState interface{}, serverToken []byte, done bool, identity string, err error)
}

// AcceptAllProvider is the default provider: every user exists with an
// empty native password.
type AcceptAllProvider struct{}

func (p *AcceptAllProvider) GetUser(username string) *UserRecord {
	return &UserRecord{
		Username:   username,
		AuthPlugin: common.MySQLNativePassword,
	}
}

func (p *AcceptAllProvider) Plugins() []string {
	return []string{common.MySQLNativePassword}
}

// StaticProvider serves a fixed user table; the natural provider for
// embedded servers.
type StaticProvider struct {
	Users map[string]*UserRecord
}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{Users: make(map[string]*UserRecord)}
}

// AddNativeUser registers a user under mysql_native_password, hashing the
// clear password into its stored form.
func (p *StaticProvider) AddNativeUser(username, password string) {
	p.Users[username] = &UserRecord{
		Username:   username,
		AuthPlugin: common.MySQLNativePassword,
		AuthString: util.DoubleSHA1([]byte(password)),
	}
}

// AddClearUser registers a user under mysql_clear_password.
func (p *StaticProvider) AddClearUser(username, password string) {
	p.Users[username] = &UserRecord{
		Username:   username,
		AuthPlugin: common.MySQLClearPassword,
		AuthString: []byte(password),
	}
}

func (p *StaticProvider) GetUser(username string) *UserRecord {
	return p.Users[username]
}

func (p *StaticProvider) Plugins() []string {
	return []string{
		common.MySQLNativePassword,
		common.MySQLClearPassword,
		common.MySQLNoLogin,
	}
}
