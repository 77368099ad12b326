package auth

import (
	"bytes"

	jerrors "github.com/juju/errors"

	"github.com/zhukovaskychina/xmysql-protocol/server/common"
	"github.com/zhukovaskychina/xmysql-protocol/util"
)

// StepKind tags the outcome of one plugin round.
type StepKind int

const (
	// StepContinue sends Data to the client as auth-more-data and waits
	// for the next client payload.
	StepContinue StepKind = iota
	// StepAccept ends the exchange successfully.
	StepAccept
	// StepReject ends the exchange with access denied.
	StepReject
)

// Step is the verdict of one authentication round.
type Step struct {
	Kind     StepKind
	Data     []byte
	Identity string
	Reason   string
}

// Plugin drives one authentication method as a state machine: each call to
// Step consumes the client's payload and yields either outbound bytes or a
// terminal verdict. Plugins are per-exchange and never reused.
type Plugin interface {
	Name() string

	// InitialData is the plugin data carried by the greeting or by an
	// auth-switch-request.
	InitialData() []byte

	Step(clientData []byte) Step
}

// NewPlugin instantiates the named plugin for one exchange.
func NewPlugin(name string, record *UserRecord, provider IdentityProvider, seed []byte) (Plugin, error) {
	switch name {
	case common.MySQLNativePassword:
		return &nativePasswordPlugin{seed: seed, record: record}, nil
	case common.MySQLClearPassword:
		return &clearPasswordPlugin{record: record}, nil
	case common.MySQLNoLogin:
		return &noLoginPlugin{}, nil
	case common.AuthenticationKerberos:
		gss, ok := provider.(GSSProvider)
		if !ok {
			return nil, jerrors.Errorf("identity provider cannot serve %s", name)
		}
		return &kerberosPlugin{record: record, gss: gss}, nil
	}
	return nil, jerrors.Errorf("unknown auth plugin %q", name)
}

// nativePasswordPlugin: the client answers the 20-byte nonce with
// SHA1(password) XOR SHA1(nonce || SHA1(SHA1(password))).
type nativePasswordPlugin struct {
	seed   []byte
	record *UserRecord
}

func (p *nativePasswordPlugin) Name() string { return common.MySQLNativePassword }

func (p *nativePasswordPlugin) InitialData() []byte { return p.seed }

func (p *nativePasswordPlugin) Step(clientData []byte) Step {
	if util.CheckScramble(clientData, p.seed, p.record.AuthString) {
		return Step{Kind: StepAccept, Identity: p.record.Username}
	}
	return Step{Kind: StepReject, Reason: "bad password"}
}

// clearPasswordPlugin: the client sends the raw password; the trailing
// protocol null is stripped before comparison.
type clearPasswordPlugin struct {
	record *UserRecord
}

func (p *clearPasswordPlugin) Name() string { return common.MySQLClearPassword }

func (p *clearPasswordPlugin) InitialData() []byte { return nil }

func (p *clearPasswordPlugin) Step(clientData []byte) Step {
	password := clientData
	if n := len(password); n > 0 && password[n-1] == 0x00 {
		password = password[:n-1]
	}
	if bytes.Equal(password, p.record.AuthString) {
		return Step{Kind: StepAccept, Identity: p.record.Username}
	}
	return Step{Kind: StepReject, Reason: "bad password"}
}

// noLoginPlugin refuses every exchange; accounts carrying it exist only as
// definers or proxy targets.
type noLoginPlugin struct{}

func (p *noLoginPlugin) Name() string { return common.MySQLNoLogin }

func (p *noLoginPlugin) InitialData() []byte { return nil }

func (p *noLoginPlugin) Step(clientData []byte) Step {
	return Step{Kind: StepReject, Reason: "account does not permit login"}
}

// kerberosPlugin forwards GSSAPI tokens between the client and the
// identity provider until the provider reports a completed context.
type kerberosPlugin struct {
	record   *UserRecord
	gss      GSSProvider
	state    interface{}
	finished bool
	identity string
}

func (p *kerberosPlugin) Name() string { return common.AuthenticationKerberos }

// InitialData carries the provider-configured SPN/realm blob.
func (p *kerberosPlugin) InitialData() []byte { return p.record.AuthString }

func (p *kerberosPlugin) Step(clientData []byte) Step {
	if p.finished {
		return Step{Kind: StepAccept, Identity: p.identity}
	}
	state, serverToken, done, identity, err := p.gss.GssStep(p.state, clientData)
	if err != nil {
		return Step{Kind: StepReject, Reason: err.Error()}
	}
	p.state = state
	if done {
		if len(serverToken) > 0 {
			// one last token travels to the client before the OK
			p.finished = true
			p.identity = identity
			return Step{Kind: StepContinue, Data: serverToken}
		}
		return Step{Kind: StepAccept, Identity: identity}
	}
	return Step{Kind: StepContinue, Data: serverToken}
}
