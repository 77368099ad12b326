package auth

import (
	"testing"

	jerrors "github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/xmysql-protocol/server/common"
	"github.com/zhukovaskychina/xmysql-protocol/util"
)

func TestNativePasswordPlugin(t *testing.T) {
	provider := NewStaticProvider()
	provider.AddNativeUser("app", "s3cret")
	record := provider.GetUser("app")
	require.NotNil(t, record)

	seed := util.RandomBytes(20)
	plugin, err := NewPlugin(common.MySQLNativePassword, record, provider, seed)
	require.NoError(t, err)
	assert.Equal(t, seed, plugin.InitialData())

	step := plugin.Step(util.Scramble411([]byte("s3cret"), seed))
	assert.Equal(t, StepAccept, step.Kind)
	assert.Equal(t, "app", step.Identity)

	plugin, _ = NewPlugin(common.MySQLNativePassword, record, provider, seed)
	step = plugin.Step(util.Scramble411([]byte("wrong"), seed))
	assert.Equal(t, StepReject, step.Kind)
}

func TestNativePasswordEmptyPassword(t *testing.T) {
	provider := NewStaticProvider()
	provider.AddNativeUser("anon", "")
	record := provider.GetUser("anon")
	seed := util.RandomBytes(20)

	plugin, err := NewPlugin(common.MySQLNativePassword, record, provider, seed)
	require.NoError(t, err)

	// empty password answers with an empty auth response
	assert.Equal(t, StepAccept, plugin.Step(nil).Kind)

	// but only when the stored hash is empty too
	provider.AddNativeUser("strict", "pw")
	plugin, _ = NewPlugin(common.MySQLNativePassword, provider.GetUser("strict"), provider, seed)
	assert.Equal(t, StepReject, plugin.Step(nil).Kind)
}

func TestClearPasswordPlugin(t *testing.T) {
	provider := NewStaticProvider()
	provider.AddClearUser("legacy", "hunter2")
	record := provider.GetUser("legacy")

	plugin, err := NewPlugin(common.MySQLClearPassword, record, provider, nil)
	require.NoError(t, err)

	// the trailing protocol null is stripped before comparison
	step := plugin.Step(append([]byte("hunter2"), 0x00))
	assert.Equal(t, StepAccept, step.Kind)

	step = plugin.Step([]byte("hunter2"))
	assert.Equal(t, StepAccept, step.Kind)

	step = plugin.Step(append([]byte("hunter3"), 0x00))
	assert.Equal(t, StepReject, step.Kind)
}

func TestNoLoginPlugin(t *testing.T) {
	plugin, err := NewPlugin(common.MySQLNoLogin, &UserRecord{Username: "ghost"}, NewStaticProvider(), nil)
	require.NoError(t, err)
	assert.Equal(t, StepReject, plugin.Step(nil).Kind)
	assert.Equal(t, StepReject, plugin.Step([]byte("anything")).Kind)
}

// fakeGSSProvider scripts a three-round token exchange.
type fakeGSSProvider struct {
	StaticProvider
	rounds int
	fail   bool
}

func (p *fakeGSSProvider) GssStep(state interface{}, clientToken []byte) (interface{}, []byte, bool, string, error) {
	if p.fail {
		return nil, nil, false, "", jerrors.New("kdc unreachable")
	}
	round, _ := state.(int)
	round++
	if round >= p.rounds {
		return round, nil, true, "alice@EXAMPLE.COM", nil
	}
	return round, []byte{byte(round)}, false, "", nil
}

func TestKerberosPluginMultiRound(t *testing.T) {
	provider := &fakeGSSProvider{rounds: 3}
	record := &UserRecord{
		Username:   "alice",
		AuthPlugin: common.AuthenticationKerberos,
		AuthString: []byte("spn-blob"),
	}

	plugin, err := NewPlugin(common.AuthenticationKerberos, record, provider, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("spn-blob"), plugin.InitialData())

	step := plugin.Step([]byte("token-1"))
	require.Equal(t, StepContinue, step.Kind)
	assert.Equal(t, []byte{1}, step.Data)

	step = plugin.Step([]byte("token-2"))
	require.Equal(t, StepContinue, step.Kind)

	step = plugin.Step([]byte("token-3"))
	require.Equal(t, StepAccept, step.Kind)
	assert.Equal(t, "alice@EXAMPLE.COM", step.Identity)
}

func TestKerberosPluginProviderError(t *testing.T) {
	provider := &fakeGSSProvider{fail: true}
	record := &UserRecord{Username: "alice", AuthPlugin: common.AuthenticationKerberos}
	plugin, err := NewPlugin(common.AuthenticationKerberos, record, provider, nil)
	require.NoError(t, err)

	step := plugin.Step([]byte("token"))
	assert.Equal(t, StepReject, step.Kind)
	assert.Contains(t, step.Reason, "kdc unreachable")
}

func TestKerberosNeedsGSSProvider(t *testing.T) {
	record := &UserRecord{Username: "alice", AuthPlugin: common.AuthenticationKerberos}
	_, err := NewPlugin(common.AuthenticationKerberos, record, NewStaticProvider(), nil)
	assert.Error(t, err)
}

func TestUnknownPlugin(t *testing.T) {
	_, err := NewPlugin("caching_sha2_password_v9", &UserRecord{}, NewStaticProvider(), nil)
	assert.Error(t, err)
}

func TestAcceptAllProvider(t *testing.T) {
	p := &AcceptAllProvider{}
	record := p.GetUser("whoever")
	require.NotNil(t, record)
	assert.Equal(t, common.MySQLNativePassword, record.AuthPlugin)
	assert.Empty(t, record.AuthString)
}
