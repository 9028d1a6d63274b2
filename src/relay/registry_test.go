package relay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perpexecutor/src/model"
)

type fakeProvider struct {
	kind       ProviderType
	configured bool
	result     model.TxResult
	err        error
	calls      int
}

func (p *fakeProvider) Type() ProviderType { return p.kind }
func (p *fakeProvider) Configured() bool   { return p.configured }
func (p *fakeProvider) Submit(ctx context.Context, tx model.UnsignedTx) (model.TxResult, error) {
	p.calls++
	return p.result, p.err
}

func threeProviders() (*fakeProvider, *fakeProvider, *fakeProvider) {
	return &fakeProvider{kind: ProviderGelato, configured: true, result: model.TxResult{TxHash: "0xg"}},
		&fakeProvider{kind: ProviderBiconomy, configured: true, result: model.TxResult{TxHash: "0xb"}},
		&fakeProvider{kind: ProviderRPC, configured: false}
}

func TestRegistry_FirstConfiguredIsActive(t *testing.T) {
	unconfigured := &fakeProvider{kind: ProviderGelato, configured: false}
	configured := &fakeProvider{kind: ProviderBiconomy, configured: true}

	r := NewRegistry(unconfigured, configured)
	assert.Equal(t, ProviderBiconomy, r.ActiveType())
}

func TestRegistry_ListProvidersKeepsOrder(t *testing.T) {
	g, b, rpc := threeProviders()
	r := NewRegistry(g, b, rpc)

	assert.Equal(t, []ProviderType{ProviderGelato, ProviderBiconomy, ProviderRPC}, r.ListProviders())
	assert.Equal(t, []ProviderType{ProviderGelato, ProviderBiconomy}, r.ListConfigured())
}

func TestRegistry_SetActiveUnconfiguredFails(t *testing.T) {
	g, b, rpc := threeProviders()
	r := NewRegistry(g, b, rpc)
	require.Equal(t, ProviderGelato, r.ActiveType())

	err := r.SetActive(ProviderRPC)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ProviderRPC, cfgErr.Provider)

	// The active provider is unchanged after the failed switch.
	assert.Equal(t, ProviderGelato, r.ActiveType())
}

func TestRegistry_SetActiveUnknownFails(t *testing.T) {
	g, b, rpc := threeProviders()
	r := NewRegistry(g, b, rpc)

	err := r.SetActive(ProviderType("carrier-pigeon"))
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ProviderGelato, r.ActiveType())
}

func TestRegistry_SetActiveSwitches(t *testing.T) {
	g, b, rpc := threeProviders()
	r := NewRegistry(g, b, rpc)

	require.NoError(t, r.SetActive(ProviderBiconomy))
	assert.Equal(t, ProviderBiconomy, r.ActiveType())

	active, err := r.Active()
	require.NoError(t, err)
	assert.Equal(t, ProviderBiconomy, active.Type())
}

func TestRegistry_NoConfiguredProvider(t *testing.T) {
	r := NewRegistry(&fakeProvider{kind: ProviderRPC, configured: false})

	_, err := r.Active()
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestRegistry_StatusTransitions(t *testing.T) {
	g, b, rpc := threeProviders()
	r := NewRegistry(g, b, rpc)

	snap, err := r.GetStatus(ProviderGelato)
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, snap.Status)
	assert.True(t, snap.Available, "unknown still counts as selectable")

	r.recordResult(ProviderGelato, nil)
	snap, _ = r.GetStatus(ProviderGelato)
	assert.Equal(t, StatusHealthy, snap.Status)

	netErr := &NetworkError{Provider: ProviderGelato, Err: context.DeadlineExceeded}
	r.recordResult(ProviderGelato, netErr)
	snap, _ = r.GetStatus(ProviderGelato)
	assert.Equal(t, StatusDegraded, snap.Status)
	assert.False(t, snap.Available)
	assert.NotEmpty(t, snap.LastError)

	r.recordResult(ProviderGelato, netErr)
	r.recordResult(ProviderGelato, netErr)
	snap, _ = r.GetStatus(ProviderGelato)
	assert.Equal(t, StatusUnavailable, snap.Status)

	// One success fully recovers the provider.
	r.recordResult(ProviderGelato, nil)
	snap, _ = r.GetStatus(ProviderGelato)
	assert.Equal(t, StatusHealthy, snap.Status)
	assert.Empty(t, snap.LastError)
}

func TestRegistry_RejectionKeepsConnectivityHealthy(t *testing.T) {
	g, b, rpc := threeProviders()
	r := NewRegistry(g, b, rpc)

	rejection := &RejectedError{Provider: ProviderGelato, Code: "ExecReverted", Message: "execution reverted"}
	r.recordResult(ProviderGelato, rejection)

	snap, _ := r.GetStatus(ProviderGelato)
	assert.Equal(t, StatusHealthy, snap.Status, "a rejection means the backend answered")
	assert.Contains(t, snap.LastError, "ExecReverted")
}

func TestRegistry_GetStatusUnknownProvider(t *testing.T) {
	r := NewRegistry(&fakeProvider{kind: ProviderGelato, configured: true})

	_, err := r.GetStatus(ProviderType("nope"))
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}
