package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perpexecutor/src/model"
)

func TestService_SubmitUsesActiveProvider(t *testing.T) {
	g, b, rpc := threeProviders()
	registry := NewRegistry(g, b, rpc)
	service := NewService(registry, time.Second)

	result, err := service.Submit(context.Background(), model.UnsignedTx{To: "0xaaaa", ChainID: 8453})
	require.NoError(t, err)
	assert.Equal(t, "0xg", result.TxHash)
	assert.Equal(t, 1, g.calls)
	assert.Zero(t, b.calls)

	require.NoError(t, registry.SetActive(ProviderBiconomy))
	result, err = service.Submit(context.Background(), model.UnsignedTx{To: "0xaaaa", ChainID: 8453})
	require.NoError(t, err)
	assert.Equal(t, "0xb", result.TxHash)
	assert.Equal(t, 1, b.calls)
}

func TestService_NoFallbackOnFailure(t *testing.T) {
	g, b, rpc := threeProviders()
	g.err = &NetworkError{Provider: ProviderGelato, Err: context.DeadlineExceeded}
	registry := NewRegistry(g, b, rpc)
	service := NewService(registry, time.Second)

	_, err := service.Submit(context.Background(), model.UnsignedTx{To: "0xaaaa"})
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)

	// The failure surfaces to the caller; no other provider is tried.
	assert.Equal(t, 1, g.calls)
	assert.Zero(t, b.calls)
	assert.Equal(t, ProviderGelato, registry.ActiveType())
}

func TestService_RejectionSurfacesToCaller(t *testing.T) {
	g, b, rpc := threeProviders()
	g.err = &RejectedError{Provider: ProviderGelato, Code: "ExecReverted"}
	registry := NewRegistry(g, b, rpc)
	service := NewService(registry, time.Second)

	_, err := service.Submit(context.Background(), model.UnsignedTx{To: "0xaaaa"})
	var rejErr *RejectedError
	require.ErrorAs(t, err, &rejErr)
	assert.Equal(t, "ExecReverted", rejErr.Code)

	snap, _ := registry.GetStatus(ProviderGelato)
	assert.Equal(t, StatusHealthy, snap.Status)
}

func TestService_BookkeepingOnSuccess(t *testing.T) {
	g, b, rpc := threeProviders()
	registry := NewRegistry(g, b, rpc)
	service := NewService(registry, time.Second)

	_, err := service.Submit(context.Background(), model.UnsignedTx{To: "0xaaaa"})
	require.NoError(t, err)

	snap, _ := registry.GetStatus(ProviderGelato)
	assert.Equal(t, StatusHealthy, snap.Status)
	assert.False(t, snap.CheckedAt.IsZero())
}

func TestService_NoActiveProvider(t *testing.T) {
	registry := NewRegistry(&fakeProvider{kind: ProviderRPC, configured: false})
	service := NewService(registry, time.Second)

	_, err := service.Submit(context.Background(), model.UnsignedTx{To: "0xaaaa"})
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}
