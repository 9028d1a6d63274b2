package controller

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perpexecutor/src/delegate"
	"perpexecutor/src/ledger"
	"perpexecutor/src/model"
	"perpexecutor/src/relay"
	"perpexecutor/src/trade"
	"perpexecutor/src/txbuilder"
	"perpexecutor/src/txcache"
)

const (
	account      = "0x1111111111111111111111111111111111111111"
	delegateAddr = "0x2222222222222222222222222222222222222222"
)

type fakeKV struct {
	data map[string][]byte
}

func newFakeKV() *fakeKV { return &fakeKV{data: map[string][]byte{}} }

func (f *fakeKV) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := f.data[key]
	if !ok {
		return nil, nil
	}
	return v, nil
}
func (f *fakeKV) Set(ctx context.Context, key string, value []byte) error {
	f.data[key] = value
	return nil
}
func (f *fakeKV) Delete(ctx context.Context, key string) error {
	delete(f.data, key)
	return nil
}

type fakeRelay struct {
	err       error
	submitted []model.UnsignedTx
}

func (p *fakeRelay) Type() relay.ProviderType { return relay.ProviderGelato }
func (p *fakeRelay) Configured() bool         { return true }
func (p *fakeRelay) Submit(ctx context.Context, tx model.UnsignedTx) (model.TxResult, error) {
	p.submitted = append(p.submitted, tx)
	if p.err != nil {
		return model.TxResult{}, p.err
	}
	return model.TxResult{TxHash: "0xdeadbeef", Provider: string(relay.ProviderGelato)}, nil
}

type fakePrices struct {
	price float64
	err   error
}

func (f *fakePrices) Price(ctx context.Context, pair string) (float64, error) {
	return f.price, f.err
}

type fakeStopper struct{ stops int }

func (s *fakeStopper) Stop() { s.stops++ }

type fixture struct {
	controller *TradeController
	store      *trade.Store
	cache      *txcache.Cache
	provider   *fakeRelay
	history    *ledger.Ledger
	stopper    *fakeStopper
	trade      model.Trade
}

func newFixture(t *testing.T, delegated bool) *fixture {
	t.Helper()

	store := trade.NewStore()
	open := model.Trade{
		Pair:       model.PairBTCUSD,
		PairIndex:  0,
		TradeIndex: 3,
		Account:    account,
		Collateral: 100,
		Leverage:   10,
		IsLong:     true,
		OpenPrice:  60000,
		TP:         66000,
	}
	require.NoError(t, store.SetOpen(open))

	provider := &fakeRelay{}
	registry := relay.NewRegistry(provider)
	service := relay.NewService(registry, time.Second)

	builder := txbuilder.NewBuilder(txbuilder.Config{
		TradingAddress:  "0x44914408af82bC9983bbb330e3578E1105e11d4e",
		USDCAddress:     "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		ChainID:         8453,
		ExecutionFeeWei: 1000000000000000,
		SlippagePct:     1,
	})

	kv := newFakeKV()
	delegates := delegate.NewManager(kv, builder)
	if delegated {
		delegates.Save(context.Background(), account, model.DelegateStatus{
			IsSetup:         true,
			DelegateAddress: delegateAddr,
			USDCApproved:    true,
		})
	}

	history := ledger.New(kv)
	cache := txcache.New()
	stopper := &fakeStopper{}

	controller := NewTradeController(
		store, cache, service, builder, history, delegates,
		&fakePrices{price: 61000}, stopper,
	)

	return &fixture{
		controller: controller,
		store:      store,
		cache:      cache,
		provider:   provider,
		history:    history,
		stopper:    stopper,
		trade:      open,
	}
}

func TestClose_HappyPath(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	key := f.trade.Key()

	require.NoError(t, f.store.ApplyPnL(key, model.PnLData{PnL: 166.67, PnLPercentage: 166.67, CurrentPrice: 61000}))

	result, err := f.controller.Close(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0xdeadbeef", result.TxHash)

	assert.Equal(t, trade.StateNoTrade, f.store.State())
	assert.Equal(t, 1, f.stopper.stops)

	_, ok := f.cache.Get(key, txcache.KindClose)
	assert.False(t, ok)

	entries := f.history.List(ctx, account)
	require.Len(t, entries, 1)
	assert.Equal(t, uint(3), entries[0].TradeIndex)
	assert.Equal(t, 166.67, entries[0].FinalPnL)
	assert.Equal(t, 61000.0, entries[0].ClosePrice)
}

func TestClose_UsesCachedPayload(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	key := f.trade.Key()

	cached := model.UnsignedTx{To: "0xcafe", Data: "0xprebuilt", ChainID: 8453}
	f.cache.Prime(ctx, key, txcache.KindClose, func(ctx context.Context) (model.UnsignedTx, error) {
		return cached, nil
	})

	_, err := f.controller.Close(ctx)
	require.NoError(t, err)

	require.Len(t, f.provider.submitted, 1)
	assert.Equal(t, cached, f.provider.submitted[0])
}

func TestClose_WithoutDelegationFailsClosed(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.controller.Close(context.Background())
	var cfgErr *relay.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)

	// No submission happened and the position is untouched.
	assert.Empty(t, f.provider.submitted)
	assert.Equal(t, trade.StateOpen, f.store.State())
}

func TestClose_RelayFailureRollsBackThenRetrySucceeds(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	f.provider.err = &relay.NetworkError{Provider: relay.ProviderGelato, Err: context.DeadlineExceeded}
	_, err := f.controller.Close(ctx)
	var netErr *relay.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, trade.StateOpen, f.store.State())
	assert.Empty(t, f.history.List(ctx, account))

	f.provider.err = nil
	_, err = f.controller.Close(ctx)
	require.NoError(t, err)

	assert.Equal(t, trade.StateNoTrade, f.store.State())
	assert.Len(t, f.history.List(ctx, account), 1, "retry after rollback records exactly one entry")
}

func TestClose_ConcurrentActionRejected(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.store.BeginClose()
	require.NoError(t, err)

	_, err = f.controller.Close(context.Background())
	var concurrent *trade.ConcurrentActionError
	assert.ErrorAs(t, err, &concurrent)
}

func TestFlip_ReplacesPosition(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	oldKey := f.trade.Key()

	require.NoError(t, f.store.ApplyPnL(oldKey, model.PnLData{PnL: 10, PnLPercentage: 10, CurrentPrice: 61000}))

	f.cache.Prime(ctx, oldKey, txcache.KindFlip, func(ctx context.Context) (model.UnsignedTx, error) {
		return model.UnsignedTx{Data: "0xflip"}, nil
	})

	result, err := f.controller.Flip(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0xdeadbeef", result.TxHash)

	assert.Equal(t, trade.StateOpen, f.store.State())
	current, ok := f.store.Current()
	require.True(t, ok)
	assert.False(t, current.IsLong)
	assert.Equal(t, uint(4), current.TradeIndex)
	assert.Equal(t, 61000.0, current.OpenPrice)
	assert.InDelta(t, txbuilder.TakeProfit(61000, false, 10), current.TP, 1e-9)

	// Everything keyed to the pre-flip identity is gone.
	_, ok = f.cache.Get(oldKey, txcache.KindFlip)
	assert.False(t, ok)
	assert.Equal(t, 1, f.stopper.stops)

	// A flip is not a close: the ledger stays empty.
	assert.Empty(t, f.history.List(ctx, account))
}

func TestFlip_PriceFetchFailureRollsBack(t *testing.T) {
	f := newFixture(t, true)

	controller := NewTradeController(
		f.store, f.cache, relay.NewService(relay.NewRegistry(f.provider), time.Second),
		txbuilder.NewBuilder(txbuilder.Config{TradingAddress: "0x44914408af82bC9983bbb330e3578E1105e11d4e", ChainID: 8453}),
		f.history, delegateManagerFor(t, true), &fakePrices{err: context.DeadlineExceeded}, f.stopper,
	)

	_, err := controller.Flip(context.Background())
	require.Error(t, err)
	assert.Equal(t, trade.StateOpen, f.store.State())
	assert.Empty(t, f.provider.submitted)
}

func TestPrimeCache_BuildsBothKinds(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	key := f.trade.Key()

	f.controller.PrimeCache(ctx)

	waitFor(t, time.Second, func() bool {
		_, closeOK := f.cache.Get(key, txcache.KindClose)
		_, flipOK := f.cache.Get(key, txcache.KindFlip)
		return closeOK && flipOK
	})
}

func delegateManagerFor(t *testing.T, delegated bool) *delegate.Manager {
	t.Helper()
	kv := newFakeKV()
	builder := txbuilder.NewBuilder(txbuilder.Config{
		TradingAddress: "0x44914408af82bC9983bbb330e3578E1105e11d4e",
		ChainID:        8453,
	})
	m := delegate.NewManager(kv, builder)
	if delegated {
		m.Save(context.Background(), account, model.DelegateStatus{IsSetup: true, DelegateAddress: delegateAddr})
	}
	return m
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
