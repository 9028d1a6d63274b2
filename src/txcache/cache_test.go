package txcache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perpexecutor/src/model"
)

func key(tradeIndex uint) model.TradeKey {
	return model.TradeKey{
		PairIndex:  0,
		TradeIndex: tradeIndex,
		Account:    "0x1111111111111111111111111111111111111111",
	}
}

func buildOnce(tx model.UnsignedTx, calls *int) BuildFunc {
	return func(ctx context.Context) (model.UnsignedTx, error) {
		*calls++
		return tx, nil
	}
}

func TestCache_PrimeAndGet(t *testing.T) {
	c := New()
	k := key(0)
	calls := 0
	tx := model.UnsignedTx{To: "0xaaaa", Data: "0xdead", ChainID: 8453}

	c.Prime(context.Background(), k, KindClose, buildOnce(tx, &calls))

	got, ok := c.Get(k, KindClose)
	require.True(t, ok)
	assert.Equal(t, tx, got)
	assert.Equal(t, 1, calls)

	// A second prime for the same pair is a no-op.
	c.Prime(context.Background(), k, KindClose, buildOnce(tx, &calls))
	assert.Equal(t, 1, calls)
}

func TestCache_KeyIsolation(t *testing.T) {
	c := New()
	calls := 0
	c.Prime(context.Background(), key(0), KindClose, buildOnce(model.UnsignedTx{Data: "0x01"}, &calls))

	_, ok := c.Get(key(1), KindClose)
	assert.False(t, ok, "entry built for one key must never serve another")

	_, ok = c.Get(key(0), KindFlip)
	assert.False(t, ok, "kinds are cached independently")
}

func TestCache_KeyChangeDropsEntries(t *testing.T) {
	c := New()
	calls := 0
	c.Prime(context.Background(), key(0), KindClose, buildOnce(model.UnsignedTx{Data: "0x01"}, &calls))
	c.Prime(context.Background(), key(0), KindFlip, buildOnce(model.UnsignedTx{Data: "0x02"}, &calls))

	// Priming for a new trade identity invalidates everything old.
	c.Prime(context.Background(), key(1), KindClose, buildOnce(model.UnsignedTx{Data: "0x03"}, &calls))

	_, ok := c.Get(key(0), KindClose)
	assert.False(t, ok)
	_, ok = c.Get(key(0), KindFlip)
	assert.False(t, ok)

	got, ok := c.Get(key(1), KindClose)
	require.True(t, ok)
	assert.Equal(t, "0x03", got.Data)
}

func TestCache_Invalidate(t *testing.T) {
	c := New()
	calls := 0
	c.Prime(context.Background(), key(0), KindClose, buildOnce(model.UnsignedTx{Data: "0x01"}, &calls))

	c.Invalidate(key(0))
	_, ok := c.Get(key(0), KindClose)
	assert.False(t, ok)

	// Invalidating a key the cache does not hold is a no-op.
	c.Prime(context.Background(), key(0), KindClose, buildOnce(model.UnsignedTx{Data: "0x01"}, &calls))
	c.Invalidate(key(7))
	_, ok = c.Get(key(0), KindClose)
	assert.True(t, ok)
}

func TestCache_BuildFailureIsNonFatal(t *testing.T) {
	c := New()
	k := key(0)

	c.Prime(context.Background(), k, KindClose, func(ctx context.Context) (model.UnsignedTx, error) {
		return model.UnsignedTx{}, errors.New("rpc down")
	})

	_, ok := c.Get(k, KindClose)
	assert.False(t, ok)

	// The failed build does not poison the slot.
	calls := 0
	c.Prime(context.Background(), k, KindClose, buildOnce(model.UnsignedTx{Data: "0x01"}, &calls))
	_, ok = c.Get(k, KindClose)
	assert.True(t, ok)
}

func TestCache_InflightSuppression(t *testing.T) {
	c := New()
	k := key(0)

	started := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex

	slow := func(ctx context.Context) (model.UnsignedTx, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		close(started)
		<-release
		return model.UnsignedTx{Data: "0x01"}, nil
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Prime(context.Background(), k, KindClose, slow)
	}()
	<-started

	// Duplicate prime while the first build is in flight returns
	// immediately without invoking the builder.
	c.Prime(context.Background(), k, KindClose, func(ctx context.Context) (model.UnsignedTx, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return model.UnsignedTx{}, nil
	})

	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestCache_InvalidateAndReprimeDiscardsOldBuild(t *testing.T) {
	c := New()
	k := key(0)

	firstStarted := make(chan struct{})
	firstRelease := make(chan struct{})
	var firstDone sync.WaitGroup
	firstDone.Add(1)
	go func() {
		defer firstDone.Done()
		c.Prime(context.Background(), k, KindClose, func(ctx context.Context) (model.UnsignedTx, error) {
			close(firstStarted)
			<-firstRelease
			return model.UnsignedTx{Data: "0xstale"}, nil
		})
	}()
	<-firstStarted

	// Same key invalidated and re-primed while the first build runs. The
	// first build now belongs to a dead cycle even though the key matches.
	c.Invalidate(k)

	secondStarted := make(chan struct{})
	secondRelease := make(chan struct{})
	var secondDone sync.WaitGroup
	secondDone.Add(1)
	go func() {
		defer secondDone.Done()
		c.Prime(context.Background(), k, KindClose, func(ctx context.Context) (model.UnsignedTx, error) {
			close(secondStarted)
			<-secondRelease
			return model.UnsignedTx{Data: "0xfresh"}, nil
		})
	}()
	<-secondStarted

	close(firstRelease)
	firstDone.Wait()

	_, ok := c.Get(k, KindClose)
	assert.False(t, ok, "a build from the invalidated cycle must not land")

	// The old build must not have cleared the new build's in-flight
	// marker: a duplicate prime still gets suppressed.
	calls := 0
	c.Prime(context.Background(), k, KindClose, buildOnce(model.UnsignedTx{Data: "0xdup"}, &calls))
	assert.Zero(t, calls)

	close(secondRelease)
	secondDone.Wait()

	got, ok := c.Get(k, KindClose)
	require.True(t, ok)
	assert.Equal(t, "0xfresh", got.Data)
}

func TestCache_KeyChangeDuringBuildDiscardsResult(t *testing.T) {
	c := New()
	old := key(0)

	started := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Prime(context.Background(), old, KindClose, func(ctx context.Context) (model.UnsignedTx, error) {
			close(started)
			<-release
			return model.UnsignedTx{Data: "0xstale"}, nil
		})
	}()
	<-started

	// Trade identity changes while the old build is still running.
	calls := 0
	c.Prime(context.Background(), key(1), KindFlip, buildOnce(model.UnsignedTx{Data: "0x02"}, &calls))

	close(release)
	wg.Wait()

	_, ok := c.Get(old, KindClose)
	assert.False(t, ok, "result built for a superseded key must be discarded")
	_, ok = c.Get(key(1), KindFlip)
	assert.True(t, ok)
}
