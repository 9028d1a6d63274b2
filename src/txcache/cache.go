package txcache

import (
	"context"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"perpexecutor/src/model"
)

type Kind string

const (
	KindClose Kind = "close"
	KindFlip  Kind = "flip"
)

// BuildFunc constructs the payload for one (tradeKey, kind) pair.
type BuildFunc func(ctx context.Context) (model.UnsignedTx, error)

type entry struct {
	tx      model.UnsignedTx
	builtAt time.Time
}

// Cache holds at most one prebuilt close and one prebuilt flip payload
// for the currently open trade, built ahead of user action to hide
// relay-build latency. Entries have no wall-clock expiry: validity is
// defined by the trade identity, so any key change drops everything
// built for the superseded key. A payload the chain no longer accepts
// surfaces as a submission-time failure, not a cache check.
type Cache struct {
	mu       sync.Mutex
	key      model.TradeKey
	hasKey   bool
	gen      uint64
	entries  map[Kind]entry
	inflight map[Kind]bool
	log      *logger.Entry
}

func New() *Cache {
	return &Cache{
		entries:  make(map[Kind]entry),
		inflight: make(map[Kind]bool),
		log:      logger.WithField("component", "txcache"),
	}
}

// Prime builds and caches the payload for (key, kind) unless an entry
// already exists or a build for the same pair is in flight. Build
// failures are non-fatal: the user action falls back to an on-demand
// build at click time.
func (c *Cache) Prime(ctx context.Context, key model.TradeKey, kind Kind, build BuildFunc) {
	c.mu.Lock()
	if !c.hasKey || c.key != key {
		// New trade identity: everything cached for the old key is gone.
		c.key = key
		c.hasKey = true
		c.gen++
		c.entries = make(map[Kind]entry)
		c.inflight = make(map[Kind]bool)
	}
	if _, ok := c.entries[kind]; ok || c.inflight[kind] {
		c.mu.Unlock()
		return
	}
	c.inflight[kind] = true
	gen := c.gen
	c.mu.Unlock()

	tx, err := build(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	// Re-validate key and generation: the trade may have changed during
	// the build, and an invalidate/re-prime cycle can bring the same key
	// back while this build belongs to the old cycle.
	if !c.hasKey || c.key != key || c.gen != gen {
		return
	}
	delete(c.inflight, kind)
	if err != nil {
		c.log.WithError(err).WithFields(map[string]interface{}{
			"key":  key.String(),
			"kind": kind,
		}).Warn("Prebuild failed, action will build on demand")
		return
	}
	c.entries[kind] = entry{tx: tx, builtAt: time.Now().UTC()}
	c.log.WithFields(map[string]interface{}{
		"key":  key.String(),
		"kind": kind,
	}).Debug("Transaction prebuilt")
}

// Get returns the cached payload for (key, kind). An entry is never
// served for a different trade key, even if the payload would happen
// to match.
func (c *Cache) Get(key model.TradeKey, kind Kind) (model.UnsignedTx, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasKey || c.key != key {
		return model.UnsignedTx{}, false
	}
	e, ok := c.entries[kind]
	if !ok {
		return model.UnsignedTx{}, false
	}
	return e.tx, true
}

// Invalidate drops all entries for the given key.
func (c *Cache) Invalidate(key model.TradeKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasKey || c.key != key {
		return
	}
	c.hasKey = false
	c.gen++
	c.entries = make(map[Kind]entry)
	c.inflight = make(map[Kind]bool)
	c.log.WithField("key", key.String()).Debug("Prebuilt transactions invalidated")
}
