package trade

import (
	"sync"

	logger "github.com/sirupsen/logrus"

	"perpexecutor/src/model"
)

type State string

const (
	StateNoTrade   State = "no_trade"
	StateSelecting State = "selecting"
	StateOpen      State = "open"
	StateClosing   State = "closing"
	StateFlipping  State = "flipping"
)

// Selection holds user-chosen parameters before a position exists.
type Selection struct {
	Pair       string
	PairIndex  uint
	Leverage   int
	IsLong     bool
	Collateral float64
}

// Store is the single mutable source of truth for the current trade.
// All transitions happen under one mutex, so observers see either the
// pre- or post-transition state, never a partial one. The mutex is
// never held across I/O: async results re-validate the trade key at
// apply time instead (ApplyPnL, Complete*/Fail*).
type Store struct {
	mu        sync.Mutex
	state     State
	selection *Selection
	trade     *model.Trade
	pnl       *model.PnLData
	log       *logger.Entry
}

func NewStore() *Store {
	return &Store{
		state: StateNoTrade,
		log:   logger.WithField("component", "trade-store"),
	}
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Select records trade parameters without side effects.
func (s *Store) Select(sel Selection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateNoTrade && s.state != StateSelecting {
		return &ConcurrentActionError{Requested: "select", InFlight: string(s.state)}
	}
	copied := sel
	s.selection = &copied
	s.state = StateSelecting
	return nil
}

func (s *Store) Selection() (Selection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selection == nil {
		return Selection{}, false
	}
	return *s.selection, true
}

// SetOpen enters the Open state once the external open confirms.
func (s *Store) SetOpen(t model.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosing || s.state == StateFlipping {
		return &ConcurrentActionError{Requested: "open", InFlight: string(s.state)}
	}
	copied := t
	s.trade = &copied
	s.pnl = nil
	s.state = StateOpen
	s.log.WithFields(map[string]interface{}{
		"key":        copied.Key().String(),
		"is_long":    copied.IsLong,
		"leverage":   copied.Leverage,
		"open_price": copied.OpenPrice,
	}).Info("Trade open")
	return nil
}

// Current returns a copy of the open trade, if any.
func (s *Store) Current() (model.Trade, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.trade == nil {
		return model.Trade{}, false
	}
	return *s.trade, true
}

// Key returns the current trade key. Components read it before acting
// and re-validate it before committing any async result.
func (s *Store) Key() (model.TradeKey, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.trade == nil {
		return model.TradeKey{}, false
	}
	return s.trade.Key(), true
}

// ApplyPnL commits a snapshot if the key still matches the open trade;
// otherwise the result is stale and dropped with ErrStaleState.
func (s *Store) ApplyPnL(key model.TradeKey, pnl model.PnLData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.trade == nil || s.state != StateOpen || s.trade.Key() != key {
		return ErrStaleState
	}
	copied := pnl
	s.pnl = &copied
	return nil
}

func (s *Store) LatestPnL() (model.PnLData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pnl == nil {
		return model.PnLData{}, false
	}
	return *s.pnl, true
}

// BeginClose claims the single in-flight action slot for a close.
func (s *Store) BeginClose() (model.Trade, error) {
	return s.beginAction(StateClosing, "close")
}

// BeginFlip claims the single in-flight action slot for a flip.
func (s *Store) BeginFlip() (model.Trade, error) {
	return s.beginAction(StateFlipping, "flip")
}

func (s *Store) beginAction(next State, name string) (model.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateOpen:
		s.state = next
		return *s.trade, nil
	case StateClosing, StateFlipping:
		return model.Trade{}, &ConcurrentActionError{Requested: name, InFlight: string(s.state)}
	default:
		return model.Trade{}, ErrNoOpenTrade
	}
}

// CompleteClose finishes a close: the store returns to NoTrade and the
// trade record leaves the store (ownership moves to the ledger).
func (s *Store) CompleteClose(key model.TradeKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateClosing || s.trade == nil || s.trade.Key() != key {
		return ErrStaleState
	}
	s.log.WithField("key", key.String()).Info("Trade closed")
	s.trade = nil
	s.pnl = nil
	s.selection = nil
	s.state = StateNoTrade
	return nil
}

// FailClose returns to Open unchanged.
func (s *Store) FailClose(key model.TradeKey) {
	s.failAction(StateClosing, key)
}

// CompleteFlip replaces the trade in place with the flipped record and
// resets the PnL baseline.
func (s *Store) CompleteFlip(key model.TradeKey, flipped model.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateFlipping || s.trade == nil || s.trade.Key() != key {
		return ErrStaleState
	}
	copied := flipped
	s.trade = &copied
	s.pnl = nil
	s.state = StateOpen
	s.log.WithFields(map[string]interface{}{
		"old_key": key.String(),
		"new_key": copied.Key().String(),
		"is_long": copied.IsLong,
	}).Info("Trade flipped")
	return nil
}

// FailFlip returns to Open unchanged.
func (s *Store) FailFlip(key model.TradeKey) {
	s.failAction(StateFlipping, key)
}

func (s *Store) failAction(from State, key model.TradeKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from || s.trade == nil || s.trade.Key() != key {
		return
	}
	s.state = StateOpen
}
