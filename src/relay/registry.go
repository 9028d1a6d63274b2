package relay

import (
	"errors"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"
)

// unavailableAfter is the number of consecutive transport failures
// before a provider is marked unavailable.
const unavailableAfter = 3

type providerState struct {
	status    string
	failures  int
	lastError string
	checkedAt time.Time
}

// Registry holds the statically known relay backends and the currently
// active one. Switching the active provider is a pure local assignment;
// submissions already in flight are unaffected.
type Registry struct {
	mu        sync.RWMutex
	order     []ProviderType
	providers map[ProviderType]Provider
	states    map[ProviderType]*providerState
	active    ProviderType
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{
		providers: make(map[ProviderType]Provider, len(providers)),
		states:    make(map[ProviderType]*providerState, len(providers)),
	}
	for _, p := range providers {
		r.order = append(r.order, p.Type())
		r.providers[p.Type()] = p
		r.states[p.Type()] = &providerState{status: StatusUnknown}
	}
	for _, p := range providers {
		if p.Configured() {
			r.active = p.Type()
			break
		}
	}
	return r
}

// ListProviders returns all statically known backends in registration order.
func (r *Registry) ListProviders() []ProviderType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ProviderType, len(r.order))
	copy(out, r.order)
	return out
}

// ListConfigured returns the subset with valid static configuration.
// Unconfigured providers are never selectable as active.
func (r *Registry) ListConfigured() []ProviderType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ProviderType
	for _, t := range r.order {
		if r.providers[t].Configured() {
			out = append(out, t)
		}
	}
	return out
}

// GetStatus returns the last-known state of a provider. It never
// touches the network.
func (r *Registry) GetStatus(t ProviderType) (Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[t]
	if !ok {
		return Snapshot{}, &ConfigurationError{Provider: t, Reason: "unknown provider"}
	}
	st := r.states[t]
	return Snapshot{
		Type:       t,
		Configured: p.Configured(),
		Available:  st.status == StatusHealthy || st.status == StatusUnknown,
		Status:     st.status,
		LastError:  st.lastError,
		CheckedAt:  st.checkedAt,
	}, nil
}

// SetActive switches the active provider. It fails without changing the
// active provider when the target is unknown or unconfigured.
func (r *Registry) SetActive(t ProviderType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[t]
	if !ok {
		return &ConfigurationError{Provider: t, Reason: "unknown provider"}
	}
	if !p.Configured() {
		return &ConfigurationError{Provider: t, Reason: "missing configuration"}
	}
	r.active = t
	logger.WithField("provider", t).Info("Active relay provider switched")
	return nil
}

// Active returns the currently selected provider.
func (r *Registry) Active() (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.active == "" {
		return nil, &ConfigurationError{Provider: "", Reason: "no configured provider available"}
	}
	return r.providers[r.active], nil
}

func (r *Registry) ActiveType() ProviderType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// recordResult folds a submission outcome into the provider's health
// state. Best-effort bookkeeping only: it never changes what the caller
// gets back.
func (r *Registry) recordResult(t ProviderType, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[t]
	if !ok {
		return
	}
	st.checkedAt = time.Now().UTC()

	var netErr *NetworkError
	switch {
	case err == nil:
		st.status = StatusHealthy
		st.failures = 0
		st.lastError = ""
	case errors.As(err, &netErr):
		st.failures++
		st.lastError = err.Error()
		if st.failures >= unavailableAfter {
			st.status = StatusUnavailable
		} else {
			st.status = StatusDegraded
		}
	default:
		// The backend answered, even if it refused. Connectivity is fine.
		st.status = StatusHealthy
		st.failures = 0
		st.lastError = err.Error()
	}
}
