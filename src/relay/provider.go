package relay

import (
	"context"
	"time"

	"perpexecutor/src/model"
)

type ProviderType string

const (
	ProviderGelato   ProviderType = "gelato"
	ProviderBiconomy ProviderType = "biconomy"
	ProviderRPC      ProviderType = "rpc"
)

// Provider health as observed from past submissions. Never probed live.
const (
	StatusUnknown     = "unknown"
	StatusHealthy     = "healthy"
	StatusDegraded    = "degraded"
	StatusUnavailable = "unavailable"
)

// Provider is one transaction-submission backend. Configured reflects
// static credential/endpoint presence only; it never touches the network.
type Provider interface {
	Type() ProviderType
	Configured() bool
	Submit(ctx context.Context, tx model.UnsignedTx) (model.TxResult, error)
}

// Snapshot is a read-only view of a provider's last-known state.
type Snapshot struct {
	Type       ProviderType `json:"type"`
	Configured bool         `json:"configured"`
	Available  bool         `json:"available"`
	Status     string       `json:"status"`
	LastError  string       `json:"last_error,omitempty"`
	CheckedAt  time.Time    `json:"checked_at,omitempty"`
}
