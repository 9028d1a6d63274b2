package delegate

import (
	"context"
	"encoding/json"

	logger "github.com/sirupsen/logrus"

	"perpexecutor/src/model"
	"perpexecutor/src/storage"
	"perpexecutor/src/txbuilder"
)

// Gasless trading needs an on-chain delegate plus enough USDC allowance
// for the trading contract. 10k USDC is treated as "approved enough".
const sufficientAllowanceUSDC = 10000

// Manager reads and writes per-account delegation records and builds
// the setup transactions the trader signs with their own wallet.
type Manager struct {
	kv      storage.KV
	builder *txbuilder.Builder
	log     *logger.Entry
}

func NewManager(kv storage.KV, builder *txbuilder.Builder) *Manager {
	return &Manager{
		kv:      kv,
		builder: builder,
		log:     logger.WithField("component", "delegate"),
	}
}

func statusKey(account string) string { return "status:" + account }

// Status returns the stored delegation record for an account. An
// absent, unreadable, or structurally invalid record is "not
// delegated" — it never blocks the user as an error.
func (m *Manager) Status(ctx context.Context, account string) model.DelegateStatus {
	raw, err := m.kv.Get(ctx, statusKey(account))
	if err != nil {
		m.log.WithError(err).WithField("account", account).Error("Failed to load delegate status")
		return model.DelegateStatus{}
	}
	if raw == nil {
		return model.DelegateStatus{}
	}

	var st model.DelegateStatus
	if err := json.Unmarshal(raw, &st); err != nil {
		m.log.WithField("account", account).Warn("Discarding malformed delegate status record")
		return model.DelegateStatus{}
	}

	// Field-by-field validation: a setup claim without a plausible
	// delegate address is not a setup.
	if st.IsSetup && !model.IsAddress(st.DelegateAddress) {
		m.log.WithFields(map[string]interface{}{
			"account":  account,
			"delegate": st.DelegateAddress,
		}).Warn("Delegate status has invalid address, treating as not delegated")
		return model.DelegateStatus{}
	}
	return st
}

// Save persists the record. Storage failures are logged and dropped.
func (m *Manager) Save(ctx context.Context, account string, st model.DelegateStatus) {
	raw, err := json.Marshal(st)
	if err != nil {
		m.log.WithError(err).Error("Failed to encode delegate status")
		return
	}
	if err := m.kv.Set(ctx, statusKey(account), raw); err != nil {
		m.log.WithError(err).WithField("account", account).Error("Failed to persist delegate status")
	}
}

// SetupTx builds the setDelegate transaction for the given delegate.
func (m *Manager) SetupTx(delegateAddress string) model.UnsignedTx {
	return m.builder.BuildSetDelegateTx(delegateAddress)
}

// RemoveTx builds the removeDelegate call that revokes the delegation.
func (m *Manager) RemoveTx() model.UnsignedTx {
	return m.builder.BuildRemoveDelegateTx()
}

// ApprovalTx builds the max USDC approval for the trading contract.
func (m *Manager) ApprovalTx() model.UnsignedTx {
	return m.builder.BuildUSDCApprovalTx()
}

// HasSufficientAllowance reports whether an on-chain allowance read is
// high enough to trade without another approval.
func HasSufficientAllowance(allowanceUSDC float64) bool {
	return allowanceUSDC > sufficientAllowanceUSDC
}
