package settings

import (
	"context"
	"encoding/json"

	logger "github.com/sirupsen/logrus"

	"perpexecutor/src/model"
	"perpexecutor/src/storage"
)

// Defaults applied when a stored field is absent or out of range.
const (
	defaultLeverage   = 75
	defaultCollateral = 10
	defaultSlippage   = 1.0
	maxLeverage       = 250
	maxSlippagePct    = 5.0
)

// Manager persists per-account preferences. Stored records are
// validated field-by-field on load; anything invalid is replaced with
// its default rather than propagated as an error.
type Manager struct {
	kv  storage.KV
	log *logger.Entry
}

func NewManager(kv storage.KV) *Manager {
	return &Manager{
		kv:  kv,
		log: logger.WithField("component", "settings"),
	}
}

func Defaults() model.Settings {
	return model.Settings{
		DefaultPair:       model.PairBTCUSD,
		DefaultLeverage:   defaultLeverage,
		DefaultCollateral: defaultCollateral,
		SlippagePct:       defaultSlippage,
	}
}

func settingsKey(account string) string { return "prefs:" + account }

func (m *Manager) Load(ctx context.Context, account string) model.Settings {
	out := Defaults()

	raw, err := m.kv.Get(ctx, settingsKey(account))
	if err != nil {
		m.log.WithError(err).WithField("account", account).Error("Failed to load settings, using defaults")
		return out
	}
	if raw == nil {
		return out
	}

	var stored model.Settings
	if err := json.Unmarshal(raw, &stored); err != nil {
		m.log.WithField("account", account).Warn("Discarding malformed settings record")
		return out
	}

	if stored.DefaultPair != "" {
		out.DefaultPair = stored.DefaultPair
	}
	if stored.DefaultLeverage >= 2 && stored.DefaultLeverage <= maxLeverage {
		out.DefaultLeverage = stored.DefaultLeverage
	}
	if stored.DefaultCollateral > 0 {
		out.DefaultCollateral = stored.DefaultCollateral
	}
	if stored.SlippagePct > 0 && stored.SlippagePct <= maxSlippagePct {
		out.SlippagePct = stored.SlippagePct
	}
	return out
}

// Save persists the record. A storage failure is logged and the save
// degrades to a no-op; the calling action still completes.
func (m *Manager) Save(ctx context.Context, account string, s model.Settings) {
	raw, err := json.Marshal(s)
	if err != nil {
		m.log.WithError(err).Error("Failed to encode settings")
		return
	}
	if err := m.kv.Set(ctx, settingsKey(account), raw); err != nil {
		m.log.WithError(err).WithField("account", account).Error("Failed to persist settings")
	}
}
