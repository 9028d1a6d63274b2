package model

// DelegateStatus gates gasless submission eligibility for an account.
// An absent or structurally invalid stored record is treated as "not
// delegated", never as an error.
type DelegateStatus struct {
	IsSetup         bool   `json:"is_setup"`
	DelegateAddress string `json:"delegate_address,omitempty"`
	USDCApproved    bool   `json:"usdc_approved"`
}

// Settings are per-account user preferences.
type Settings struct {
	DefaultPair       string  `json:"default_pair"`
	DefaultLeverage   int     `json:"default_leverage"`
	DefaultCollateral float64 `json:"default_collateral"`
	SlippagePct       float64 `json:"slippage_pct"`
}
