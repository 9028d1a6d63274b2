package model

// UnsignedTx is an opaque signable transaction payload. It is built
// ahead of submission and handed to a relay provider as-is.
type UnsignedTx struct {
	To      string `json:"to"`
	Data    string `json:"data"`
	Value   string `json:"value"`
	ChainID int64  `json:"chain_id"`
}

type TxResult struct {
	TxHash    string `json:"tx_hash"`
	Provider  string `json:"provider"`
	RequestID string `json:"request_id"`
}
