package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"perpexecutor/src/model"
)

// RPCClient submits through a plain JSON-RPC node that holds the
// delegate session key, using eth_sendTransaction. No gas sponsorship;
// it is the escape hatch when both relay backends are down.
type RPCClient struct {
	rpcURL string
	from   string
	http   *resty.Client
}

func NewRPCClient(rpcURL, fromAddress string) *RPCClient {
	httpClient := resty.New().
		SetTimeout(15 * time.Second)

	return &RPCClient{
		rpcURL: rpcURL,
		from:   fromAddress,
		http:   httpClient,
	}
}

func (c *RPCClient) Type() ProviderType { return ProviderRPC }

func (c *RPCClient) Configured() bool { return c.rpcURL != "" && c.from != "" }

type jsonrpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type jsonrpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *RPCClient) Submit(ctx context.Context, tx model.UnsignedTx) (model.TxResult, error) {
	requestID := uuid.NewString()

	params := map[string]string{
		"from":  c.from,
		"to":    tx.To,
		"data":  tx.Data,
		"value": tx.Value,
	}

	var out jsonrpcResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(jsonrpcRequest{JSONRPC: "2.0", ID: 1, Method: "eth_sendTransaction", Params: []interface{}{params}}).
		SetResult(&out).
		Post(c.rpcURL)
	if err != nil {
		return model.TxResult{}, &NetworkError{Provider: ProviderRPC, Err: err}
	}
	if resp.IsError() {
		return model.TxResult{}, &NetworkError{Provider: ProviderRPC, Err: fmt.Errorf("http status %d", resp.StatusCode())}
	}
	if out.Error != nil {
		return model.TxResult{}, &RejectedError{
			Provider: ProviderRPC,
			Code:     fmt.Sprintf("%d", out.Error.Code),
			Message:  out.Error.Message,
		}
	}

	var txHash string
	if err := json.Unmarshal(out.Result, &txHash); err != nil || txHash == "" {
		return model.TxResult{}, &RejectedError{Provider: ProviderRPC, Message: "malformed eth_sendTransaction result"}
	}

	logger.WithFields(map[string]interface{}{
		"provider": ProviderRPC,
		"tx_hash":  txHash,
	}).Info("Transaction sent via node")

	return model.TxResult{
		TxHash:    txHash,
		Provider:  string(ProviderRPC),
		RequestID: requestID,
	}, nil
}
