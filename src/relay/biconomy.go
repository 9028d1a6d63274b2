package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"perpexecutor/src/model"
)

// BiconomyClient submits transactions through a Biconomy-style
// meta-transaction relay.
type BiconomyClient struct {
	apiKey  string
	baseURL string
	http    *resty.Client
}

func NewBiconomyClient(apiKey, baseURL string) *BiconomyClient {
	if baseURL == "" {
		baseURL = "https://api.biconomy.io"
		logger.Warnf("No Biconomy base URL provided, using default: %s", baseURL)
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetHeader("x-api-key", apiKey)

	return &BiconomyClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    httpClient,
	}
}

func (c *BiconomyClient) Type() ProviderType { return ProviderBiconomy }

func (c *BiconomyClient) Configured() bool { return c.apiKey != "" }

type biconomyMetaTxRequest struct {
	To      string `json:"to"`
	Data    string `json:"data"`
	Value   string `json:"value"`
	ChainID int64  `json:"chainId"`
}

type biconomyMetaTxResponse struct {
	TxHash  string `json:"txHash"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

func (c *BiconomyClient) Submit(ctx context.Context, tx model.UnsignedTx) (model.TxResult, error) {
	requestID := uuid.NewString()

	logger.WithFields(map[string]interface{}{
		"provider":   ProviderBiconomy,
		"request_id": requestID,
		"target":     tx.To,
	}).Debug("Submitting meta transaction")

	var out biconomyMetaTxResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(biconomyMetaTxRequest{To: tx.To, Data: tx.Data, Value: tx.Value, ChainID: tx.ChainID}).
		SetResult(&out).
		SetError(&out).
		Post("/api/v2/meta-tx/native")
	if err != nil {
		return model.TxResult{}, &NetworkError{Provider: ProviderBiconomy, Err: err}
	}
	if resp.IsError() {
		return model.TxResult{}, &RejectedError{
			Provider: ProviderBiconomy,
			Code:     fmt.Sprintf("HTTP_%d", resp.StatusCode()),
			Message:  out.Message,
		}
	}
	if out.TxHash == "" {
		return model.TxResult{}, &RejectedError{Provider: ProviderBiconomy, Message: "empty tx hash in response"}
	}

	logger.WithFields(map[string]interface{}{
		"provider": ProviderBiconomy,
		"tx_hash":  out.TxHash,
	}).Info("Meta transaction accepted")

	return model.TxResult{
		TxHash:    out.TxHash,
		Provider:  string(ProviderBiconomy),
		RequestID: requestID,
	}, nil
}
