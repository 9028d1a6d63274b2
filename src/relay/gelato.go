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

// GelatoClient submits transactions through the Gelato sponsored-call
// relay. Submissions are never retried internally: a duplicate relay
// call could submit the same action twice.
type GelatoClient struct {
	apiKey  string
	baseURL string
	http    *resty.Client
}

func NewGelatoClient(apiKey, baseURL string) *GelatoClient {
	if baseURL == "" {
		baseURL = "https://api.gelato.digital"
		logger.Warnf("No Gelato base URL provided, using default: %s", baseURL)
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second)

	return &GelatoClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    httpClient,
	}
}

func (c *GelatoClient) Type() ProviderType { return ProviderGelato }

func (c *GelatoClient) Configured() bool { return c.apiKey != "" }

type gelatoSponsoredCallRequest struct {
	ChainID        int64  `json:"chainId"`
	Target         string `json:"target"`
	Data           string `json:"data"`
	SponsorAPIKey  string `json:"sponsorApiKey"`
	GasLimit       string `json:"gasLimit,omitempty"`
	RetriesAllowed bool   `json:"retries"`
}

type gelatoSponsoredCallResponse struct {
	TaskID  string `json:"taskId"`
	Message string `json:"message,omitempty"`
}

type gelatoTaskStatusResponse struct {
	Task struct {
		TaskState       string `json:"taskState"`
		TransactionHash string `json:"transactionHash"`
		LastCheckMsg    string `json:"lastCheckMessage"`
	} `json:"task"`
}

func (c *GelatoClient) Submit(ctx context.Context, tx model.UnsignedTx) (model.TxResult, error) {
	requestID := uuid.NewString()

	logger.WithFields(map[string]interface{}{
		"provider":   ProviderGelato,
		"request_id": requestID,
		"target":     tx.To,
		"chain_id":   tx.ChainID,
	}).Debug("Submitting sponsored call")

	body := gelatoSponsoredCallRequest{
		ChainID:       tx.ChainID,
		Target:        tx.To,
		Data:          tx.Data,
		SponsorAPIKey: c.apiKey,
	}

	var out gelatoSponsoredCallResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&out).
		Post("/relays/v2/sponsored-call")
	if err != nil {
		return model.TxResult{}, &NetworkError{Provider: ProviderGelato, Err: err}
	}
	if resp.IsError() {
		return model.TxResult{}, &RejectedError{
			Provider: ProviderGelato,
			Code:     fmt.Sprintf("HTTP_%d", resp.StatusCode()),
			Message:  out.Message,
		}
	}
	if out.TaskID == "" {
		return model.TxResult{}, &RejectedError{Provider: ProviderGelato, Message: "empty task id in response"}
	}

	result := model.TxResult{
		Provider:  string(ProviderGelato),
		RequestID: requestID,
		TxHash:    out.TaskID,
	}

	// One status read to surface an immediate revert and pick up the tx
	// hash when the relay already has it. Failure here is not a
	// submission failure.
	var status gelatoTaskStatusResponse
	sresp, serr := c.http.R().
		SetContext(ctx).
		SetResult(&status).
		Get("/tasks/status/" + out.TaskID)
	if serr != nil || sresp.IsError() {
		logger.WithField("task_id", out.TaskID).Debug("Gelato task status read failed, returning task id")
		return result, nil
	}

	switch status.Task.TaskState {
	case "ExecReverted", "Cancelled", "Blacklisted":
		return model.TxResult{}, &RejectedError{
			Provider: ProviderGelato,
			Code:     status.Task.TaskState,
			Message:  GelatoStateMsg(status.Task.TaskState),
		}
	}
	if status.Task.TransactionHash != "" {
		result.TxHash = status.Task.TransactionHash
	}

	logger.WithFields(map[string]interface{}{
		"provider": ProviderGelato,
		"task_id":  out.TaskID,
		"state":    status.Task.TaskState,
	}).Info("Sponsored call accepted")

	return result, nil
}
