package relay

import "fmt"

// ConfigurationError is rejected before any network call: the provider
// is unknown, not configured, or not selectable.
type ConfigurationError struct {
	Provider ProviderType
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("relay provider %s not usable: %s", e.Provider, e.Reason)
}

// NetworkError is transient. It is eligible for a user-initiated retry
// or a provider switch, but is never retried silently by the service.
type NetworkError struct {
	Provider ProviderType
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("relay provider %s network failure: %v", e.Provider, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RejectedError means the remote backend explicitly refused the
// submission. Terminal for that attempt.
type RejectedError struct {
	Provider ProviderType
	Code     string
	Message  string
}

func (e *RejectedError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("relay provider %s rejected submission [%s]: %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("relay provider %s rejected submission: %s", e.Provider, e.Message)
}

// GelatoTaskStates maps Gelato relay task states to human-readable messages.
var GelatoTaskStates = map[string]string{
	"CheckPending":           "task queued, simulation pending",
	"ExecPending":            "execution pending",
	"WaitingForConfirmation": "transaction sent, awaiting confirmation",
	"ExecSuccess":            "executed successfully",
	"ExecReverted":           "transaction reverted on-chain",
	"Cancelled":              "task cancelled by the relay",
	"Blacklisted":            "target contract blacklisted",
	"NotFound":               "task not found",
}

// GelatoStateMsg returns a readable message for a Gelato task state.
// Unknown states return a generic message including the raw state.
func GelatoStateMsg(state string) string {
	if msg, ok := GelatoTaskStates[state]; ok {
		return msg
	}
	return fmt.Sprintf("UNKNOWN_GELATO_STATE_%s", state)
}
