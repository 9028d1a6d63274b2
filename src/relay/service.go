package relay

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"

	"perpexecutor/src/model"
)

// Service is the single submission entry point. It delegates to the
// active provider and never falls back to another one on failure:
// relay choice stays under explicit user control, and a hidden retry
// against a second backend could submit the same action twice.
type Service struct {
	registry *Registry
	timeout  time.Duration
}

func NewService(registry *Registry, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{registry: registry, timeout: timeout}
}

func (s *Service) Registry() *Registry { return s.registry }

// Submit sends the payload through the active provider. The caller
// decides whether to switch provider and retry on failure.
func (s *Service) Submit(ctx context.Context, tx model.UnsignedTx) (model.TxResult, error) {
	provider, err := s.registry.Active()
	if err != nil {
		return model.TxResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := provider.Submit(ctx, tx)
	if ctx.Err() == context.DeadlineExceeded && err != nil {
		err = &NetworkError{Provider: provider.Type(), Err: ctx.Err()}
	}

	s.registry.recordResult(provider.Type(), err)

	if err != nil {
		logger.WithError(err).WithField("provider", provider.Type()).Error("Relay submission failed")
		return model.TxResult{}, err
	}

	logger.WithFields(map[string]interface{}{
		"provider":   result.Provider,
		"tx_hash":    result.TxHash,
		"request_id": result.RequestID,
	}).Info("Relay submission accepted")

	return result, nil
}
