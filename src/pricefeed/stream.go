package pricefeed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	logger "github.com/sirupsen/logrus"
)

const reconnectDelay = 2 * time.Second

// Stream subscribes to the feed's websocket channel and pushes updates
// into the client's cache, so poll ticks mostly hit warm data. Losing
// the stream only costs freshness: the REST path still works.
type Stream struct {
	wsURL  string
	client *Client
	log    *logger.Entry
}

func NewStream(wsURL string, client *Client) *Stream {
	return &Stream{
		wsURL:  wsURL,
		client: client,
		log:    logger.WithField("component", "pricefeed-stream"),
	}
}

type subscribeMessage struct {
	Type  string   `json:"type"`
	Pairs []string `json:"pairs"`
}

type tickMessage struct {
	Pair      string  `json:"pair"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
}

// Run keeps a subscription alive until the context is cancelled,
// redialing on failure.
func (s *Stream) Run(ctx context.Context, pairs []string) {
	for {
		if err := s.consume(ctx, pairs); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.WithError(err).Warn("Price stream dropped, reconnecting")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (s *Stream) consume(ctx context.Context, pairs []string) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.WriteJSON(subscribeMessage{Type: "subscribe", Pairs: pairs}); err != nil {
		return err
	}
	s.log.WithField("pairs", pairs).Info("Subscribed to price stream")

	// Close the connection when the context ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var tick tickMessage
		if err := json.Unmarshal(raw, &tick); err != nil {
			s.log.WithError(err).Debug("Skipping malformed stream message")
			continue
		}
		if tick.Pair == "" || tick.Price <= 0 {
			continue
		}
		s.client.put(tick.Pair, tick.Price)
	}
}
