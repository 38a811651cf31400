package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// defaultNotifyRetryIntervals are the waits between publish attempts.
var defaultNotifyRetryIntervals = []time.Duration{
	time.Second,
	5 * time.Second,
	30 * time.Second,
}

// TransferNotifier publishes committed transfers to the event bus.
// Delivery is asynchronous and best effort; the ledger never waits on it.
type TransferNotifier struct {
	publisher      ports.EventPublisher
	retryIntervals []time.Duration
	publishTimeout time.Duration
	wg             sync.WaitGroup
	log            zerolog.Logger
}

// NewTransferNotifier creates a notifier. nil retryIntervals selects the defaults.
func NewTransferNotifier(publisher ports.EventPublisher, retryIntervals []time.Duration, log zerolog.Logger) *TransferNotifier {
	if retryIntervals == nil {
		retryIntervals = defaultNotifyRetryIntervals
	}
	return &TransferNotifier{
		publisher:      publisher,
		retryIntervals: retryIntervals,
		publishTimeout: 10 * time.Second,
		log:            log,
	}
}

// Notify queues an event for t.
func (n *TransferNotifier) Notify(eventType string, t *domain.Transfer, userID uuid.UUID) {
	event := domain.NewTransferEvent(eventType, t, userID, time.Now().UTC())
	payload, err := json.Marshal(event)
	if err != nil {
		n.log.Error().Err(err).Str("transfer_id", t.UUID.String()).Msg("notify: failed to marshal event")
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.deliverWithRetries(eventType, t.UUID.String(), payload)
	}()
}

func (n *TransferNotifier) deliverWithRetries(eventType, key string, payload []byte) {
	for attempt := 0; attempt <= len(n.retryIntervals); attempt++ {
		if attempt > 0 {
			time.Sleep(n.retryIntervals[attempt-1])
		}

		ctx, cancel := context.WithTimeout(context.Background(), n.publishTimeout)
		err := n.publisher.Publish(ctx, eventType, key, payload)
		cancel()
		if err == nil {
			n.log.Debug().Str("event", eventType).Str("transfer_id", key).Int("attempt", attempt+1).Msg("notify: event published")
			return
		}
		n.log.Warn().Err(err).Str("event", eventType).Str("transfer_id", key).Int("attempt", attempt+1).Msg("notify: publish failed")
	}

	n.log.Error().Str("event", eventType).Str("transfer_id", key).Msg("notify: all retry attempts exhausted")
}

// Close waits for in-flight deliveries and closes the publisher.
func (n *TransferNotifier) Close() error {
	n.wg.Wait()
	return n.publisher.Close()
}
