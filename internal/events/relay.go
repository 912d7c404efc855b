package events

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Sink delivers a relayed outbox message to its destination
type Sink interface {
	Publish(ctx context.Context, msg OutboxMessage) error
	Close() error
}

// Relay drains pending outbox messages into a Sink
type Relay struct {
	db          *gorm.DB
	sink        Sink
	interval    time.Duration
	batchSize   int
	maxAttempts int
}

func NewRelay(db *gorm.DB, sink Sink, interval time.Duration, batchSize, maxAttempts int) *Relay {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Relay{
		db:          db,
		sink:        sink,
		interval:    interval,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
	}
}

// Start runs the relay loop until ctx is cancelled
func (r *Relay) Start(ctx context.Context) error {
	logger := log.With().Str("component", "outbox_relay").Logger()
	logger.Info().Dur("interval", r.interval).Msg("starting outbox relay")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down outbox relay")
			return nil
		case <-ticker.C:
			if _, err := r.RelayPending(ctx); err != nil {
				logger.Error().Err(err).Msg("failed to relay pending events")
			}
		}
	}
}

// RelayPending publishes one batch of pending messages in creation order and
// returns how many were published
func (r *Relay) RelayPending(ctx context.Context) (int, error) {
	logger := log.With().Str("component", "outbox_relay").Logger()

	var messages []OutboxMessage
	if err := r.db.WithContext(ctx).
		Where("status = ?", StatusPending).
		Order("created_at ASC").
		Limit(r.batchSize).
		Find(&messages).Error; err != nil {
		return 0, err
	}

	if len(messages) == 0 {
		return 0, nil
	}
	logger.Debug().Int("pending_count", len(messages)).Msg("relaying pending events")

	published := 0
	for _, msg := range messages {
		if err := r.sink.Publish(ctx, msg); err != nil {
			r.recordFailure(ctx, msg, err)
			continue
		}

		now := time.Now()
		if err := r.db.WithContext(ctx).Model(&OutboxMessage{}).
			Where("id = ?", msg.ID).
			Updates(map[string]interface{}{
				"status":       StatusPublished,
				"attempts":     msg.Attempts + 1,
				"published_at": now,
				"last_error":   "",
			}).Error; err != nil {
			logger.Error().Err(err).Str("event_id", msg.ID).Msg("failed to mark event published")
			continue
		}
		published++
	}

	return published, nil
}

func (r *Relay) recordFailure(ctx context.Context, msg OutboxMessage, cause error) {
	attempts := msg.Attempts + 1
	status := StatusPending
	if attempts >= r.maxAttempts {
		status = StatusFailed
	}

	log.Warn().
		Err(cause).
		Str("component", "outbox_relay").
		Str("event_id", msg.ID).
		Str("event_type", msg.EventType).
		Int("attempts", attempts).
		Str("status", status).
		Msg("failed to publish event")

	if err := r.db.WithContext(ctx).Model(&OutboxMessage{}).
		Where("id = ?", msg.ID).
		Updates(map[string]interface{}{
			"status":     status,
			"attempts":   attempts,
			"last_error": cause.Error(),
		}).Error; err != nil {
		log.Error().Err(err).Str("event_id", msg.ID).Msg("failed to record publish failure")
	}
}
