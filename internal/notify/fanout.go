// Package notify delivers state-change events to observer channels. Delivery
// is best-effort: Publish never blocks the caller and failures are only logged.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/model"
)

const (
	BatchSize    = 100
	BatchTimeout = 200 * time.Millisecond
	// shutdownFlush bounds how long Run spends draining on cancellation.
	shutdownFlush = 5 * time.Second
)

// Message is one encoded event bound for a channel.
type Message struct {
	Channel string
	Data    []byte
}

// Broker is the transport behind the fanout.
type Broker interface {
	PublishBatch(ctx context.Context, msgs []Message) error
	Publish(ctx context.Context, msg Message) error
}

// Fanout buffers events in memory and relays them to a Broker from a single
// goroutine started with Run.
type Fanout struct {
	queue  chan Message
	broker Broker
	log    zerolog.Logger
	now    func() time.Time
}

// NewFanout creates a Fanout with room for buffer pending events.
func NewFanout(broker Broker, buffer int, log zerolog.Logger) *Fanout {
	if buffer <= 0 {
		buffer = 1
	}
	return &Fanout{
		queue:  make(chan Message, buffer),
		broker: broker,
		log:    log.With().Str("component", "fanout").Logger(),
		now:    time.Now,
	}
}

// Publish encodes the event and enqueues it. When the queue is full the event
// is dropped and logged.
func (f *Fanout) Publish(channel string, event model.EventName, payload any) {
	data, err := json.Marshal(model.Event{Type: event, At: f.now(), Payload: payload})
	if err != nil {
		f.log.Error().Err(err).Str("channel", channel).Str("event", string(event)).Msg("Failed to encode event, dropping")
		return
	}

	select {
	case f.queue <- Message{Channel: channel, Data: data}:
	default:
		f.log.Warn().Str("channel", channel).Str("event", string(event)).Msg("Fanout queue full, dropping event")
	}
}

// Run relays queued events until ctx is cancelled, then drains what is left.
func (f *Fanout) Run(ctx context.Context) {
	f.log.Info().Msg("Fanout started")

	buffer := make([]Message, 0, BatchSize)
	ticker := time.NewTicker(BatchTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.shutdown(buffer)
			return
		case msg := <-f.queue:
			buffer = append(buffer, msg)
			if len(buffer) >= BatchSize {
				f.flush(ctx, buffer)
				buffer = buffer[:0]
			}
		case <-ticker.C:
			if len(buffer) > 0 {
				f.flush(ctx, buffer)
				buffer = buffer[:0]
			}
		}
	}
}

// flush tries the whole batch, then falls back to one-by-one so a single bad
// message does not lose the rest.
func (f *Fanout) flush(ctx context.Context, batch []Message) {
	err := f.broker.PublishBatch(ctx, batch)
	if err == nil {
		return
	}
	f.log.Warn().Err(err).Int("count", len(batch)).Msg("Batch publish failed, retrying one by one")

	failed := 0
	for _, msg := range batch {
		if err := f.broker.Publish(ctx, msg); err != nil {
			failed++
			f.log.Error().Err(err).Str("channel", msg.Channel).Msg("Publish failed, event lost")
		}
	}
	if failed > 0 {
		f.log.Error().Int("failed", failed).Int("total", len(batch)).Msg("Events dropped after retry")
	}
}

func (f *Fanout) shutdown(buffer []Message) {
	f.log.Info().Msg("Fanout stopping, flushing remaining events...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownFlush)
	defer cancel()

drain:
	for {
		select {
		case msg := <-f.queue:
			buffer = append(buffer, msg)
		default:
			break drain
		}
	}
	if len(buffer) > 0 {
		f.flush(shutdownCtx, buffer)
	}
}
