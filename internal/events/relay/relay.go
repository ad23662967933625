// Package relay forwards ledger events from the in-memory log to external
// subscribers. Each event is retried until it succeeds or the retry budget
// runs out; a subscriber that keeps failing is then logged and skipped, it
// never holds up the ledger or other subscribers. Cancellation is not a
// failure: the event in flight stays pending for the next Drain.
package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	interfaces "github.com/sheikh-saqib/token-ledger/internal/interfaces"
	"github.com/sheikh-saqib/token-ledger/internal/models"
)

const (
	defaultBaseDelay  = 100 * time.Millisecond
	defaultMaxDelay   = 5 * time.Second
	defaultMaxRetries = 5
)

// Source is the read side of an event log.
type Source interface {
	Since(seq uint64) []models.Event
	Notify() <-chan struct{}
}

// Option configures a Relay.
type Option func(*Relay)

// WithBackoff overrides the exponential backoff used for each delivery.
func WithBackoff(base, capped time.Duration, retries uint64) Option {
	return func(r *Relay) {
		r.baseDelay = base
		r.maxDelay = capped
		r.maxRetries = retries
	}
}

// Relay tails a Source and publishes every event, in order, to each publisher.
type Relay struct {
	source     Source
	publishers []interfaces.EventPublisher
	logger     *zap.Logger

	baseDelay  time.Duration
	maxDelay   time.Duration
	maxRetries uint64

	cursor uint64
}

func New(source Source, logger *zap.Logger, publishers []interfaces.EventPublisher, opts ...Option) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Relay{
		source:     source,
		publishers: publishers,
		logger:     logger.Named("relay"),
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run delivers events until ctx is cancelled. It must not run concurrently
// with Drain.
func (r *Relay) Run(ctx context.Context) error {
	for {
		// Grab the wakeup channel before draining so an append that lands
		// mid-drain is not missed.
		changed := r.source.Notify()
		r.Drain(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-changed:
		}
	}
}

// Drain delivers everything appended since the last delivered sequence and
// returns the new cursor. When ctx is cancelled mid-event the cursor stays
// before that event, so publishers that already took it see it again.
func (r *Relay) Drain(ctx context.Context) uint64 {
	for _, event := range r.source.Since(r.cursor) {
		if ctx.Err() != nil {
			return r.cursor
		}
		for _, p := range r.publishers {
			err := r.deliver(ctx, p, event)
			if ctx.Err() != nil {
				return r.cursor
			}
			if err != nil {
				r.logger.Error("event delivery abandoned",
					zap.String("publisher", fmt.Sprintf("%T", p)),
					zap.Uint64("sequence", event.Sequence),
					zap.String("kind", string(event.Kind)),
					zap.Error(err),
				)
			}
		}
		r.cursor = event.Sequence
	}
	return r.cursor
}

// Cursor returns the sequence number of the last event handed to publishers.
func (r *Relay) Cursor() uint64 {
	return r.cursor
}

func (r *Relay) deliver(ctx context.Context, p interfaces.EventPublisher, event models.Event) error {
	backoff := retry.NewExponential(r.baseDelay)
	backoff = retry.WithCappedDuration(r.maxDelay, backoff)
	backoff = retry.WithMaxRetries(r.maxRetries, backoff)

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := p.Publish(ctx, event); err != nil {
			r.logger.Warn("event delivery failed",
				zap.String("publisher", fmt.Sprintf("%T", p)),
				zap.Uint64("sequence", event.Sequence),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return retry.RetryableError(err)
		}
		return nil
	})
}
