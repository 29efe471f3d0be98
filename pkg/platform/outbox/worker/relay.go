package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"carrieralpha/pkg/platform/circuit"
	"carrieralpha/pkg/platform/outbox"
)

// Store is the outbox read side used by the relay.
type Store interface {
	FetchUnpublished(ctx context.Context, limit int) ([]outbox.Event, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Producer delivers events to the broker. Publish must be all-or-error for the batch.
type Producer interface {
	Publish(ctx context.Context, events []outbox.Event) error
}

const defaultBatchSize = 100

// Relay polls the outbox and hands unpublished events to a Producer. Delivery is
// at-least-once: a crash between Publish and MarkPublished re-sends the batch, so
// consumers dedupe on the event ID.
type Relay struct {
	store     Store
	producer  Producer
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	breaker   *circuit.Breaker
}

// Option configures a Relay.
type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) { r.logger = logger }
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithBreaker replaces the default broker circuit breaker. While it is open the
// relay sends single-event batches instead of full ones.
func WithBreaker(b *circuit.Breaker) Option {
	return func(r *Relay) {
		if b != nil {
			r.breaker = b
		}
	}
}

// NewRelay builds a relay polling every interval.
func NewRelay(store Store, producer Producer, interval time.Duration, opts ...Option) *Relay {
	r := &Relay{
		store:     store,
		producer:  producer,
		logger:    slog.Default(),
		interval:  interval,
		batchSize: defaultBatchSize,
		breaker:   circuit.New("outbox-relay"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until ctx is cancelled. Failed rounds are logged and retried on the next tick.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for {
				n, err := r.RunOnce(ctx)
				if err != nil {
					r.logger.ErrorContext(ctx, "outbox relay round failed", "error", err)
					break
				}
				if n < r.batchSize {
					break
				}
			}
		}
	}
}

// RunOnce relays a single batch and reports how many events were published.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	limit := r.batchSize
	if r.breaker.IsOpen() {
		limit = 1
	}
	events, err := r.store.FetchUnpublished(ctx, limit)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}
	if err := r.producer.Publish(ctx, events); err != nil {
		if _, change := r.breaker.RecordFailure(); change.Opened {
			r.logger.WarnContext(ctx, "outbox relay circuit opened; sending single events",
				"breaker", r.breaker.Name(), "error", err)
		}
		return 0, err
	}
	if _, change := r.breaker.RecordSuccess(); change.Closed {
		r.logger.InfoContext(ctx, "outbox relay circuit closed", "breaker", r.breaker.Name())
	}
	ids := make([]uuid.UUID, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	if err := r.store.MarkPublished(ctx, ids, time.Now().UTC()); err != nil {
		return 0, err
	}
	r.logger.DebugContext(ctx, "outbox events relayed", "count", len(events))
	return len(events), nil
}
