package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"carrieralpha/pkg/platform/circuit"
	"carrieralpha/pkg/platform/outbox"
	"carrieralpha/pkg/platform/outbox/store/memory"
)

type recordingProducer struct {
	batches [][]outbox.Event
	err     error
}

func (p *recordingProducer) Publish(_ context.Context, events []outbox.Event) error {
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, events)
	return nil
}

type RelaySuite struct {
	suite.Suite
	store    *memory.InMemoryStore
	producer *recordingProducer
	relay    *Relay
}

func TestRelaySuite(t *testing.T) {
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupTest() {
	s.store = memory.NewInMemoryStore()
	s.producer = &recordingProducer{}
	s.relay = NewRelay(s.store, s.producer, time.Millisecond,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithBatchSize(2),
	)
}

func (s *RelaySuite) appendEvents(n int) {
	for i := 0; i < n; i++ {
		e, err := outbox.NewEvent("claim", "c-1", "claim.submitted", map[string]int{"seq": i}, time.Now())
		s.Require().NoError(err)
		s.Require().NoError(s.store.Append(context.Background(), e))
	}
}

func (s *RelaySuite) TestRunOncePublishesInBatches() {
	ctx := context.Background()
	s.appendEvents(3)

	n, err := s.relay.RunOnce(ctx)
	s.Require().NoError(err)
	s.Equal(2, n)

	n, err = s.relay.RunOnce(ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	n, err = s.relay.RunOnce(ctx)
	s.Require().NoError(err)
	s.Equal(0, n)

	s.Len(s.producer.batches, 2)
	for _, e := range s.store.All() {
		s.NotNil(e.PublishedAt)
	}
}

func (s *RelaySuite) TestFailedPublishLeavesEventsPending() {
	ctx := context.Background()
	s.appendEvents(1)
	s.producer.err = errors.New("broker unavailable")

	_, err := s.relay.RunOnce(ctx)
	s.Require().Error(err)

	pending, err := s.store.FetchUnpublished(ctx, 10)
	s.Require().NoError(err)
	s.Len(pending, 1)
}

func (s *RelaySuite) TestRunStopsOnCancel() {
	ctx, cancel := context.WithCancel(context.Background())
	s.appendEvents(1)

	done := make(chan error, 1)
	go func() { done <- s.relay.Run(ctx) }()

	s.Eventually(func() bool {
		pending, _ := s.store.FetchUnpublished(context.Background(), 10)
		return len(pending) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	s.ErrorIs(<-done, context.Canceled)
}

// TestOpenBreakerSendsSingleEventBatches covers relay behavior during a broker outage.
//
// Justification:
//   - consecutive publish failures open the breaker
//   - an open breaker limits each round to one event
//   - enough accepted single-event batches restore full batches
func (s *RelaySuite) TestOpenBreakerSendsSingleEventBatches() {
	ctx := context.Background()
	breaker := circuit.New("test", circuit.WithFailureThreshold(2), circuit.WithSuccessThreshold(2))
	s.relay = NewRelay(s.store, s.producer, time.Millisecond,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithBatchSize(3),
		WithBreaker(breaker),
	)
	s.appendEvents(6)

	s.producer.err = errors.New("broker unavailable")
	for range 2 {
		_, err := s.relay.RunOnce(ctx)
		s.Require().Error(err)
	}
	s.True(breaker.IsOpen())

	s.producer.err = nil
	n, err := s.relay.RunOnce(ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
	s.True(breaker.IsOpen())

	n, err = s.relay.RunOnce(ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
	s.False(breaker.IsOpen())

	n, err = s.relay.RunOnce(ctx)
	s.Require().NoError(err)
	s.Equal(3, n)
}
