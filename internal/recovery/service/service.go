// Package service orchestrates audits and the claim lifecycle. Every mutation runs
// inside a StoreTx unit so the audit ledger, the recovery ledger and the outbox change
// together.
package service

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"carrieralpha/internal/catalog"
	"carrieralpha/internal/eligibility"
	recoverymetrics "carrieralpha/internal/recovery/metrics"
	"carrieralpha/internal/recovery/models"
	"carrieralpha/internal/shipment"
	id "carrieralpha/pkg/domain"
	"carrieralpha/pkg/platform/outbox"
)

const tracerName = "carrieralpha/internal/recovery/service"

// defaultAuditWorkers bounds AuditBatch parallelism when no option is given.
const defaultAuditWorkers = 8

type ShipmentStore interface {
	Save(ctx context.Context, s *shipment.Shipment) error
	Get(ctx context.Context, shipmentID id.ShipmentID) (*shipment.Shipment, error)
}

type AuditStore interface {
	Record(ctx context.Context, result *models.AuditResult) error
	Get(ctx context.Context, shipmentID id.ShipmentID) (*models.AuditResult, error)
	Replace(ctx context.Context, result *models.AuditResult, expectedVersion int) error
}

type ClaimStore interface {
	Create(ctx context.Context, c *models.Claim) error
	FindByID(ctx context.Context, claimID id.ClaimID) (*models.Claim, error)
	FindByShipment(ctx context.Context, shipmentID id.ShipmentID) (*models.Claim, error)
	Execute(ctx context.Context, claimID id.ClaimID, validate func(*models.Claim) error, mutate func(*models.Claim)) (*models.Claim, error)
	AppendTransition(ctx context.Context, t models.ClaimTransition) error
	ListTransitions(ctx context.Context, claimID id.ClaimID) ([]models.ClaimTransition, error)
}

type OutboxStore interface {
	Append(ctx context.Context, event outbox.Event) error
}

// CatalogSource hands out the current immutable catalog snapshot.
type CatalogSource interface {
	Current() *catalog.Snapshot
}

// Service is the audit and claims recovery engine.
type Service struct {
	shipments ShipmentStore
	audits    AuditStore
	claims    ClaimStore
	catalogs  CatalogSource
	auditor   *eligibility.Auditor

	tx      StoreTx
	events  *eventEmitter
	logger  *slog.Logger
	metrics *recoverymetrics.Metrics
	tracer  trace.Tracer
	workers int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *recoverymetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// WithStoreTx sets the unit-of-work boundary. Defaults to an in-memory sharded lock.
func WithStoreTx(tx StoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

// WithOutbox enables event emission for audit and claim changes.
func WithOutbox(store OutboxStore) Option {
	return func(s *Service) {
		s.events = newEventEmitter(store)
	}
}

// WithAuditWorkers bounds AuditBatch parallelism.
func WithAuditWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

func New(shipments ShipmentStore, audits AuditStore, claims ClaimStore, catalogs CatalogSource, auditor *eligibility.Auditor, opts ...Option) *Service {
	s := &Service{
		shipments: shipments,
		audits:    audits,
		claims:    claims,
		catalogs:  catalogs,
		auditor:   auditor,
		workers:   defaultAuditWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = newShardedTx(0)
	}
	if s.events == nil {
		s.events = newEventEmitter(nil)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	s.events.logger = s.logger
	return s
}
