package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"carrieralpha/internal/platform/postgres"
	"carrieralpha/internal/shipment"
	id "carrieralpha/pkg/domain"
	"carrieralpha/pkg/platform/sentinel"
	"carrieralpha/pkg/platform/tx"
)

// PostgresStore persists shipments in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed shipment store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, sh *shipment.Shipment) error {
	var raw any
	if len(sh.RawPayload) > 0 {
		raw = []byte(sh.RawPayload)
	}
	surcharges := sh.Surcharges
	if surcharges == nil {
		surcharges = []string{}
	}
	var scaleValue sql.NullFloat64
	var scaleUnit sql.NullString
	if sh.ScaleWeight != nil {
		scaleValue = sql.NullFloat64{Float64: sh.ScaleWeight.Value, Valid: true}
		scaleUnit = sql.NullString{String: string(sh.ScaleWeight.Unit), Valid: true}
	}
	var length, width, height sql.NullFloat64
	if d := sh.Dimensions; d != nil {
		length = sql.NullFloat64{Float64: d.Length, Valid: true}
		width = sql.NullFloat64{Float64: d.Width, Valid: true}
		height = sql.NullFloat64{Float64: d.Height, Valid: true}
	}
	_, err := tx.Choose(ctx, s.db).ExecContext(ctx, `
		INSERT INTO shipments (
			id, carrier, tracking_number, service_type, shipped_at, promised_delivery, actual_delivery,
			total_charged_cents, weight_value, weight_unit, origin_zip, destination_zip,
			origin_timezone, destination_timezone, exception_signal, surcharges, raw_payload,
			scale_weight_value, scale_weight_unit, length_in, width_in, height_in
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`, uuid.UUID(sh.ID), string(sh.Carrier), sh.TrackingNumber, sh.ServiceType,
		sh.ShippedAt, sh.PromisedDelivery, sh.ActualDelivery,
		int64(sh.TotalCharged), sh.Weight.Value, string(sh.Weight.Unit),
		sh.OriginZIP, sh.DestinationZIP, sh.OriginTimezone, sh.DestinationTimezone,
		sh.ExceptionSignal, pq.Array(surcharges), raw,
		scaleValue, scaleUnit, length, width, height)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("shipment %s: %w", sh.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert shipment: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, shipmentID id.ShipmentID) (*shipment.Shipment, error) {
	var (
		sh                        shipment.Shipment
		rowID                     uuid.UUID
		carrier, unit             string
		shipped, promised, actual sql.NullTime
		cents                     int64
		raw                       []byte
		scaleValue                sql.NullFloat64
		scaleUnit                 sql.NullString
		length, width, height     sql.NullFloat64
	)
	err := tx.Choose(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, carrier, tracking_number, service_type, shipped_at, promised_delivery, actual_delivery,
			total_charged_cents, weight_value, weight_unit, origin_zip, destination_zip,
			origin_timezone, destination_timezone, exception_signal, surcharges, raw_payload,
			scale_weight_value, scale_weight_unit, length_in, width_in, height_in
		FROM shipments WHERE id = $1
	`, uuid.UUID(shipmentID)).Scan(
		&rowID, &carrier, &sh.TrackingNumber, &sh.ServiceType, &shipped, &promised, &actual,
		&cents, &sh.Weight.Value, &unit, &sh.OriginZIP, &sh.DestinationZIP,
		&sh.OriginTimezone, &sh.DestinationTimezone, &sh.ExceptionSignal, pq.Array(&sh.Surcharges), &raw,
		&scaleValue, &scaleUnit, &length, &width, &height,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("shipment %s: %w", shipmentID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get shipment: %w", err)
	}
	sh.ID = id.ShipmentID(rowID)
	sh.Carrier = id.CarrierCode(carrier)
	sh.Weight.Unit = shipment.WeightUnit(unit)
	sh.TotalCharged = id.Money(cents)
	sh.ShippedAt = nullTime(shipped)
	sh.PromisedDelivery = nullTime(promised)
	sh.ActualDelivery = nullTime(actual)
	if len(raw) > 0 {
		sh.RawPayload = raw
	}
	if scaleValue.Valid {
		sh.ScaleWeight = &shipment.Weight{Value: scaleValue.Float64, Unit: shipment.WeightUnit(scaleUnit.String)}
	}
	if length.Valid && width.Valid && height.Valid {
		sh.Dimensions = &shipment.Dimensions{Length: length.Float64, Width: width.Float64, Height: height.Float64}
	}
	return &sh, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
