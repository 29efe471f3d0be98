package auditresult

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"carrieralpha/internal/platform/postgres"
	"carrieralpha/internal/recovery/models"
	id "carrieralpha/pkg/domain"
	"carrieralpha/pkg/platform/sentinel"
	"carrieralpha/pkg/platform/tx"
)

// PostgresStore persists audit results in the audit_results table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Record inserts the first version. ON CONFLICT DO NOTHING keeps an enclosing
// transaction usable when the shipment already has a result.
func (s *PostgresStore) Record(ctx context.Context, result *models.AuditResult) error {
	verdict, err := json.Marshal(result.Verdict)
	if err != nil {
		return fmt.Errorf("marshal verdict: %w", err)
	}
	res, err := tx.Choose(ctx, s.db).ExecContext(ctx, `
		INSERT INTO audit_results (id, shipment_id, eligible, variance_cents, failure_reason, fingerprint, verdict, version, audited_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT DO NOTHING
	`, uuid.UUID(result.ID), uuid.UUID(result.ShipmentID), result.Verdict.Eligible, int64(result.Verdict.Variance),
		result.Verdict.FailureReason, result.Fingerprint, verdict, result.Version, result.AuditedAt)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return fmt.Errorf("shipment %s: %w", result.ShipmentID, sentinel.ErrNotFound)
		}
		return fmt.Errorf("insert audit result: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert audit result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("audit for shipment %s: %w", result.ShipmentID, sentinel.ErrConflict)
	}
	return nil
}

// Get reads the result for a shipment. Inside a transaction the row is locked
// FOR UPDATE so claim creation and corrections for the shipment serialize.
func (s *PostgresStore) Get(ctx context.Context, shipmentID id.ShipmentID) (*models.AuditResult, error) {
	query := `
		SELECT id, shipment_id, fingerprint, verdict, version, audited_at
		FROM audit_results WHERE shipment_id = $1`
	if _, inTx := tx.From(ctx); inTx {
		query += ` FOR UPDATE`
	}
	var (
		r       models.AuditResult
		rowID   uuid.UUID
		shipID  uuid.UUID
		verdict []byte
	)
	err := tx.Choose(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(shipmentID)).Scan(&rowID, &shipID, &r.Fingerprint, &verdict, &r.Version, &r.AuditedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("audit for shipment %s: %w", shipmentID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get audit result: %w", err)
	}
	if err := json.Unmarshal(verdict, &r.Verdict); err != nil {
		return nil, fmt.Errorf("decode verdict for shipment %s: %w", shipmentID, err)
	}
	r.ID = id.AuditID(rowID)
	r.ShipmentID = id.ShipmentID(shipID)
	r.AuditedAt = r.AuditedAt.UTC()
	return &r, nil
}

// Replace overwrites the result in place when the stored version matches.
func (s *PostgresStore) Replace(ctx context.Context, result *models.AuditResult, expectedVersion int) error {
	if result.Version != expectedVersion+1 {
		return fmt.Errorf("audit for shipment %s: %w", result.ShipmentID, sentinel.ErrStaleVersion)
	}
	verdict, err := json.Marshal(result.Verdict)
	if err != nil {
		return fmt.Errorf("marshal verdict: %w", err)
	}
	exec := tx.Choose(ctx, s.db)
	res, err := exec.ExecContext(ctx, `
		UPDATE audit_results
		SET eligible = $1, variance_cents = $2, failure_reason = $3, fingerprint = $4, verdict = $5,
			version = $6, audited_at = $7
		WHERE shipment_id = $8 AND id = $9 AND version = $10
	`, result.Verdict.Eligible, int64(result.Verdict.Variance), result.Verdict.FailureReason, result.Fingerprint,
		verdict, result.Version, result.AuditedAt, uuid.UUID(result.ShipmentID), uuid.UUID(result.ID), expectedVersion)
	if err != nil {
		return fmt.Errorf("replace audit result: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("replace audit result: %w", err)
	}
	if n == 1 {
		return nil
	}
	var exists bool
	if err := exec.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM audit_results WHERE shipment_id = $1)`,
		uuid.UUID(result.ShipmentID)).Scan(&exists); err != nil {
		return fmt.Errorf("replace audit result: %w", err)
	}
	if !exists {
		return fmt.Errorf("audit for shipment %s: %w", result.ShipmentID, sentinel.ErrNotFound)
	}
	return fmt.Errorf("audit for shipment %s: %w", result.ShipmentID, sentinel.ErrStaleVersion)
}
