package claim

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"carrieralpha/internal/platform/postgres"
	"carrieralpha/internal/recovery/models"
	id "carrieralpha/pkg/domain"
	"carrieralpha/pkg/platform/sentinel"
	"carrieralpha/pkg/platform/tx"
)

const claimColumns = `id, shipment_id, audit_id, status, claim_amount_cents, recovery_amount_cents,
	carrier_case_number, reason, dispute_reason, requires_review, created_at, updated_at,
	submitted_at, settled_at`

// PostgresStore persists claims and their transitions.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts a claim. UNIQUE (shipment_id) decides concurrent creates; the
// loser sees sentinel.ErrConflict and its transaction stays usable.
func (s *PostgresStore) Create(ctx context.Context, c *models.Claim) error {
	res, err := tx.Choose(ctx, s.db).ExecContext(ctx, `
		INSERT INTO claims (`+claimColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT DO NOTHING
	`, uuid.UUID(c.ID), uuid.UUID(c.ShipmentID), uuid.UUID(c.AuditID), string(c.Status),
		int64(c.ClaimAmount), int64(c.RecoveryAmount), c.CarrierCaseNumber, c.Reason, c.DisputeReason,
		c.RequiresReview, c.CreatedAt, c.UpdatedAt, c.SubmittedAt, c.SettledAt)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return fmt.Errorf("claim for shipment %s references missing %s: %w",
				c.ShipmentID, postgres.ConstraintName(err), sentinel.ErrNotFound)
		}
		return fmt.Errorf("insert claim: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert claim: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("claim for shipment %s: %w", c.ShipmentID, sentinel.ErrConflict)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, claimID id.ClaimID) (*models.Claim, error) {
	row := tx.Choose(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE id = $1`, uuid.UUID(claimID))
	c, err := scanClaim(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("claim %s: %w", claimID, sentinel.ErrNotFound)
	}
	return c, err
}

func (s *PostgresStore) FindByShipment(ctx context.Context, shipmentID id.ShipmentID) (*models.Claim, error) {
	row := tx.Choose(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE shipment_id = $1`, uuid.UUID(shipmentID))
	c, err := scanClaim(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("claim for shipment %s: %w", shipmentID, sentinel.ErrNotFound)
	}
	return c, err
}

// Execute locks the row with SELECT ... FOR UPDATE, runs validate then mutate, and
// writes the result back. It joins the transaction in ctx or opens its own.
func (s *PostgresStore) Execute(ctx context.Context, claimID id.ClaimID, validate func(*models.Claim) error, mutate func(*models.Claim)) (*models.Claim, error) {
	if sqlTx, ok := tx.From(ctx); ok {
		return s.execute(ctx, sqlTx, claimID, validate, mutate)
	}
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()
	c, err := s.execute(ctx, sqlTx, claimID, validate, mutate)
	if err != nil {
		return nil, err
	}
	if err := sqlTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim tx: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) execute(ctx context.Context, sqlTx *sql.Tx, claimID id.ClaimID, validate func(*models.Claim) error, mutate func(*models.Claim)) (*models.Claim, error) {
	row := sqlTx.QueryRowContext(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE id = $1 FOR UPDATE`, uuid.UUID(claimID))
	c, err := scanClaim(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("claim %s: %w", claimID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := validate(c); err != nil {
		return nil, err
	}
	mutate(c)
	_, err = sqlTx.ExecContext(ctx, `
		UPDATE claims
		SET status = $1, recovery_amount_cents = $2, carrier_case_number = $3, dispute_reason = $4,
			updated_at = $5, submitted_at = $6, settled_at = $7
		WHERE id = $8
	`, string(c.Status), int64(c.RecoveryAmount), c.CarrierCaseNumber, c.DisputeReason,
		c.UpdatedAt, c.SubmittedAt, c.SettledAt, uuid.UUID(c.ID))
	if err != nil {
		return nil, fmt.Errorf("update claim: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) AppendTransition(ctx context.Context, t models.ClaimTransition) error {
	_, err := tx.Choose(ctx, s.db).ExecContext(ctx, `
		INSERT INTO claim_transitions (id, claim_id, shipment_id, action, from_status, to_status, actor, detail, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.UUID(t.ID), uuid.UUID(t.ClaimID), uuid.UUID(t.ShipmentID), string(t.Action),
		string(t.From), string(t.To), t.Actor, t.Detail, t.At)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return fmt.Errorf("claim %s: %w", t.ClaimID, sentinel.ErrNotFound)
		}
		return fmt.Errorf("insert claim transition: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListTransitions(ctx context.Context, claimID id.ClaimID) ([]models.ClaimTransition, error) {
	exec := tx.Choose(ctx, s.db)
	var exists bool
	if err := exec.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM claims WHERE id = $1)`,
		uuid.UUID(claimID)).Scan(&exists); err != nil {
		return nil, fmt.Errorf("list claim transitions: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("claim %s: %w", claimID, sentinel.ErrNotFound)
	}
	rows, err := exec.QueryContext(ctx, `
		SELECT id, claim_id, shipment_id, action, from_status, to_status, actor, detail, at
		FROM claim_transitions WHERE claim_id = $1
		ORDER BY seq
	`, uuid.UUID(claimID))
	if err != nil {
		return nil, fmt.Errorf("list claim transitions: %w", err)
	}
	defer rows.Close()

	var out []models.ClaimTransition
	for rows.Next() {
		var (
			t                models.ClaimTransition
			rowID, cID, sID  uuid.UUID
			action, from, to string
		)
		if err := rows.Scan(&rowID, &cID, &sID, &action, &from, &to, &t.Actor, &t.Detail, &t.At); err != nil {
			return nil, fmt.Errorf("scan claim transition: %w", err)
		}
		t.ID = id.TransitionID(rowID)
		t.ClaimID = id.ClaimID(cID)
		t.ShipmentID = id.ShipmentID(sID)
		t.Action = models.Action(action)
		t.From = models.ClaimStatus(from)
		t.To = models.ClaimStatus(to)
		t.At = t.At.UTC()
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list claim transitions: %w", err)
	}
	return out, nil
}

func scanClaim(row *sql.Row) (*models.Claim, error) {
	var (
		c                     models.Claim
		rowID, sID, aID       uuid.UUID
		status                string
		claimCents, recovered int64
		submittedAt, settled  sql.NullTime
	)
	err := row.Scan(&rowID, &sID, &aID, &status, &claimCents, &recovered,
		&c.CarrierCaseNumber, &c.Reason, &c.DisputeReason, &c.RequiresReview,
		&c.CreatedAt, &c.UpdatedAt, &submittedAt, &settled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan claim: %w", err)
	}
	c.ID = id.ClaimID(rowID)
	c.ShipmentID = id.ShipmentID(sID)
	c.AuditID = id.AuditID(aID)
	c.Status = models.ClaimStatus(status)
	c.ClaimAmount = id.Cents(claimCents)
	c.RecoveryAmount = id.Cents(recovered)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	c.SubmittedAt = utcPtr(submittedAt)
	c.SettledAt = utcPtr(settled)
	return &c, nil
}

func utcPtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
