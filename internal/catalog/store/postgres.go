// Package store loads and persists catalogs in PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"carrieralpha/internal/catalog"
	id "carrieralpha/pkg/domain"
	"carrieralpha/pkg/platform/tx"
)

// PostgresStore reads the service_commitments and exception_rules tables.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a catalog store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Load builds a snapshot from the current table contents under the version recorded
// by the last Save. A catalog written without a version falls back to the content
// hash, so an unchanged table yields the same version on every reload.
func (s *PostgresStore) Load(ctx context.Context) (*catalog.Snapshot, error) {
	version, err := s.loadVersion(ctx)
	if err != nil {
		return nil, err
	}
	commitments, err := s.loadCommitments(ctx)
	if err != nil {
		return nil, err
	}
	rules, err := s.loadExceptions(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.NewSnapshot(version, commitments, rules)
}

// Empty reports whether no commitments have been stored yet.
func (s *PostgresStore) Empty(ctx context.Context) (bool, error) {
	var n int
	if err := tx.Choose(ctx, s.db).QueryRowContext(ctx, `SELECT count(*) FROM service_commitments`).Scan(&n); err != nil {
		return false, fmt.Errorf("count commitments: %w", err)
	}
	return n == 0, nil
}

// Save replaces the stored catalog with snap and records its version. Rules absent
// from snap are removed. Save joins the transaction on ctx or opens its own.
func (s *PostgresStore) Save(ctx context.Context, snap *catalog.Snapshot) error {
	return s.inTx(ctx, func(ctx context.Context) error {
		return s.save(ctx, snap)
	})
}

// Sync saves snap and reads the catalog back in the same transaction, so the
// returned snapshot is exactly what the next boot will load.
func (s *PostgresStore) Sync(ctx context.Context, snap *catalog.Snapshot) (*catalog.Snapshot, error) {
	var loaded *catalog.Snapshot
	err := s.inTx(ctx, func(ctx context.Context) error {
		if err := s.save(ctx, snap); err != nil {
			return err
		}
		var err error
		loaded, err = s.Load(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return loaded, nil
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := tx.From(ctx); ok {
		return fn(ctx)
	}
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin catalog transaction: %w", err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()
	if err := fn(tx.WithTx(ctx, sqlTx)); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit catalog: %w", err)
	}
	return nil
}

func (s *PostgresStore) save(ctx context.Context, snap *catalog.Snapshot) error {
	exec := tx.Choose(ctx, s.db)
	if _, err := exec.ExecContext(ctx, `DELETE FROM exception_rules`); err != nil {
		return fmt.Errorf("clear exception rules: %w", err)
	}
	if _, err := exec.ExecContext(ctx, `DELETE FROM service_commitments`); err != nil {
		return fmt.Errorf("clear commitments: %w", err)
	}
	for _, c := range snap.Commitments() {
		var commitTime sql.NullString
		if c.CommitTime != nil {
			commitTime = sql.NullString{String: c.CommitTime.String(), Valid: true}
		}
		_, err := exec.ExecContext(ctx, `
			INSERT INTO service_commitments (id, carrier, service_type, guaranteed, commit_type, commit_time, transit_days, valid_from, valid_to)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, uuid.UUID(c.ID), string(c.Carrier), c.ServiceType, c.Guaranteed, string(c.CommitType),
			commitTime, c.TransitDays, c.ValidFrom, c.ValidTo)
		if err != nil {
			return fmt.Errorf("save commitment %s/%s: %w", c.Carrier, c.ServiceType, err)
		}
	}
	for _, r := range snap.Exceptions() {
		_, err := exec.ExecContext(ctx, `
			INSERT INTO exception_rules (id, carrier, match_type, match_value, excusable, category)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, uuid.UUID(r.ID), string(r.Carrier), string(r.MatchType), r.MatchValue, r.Excusable, string(r.Category))
		if err != nil {
			return fmt.Errorf("save exception rule %s/%s: %w", r.Carrier, r.MatchValue, err)
		}
	}
	_, err := exec.ExecContext(ctx, `
		INSERT INTO catalog_version (singleton, version, saved_at)
		VALUES (TRUE, $1, now())
		ON CONFLICT (singleton) DO UPDATE SET
			version = EXCLUDED.version,
			saved_at = EXCLUDED.saved_at
	`, snap.Version())
	if err != nil {
		return fmt.Errorf("save catalog version: %w", err)
	}
	return nil
}

func (s *PostgresStore) loadVersion(ctx context.Context) (string, error) {
	var version string
	err := tx.Choose(ctx, s.db).QueryRowContext(ctx, `SELECT version FROM catalog_version WHERE singleton`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load catalog version: %w", err)
	}
	return version, nil
}

func (s *PostgresStore) loadCommitments(ctx context.Context) ([]catalog.ServiceCommitment, error) {
	rows, err := tx.Choose(ctx, s.db).QueryContext(ctx, `
		SELECT id, carrier, service_type, guaranteed, commit_type, commit_time, transit_days, valid_from, valid_to
		FROM service_commitments
		ORDER BY carrier, service_type, valid_from
	`)
	if err != nil {
		return nil, fmt.Errorf("query commitments: %w", err)
	}
	defer rows.Close()

	var out []catalog.ServiceCommitment
	for rows.Next() {
		var (
			c          catalog.ServiceCommitment
			rowID      uuid.UUID
			carrier    string
			commitType string
			commitTime sql.NullString
			validTo    sql.NullTime
		)
		if err := rows.Scan(&rowID, &carrier, &c.ServiceType, &c.Guaranteed, &commitType, &commitTime,
			&c.TransitDays, &c.ValidFrom, &validTo); err != nil {
			return nil, fmt.Errorf("scan commitment: %w", err)
		}
		c.ID = id.CommitmentID(rowID)
		c.Carrier = id.NormalizeCarrier(carrier)
		c.CommitType = catalog.CommitType(commitType)
		if commitTime.Valid && commitTime.String != "" {
			ct, err := catalog.ParseClockTime(commitTime.String)
			if err != nil {
				return nil, fmt.Errorf("commitment %s: %w", rowID, err)
			}
			c.CommitTime = &ct
		}
		if validTo.Valid {
			t := validTo.Time
			c.ValidTo = &t
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commitments: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) loadExceptions(ctx context.Context) ([]catalog.ExceptionRule, error) {
	rows, err := tx.Choose(ctx, s.db).QueryContext(ctx, `
		SELECT id, carrier, match_type, match_value, excusable, category
		FROM exception_rules
		ORDER BY carrier, match_type, match_value
	`)
	if err != nil {
		return nil, fmt.Errorf("query exception rules: %w", err)
	}
	defer rows.Close()

	var out []catalog.ExceptionRule
	for rows.Next() {
		var (
			r                            catalog.ExceptionRule
			rowID                        uuid.UUID
			carrier, matchType, category string
		)
		if err := rows.Scan(&rowID, &carrier, &matchType, &r.MatchValue, &r.Excusable, &category); err != nil {
			return nil, fmt.Errorf("scan exception rule: %w", err)
		}
		r.ID = id.ExceptionRuleID(rowID)
		r.Carrier = id.NormalizeCarrier(carrier)
		r.MatchType = catalog.MatchType(matchType)
		r.Category = catalog.Category(category)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exception rules: %w", err)
	}
	return out, nil
}
