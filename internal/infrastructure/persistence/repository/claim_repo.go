package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/fraudguard/internal/application/port"
	"github.com/garyjia/fraudguard/internal/domain/entity"
	"github.com/garyjia/fraudguard/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const claimColumns = `id, patient_name, hospital, amount, claim_date, fraud_status, fraud_reason,
	location, claim_type, disease, treatment, source, created_at, updated_at`

// ClaimRepository implements port.ClaimRepository on SQLite
type ClaimRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewClaimRepository creates a new claim repository
func NewClaimRepository(db *sql.DB, logger *zap.Logger) *ClaimRepository {
	return &ClaimRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert inserts the claim or replaces every column except created_at of an existing row
func (r *ClaimRepository) Upsert(ctx context.Context, claim *entity.Claim) error {
	query := `
		INSERT INTO claims (` + claimColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			patient_name = excluded.patient_name,
			hospital = excluded.hospital,
			amount = excluded.amount,
			claim_date = excluded.claim_date,
			fraud_status = excluded.fraud_status,
			fraud_reason = excluded.fraud_reason,
			location = excluded.location,
			claim_type = excluded.claim_type,
			disease = excluded.disease,
			treatment = excluded.treatment,
			source = excluded.source,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC()
	if claim.CreatedAt.IsZero() {
		claim.CreatedAt = now
	}
	claim.UpdatedAt = now

	_, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		claim.ID,
		claim.PatientName,
		claim.Hospital,
		claim.Amount,
		claim.Date.UTC(),
		claim.FraudStatus,
		claim.FraudReason,
		claim.Location,
		claim.ClaimType,
		claim.Disease,
		claim.Treatment,
		claim.Source,
		claim.CreatedAt,
		claim.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert claim",
			zap.String("claim_id", claim.ID),
			zap.Error(err))
		return fmt.Errorf("failed to upsert claim: %w", err)
	}

	return nil
}

// GetByID returns nil, nil when the claim does not exist
func (r *ClaimRepository) GetByID(ctx context.Context, id string) (*entity.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE id = ?`

	claim, err := scanClaim(sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get claim",
			zap.String("claim_id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}

	return claim, nil
}

// List returns claims matching the filter, newest claim date first
func (r *ClaimRepository) List(ctx context.Context, filter entity.ClaimFilter) ([]*entity.Claim, error) {
	filter = filter.Normalized()

	var (
		where []string
		args  []interface{}
	)

	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + escapeLike(strings.ToLower(search)) + "%"
		where = append(where, `(LOWER(patient_name) LIKE ? ESCAPE '\' OR LOWER(hospital) LIKE ? ESCAPE '\' OR LOWER(id) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}
	if filter.Status != entity.FilterAll {
		where = append(where, `fraud_status = ?`)
		args = append(args, filter.Status)
	}
	if filter.Location != entity.FilterAll {
		where = append(where, `location = ?`)
		args = append(args, filter.Location)
	}

	query := `SELECT ` + claimColumns + ` FROM claims`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY claim_date DESC, id ASC`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list claims", zap.Error(err))
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	defer rows.Close()

	claims := make([]*entity.Claim, 0)
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		claims = append(claims, claim)
	}

	return claims, rows.Err()
}

// Locations returns the distinct non-empty claim locations, sorted
func (r *ClaimRepository) Locations(ctx context.Context) ([]string, error) {
	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx,
		`SELECT DISTINCT location FROM claims WHERE location <> '' ORDER BY location`)
	if err != nil {
		r.logger.Error("Failed to list locations", zap.Error(err))
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer rows.Close()

	locations := make([]string, 0)
	for rows.Next() {
		var loc string
		if err := rows.Scan(&loc); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, loc)
	}

	return locations, rows.Err()
}

// Count returns the number of claims
func (r *ClaimRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM claims`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count claims: %w", err)
	}
	return n, nil
}

// StatusCounts returns the number of claims per fraud status
func (r *ClaimRepository) StatusCounts(ctx context.Context) (map[string]int, error) {
	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx,
		`SELECT fraud_status, COUNT(*) FROM claims GROUP BY fraud_status`)
	if err != nil {
		r.logger.Error("Failed to count claims by status", zap.Error(err))
		return nil, fmt.Errorf("failed to count claims by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = n
	}

	return counts, rows.Err()
}

// RegionStats returns totals and fraudulent counts per location, sorted by location.
// Percentage and Risk are left for the caller.
func (r *ClaimRepository) RegionStats(ctx context.Context) ([]entity.RegionStat, error) {
	query := `
		SELECT location,
			COUNT(*),
			SUM(CASE WHEN fraud_status = ? THEN 1 ELSE 0 END)
		FROM claims
		WHERE location <> ''
		GROUP BY location
		ORDER BY location
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, entity.FraudStatusFraudulent)
	if err != nil {
		r.logger.Error("Failed to aggregate regions", zap.Error(err))
		return nil, fmt.Errorf("failed to aggregate regions: %w", err)
	}
	defer rows.Close()

	stats := make([]entity.RegionStat, 0)
	for rows.Next() {
		var s entity.RegionStat
		if err := rows.Scan(&s.Region, &s.Total, &s.Fraudulent); err != nil {
			return nil, fmt.Errorf("failed to scan region stat: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// HospitalStats returns per-hospital totals, most fraudulent first. FraudRate is left for the caller.
func (r *ClaimRepository) HospitalStats(ctx context.Context) ([]entity.HospitalStat, error) {
	query := `
		SELECT hospital,
			COUNT(*) AS claims,
			SUM(CASE WHEN fraud_status = ? THEN 1 ELSE 0 END) AS fraudulent,
			COALESCE(SUM(amount), 0)
		FROM claims
		WHERE hospital <> ''
		GROUP BY hospital
		ORDER BY fraudulent DESC, claims DESC, hospital ASC
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, entity.FraudStatusFraudulent)
	if err != nil {
		r.logger.Error("Failed to aggregate hospitals", zap.Error(err))
		return nil, fmt.Errorf("failed to aggregate hospitals: %w", err)
	}
	defer rows.Close()

	stats := make([]entity.HospitalStat, 0)
	for rows.Next() {
		var s entity.HospitalStat
		if err := rows.Scan(&s.Hospital, &s.Claims, &s.Fraudulent, &s.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan hospital stat: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanClaim(row rowScanner) (*entity.Claim, error) {
	var c entity.Claim
	err := row.Scan(
		&c.ID,
		&c.PatientName,
		&c.Hospital,
		&c.Amount,
		&c.Date,
		&c.FraudStatus,
		&c.FraudReason,
		&c.Location,
		&c.ClaimType,
		&c.Disease,
		&c.Treatment,
		&c.Source,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// escapeLike escapes LIKE wildcards so user search text matches literally
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

var _ port.ClaimRepository = (*ClaimRepository)(nil)
