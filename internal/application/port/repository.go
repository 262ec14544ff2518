package port

import (
	"context"

	"github.com/garyjia/fraudguard/internal/domain/entity"
)

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ClaimRepository defines data access for the claims review table
type ClaimRepository interface {
	// Upsert inserts the claim or replaces the row with the same ID
	Upsert(ctx context.Context, claim *entity.Claim) error
	// GetByID returns nil, nil when no claim has the ID
	GetByID(ctx context.Context, id string) (*entity.Claim, error)
	List(ctx context.Context, filter entity.ClaimFilter) ([]*entity.Claim, error)
	Locations(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
	StatusCounts(ctx context.Context) (map[string]int, error)
	RegionStats(ctx context.Context) ([]entity.RegionStat, error)
	HospitalStats(ctx context.Context) ([]entity.HospitalStat, error)
}
