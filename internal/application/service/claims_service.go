package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/garyjia/fraudguard/internal/application/port"
	"github.com/garyjia/fraudguard/internal/domain/entity"
)

var (
	// ErrClaimNotFound is returned when no claim has the requested ID
	ErrClaimNotFound = errors.New("claim not found")

	// ErrInvalidFilter is returned for a status filter that is neither "all" nor a fraud status
	ErrInvalidFilter = errors.New("invalid claim filter")
)

// ClaimsService serves the claims review table
type ClaimsService struct {
	repo        port.ClaimRepository
	txManager   port.TransactionManager
	dataset     port.ClaimDataset
	datasetPath string
	logger      Logger
}

// NewClaimsService creates a new ClaimsService. datasetPath may be empty.
func NewClaimsService(
	repo port.ClaimRepository,
	txManager port.TransactionManager,
	dataset port.ClaimDataset,
	datasetPath string,
	logger Logger,
) *ClaimsService {
	return &ClaimsService{
		repo:        repo,
		txManager:   txManager,
		dataset:     dataset,
		datasetPath: datasetPath,
		logger:      logger,
	}
}

// Search returns the claims matching filter, newest first
func (s *ClaimsService) Search(ctx context.Context, filter entity.ClaimFilter) ([]*entity.Claim, error) {
	filter = filter.Normalized()
	if filter.Status != entity.FilterAll && !entity.IsClaimFraudStatus(filter.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidFilter, filter.Status)
	}

	claims, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to search claims", "error", err)
		return nil, fmt.Errorf("search claims: %w", err)
	}
	return claims, nil
}

// Get returns one claim
func (s *ClaimsService) Get(ctx context.Context, id string) (*entity.Claim, error) {
	claim, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get claim: %w", err)
	}
	if claim == nil {
		return nil, fmt.Errorf("%w: %s", ErrClaimNotFound, id)
	}
	return claim, nil
}

// Locations returns the values offered by the location filter
func (s *ClaimsService) Locations(ctx context.Context) ([]string, error) {
	locations, err := s.repo.Locations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	return locations, nil
}

// Seed fills an empty claims table from the configured dataset, or from the built-in
// sample claims when no dataset file exists. It returns the number of claims inserted.
func (s *ClaimsService) Seed(ctx context.Context) (int, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count claims: %w", err)
	}
	if count > 0 {
		s.logger.Info("Claims table already populated, skipping seed", "count", count)
		return 0, nil
	}

	claims, source, err := s.seedClaims(ctx)
	if err != nil {
		return 0, err
	}

	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		for _, c := range claims {
			c.Source = source
			if err := s.repo.Upsert(ctx, c); err != nil {
				return fmt.Errorf("seed claim %s: %w", c.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to seed claims", "error", err, "source", source)
		return 0, err
	}

	s.logger.Info("Claims table seeded", "count", len(claims), "source", source)
	return len(claims), nil
}

func (s *ClaimsService) seedClaims(ctx context.Context) ([]*entity.Claim, string, error) {
	if s.datasetPath == "" || s.dataset == nil {
		return SampleClaims(), entity.ClaimSourceSeed, nil
	}

	if _, err := os.Stat(s.datasetPath); err != nil {
		s.logger.Info("Claims dataset not found, using sample claims", "path", s.datasetPath)
		return SampleClaims(), entity.ClaimSourceSeed, nil
	}

	claims, err := s.dataset.Load(ctx, s.datasetPath)
	if err != nil {
		return nil, "", fmt.Errorf("load claims dataset: %w", err)
	}
	return claims, entity.ClaimSourceDataset, nil
}

// Export writes the claims matching filter as a spreadsheet
func (s *ClaimsService) Export(ctx context.Context, filter entity.ClaimFilter, w io.Writer) error {
	claims, err := s.Search(ctx, filter)
	if err != nil {
		return err
	}
	if err := s.dataset.Write(ctx, claims, w); err != nil {
		s.logger.Error("Failed to export claims", "error", err)
		return fmt.Errorf("export claims: %w", err)
	}
	return nil
}

// SampleClaims returns the demo claims shown before any upload or dataset import
func SampleClaims() []*entity.Claim {
	date := func(day int) time.Time {
		return time.Date(2024, time.January, day, 0, 0, 0, 0, time.UTC)
	}

	return []*entity.Claim{
		{
			ID:          "CLM001",
			PatientName: "Rajesh Kumar",
			Hospital:    "Apollo Hospital, Delhi",
			Amount:      45000,
			Date:        date(15),
			FraudStatus: entity.FraudStatusClean,
			Location:    "Delhi",
			ClaimType:   "Surgery",
		},
		{
			ID:          "CLM002",
			PatientName: "Priya Sharma",
			Hospital:    "Max Healthcare, Mumbai",
			Amount:      125000,
			Date:        date(14),
			FraudStatus: entity.FraudStatusFraudulent,
			FraudReason: "Overbilling - Amount exceeds hospital average by 300%",
			Location:    "Mumbai",
			ClaimType:   "Emergency",
		},
		{
			ID:          "CLM003",
			PatientName: "Amit Patel",
			Hospital:    "Fortis Hospital, Bangalore",
			Amount:      32500,
			Date:        date(13),
			FraudStatus: entity.FraudStatusSuspicious,
			FraudReason: "Duplicate claim pattern detected",
			Location:    "Bangalore",
			ClaimType:   "Consultation",
		},
		{
			ID:          "CLM004",
			PatientName: "Sunita Reddy",
			Hospital:    "AIIMS, Delhi",
			Amount:      67800,
			Date:        date(12),
			FraudStatus: entity.FraudStatusClean,
			Location:    "Delhi",
			ClaimType:   "Treatment",
		},
		{
			ID:          "CLM005",
			PatientName: "Vijay Singh",
			Hospital:    "Unknown Clinic, Noida",
			Amount:      89000,
			Date:        date(11),
			FraudStatus: entity.FraudStatusFraudulent,
			FraudReason: "Hospital not verified in database",
			Location:    "Noida",
			ClaimType:   "Surgery",
		},
	}
}
