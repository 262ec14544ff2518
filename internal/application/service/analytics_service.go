package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/garyjia/fraudguard/internal/application/port"
	"github.com/garyjia/fraudguard/internal/domain/entity"
)

// Regional fraud rate thresholds, in percent
const (
	highRiskThreshold   = 5.0
	mediumRiskThreshold = 3.0
)

// fraudTypeKeywords maps fraud reason fragments to a category. Checked in order; first match wins.
var fraudTypeKeywords = []struct {
	fraudType string
	keywords  []string
}{
	{entity.FraudTypeOverbilling, []string{"overbilling", "amount", "high claim"}},
	{entity.FraudTypeDuplicateClaims, []string{"duplicate"}},
	{entity.FraudTypeForgery, []string{"template", "placeholder", "forg"}},
	{entity.FraudTypeFakeHospital, []string{"hospital not", "not verified", "hospital does not", "missing hospital"}},
}

// AnalyticsService computes the fraud analytics dashboard from the claims table
type AnalyticsService struct {
	repo   port.ClaimRepository
	logger Logger
}

// NewAnalyticsService creates a new AnalyticsService
func NewAnalyticsService(repo port.ClaimRepository, logger Logger) *AnalyticsService {
	return &AnalyticsService{
		repo:   repo,
		logger: logger,
	}
}

// Summary returns headline totals, regional and hospital stats, and the fraud type distribution
func (s *AnalyticsService) Summary(ctx context.Context) (*entity.AnalyticsSummary, error) {
	claims, err := s.repo.List(ctx, entity.ClaimFilter{})
	if err != nil {
		s.logger.Error("Failed to load claims for analytics", "error", err)
		return nil, fmt.Errorf("list claims: %w", err)
	}

	counts, err := s.repo.StatusCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}

	regions, err := s.repo.RegionStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("region stats: %w", err)
	}
	for i := range regions {
		regions[i].Percentage = percent(regions[i].Fraudulent, regions[i].Total)
		regions[i].Risk = RiskLevel(regions[i].Percentage)
	}

	hospitals, err := s.repo.HospitalStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("hospital stats: %w", err)
	}
	for i := range hospitals {
		hospitals[i].FraudRate = percent(hospitals[i].Fraudulent, hospitals[i].Claims)
	}

	return &entity.AnalyticsSummary{
		Overview:   overview(counts, claims),
		Regions:    regions,
		Hospitals:  hospitals,
		FraudTypes: fraudTypeDistribution(claims),
	}, nil
}

// overview takes status totals from counts and the amount at risk from claims
func overview(counts map[string]int, claims []*entity.Claim) entity.Overview {
	o := entity.Overview{
		Clean:      counts[entity.FraudStatusClean],
		Suspicious: counts[entity.FraudStatusSuspicious],
		Fraudulent: counts[entity.FraudStatusFraudulent],
		Pending:    counts[entity.FraudStatusPending],
	}
	for _, n := range counts {
		o.TotalClaims += n
	}
	for _, c := range claims {
		if c.FraudStatus == entity.FraudStatusSuspicious || c.FraudStatus == entity.FraudStatusFraudulent {
			o.AmountAtRisk += c.Amount
		}
	}
	o.FraudRate = percent(o.Fraudulent, o.TotalClaims)
	return o
}

func fraudTypeDistribution(claims []*entity.Claim) []entity.FraudTypeStat {
	counts := make(map[string]int, len(entity.FraudTypes))
	flagged := 0
	for _, c := range claims {
		if c.FraudStatus != entity.FraudStatusFraudulent && c.FraudStatus != entity.FraudStatusSuspicious {
			continue
		}
		flagged++
		counts[ClassifyFraudReason(c.FraudReason)]++
	}

	stats := make([]entity.FraudTypeStat, 0, len(entity.FraudTypes))
	for _, t := range entity.FraudTypes {
		stats = append(stats, entity.FraudTypeStat{
			Type:       t,
			Count:      counts[t],
			Percentage: percent(counts[t], flagged),
		})
	}
	return stats
}

// ClassifyFraudReason assigns a fraud reason to one of entity.FraudTypes
func ClassifyFraudReason(reason string) string {
	reason = strings.ToLower(reason)
	for _, rule := range fraudTypeKeywords {
		for _, kw := range rule.keywords {
			if strings.Contains(reason, kw) {
				return rule.fraudType
			}
		}
	}
	return entity.FraudTypeOther
}

// RiskLevel classifies a regional fraud rate
func RiskLevel(percentage float64) string {
	switch {
	case percentage > highRiskThreshold:
		return entity.RiskHigh
	case percentage > mediumRiskThreshold:
		return entity.RiskMedium
	default:
		return entity.RiskLow
	}
}

// percent returns part/whole*100 rounded to one decimal, 0 when whole is 0
func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*1000) / 10
}
