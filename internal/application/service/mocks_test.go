package service

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/garyjia/fraudguard/internal/application/port"
	"github.com/garyjia/fraudguard/internal/domain/entity"
	"github.com/garyjia/fraudguard/internal/domain/event"
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

type mockFraudClient struct {
	mu          sync.Mutex
	calls       []string
	analyzeFunc func(ctx context.Context, doc entity.Document) (*entity.ExtractedData, error)
}

func (m *mockFraudClient) Analyze(ctx context.Context, doc entity.Document) (*entity.ExtractedData, error) {
	m.mu.Lock()
	m.calls = append(m.calls, doc.Name)
	m.mu.Unlock()

	if m.analyzeFunc != nil {
		return m.analyzeFunc(ctx, doc)
	}
	return &entity.ExtractedData{FraudStatus: entity.FraudStatusClean}, nil
}

func (m *mockFraudClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

type mockMessageSender struct {
	mu           sync.Mutex
	sent         []string
	sendTextFunc func(ctx context.Context, content string) error
}

func (m *mockMessageSender) SendText(ctx context.Context, content string) error {
	m.mu.Lock()
	m.sent = append(m.sent, content)
	m.mu.Unlock()

	if m.sendTextFunc != nil {
		return m.sendTextFunc(ctx, content)
	}
	return nil
}

type mockDataset struct {
	loadFunc  func(ctx context.Context, path string) ([]*entity.Claim, error)
	writeFunc func(ctx context.Context, claims []*entity.Claim, w io.Writer) error
}

func (m *mockDataset) Load(ctx context.Context, path string) ([]*entity.Claim, error) {
	if m.loadFunc != nil {
		return m.loadFunc(ctx, path)
	}
	return nil, nil
}

func (m *mockDataset) Write(ctx context.Context, claims []*entity.Claim, w io.Writer) error {
	if m.writeFunc != nil {
		return m.writeFunc(ctx, claims, w)
	}
	return nil
}

// memClaimRepo is an in-memory port.ClaimRepository
type memClaimRepo struct {
	mu     sync.Mutex
	claims map[string]*entity.Claim
	err    error
}

func newMemClaimRepo(claims ...*entity.Claim) *memClaimRepo {
	r := &memClaimRepo{claims: make(map[string]*entity.Claim)}
	for _, c := range claims {
		cp := *c
		r.claims[c.ID] = &cp
	}
	return r
}

func (r *memClaimRepo) Upsert(ctx context.Context, claim *entity.Claim) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	cp := *claim
	r.claims[claim.ID] = &cp
	return nil
}

func (r *memClaimRepo) GetByID(ctx context.Context, id string) (*entity.Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.claims[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, r.err
}

func (r *memClaimRepo) List(ctx context.Context, filter entity.ClaimFilter) ([]*entity.Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}

	filter = filter.Normalized()
	search := strings.ToLower(filter.Search)
	out := make([]*entity.Claim, 0)
	for _, c := range r.claims {
		if search != "" &&
			!strings.Contains(strings.ToLower(c.PatientName), search) &&
			!strings.Contains(strings.ToLower(c.Hospital), search) &&
			!strings.Contains(strings.ToLower(c.ID), search) {
			continue
		}
		if filter.Status != entity.FilterAll && c.FraudStatus != filter.Status {
			continue
		}
		if filter.Location != entity.FilterAll && c.Location != filter.Location {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memClaimRepo) Locations(ctx context.Context) ([]string, error) {
	claims, err := r.List(ctx, entity.ClaimFilter{})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, c := range claims {
		if c.Location != "" && !seen[c.Location] {
			seen[c.Location] = true
			out = append(out, c.Location)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *memClaimRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.claims), r.err
}

func (r *memClaimRepo) StatusCounts(ctx context.Context) (map[string]int, error) {
	claims, err := r.List(ctx, entity.ClaimFilter{})
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, c := range claims {
		counts[c.FraudStatus]++
	}
	return counts, nil
}

func (r *memClaimRepo) RegionStats(ctx context.Context) ([]entity.RegionStat, error) {
	claims, err := r.List(ctx, entity.ClaimFilter{})
	if err != nil {
		return nil, err
	}
	byRegion := make(map[string]*entity.RegionStat)
	for _, c := range claims {
		if c.Location == "" {
			continue
		}
		s, ok := byRegion[c.Location]
		if !ok {
			s = &entity.RegionStat{Region: c.Location}
			byRegion[c.Location] = s
		}
		s.Total++
		if c.FraudStatus == entity.FraudStatusFraudulent {
			s.Fraudulent++
		}
	}
	out := make([]entity.RegionStat, 0, len(byRegion))
	for _, s := range byRegion {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Region < out[j].Region })
	return out, nil
}

func (r *memClaimRepo) HospitalStats(ctx context.Context) ([]entity.HospitalStat, error) {
	claims, err := r.List(ctx, entity.ClaimFilter{})
	if err != nil {
		return nil, err
	}
	byHospital := make(map[string]*entity.HospitalStat)
	for _, c := range claims {
		s, ok := byHospital[c.Hospital]
		if !ok {
			s = &entity.HospitalStat{Hospital: c.Hospital}
			byHospital[c.Hospital] = s
		}
		s.Claims++
		s.Amount += c.Amount
		if c.FraudStatus == entity.FraudStatusFraudulent {
			s.Fraudulent++
		}
	}
	out := make([]entity.HospitalStat, 0, len(byHospital))
	for _, s := range byHospital {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Fraudulent != out[j].Fraudulent {
			return out[i].Fraudulent > out[j].Fraudulent
		}
		if out[i].Claims != out[j].Claims {
			return out[i].Claims > out[j].Claims
		}
		return out[i].Hospital < out[j].Hospital
	})
	return out, nil
}

// eventRecorder collects dispatched events in order
type eventRecorder struct {
	mu     sync.Mutex
	events []*event.Event
}

func (r *eventRecorder) Handle(ctx context.Context, evt *event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *eventRecorder) Types() []event.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]event.Type, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

var (
	_ port.ClaimRepository      = (*memClaimRepo)(nil)
	_ port.FraudDetectionClient = (*mockFraudClient)(nil)
	_ port.MessageSender        = (*mockMessageSender)(nil)
	_ port.ClaimDataset         = (*mockDataset)(nil)
)
