package intel

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is a process-local Repository used in development and tests
type MemoryRepository struct {
	mu        sync.RWMutex
	entities  map[entityKey]*Entity
	byID      map[uuid.UUID]*Entity
	campaigns []Campaign
	reports   []Report
}

type entityKey struct {
	t     EntityType
	value string
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates a repository pre-populated with campaigns
func NewMemoryRepository(campaigns []Campaign) *MemoryRepository {
	return &MemoryRepository{
		entities:  make(map[entityKey]*Entity),
		byID:      make(map[uuid.UUID]*Entity),
		campaigns: campaigns,
	}
}

func (r *MemoryRepository) UpsertEntity(_ context.Context, t EntityType, value string, seenAt time.Time) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := entityKey{t: t, value: value}
	if e, ok := r.entities[key]; ok {
		if seenAt.After(e.LastSeen) {
			e.LastSeen = seenAt
		}
		return e.ID, nil
	}

	e := &Entity{ID: uuid.New(), Type: t, Value: value, FirstSeen: seenAt, LastSeen: seenAt}
	r.entities[key] = e
	r.byID[e.ID] = e
	return e.ID, nil
}

func (r *MemoryRepository) FindEntity(_ context.Context, t EntityType, value string) (*Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entities[entityKey{t: t, value: value}]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *MemoryRepository) GetEntitiesByIDs(_ context.Context, ids []uuid.UUID) ([]Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Entity
	for _, id := range uniqueIDs(ids) {
		if e, ok := r.byID[id]; ok {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *MemoryRepository) IncrementReportCounts(_ context.Context, ids []uuid.UUID, reportedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range uniqueIDs(ids) {
		e, ok := r.byID[id]
		if !ok {
			continue
		}
		e.ReportCount++
		if reportedAt.After(e.LastSeen) {
			e.LastSeen = reportedAt
		}
		if e.LastReportedAt == nil || reportedAt.After(*e.LastReportedAt) {
			at := reportedAt
			e.LastReportedAt = &at
		}
	}
	return nil
}

func (r *MemoryRepository) GetCampaigns(_ context.Context) ([]Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Campaign, len(r.campaigns))
	copy(out, r.campaigns)
	return out, nil
}

func (r *MemoryRepository) FindIndicatorByValue(_ context.Context, value string) (*IndicatorMatch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.campaigns {
		for _, ind := range c.Indicators {
			if ind.Value == value {
				return &IndicatorMatch{Indicator: ind, Campaign: c}, nil
			}
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) CreateReport(_ context.Context, report *Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *report
	cp.EntityIDs = append([]uuid.UUID(nil), report.EntityIDs...)
	r.reports = append(r.reports, cp)
	return nil
}

// MarkConfirmed flags an entity as a confirmed scam
func (r *MemoryRepository) MarkConfirmed(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[id]
	if ok {
		e.ConfirmedScam = true
	}
	return ok
}

// Reports returns a copy of every stored report
func (r *MemoryRepository) Reports() []Report {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Report, len(r.reports))
	copy(out, r.reports)
	return out
}
