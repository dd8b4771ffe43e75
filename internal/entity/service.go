package entity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/scamshield/internal/decay"
	"github.com/richxcame/scamshield/internal/intel"
	"github.com/richxcame/scamshield/pkg/eventbus"
	"github.com/richxcame/scamshield/pkg/logger"
	"github.com/richxcame/scamshield/pkg/security"
	"go.uber.org/zap"
)

// recentReportWindow bounds which sightings count as recent community reports
const recentReportWindow = 30 * 24 * time.Hour

var (
	ErrInvalidEntity = errors.New("invalid entity")
	ErrEmptyReport   = errors.New("report has no message or entities")
)

// ReportSubmitted is the payload of report.submitted events
type ReportSubmitted struct {
	ReportID  uuid.UUID   `json:"report_id"`
	ScamType  string      `json:"scam_type"`
	EntityIDs []uuid.UUID `json:"entity_ids"`
	CreatedAt time.Time   `json:"created_at"`
}

// SubmitReportRequest is a community report
type SubmitReportRequest struct {
	ScamType string         `json:"scam_type" validate:"required,notblank,max=100"`
	Message  string         `json:"message" validate:"required,notblank,max=5000"`
	Province *string        `json:"province,omitempty" validate:"omitempty,max=100"`
	Entities []ReportEntity `json:"entities,omitempty" validate:"max=20,dive"`
}

// ReportEntity is an observable named explicitly by the reporter
type ReportEntity struct {
	Type  string `json:"type" validate:"required,indicator_type"`
	Value string `json:"value" validate:"required,notblank,max=500"`
}

// Service correlates entities against prior sightings, reports and campaigns
type Service struct {
	repo   intel.Repository
	graph  *Graph
	decay  *decay.Engine
	bus    eventbus.Bus
	source string
	now    func() time.Time
}

// NewService creates the entity graph service. source identifies this
// process on the event bus.
func NewService(repo intel.Repository, graph *Graph, engine *decay.Engine, bus eventbus.Bus, source string) *Service {
	if graph == nil {
		graph = NewGraph()
	}
	if engine == nil {
		engine = decay.NewEngine(nil)
	}
	if bus == nil {
		bus = eventbus.NoopBus{}
	}
	return &Service{repo: repo, graph: graph, decay: engine, bus: bus, source: source, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// Graph returns the co-report graph
func (s *Service) Graph() *Graph {
	return s.graph
}

// Correlate scores refs against what is already known. Unknown entities
// contribute nothing. Lookup failures are returned joined alongside the
// partial result.
func (s *Service) Correlate(ctx context.Context, refs []Ref) (*GraphResult, error) {
	now := s.now()
	res := &GraphResult{Entities: make([]EntityRisk, 0, len(refs))}
	campaigns := make(map[string]struct{})
	var errs []error

	for _, ref := range Dedupe(refs) {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		er := EntityRisk{Ref: ref}

		e, err := s.repo.FindEntity(ctx, ref.Type, ref.Value)
		if err != nil && !errors.Is(err, intel.ErrNotFound) {
			errs = append(errs, fmt.Errorf("find entity %s: %w", ref.Value, err))
		}
		match, err := s.repo.FindIndicatorByValue(ctx, ref.Value)
		if err != nil && !errors.Is(err, intel.ErrNotFound) {
			errs = append(errs, fmt.Errorf("find indicator %s: %w", ref.Value, err))
		}
		if match != nil && match.Indicator.Type != ref.Type && !compatibleTypes(match.Indicator.Type, ref.Type) {
			match = nil
		}

		own, freshness := ownRisk(e, match, s.decay, now)
		er.Freshness = round3(freshness)

		var neighbourMax float64
		if e != nil {
			id, lastSeen := e.ID, e.LastSeen
			er.EntityID = &id
			er.LastSeen = &lastSeen
			er.LastReported = e.LastReportedAt
			er.ReportCount = e.ReportCount
			er.ConfirmedScam = e.ConfirmedScam

			res.TotalReports += e.ReportCount
			if e.ReportCount > 0 && now.Sub(e.EvidenceAt()) <= recentReportWindow {
				res.RecentReports += e.ReportCount
			}
			if e.ConfirmedScam {
				res.ConfirmedCount++
			}

			neighbourMax, er.Neighbours, err = s.neighbourRisk(ctx, e.ID, now)
			if err != nil {
				errs = append(errs, err)
			}
		}
		if match != nil {
			name := match.Campaign.FamilyName
			er.Campaign = &name
			campaigns[name] = struct{}{}
			res.IndicatorHits++
		}

		er.Risk = networkRisk(own, neighbourMax)
		if er.Risk > res.NetworkRiskScore {
			res.NetworkRiskScore = er.Risk
		}
		res.Entities = append(res.Entities, er)
	}

	for name := range campaigns {
		res.Campaigns = append(res.Campaigns, name)
	}
	sort.Strings(res.Campaigns)

	return res, errors.Join(errs...)
}

func (s *Service) neighbourRisk(ctx context.Context, id uuid.UUID, now time.Time) (float64, int, error) {
	ids := s.graph.Neighbors(id)
	if len(ids) == 0 {
		return 0, 0, nil
	}
	neighbours, err := s.repo.GetEntitiesByIDs(ctx, ids)
	if err != nil {
		return 0, len(ids), fmt.Errorf("load neighbours of %s: %w", id, err)
	}

	var top float64
	for i := range neighbours {
		if r, _ := ownRisk(&neighbours[i], nil, s.decay, now); r > top {
			top = r
		}
	}
	return top, len(ids), nil
}

// a url indicator also vouches for the same value seen as a domain and vice versa
func compatibleTypes(a, b intel.EntityType) bool {
	web := func(t intel.EntityType) bool { return t == intel.EntityURL || t == intel.EntityDomain }
	return web(a) && web(b)
}

// RecordSightings upserts scanned entities, refreshing last_seen without
// touching report counts or the report clock evidence decays from.
func (s *Service) RecordSightings(ctx context.Context, refs []Ref) error {
	now := s.now()
	var errs []error
	for _, ref := range Dedupe(refs) {
		if _, err := s.repo.UpsertEntity(ctx, ref.Type, ref.Value, now); err != nil {
			errs = append(errs, fmt.Errorf("upsert %s %s: %w", ref.Type, ref.Value, err))
		}
	}
	return errors.Join(errs...)
}

// SubmitReport stores a community report, counts a sighting for every
// entity it names and links those entities in the co-report graph.
func (s *Service) SubmitReport(ctx context.Context, req *SubmitReportRequest) (*intel.Report, error) {
	refs, err := reportRefs(req)
	if err != nil {
		return nil, err
	}

	now := s.now()
	ids := make([]uuid.UUID, 0, len(refs))
	for _, ref := range refs {
		id, err := s.repo.UpsertEntity(ctx, ref.Type, ref.Value, now)
		if err != nil {
			return nil, fmt.Errorf("upsert %s: %w", ref.Type, err)
		}
		ids = append(ids, id)
	}

	report := &intel.Report{
		ID:        uuid.New(),
		ScamType:  strings.ToLower(strings.TrimSpace(req.ScamType)),
		Message:   security.SanitizeString(req.Message),
		Province:  req.Province,
		EntityIDs: ids,
		CreatedAt: now,
	}
	if err := s.repo.CreateReport(ctx, report); err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	if len(ids) > 0 {
		if err := s.repo.IncrementReportCounts(ctx, ids, now); err != nil {
			return nil, fmt.Errorf("increment report counts: %w", err)
		}
	}
	s.graph.Link(ids, now)

	logger.WithContext(ctx).Info("report submitted",
		zap.String("report_id", report.ID.String()),
		zap.String("scam_type", report.ScamType),
		zap.String("entities", joinRefs(refs)),
	)

	eventbus.PublishAsync(ctx, s.bus, eventbus.TypeReportSubmitted, s.source, ReportSubmitted{
		ReportID:  report.ID,
		ScamType:  report.ScamType,
		EntityIDs: ids,
		CreatedAt: now,
	})
	return report, nil
}

func reportRefs(req *SubmitReportRequest) ([]Ref, error) {
	var set refSet
	for _, e := range req.Entities {
		t := intel.EntityType(e.Type)
		if !t.Valid() {
			return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidEntity, e.Type)
		}
		if _, ok := Normalize(t, e.Value); !ok {
			return nil, fmt.Errorf("%w: %q is not a valid %s", ErrInvalidEntity, e.Value, t)
		}
		set.add(t, e.Value)
	}
	set.addAll(FromText(req.Message))

	if len(set.list) == 0 && strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyReport
	}
	return set.list, nil
}

// HandleReportSubmitted links entities reported through other instances
func (s *Service) HandleReportSubmitted(ctx context.Context, event *eventbus.Event) {
	if event.Source == s.source {
		return
	}
	var payload ReportSubmitted
	if err := event.Decode(&payload); err != nil {
		logger.WithContext(ctx).Warn("malformed report.submitted event",
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
		return
	}
	s.graph.Link(payload.EntityIDs, payload.CreatedAt)
}

// PurgeGraph drops co-report edges older than maxAge
func (s *Service) PurgeGraph(maxAge time.Duration) int {
	removed := s.graph.Purge(s.now().Add(-maxAge))
	if removed > 0 {
		logger.Info("purged stale co-report edges", zap.Int("removed", removed))
	}
	return removed
}
