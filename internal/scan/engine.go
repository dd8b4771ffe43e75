package scan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/richxcame/scamshield/internal/blocklist"
	"github.com/richxcame/scamshield/internal/decay"
	"github.com/richxcame/scamshield/internal/enrichment"
	"github.com/richxcame/scamshield/internal/entity"
	"github.com/richxcame/scamshield/internal/features"
	"github.com/richxcame/scamshield/internal/fingerprint"
	"github.com/richxcame/scamshield/internal/intel"
	"github.com/richxcame/scamshield/internal/risk"
	"github.com/richxcame/scamshield/internal/trust"
	"github.com/richxcame/scamshield/pkg/eventbus"
	"github.com/richxcame/scamshield/pkg/logger"
	"github.com/richxcame/scamshield/pkg/security"
	"github.com/richxcame/scamshield/pkg/tracing"
	"github.com/richxcame/scamshield/pkg/validation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var (
	ErrInvalidInput         = errors.New("invalid scan input")
	ErrBlocklistUnavailable = errors.New("blocklist not loaded")
	errStageTimeout         = errors.New("stage budget exceeded")
)

// Aggregation weights per contributing subsystem
const (
	weightBlocklist   = 0.35
	weightFingerprint = 0.30
	weightSpam        = 0.25
	weightGraph       = 0.25
	weightURL         = 0.20
	weightBot         = 0.15
	weightAI          = 0.10
)

// Trust penalties for intelligence hits. Heuristic scorers carry their own.
const (
	penaltyBlocklist   = 60
	penaltyFingerprint = 40
	penaltyGraph       = 30
)

var (
	scansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scans_total",
			Help: "Completed scans by input type and risk label",
		},
		[]string{"input_type", "label"},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scan_stage_duration_seconds",
			Help:    "Latency of each scan subsystem",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2, 5},
		},
		[]string{"stage"},
	)

	stageOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_stage_outcomes_total",
			Help: "Scan subsystem outcomes",
		},
		[]string{"stage", "outcome"},
	)
)

// Correlator is the entity graph as the engine uses it
type Correlator interface {
	Correlate(ctx context.Context, refs []entity.Ref) (*entity.GraphResult, error)
	RecordSightings(ctx context.Context, refs []entity.Ref) error
}

// Enricher runs best-effort third-party lookups for an input
type Enricher interface {
	Enrich(ctx context.Context, inputType, value string) []enrichment.Result
}

// Deps are the subsystems an Engine fans out to. Any may be nil except
// Spam, which defaults to the built-in table.
type Deps struct {
	Blocklist *blocklist.Blocklist
	Spam      *features.SpamScorer
	AI        features.AIDetector
	Graph     Correlator
	Matcher   *fingerprint.Matcher
	Enricher  Enricher
	Bus       eventbus.Bus
	Source    string
}

// Options bound one scan
type Options struct {
	Budget         time.Duration
	ScorerTimeout  time.Duration
	MaxTextLength  int
	MaxQueryLength int
}

// DefaultOptions returns the budgets and boundary limits used when unset
func DefaultOptions() Options {
	return Options{
		Budget:         5 * time.Second,
		ScorerTimeout:  2 * time.Second,
		MaxTextLength:  5000,
		MaxQueryLength: 500,
	}
}

// Engine scores inputs by fusing every subsystem that produced a result
type Engine struct {
	deps Deps
	opts Options
	now  func() time.Time
}

// NewEngine creates a scoring engine
func NewEngine(deps Deps, opts Options) *Engine {
	def := DefaultOptions()
	if opts.Budget <= 0 {
		opts.Budget = def.Budget
	}
	if opts.ScorerTimeout <= 0 || opts.ScorerTimeout > opts.Budget {
		opts.ScorerTimeout = minDuration(def.ScorerTimeout, opts.Budget)
	}
	if opts.MaxTextLength <= 0 {
		opts.MaxTextLength = def.MaxTextLength
	}
	if opts.MaxQueryLength <= 0 {
		opts.MaxQueryLength = def.MaxQueryLength
	}
	if deps.Spam == nil {
		deps.Spam = features.NewSpamScorer()
	}
	if deps.Bus == nil {
		deps.Bus = eventbus.NoopBus{}
	}
	return &Engine{deps: deps, opts: opts, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (e *Engine) WithNow(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Score runs every applicable subsystem concurrently within the scan budget
// and fuses whatever finished. Subsystem failures and timeouts never fail
// the scan; they are listed in Result.Unavailable.
func (e *Engine) Score(ctx context.Context, req *Request) (*Result, error) {
	value, err := e.validate(req)
	if err != nil {
		return nil, err
	}

	ctx, span := tracing.StartSpan(ctx, "scan.Score", attribute.String("scan.input_type", req.Type))
	defer span.End()

	start := e.now()
	res := &Result{
		ScanID:    uuid.New(),
		InputType: req.Type,
		ScannedAt: start,
		Signals:   []features.Signal{},
	}

	e.scoreFeatures(req.Type, value, res)
	res.Entities = entity.Extract(req.Type, value, res.Signals)
	if res.Entities == nil {
		res.Entities = []entity.Ref{}
	}

	budgetCtx, cancel := context.WithTimeout(ctx, e.opts.Budget)
	defer cancel()
	e.fanOut(budgetCtx, e.stages(req.Type, value, res.Entities), res)

	e.fuse(res)
	res.DurationMs = e.now().Sub(start).Milliseconds()

	scansTotal.WithLabelValues(req.Type, string(res.OverallRiskLabel)).Inc()
	span.SetAttributes(
		attribute.Float64("scan.score", res.OverallRiskScore),
		attribute.String("scan.label", string(res.OverallRiskLabel)),
		attribute.Bool("scan.partial", res.Partial()),
	)
	logger.WithContext(ctx).Info("scan completed",
		zap.String("scan_id", res.ScanID.String()),
		zap.String("input_type", req.Type),
		zap.Float64("score", res.OverallRiskScore),
		zap.String("label", string(res.OverallRiskLabel)),
		zap.String("confidence", string(res.Confidence)),
		zap.Strings("unavailable", res.Unavailable),
		zap.Int64("duration_ms", res.DurationMs),
	)

	completed := Completed{
		ScanID:     res.ScanID,
		InputType:  res.InputType,
		Score:      res.OverallRiskScore,
		Label:      res.OverallRiskLabel,
		Confidence: res.Confidence,
		Partial:    res.Partial(),
		ScannedAt:  res.ScannedAt,
	}
	if res.Fingerprint != nil && res.Fingerprint.Campaign != nil {
		completed.Campaign = &res.Fingerprint.Campaign.FamilyName
	}
	eventbus.PublishAsync(ctx, e.deps.Bus, eventbus.TypeScanCompleted, e.deps.Source, completed)

	return res, nil
}

func (e *Engine) validate(req *Request) (string, error) {
	if req == nil {
		return "", fmt.Errorf("%w: empty request", ErrInvalidInput)
	}
	if !validation.IsScanInputType(req.Type) {
		return "", fmt.Errorf("%w: unknown type %q", ErrInvalidInput, req.Type)
	}
	value := security.SanitizeString(req.Value)
	if value == "" {
		return "", fmt.Errorf("%w: value is empty", ErrInvalidInput)
	}

	limit := e.opts.MaxQueryLength
	if req.Type == "message" {
		limit = e.opts.MaxTextLength
	}
	if n := utf8.RuneCountInString(value); n > limit {
		return "", fmt.Errorf("%w: %s input is %d characters, limit %d", ErrInvalidInput, req.Type, n, limit)
	}
	return value, nil
}

// scoreFeatures runs the pure structural scorers inline. Their signals feed
// entity extraction.
func (e *Engine) scoreFeatures(inputType, value string, res *Result) {
	switch inputType {
	case "website", "url", "domain":
		u := features.ScoreURL(value)
		res.URLAnalysis = &u
		res.Signals = append(res.Signals, u.Signals...)
	case "message":
		s := e.deps.Spam.Score(value)
		res.Spam = &s
		res.Signals = append(res.Signals, s.Signals...)
	case "username":
		b := features.ScoreUsername(value)
		res.BotDetection = &b
		res.Signals = append(res.Signals, b.Signals...)
	}
}

// stage is one independent subsystem call. Its apply func runs on the
// collecting goroutine only.
type stage struct {
	name    string
	timeout time.Duration
	run     func(ctx context.Context) (func(*Result), error)
}

func (e *Engine) stages(inputType, value string, refs []entity.Ref) []stage {
	var out []stage

	if bl := e.deps.Blocklist; bl != nil {
		if domains := blocklistCandidates(refs); len(domains) > 0 {
			out = append(out, stage{name: "blocklist", timeout: e.opts.ScorerTimeout, run: func(context.Context) (func(*Result), error) {
				hit := &BlocklistHit{Checked: domains, Hits: []blocklist.Result{}}
				for _, d := range domains {
					if r := bl.IsBlocked(d); r.Blocked {
						hit.Hits = append(hit.Hits, r)
					}
				}
				return func(r *Result) { r.Blocklist = hit }, nil
			}})
		}
	}

	if g := e.deps.Graph; g != nil && len(refs) > 0 {
		out = append(out, stage{name: "entity_graph", timeout: e.opts.ScorerTimeout, run: func(ctx context.Context) (func(*Result), error) {
			graph, err := g.Correlate(ctx, refs)
			if graph == nil {
				return nil, err
			}
			// sightings are recorded after correlation so freshness reflects the previous one
			if serr := g.RecordSightings(ctx, refs); serr != nil {
				logger.WithContext(ctx).Warn("failed to record sightings", zap.Error(serr))
			}
			return func(r *Result) { r.Graph = graph }, err
		}})
	}

	if m := e.deps.Matcher; m != nil {
		out = append(out, stage{name: "fingerprint", timeout: e.opts.ScorerTimeout, run: func(context.Context) (func(*Result), error) {
			fp := m.Match(value, inputType)
			return func(r *Result) { r.Fingerprint = &fp }, nil
		}})
	}

	if ai := e.deps.AI; ai != nil && inputType == "message" {
		out = append(out, stage{name: "ai_text", timeout: e.opts.ScorerTimeout, run: func(ctx context.Context) (func(*Result), error) {
			det, err := ai.Detect(ctx, value)
			if err != nil {
				return nil, err
			}
			return func(r *Result) { r.AIDetection = &det }, nil
		}})
	}

	if en := e.deps.Enricher; en != nil {
		out = append(out, stage{name: "enrichment", run: func(ctx context.Context) (func(*Result), error) {
			results := en.Enrich(ctx, inputType, value)
			return func(r *Result) { r.Enrichment = results }, nil
		}})
	}
	return out
}

type stageOutcome struct {
	name  string
	apply func(*Result)
	err   error
}

// fanOut runs stages concurrently and applies results as they arrive. When
// ctx expires the stages still pending are reported unavailable and their
// late results are dropped.
func (e *Engine) fanOut(ctx context.Context, stages []stage, res *Result) {
	done := make(chan stageOutcome, len(stages))
	pending := make(map[string]struct{}, len(stages))
	for _, st := range stages {
		pending[st.name] = struct{}{}
		go func(st stage) {
			done <- e.runStage(ctx, st)
		}(st)
	}

	for len(pending) > 0 {
		select {
		case o := <-done:
			delete(pending, o.name)
			if o.apply != nil {
				o.apply(res)
			}
			if o.err != nil {
				res.Unavailable = append(res.Unavailable, o.name)
				logger.WithContext(ctx).Warn("scan stage degraded", zap.String("stage", o.name), zap.Error(o.err))
			}
		case <-ctx.Done():
			for name := range pending {
				res.Unavailable = append(res.Unavailable, name)
				stageOutcomes.WithLabelValues(name, "timeout").Inc()
			}
			logger.WithContext(ctx).Warn("scan budget exhausted, returning partial result",
				zap.Int("pending", len(pending)),
			)
			sort.Strings(res.Unavailable)
			return
		}
	}
	sort.Strings(res.Unavailable)
}

func (e *Engine) runStage(parent context.Context, st stage) stageOutcome {
	ctx, span := tracing.StartSpan(parent, "scan."+st.name)
	defer span.End()

	cancel := func() {}
	if st.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, st.timeout)
	}
	defer cancel()

	start := time.Now()
	inner := make(chan stageOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				inner <- stageOutcome{name: st.name, err: fmt.Errorf("stage panicked: %v", r)}
			}
		}()
		apply, err := st.run(ctx)
		inner <- stageOutcome{name: st.name, apply: apply, err: err}
	}()

	var out stageOutcome
	select {
	case out = <-inner:
	case <-ctx.Done():
		out = stageOutcome{name: st.name, err: errStageTimeout}
	}
	stageDuration.WithLabelValues(st.name).Observe(time.Since(start).Seconds())

	outcome := "ok"
	if out.err != nil {
		outcome = "failed"
		if errors.Is(out.err, errStageTimeout) || errors.Is(out.err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		span.RecordError(out.err)
		span.SetStatus(codes.Error, out.err.Error())
	}
	stageOutcomes.WithLabelValues(st.name, outcome).Inc()
	return out
}

// fuse aggregates the finished subsystems, derives intelligence signals,
// confidence and the trust grade.
func (e *Engine) fuse(res *Result) {
	var b risk.Builder

	if res.Blocklist.Blocked() {
		b.Add("blocklist", 1, weightBlocklist)
		for _, h := range res.Blocklist.Hits {
			res.Signals = append(res.Signals, features.Signal{
				Source:      "blocklist",
				Name:        "blocklisted_domain",
				Description: fmt.Sprintf("%s is on the scam domain blocklist", *h.MatchedDomain),
				Weight:      penaltyBlocklist,
			})
		}
	}
	if u := res.URLAnalysis; u != nil && u.Valid {
		b.Add("url_structure", u.Normalized(), weightURL)
	}
	if s := res.Spam; s != nil {
		b.Add("spam_keywords", s.Normalized(), weightSpam)
	}
	if ai := res.AIDetection; ai != nil && !ai.Absent() {
		b.Add("ai_text", ai.Probability, weightAI)
		res.Signals = append(res.Signals, ai.Signals()...)
	}
	if bot := res.BotDetection; bot != nil {
		b.Add("bot_detection", bot.Score, weightBot)
	}
	if g := res.Graph; g.Known() && g.NetworkRiskScore > 0 {
		b.Add("entity_graph", g.NetworkRiskScore, weightGraph)
		for _, er := range g.Entities {
			if !er.Known() || er.Risk <= 0 {
				continue
			}
			res.Signals = append(res.Signals, graphSignal(er))
		}
	}
	if fp := res.Fingerprint; fp != nil && fp.Matched {
		b.Add("fingerprint", fp.Confidence, weightFingerprint)
		res.Signals = append(res.Signals, features.Signal{
			Source:      "fingerprint",
			Name:        "campaign_match",
			Description: fmt.Sprintf("content matches known campaign %s (similarity %.2f)", fp.Campaign.FamilyName, fp.Similarity),
			Weight:      round2(penaltyFingerprint * fp.Confidence),
		})
	}
	res.Signals = append(res.Signals, enrichmentSignals(res.Enrichment)...)

	a := b.Assess()
	res.OverallRiskScore = a.Score
	res.OverallRiskLabel = a.Label
	res.Contributions = a.Contributions

	ev := decay.Evidence{}
	if res.Blocklist.Blocked() {
		ev.FeedHits++
	}
	if g := res.Graph; g != nil {
		ev.FeedHits += g.IndicatorHits
		ev.RecentReports = g.RecentReports
		ev.InstitutionalEvents = g.ConfirmedCount
	}
	if s := res.Spam; s != nil {
		ev.HighIntentChecks = len(s.Phrases)
	}
	res.Confidence = decay.ComputeConfidence(ev)

	res.Trust = trust.Score(res.Signals, res.InputType, enrichment.TrustContext(res.Enrichment))
}

func graphSignal(er entity.EntityRisk) features.Signal {
	var desc string
	switch {
	case er.Campaign != nil:
		desc = fmt.Sprintf("%s %s is an indicator of campaign %s", er.Type, er.Value, *er.Campaign)
	case er.ConfirmedScam:
		desc = fmt.Sprintf("%s %s was confirmed as a scam", er.Type, er.Value)
	default:
		desc = fmt.Sprintf("%s %s appears in %d community reports", er.Type, er.Value, er.ReportCount)
	}
	return features.Signal{
		Source:      "entity_graph",
		Name:        "known_entity",
		Description: desc,
		Weight:      round2(penaltyGraph * er.Risk),
	}
}

// enrichmentSignals surfaces lookup findings as informational signals
func enrichmentSignals(results []enrichment.Result) []features.Signal {
	var out []features.Signal
	if found, answered := enrichment.UsernameExists(results); answered > 0 && found == 0 {
		out = append(out, features.Signal{
			Source:      "enrichment",
			Name:        "username_not_found",
			Description: fmt.Sprintf("username has no public profile on %d checked platforms", answered),
		})
	}
	for _, r := range results {
		fc, ok := r.Payload.(enrichment.FactCheck)
		if r.Status != enrichment.StatusOK || !ok {
			continue
		}
		for _, c := range fc.Claims {
			if c.Rating == "" {
				continue
			}
			out = append(out, features.Signal{
				Source:      "enrichment",
				Name:        "fact_check",
				Description: fmt.Sprintf("%s rated a similar claim %q", c.Publisher, c.Rating),
			})
		}
	}
	return out
}

// blocklistCandidates are the web domains a scan touched, including the
// domain part of email addresses
func blocklistCandidates(refs []entity.Ref) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(raw string) {
		d := blocklist.NormalizeDomain(raw)
		if d == "" {
			return
		}
		if _, ok := seen[d]; ok {
			return
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	for _, r := range refs {
		switch r.Type {
		case intel.EntityURL, intel.EntityDomain, intel.EntityIP:
			add(r.Value)
		case intel.EntityEmail:
			if i := strings.LastIndexByte(r.Value, '@'); i >= 0 {
				add(r.Value[i+1:])
			}
		}
	}
	return out
}

// Fingerprint matches content against campaign templates only
func (e *Engine) Fingerprint(ctx context.Context, req *FingerprintRequest) (fingerprint.Result, error) {
	if req == nil {
		return fingerprint.Result{}, fmt.Errorf("%w: empty request", ErrInvalidInput)
	}
	content := security.SanitizeString(req.Content)
	if content == "" {
		return fingerprint.Result{}, fmt.Errorf("%w: content is empty", ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(content); n > e.opts.MaxTextLength {
		return fingerprint.Result{}, fmt.Errorf("%w: content is %d characters, limit %d", ErrInvalidInput, n, e.opts.MaxTextLength)
	}

	_, span := tracing.StartSpan(ctx, "scan.Fingerprint")
	defer span.End()

	if e.deps.Matcher == nil {
		return fingerprint.Result{RelatedIndicators: []intel.Indicator{}, SimilarCampaigns: []fingerprint.SimilarCampaign{}}, nil
	}
	contentType := req.Type
	if contentType == "" {
		contentType = "message"
	}
	return e.deps.Matcher.Match(content, contentType), nil
}

// TrustScore grades caller-supplied signals
func (e *Engine) TrustScore(req *TrustScoreRequest) trust.Result {
	return trust.Score(req.Signals, req.InputType, req.Context)
}

// CheckBlocklist tests one domain
func (e *Engine) CheckBlocklist(domain string) (blocklist.Result, error) {
	if utf8.RuneCountInString(domain) > e.opts.MaxQueryLength {
		return blocklist.Result{}, fmt.Errorf("%w: query exceeds %d characters", ErrInvalidInput, e.opts.MaxQueryLength)
	}
	if blocklist.NormalizeDomain(domain) == "" {
		return blocklist.Result{}, fmt.Errorf("%w: %q is not a domain", ErrInvalidInput, domain)
	}
	if e.deps.Blocklist == nil {
		return blocklist.Result{}, ErrBlocklistUnavailable
	}
	return e.deps.Blocklist.IsBlocked(domain), nil
}

// Campaigns returns the loaded campaign set sorted by family name
func (e *Engine) Campaigns() []intel.Campaign {
	if e.deps.Matcher == nil {
		return []intel.Campaign{}
	}
	out := append([]intel.Campaign(nil), e.deps.Matcher.Campaigns()...)
	sort.Slice(out, func(i, j int) bool { return out[i].FamilyName < out[j].FamilyName })
	return out
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
