package fingerprint

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/richxcame/scamshield/internal/intel"
	"github.com/richxcame/scamshield/pkg/logger"
	"go.uber.org/zap"
)

const (
	// MatchThreshold is the similarity at which content is attributed to a campaign
	MatchThreshold = 0.45
	// SimilarThreshold is the similarity at which other campaigns are listed as related
	SimilarThreshold = 0.25

	maxRelatedIndicators = 10
)

// CampaignRef identifies the matched campaign
type CampaignRef struct {
	ID          uuid.UUID            `json:"id"`
	FamilyName  string               `json:"family_name"`
	Status      intel.CampaignStatus `json:"status"`
	Regions     []string             `json:"regions,omitempty"`
	ReportCount int                  `json:"report_count"`
}

// SimilarCampaign is a campaign above SimilarThreshold other than the match
type SimilarCampaign struct {
	ID         uuid.UUID `json:"id"`
	FamilyName string    `json:"family_name"`
	Similarity float64   `json:"similarity"`
}

// Result is the outcome of matching content against campaign templates
type Result struct {
	Matched           bool              `json:"matched"`
	Campaign          *CampaignRef      `json:"campaign,omitempty"`
	Confidence        float64           `json:"confidence"`
	Similarity        float64           `json:"similarity"`
	RelatedIndicators []intel.Indicator `json:"related_indicators"`
	SimilarCampaigns  []SimilarCampaign `json:"similar_campaigns"`
	Fingerprint       string            `json:"fingerprint,omitempty"`
}

// Confidence maps similarity to [0.5,1] above MatchThreshold and 0 below it.
// Strictly increasing over the matching range.
func Confidence(similarity float64) float64 {
	if similarity < MatchThreshold {
		return 0
	}
	c := 0.5 + 0.5*(similarity-MatchThreshold)/(1-MatchThreshold)
	return math.Round(math.Min(1, c)*1000) / 1000
}

type template struct {
	campaign int
	fp       Fingerprint
}

// Matcher holds the campaign templates fingerprinted once at load time.
// Read-only after construction and safe for concurrent use.
type Matcher struct {
	campaigns []intel.Campaign
	templates []template
}

// CampaignSource supplies the curated campaign set
type CampaignSource interface {
	GetCampaigns(ctx context.Context) ([]intel.Campaign, error)
}

// Load reads every campaign from src and fingerprints its templates
func Load(ctx context.Context, src CampaignSource) (*Matcher, error) {
	campaigns, err := src.GetCampaigns(ctx)
	if err != nil {
		return nil, fmt.Errorf("load campaigns: %w", err)
	}
	m := NewMatcher(campaigns)
	logger.Info("campaign fingerprints loaded",
		zap.Int("campaigns", len(campaigns)),
		zap.Int("templates", len(m.templates)),
	)
	return m, nil
}

// NewMatcher fingerprints the templates of campaigns. Templates too short
// to fingerprint are skipped.
func NewMatcher(campaigns []intel.Campaign) *Matcher {
	m := &Matcher{campaigns: campaigns}
	for i, c := range campaigns {
		for _, text := range c.Templates {
			if fp, ok := Compute(text); ok {
				m.templates = append(m.templates, template{campaign: i, fp: fp})
			}
		}
	}
	return m
}

// Campaigns returns the loaded campaign set
func (m *Matcher) Campaigns() []intel.Campaign {
	return m.campaigns
}

// Match compares content with every template. contentType narrows the
// fallback choice of related indicators.
func (m *Matcher) Match(content, contentType string) Result {
	res := Result{RelatedIndicators: []intel.Indicator{}, SimilarCampaigns: []SimilarCampaign{}}
	fp, ok := Compute(content)
	if !ok {
		return res
	}
	res.Fingerprint = fp.Hex()

	best := make(map[int]float64)
	for _, t := range m.templates {
		if s := Similarity(fp, t.fp); s > best[t.campaign] {
			best[t.campaign] = s
		}
	}

	ranked := make([]int, 0, len(best))
	for idx := range best {
		ranked = append(ranked, idx)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if best[a] != best[b] {
			return best[a] > best[b]
		}
		return m.campaigns[a].FamilyName < m.campaigns[b].FamilyName
	})

	if len(ranked) == 0 || best[ranked[0]] < MatchThreshold {
		return res
	}

	top := m.campaigns[ranked[0]]
	res.Matched = true
	res.Similarity = math.Round(best[ranked[0]]*1000) / 1000
	res.Confidence = Confidence(best[ranked[0]])
	res.Campaign = &CampaignRef{
		ID:          top.ID,
		FamilyName:  top.FamilyName,
		Status:      top.Status,
		Regions:     top.Regions,
		ReportCount: top.ReportCount,
	}
	res.RelatedIndicators = relatedIndicators(top, content, contentType)

	for _, idx := range ranked[1:] {
		if best[idx] < SimilarThreshold {
			break
		}
		c := m.campaigns[idx]
		res.SimilarCampaigns = append(res.SimilarCampaigns, SimilarCampaign{
			ID:         c.ID,
			FamilyName: c.FamilyName,
			Similarity: math.Round(best[idx]*1000) / 1000,
		})
	}
	return res
}

// relatedIndicators prefers indicators present in the content, then those
// of the content's own type.
func relatedIndicators(c intel.Campaign, content, contentType string) []intel.Indicator {
	lower := strings.ToLower(content)
	var present, sameType []intel.Indicator
	for _, ind := range c.Indicators {
		switch {
		case ind.Value != "" && strings.Contains(lower, ind.Value):
			present = append(present, ind)
		case typeMatches(ind.Type, contentType):
			sameType = append(sameType, ind)
		}
	}

	out := append(present, sameType...)
	if out == nil {
		out = []intel.Indicator{}
	}
	if len(out) > maxRelatedIndicators {
		out = out[:maxRelatedIndicators]
	}
	return out
}

func typeMatches(t intel.EntityType, contentType string) bool {
	switch contentType {
	case "website", "url", "message":
		return t == intel.EntityURL || t == intel.EntityDomain
	case "crypto":
		return t == intel.EntityCryptoWallet
	default:
		return string(t) == contentType
	}
}
