package fingerprint

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/richxcame/scamshield/internal/intel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const refundLure = "URGENT: your refund is ready, click bit.ly/xyz to claim now"

func testCampaigns() []intel.Campaign {
	refundID, replyID, prizeID := uuid.New(), uuid.New(), uuid.New()
	return []intel.Campaign{
		{
			ID:         refundID,
			FamilyName: "sars-refund",
			Status:     intel.CampaignActive,
			Regions:    []string{"gauteng"},
			Templates:  []string{"URGENT: your refund is ready, click https://sars-refund.co.za/claim to claim now"},
			Indicators: []intel.Indicator{
				{Type: intel.EntityDomain, Value: "sars-refund.co.za", CampaignID: refundID},
				{Type: intel.EntityDomain, Value: "bit.ly", CampaignID: refundID},
				{Type: intel.EntityPhone, Value: "+27825550199", CampaignID: refundID},
			},
		},
		{
			ID:         replyID,
			FamilyName: "refund-reply",
			Status:     intel.CampaignDeclining,
			Templates:  []string{"URGENT: your refund is ready. Reply YES to receive it today"},
		},
		{
			ID:         prizeID,
			FamilyName: "fake-prize",
			Status:     intel.CampaignActive,
			Templates: []string{
				"Congratulations! You have won a free iPhone. Reply with your ID number to claim your prize",
				"too short",
			},
		},
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t,
		[]string{"urgent", "your", "refund", "is", "ready", "click", "link", "to", "claim", "now"},
		Normalize(refundLure))

	assert.Equal(t,
		[]string{"call", "phonenum", "or", "mail", "emailaddr"},
		Normalize("Call +27 82 555 0199 or mail help@sars-help.co.za"))
}

func TestNormalize_Leetspeak(t *testing.T) {
	assert.Equal(t, Normalize(refundLure), Normalize("URG3NT: your r3fund is r3ady, click bit.ly/abc to claim n0w"))
	assert.Equal(t, []string{"pay", "r100", "now"}, Normalize("Pay R100 now"))
}

func TestCompute_TooShort(t *testing.T) {
	_, ok := Compute("hello there friend")
	assert.False(t, ok)

	_, ok = Compute("")
	assert.False(t, ok)

	fp, ok := Compute("one two three four")
	require.True(t, ok)
	assert.Len(t, fp.Shingles, 2)
	assert.Len(t, fp.Hex(), 16)
}

func TestSimilarity(t *testing.T) {
	a, _ := Compute(refundLure)
	b, _ := Compute("URGENT: your refund is ready, click https://other.example.com to claim now")
	c, _ := Compute("Team lunch is moved to Friday, see you at the usual place")

	assert.Equal(t, 1.0, Similarity(a, b))
	assert.Zero(t, Similarity(a, c))
	assert.Zero(t, Similarity(a, Fingerprint{}))
	assert.Equal(t, a.Hex(), b.Hex())
}

func TestSimilarity_ContainmentOfTemplate(t *testing.T) {
	template, _ := Compute(refundLure)
	padded, _ := Compute("Hi there. " + refundLure + ". Regards, the tax office")

	assert.InDelta(t, 0.9, Similarity(padded, template), 1e-9)
}

func TestConfidence_Monotonic(t *testing.T) {
	assert.Zero(t, Confidence(0.44))
	assert.Equal(t, 0.5, Confidence(MatchThreshold))
	assert.Equal(t, 1.0, Confidence(1))

	prev := Confidence(MatchThreshold)
	for s := MatchThreshold + 0.05; s <= 1.0; s += 0.05 {
		c := Confidence(s)
		assert.Greater(t, c, prev, "similarity %v", s)
		prev = c
	}
}

func TestMatcher_ExactCampaignWithDifferentLink(t *testing.T) {
	m := NewMatcher(testCampaigns())

	res := m.Match(refundLure, "message")

	require.True(t, res.Matched)
	assert.Equal(t, "sars-refund", res.Campaign.FamilyName)
	assert.Equal(t, 1.0, res.Similarity)
	assert.Equal(t, 1.0, res.Confidence)
	assert.NotEmpty(t, res.Fingerprint)

	// bit.ly appears in the content so it leads, then same-type indicators
	require.Len(t, res.RelatedIndicators, 2)
	assert.Equal(t, "bit.ly", res.RelatedIndicators[0].Value)
	assert.Equal(t, "sars-refund.co.za", res.RelatedIndicators[1].Value)

	require.Len(t, res.SimilarCampaigns, 1)
	assert.Equal(t, "refund-reply", res.SimilarCampaigns[0].FamilyName)
	assert.InDelta(t, 0.3, res.SimilarCampaigns[0].Similarity, 0.001)
}

func TestMatcher_Paraphrase(t *testing.T) {
	m := NewMatcher(testCampaigns())

	res := m.Match("URGENT: your tax refund is ready, click bit.ly/xyz to claim it now", "message")

	require.True(t, res.Matched)
	assert.Equal(t, "sars-refund", res.Campaign.FamilyName)
	assert.InDelta(t, 0.5625, res.Similarity, 0.001)
	assert.Greater(t, res.Confidence, 0.5)
	assert.Less(t, res.Confidence, 1.0)
}

func TestMatcher_NoMatch(t *testing.T) {
	m := NewMatcher(testCampaigns())

	for _, content := range []string{"", "hi", "Team lunch is moved to Friday, see you at the usual place"} {
		res := m.Match(content, "message")
		assert.False(t, res.Matched, content)
		assert.Nil(t, res.Campaign)
		assert.Zero(t, res.Confidence)
		assert.NotNil(t, res.RelatedIndicators)
		assert.NotNil(t, res.SimilarCampaigns)
	}
}

func TestMatcher_EmptyCampaignSet(t *testing.T) {
	res := NewMatcher(nil).Match(refundLure, "message")
	assert.False(t, res.Matched)
}

func TestRelatedIndicators_TypeFallback(t *testing.T) {
	c := testCampaigns()[0]
	got := relatedIndicators(c, "call me", "phone")
	require.Len(t, got, 1)
	assert.Equal(t, intel.EntityPhone, got[0].Type)

	assert.Empty(t, relatedIndicators(c, "nothing", "username"))
}

type campaignSourceFunc func(ctx context.Context) ([]intel.Campaign, error)

func (f campaignSourceFunc) GetCampaigns(ctx context.Context) ([]intel.Campaign, error) {
	return f(ctx)
}

func TestLoad(t *testing.T) {
	m, err := Load(context.Background(), intel.NewMemoryRepository(testCampaigns()))
	require.NoError(t, err)
	assert.Len(t, m.Campaigns(), 3)
	assert.Len(t, m.templates, 3)

	_, err = Load(context.Background(), campaignSourceFunc(func(context.Context) ([]intel.Campaign, error) {
		return nil, errors.New("db down")
	}))
	assert.Error(t, err)
}
