package enrichment

import (
	"context"
	"net/url"
	"strconv"

	"github.com/richxcame/scamshield/pkg/httpclient"
	"github.com/richxcame/scamshield/pkg/security"
)

const (
	maxFactCheckQuery = 200
	factCheckPageSize = 5
)

type claimSearchResponse struct {
	Claims []struct {
		Text        string `json:"text"`
		Claimant    string `json:"claimant"`
		ClaimReview []struct {
			Publisher struct {
				Name string `json:"name"`
			} `json:"publisher"`
			URL           string `json:"url"`
			TextualRating string `json:"textualRating"`
		} `json:"claimReview"`
	} `json:"claims"`
}

// FactChecker searches a claim-review API shaped like Google Fact Check Tools
type FactChecker struct {
	client *httpclient.Client
	apiKey string
}

// NewFactChecker creates a fact-check client
func NewFactChecker(client *httpclient.Client, apiKey string) *FactChecker {
	return &FactChecker{client: client, apiKey: apiKey}
}

// Task returns the lookup for text
func (f *FactChecker) Task(text string) Task {
	query := security.TruncateString(security.NormalizeWhitespace(text), maxFactCheckQuery)
	return Task{
		Kind: KindFactCheck,
		Key:  query,
		Run: func(ctx context.Context) (Payload, error) {
			return f.search(ctx, query)
		},
	}
}

func (f *FactChecker) search(ctx context.Context, query string) (Payload, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("pageSize", strconv.Itoa(factCheckPageSize))
	if f.apiKey != "" {
		params.Set("key", f.apiKey)
	}

	var resp claimSearchResponse
	if err := f.client.GetJSON(ctx, "/v1alpha1/claims:search?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	out := FactCheck{Query: query, Claims: []Claim{}}
	for _, c := range resp.Claims {
		claim := Claim{Text: c.Text, Claimant: c.Claimant}
		if len(c.ClaimReview) > 0 {
			r := c.ClaimReview[0]
			claim.Rating = r.TextualRating
			claim.Publisher = r.Publisher.Name
			claim.URL = r.URL
		}
		out.Claims = append(out.Claims, claim)
		if len(out.Claims) == factCheckPageSize {
			break
		}
	}
	return out, nil
}
