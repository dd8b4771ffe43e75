package features

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/richxcame/scamshield/pkg/httpclient"
	"github.com/richxcame/scamshield/pkg/logger"
	"github.com/richxcame/scamshield/pkg/resilience"
	"go.uber.org/zap"
)

type detectRequest struct {
	Text string `json:"text"`
}

type detectResponse struct {
	Probability float64 `json:"probability"`
	Label       string  `json:"label"`
}

// RemoteAIDetector asks an HTTP classifier and falls back to another
// detector when the classifier fails or its breaker is open.
type RemoteAIDetector struct {
	client   *httpclient.Client
	breaker  *resilience.CircuitBreaker
	fallback AIDetector
}

// NewRemoteAIDetector creates a detector calling POST {baseURL}/v1/detect
func NewRemoteAIDetector(baseURL string, timeout time.Duration, fallback AIDetector) *RemoteAIDetector {
	if fallback == nil {
		fallback = NewHeuristicDetector()
	}
	breaker := resilience.NewCircuitBreaker(
		resilience.UpstreamSettings("ai-detector"),
		resilience.Degraded("ai-detector"),
	)
	client := httpclient.NewClient(strings.TrimSuffix(baseURL, "/"), timeout).With(
		httpclient.WithDefaultRetry(),
		httpclient.WithBreaker(breaker),
	)
	return &RemoteAIDetector{client: client, breaker: breaker, fallback: fallback}
}

// Detect returns the remote verdict, or the fallback's on any failure
func (d *RemoteAIDetector) Detect(ctx context.Context, text string) (AIResult, error) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < MinAITextLength {
		return AIResult{Label: LabelTooShort, Source: "remote"}, nil
	}

	res, err := d.remote(ctx, text)
	if err == nil {
		return res, nil
	}

	logger.WithContext(ctx).Warn("ai detector unavailable, using fallback",
		zap.String("breaker_state", d.breaker.State().String()),
		zap.Error(err),
	)
	return d.fallback.Detect(ctx, text)
}

func (d *RemoteAIDetector) remote(ctx context.Context, text string) (AIResult, error) {
	var resp detectResponse
	if err := d.client.PostJSON(ctx, "/v1/detect", detectRequest{Text: text}, nil, &resp); err != nil {
		return AIResult{}, err
	}
	if resp.Probability < 0 || resp.Probability > 1 {
		return AIResult{}, fmt.Errorf("ai detector returned probability %v outside [0,1]", resp.Probability)
	}

	label := resp.Label
	switch label {
	case LabelLikelyAI, LabelLikelyHuman, LabelUncertain:
	default:
		label = labelFor(resp.Probability)
	}
	return AIResult{Probability: resp.Probability, Label: label, Source: "remote"}, nil
}
