package features

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// MinAITextLength is the shortest text, in runes, the AI scorers evaluate
const MinAITextLength = 80

// AI-text labels. LabelTooShort means the signal is absent and carries no
// evidence for either class.
const (
	LabelTooShort    = "too_short"
	LabelLikelyAI    = "likely_ai"
	LabelUncertain   = "uncertain"
	LabelLikelyHuman = "likely_human"
)

// AIResult is the output of an AI-text detector
type AIResult struct {
	Probability float64 `json:"probability"`
	Label       string  `json:"label"`
	Source      string  `json:"source"`
}

// Absent reports whether the result should be ignored by aggregation
func (r AIResult) Absent() bool {
	return r.Label == LabelTooShort || r.Label == ""
}

// Signals returns trust penalties for a likely AI-written text
func (r AIResult) Signals() []Signal {
	if r.Label != LabelLikelyAI {
		return nil
	}
	return []Signal{{
		Source:      "ai_text",
		Name:        "machine_generated",
		Description: fmt.Sprintf("text reads as machine generated (p=%.2f)", r.Probability),
		Weight:      10,
	}}
}

// AIDetector estimates whether text was machine generated
type AIDetector interface {
	Detect(ctx context.Context, text string) (AIResult, error)
}

var aiMarkerPhrases = []string{
	"as an ai", "delve", "furthermore", "moreover", "in conclusion", "it is important to note",
	"additionally", "rest assured", "kindly", "i hope this message finds you well",
	"please be advised", "we regret to inform", "at your earliest convenience",
}

var contractionMarkers = []string{"n't", "'s", "'re", "'ll", "'ve", "'m", "'d"}

// HeuristicDetector is a stylometric AI-text scorer. It looks at sentence
// length uniformity, formulaic marker phrases and the absence of contractions.
type HeuristicDetector struct{}

// NewHeuristicDetector creates the built-in detector
func NewHeuristicDetector() *HeuristicDetector {
	return &HeuristicDetector{}
}

// Detect never fails
func (HeuristicDetector) Detect(_ context.Context, text string) (AIResult, error) {
	return heuristicAI(text), nil
}

func heuristicAI(text string) AIResult {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < MinAITextLength {
		return AIResult{Label: LabelTooShort, Source: "heuristic"}
	}
	lower := strings.ToLower(strings.ReplaceAll(text, "’", "'"))

	burst := 0.5
	if lengths := sentenceLengths(text); len(lengths) >= 2 {
		mean, sd := meanStd(lengths)
		if mean > 0 {
			burst = clamp01(1 - (sd/mean)/0.6)
		}
	}

	markers := 0
	for _, m := range aiMarkerPhrases {
		if strings.Contains(lower, m) {
			markers++
		}
	}
	markerScore := math.Min(1, float64(markers)/3)

	contraction := 0.0
	hasContraction := false
	for _, c := range contractionMarkers {
		if strings.Contains(lower, c) {
			hasContraction = true
			break
		}
	}
	if !hasContraction {
		contraction = 0.5
		if len(Tokenize(text)) > 40 {
			contraction = 1
		}
	}

	p := clamp01(0.15 + 0.35*burst + 0.35*markerScore + 0.15*contraction)
	p = math.Round(p*1000) / 1000
	return AIResult{Probability: p, Label: labelFor(p), Source: "heuristic"}
}

func labelFor(p float64) string {
	switch {
	case p >= 0.7:
		return LabelLikelyAI
	case p <= 0.35:
		return LabelLikelyHuman
	default:
		return LabelUncertain
	}
}

func sentenceLengths(text string) []float64 {
	sentences := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
	var out []float64
	for _, s := range sentences {
		if n := len(Tokenize(s)); n > 0 {
			out = append(out, float64(n))
		}
	}
	return out
}

func meanStd(xs []float64) (float64, float64) {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var ss float64
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(ss / float64(len(xs)))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
