package features

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/cloudflare/ahocorasick"
)

// SpamThreshold is the score at which text is considered likely spam
const SpamThreshold = 40

// spamCorpusCounts are token frequencies observed in a labelled spam corpus.
// Weights are counts divided by the largest count.
var spamCorpusCounts = map[string]float64{
	"click": 1520, "free": 1430, "urgent": 1180, "winner": 1105, "claim": 1090,
	"prize": 1050, "verify": 980, "account": 910, "refund": 870, "offer": 860,
	"now": 830, "cash": 820, "congratulations": 800, "limited": 760, "suspended": 740,
	"password": 720, "bank": 700, "gift": 690, "reward": 680, "bonus": 650,
	"guaranteed": 640, "won": 630, "card": 610, "act": 600, "immediately": 590,
	"login": 570, "confirm": 560, "expire": 540, "expires": 520, "selected": 510,
	"investment": 500, "bitcoin": 490, "crypto": 480, "wallet": 470, "loan": 460,
	"debt": 450, "credit": 440, "deal": 430, "exclusive": 420, "risk": 410,
	"unsubscribe": 400, "payment": 390, "delivery": 380, "parcel": 370, "fee": 360,
	"tax": 350, "sars": 340, "otp": 330, "pin": 320, "security": 310,
	"alert": 300, "update": 290, "today": 280, "dear": 270, "customer": 260,
	"link": 250, "lottery": 240, "inheritance": 230, "million": 220, "ready": 120,
}

var spamWeights = normalizeCounts(spamCorpusCounts)

// highIntentPhrases are multi-word lures that ask the reader to act
var highIntentPhrases = []string{
	"verify your account", "confirm your identity", "click here", "click the link",
	"act now", "limited time", "claim your", "you have won", "gift card",
	"wire transfer", "seed phrase", "recovery phrase", "send the otp", "share the otp",
	"account will be suspended", "account has been suspended", "unusual activity",
	"pay the fee", "customs fee", "delivery fee", "double your", "guaranteed returns",
	"investment opportunity", "do not share", "final notice",
}

// SpamResult is the keyword-frequency verdict
type SpamResult struct {
	Score        int      `json:"score"` // 0..100
	IsLikelySpam bool     `json:"is_likely_spam"`
	Matches      []string `json:"matches"`
	Phrases      []string `json:"phrases,omitempty"`
	WordCount    int      `json:"word_count"`
	TotalWeight  float64  `json:"total_weight"`
	Density      float64  `json:"density"`
	Signals      []Signal `json:"signals,omitempty"`
}

// Normalized returns the score in [0,1]
func (r SpamResult) Normalized() float64 {
	return float64(r.Score) / 100
}

// SpamScorer scores text against the frequency table and phrase list.
// Safe for concurrent use.
type SpamScorer struct {
	weights map[string]float64
	phrases []string

	mu      sync.Mutex // the matcher keeps per-call state
	matcher *ahocorasick.Matcher
}

// NewSpamScorer builds a scorer over the default table and phrases
func NewSpamScorer() *SpamScorer {
	return &SpamScorer{
		weights: spamWeights,
		phrases: highIntentPhrases,
		matcher: ahocorasick.NewStringMatcher(highIntentPhrases),
	}
}

// Score computes min(100, round(totalWeight*15 + density*200 + matchCount*5))
// where density is distinct matches over word count. Deterministic.
func (s *SpamScorer) Score(text string) SpamResult {
	words := Tokenize(text)
	res := SpamResult{WordCount: len(words), Matches: []string{}}
	if len(words) == 0 {
		return res
	}

	distinct := make(map[string]struct{})
	for _, w := range words {
		if weight, ok := s.weights[w]; ok {
			res.TotalWeight += weight
			distinct[w] = struct{}{}
		}
	}
	for w := range distinct {
		res.Matches = append(res.Matches, w)
	}
	sort.Strings(res.Matches)

	matchCount := float64(len(distinct))
	res.Density = matchCount / float64(len(words))
	res.Score = int(math.Min(100, math.Round(res.TotalWeight*15+res.Density*200+matchCount*5)))
	res.IsLikelySpam = res.Score >= SpamThreshold

	res.Phrases = s.matchPhrases(strings.Join(words, " "))

	if res.IsLikelySpam {
		res.Signals = append(res.Signals, Signal{
			Source:      "spam_keywords",
			Name:        "spam_language",
			Description: fmt.Sprintf("text uses common scam vocabulary (%s)", strings.Join(res.Matches, ", ")),
			Weight:      25,
		})
	}
	for _, p := range res.Phrases {
		res.Signals = append(res.Signals, Signal{
			Source:      "spam_keywords",
			Name:        "high_intent_phrase",
			Description: fmt.Sprintf("text contains pressure phrase %q", p),
			Weight:      5,
		})
	}
	return res
}

func (s *SpamScorer) matchPhrases(normalized string) []string {
	s.mu.Lock()
	hits := s.matcher.Match([]byte(normalized))
	s.mu.Unlock()

	seen := make(map[int]struct{}, len(hits))
	var out []string
	for _, h := range hits {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, s.phrases[h])
	}
	sort.Strings(out)
	return out
}

// Tokenize lowercases text and splits it into alphanumeric words
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalizeCounts(counts map[string]float64) map[string]float64 {
	var top float64
	for _, c := range counts {
		if c > top {
			top = c
		}
	}
	out := make(map[string]float64, len(counts))
	for w, c := range counts {
		out[w] = c / top
	}
	return out
}
