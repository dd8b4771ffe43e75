package features

import (
	"fmt"
	"math"
	"strings"
	"unicode"
)

// BotThreshold is the score at which a username is considered automated
const BotThreshold = 0.5

var botKeywords = []string{"bot", "official", "support", "admin", "helpdesk", "giveaway", "crypto", "invest", "promo"}

// BotResult rates how likely a username belongs to an automated or throwaway account
type BotResult struct {
	Score       float64  `json:"score"` // 0..1
	IsLikelyBot bool     `json:"is_likely_bot"`
	Reasons     []string `json:"reasons"`
	Signals     []Signal `json:"signals,omitempty"`
}

// ScoreUsername applies additive heuristics capped at 1
func ScoreUsername(username string) BotResult {
	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
	res := BotResult{Reasons: []string{}}
	if name == "" {
		return res
	}

	add := func(points float64, reason string) {
		res.Score += points
		res.Reasons = append(res.Reasons, reason)
	}

	runes := []rune(name)
	digits, separators := 0, 0
	for _, r := range runes {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '_' || r == '.' || r == '-':
			separators++
		}
	}

	if float64(digits)/float64(len(runes)) > 0.3 {
		add(0.3, "high digit ratio")
	}
	if trailingDigits(runes) >= 4 {
		add(0.25, "long trailing number")
	}
	if len(runes) >= 10 && shannonEntropy(name) > 3.5 {
		add(0.2, "random-looking characters")
	}
	if len(runes) > 15 {
		add(0.1, "unusually long handle")
	}
	if separators >= 2 {
		add(0.1, "many separators")
	}
	for _, kw := range botKeywords {
		if strings.Contains(name, kw) {
			add(0.2, fmt.Sprintf("impersonation keyword %q", kw))
			break
		}
	}

	res.Score = math.Round(math.Min(1, res.Score)*1000) / 1000
	res.IsLikelyBot = res.Score >= BotThreshold
	if res.IsLikelyBot {
		res.Signals = append(res.Signals, Signal{
			Source:      "bot_detection",
			Name:        "bot_like_username",
			Description: fmt.Sprintf("username %s looks automated (%s)", name, strings.Join(res.Reasons, ", ")),
			Weight:      15,
		})
	}
	return res
}

func trailingDigits(runes []rune) int {
	n := 0
	for i := len(runes) - 1; i >= 0 && unicode.IsDigit(runes[i]); i-- {
		n++
	}
	return n
}

func shannonEntropy(s string) float64 {
	freq := make(map[rune]float64)
	total := 0.0
	for _, r := range s {
		freq[r]++
		total++
	}
	var h float64
	for _, c := range freq {
		p := c / total
		h -= p * math.Log2(p)
	}
	return h
}
