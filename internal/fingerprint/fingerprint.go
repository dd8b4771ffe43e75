package fingerprint

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/spaolacci/murmur3"
)

const (
	shingleSize = 3
	// MinWords is the shortest normalized content that can be fingerprinted
	MinWords = 4
)

var (
	emailToken = regexp.MustCompile(`[a-z0-9._%+-]+@(?:[a-z0-9-]+\.)+[a-z]{2,24}`)
	urlToken   = regexp.MustCompile(`(?:https?://)?(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,24}(?::\d{1,5})?(?:/[^\s]*)?`)
	phoneToken = regexp.MustCompile(`\+?\d[\d\s().-]{5,}\d`)
)

var leet = map[rune]rune{'0': 'o', '1': 'i', '3': 'e', '4': 'a', '5': 's', '7': 't', '@': 'a', '$': 's'}

// Normalize case-folds content, replaces links, emails and phone numbers
// with placeholder words, undoes light leetspeak and collapses punctuation.
func Normalize(content string) []string {
	s := strings.ToLower(content)
	s = emailToken.ReplaceAllString(s, " emailaddr ")
	s = urlToken.ReplaceAllString(s, " link ")
	s = phoneToken.ReplaceAllString(s, " phonenum ")

	var words []string
	for _, raw := range strings.Fields(s) {
		raw = deobfuscate(raw)
		words = append(words, strings.FieldsFunc(raw, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})...)
	}
	return words
}

// deobfuscate maps digits and symbols back to letters in words that are
// mostly letters, so "fr33" reads as "free" while "r100" stays intact.
func deobfuscate(word string) string {
	letters, subs := 0, 0
	for _, r := range word {
		if unicode.IsLetter(r) {
			letters++
		} else if _, ok := leet[r]; ok {
			subs++
		}
	}
	if subs == 0 || letters < subs {
		return word
	}
	return strings.Map(func(r rune) rune {
		if m, ok := leet[r]; ok {
			return m
		}
		return r
	}, word)
}

// Fingerprint is the shingle set of one text plus its SimHash
type Fingerprint struct {
	Shingles map[uint64]struct{}
	SimHash  uint64
}

// Compute fingerprints content. ok is false when content is too short.
func Compute(content string) (Fingerprint, bool) {
	words := Normalize(content)
	if len(words) < MinWords {
		return Fingerprint{}, false
	}

	fp := Fingerprint{Shingles: make(map[uint64]struct{}, len(words))}
	for i := 0; i+shingleSize <= len(words); i++ {
		h := murmur3.Sum64([]byte(strings.Join(words[i:i+shingleSize], " ")))
		fp.Shingles[h] = struct{}{}
	}
	fp.SimHash = simHash(fp.Shingles)
	return fp, true
}

// Hex renders the SimHash
func (f Fingerprint) Hex() string {
	return fmt.Sprintf("%016x", f.SimHash)
}

// Similarity is max(Jaccard, 0.9 x containment of template in content).
// Containment lets a message that embeds a whole template in extra text still match.
func Similarity(content, template Fingerprint) float64 {
	if len(content.Shingles) == 0 || len(template.Shingles) == 0 {
		return 0
	}
	small, large := content.Shingles, template.Shingles
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for h := range small {
		if _, ok := large[h]; ok {
			inter++
		}
	}
	union := len(content.Shingles) + len(template.Shingles) - inter
	jaccard := float64(inter) / float64(union)
	containment := float64(inter) / float64(len(template.Shingles))
	if c := 0.9 * containment; c > jaccard {
		return c
	}
	return jaccard
}

func simHash(shingles map[uint64]struct{}) uint64 {
	var acc [64]int
	for h := range shingles {
		for i := 0; i < 64; i++ {
			if h&(1<<uint(i)) != 0 {
				acc[i]++
			} else {
				acc[i]--
			}
		}
	}
	var out uint64
	for i, v := range acc {
		if v > 0 {
			out |= 1 << uint(i)
		}
	}
	return out
}
