package entity

import (
	"regexp"
	"strings"

	"github.com/richxcame/scamshield/internal/features"
	"github.com/richxcame/scamshield/internal/intel"
)

// Ref is a normalized entity reference extracted from a scan or report
type Ref struct {
	Type  intel.EntityType `json:"type"`
	Value string           `json:"value"`
}

var (
	hostPattern  = regexp.MustCompile(`(?i)\b(?:https?://)?((?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,24})(?::\d{1,5})?(?:/[^\s"'<>]*)?`)
	emailPattern = regexp.MustCompile(`(?i)\b[a-z0-9._%+-]+@(?:[a-z0-9-]+\.)+[a-z]{2,24}\b`)
)

// TypeForInput maps a scan input type to the entity type of its primary value.
// Free-text messages have no primary entity.
func TypeForInput(inputType string) (intel.EntityType, bool) {
	switch inputType {
	case "website", "url":
		return intel.EntityURL, true
	case "email":
		return intel.EntityEmail, true
	case "phone":
		return intel.EntityPhone, true
	case "crypto":
		return intel.EntityCryptoWallet, true
	case "username":
		return intel.EntityUsername, true
	case "domain":
		return intel.EntityDomain, true
	case "ip":
		return intel.EntityIP, true
	}
	return "", false
}

// Extract pulls the entities of one scan: the primary value mapped to its
// type, domains embedded in free text, and domains mentioned by signals.
// The result is deduplicated by (type, value) in first-seen order.
func Extract(inputType, value string, signals []features.Signal) []Ref {
	var refs refSet

	if t, ok := TypeForInput(inputType); ok {
		refs.add(t, value)
		if t == intel.EntityURL {
			refs.add(intel.EntityDomain, hostOf(value))
		}
	} else {
		refs.addAll(FromText(value))
	}

	for _, s := range signals {
		for _, d := range domainsIn(s.Description) {
			refs.add(intel.EntityDomain, d)
		}
	}
	return refs.list
}

// FromText extracts email addresses and the domains of embedded URLs
func FromText(text string) []Ref {
	var refs refSet
	emails := emailPattern.FindAllString(text, -1)
	for _, e := range emails {
		refs.add(intel.EntityEmail, e)
	}

	stripped := emailPattern.ReplaceAllString(text, " ")
	for _, d := range domainsIn(stripped) {
		refs.add(intel.EntityDomain, d)
	}
	return refs.list
}

func domainsIn(text string) []string {
	var out []string
	for _, m := range hostPattern.FindAllStringSubmatch(text, -1) {
		if d, ok := Normalize(intel.EntityDomain, m[1]); ok {
			out = append(out, d)
		}
	}
	return out
}

type refSet struct {
	seen map[Ref]struct{}
	list []Ref
}

func (s *refSet) add(t intel.EntityType, raw string) {
	v, ok := Normalize(t, raw)
	if !ok {
		return
	}
	r := Ref{Type: t, Value: v}
	if s.seen == nil {
		s.seen = make(map[Ref]struct{})
	}
	if _, dup := s.seen[r]; dup {
		return
	}
	s.seen[r] = struct{}{}
	s.list = append(s.list, r)
}

func (s *refSet) addAll(refs []Ref) {
	for _, r := range refs {
		s.add(r.Type, r.Value)
	}
}

// Dedupe removes repeated (type, value) pairs after normalizing each ref
func Dedupe(refs []Ref) []Ref {
	var s refSet
	s.addAll(refs)
	return s.list
}

func joinRefs(refs []Ref) string {
	parts := make([]string, len(refs))
	for i, r := range refs {
		parts[i] = string(r.Type) + ":" + r.Value
	}
	return strings.Join(parts, ",")
}
