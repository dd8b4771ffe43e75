package decay

// Confidence is a categorical evidence level
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Evidence counts independent sources backing a verdict
type Evidence struct {
	FeedHits            int `json:"feed_hits"`
	RecentReports       int `json:"recent_reports"`
	InstitutionalEvents int `json:"institutional_events"`
	HighIntentChecks    int `json:"high_intent_checks"`
}

// ComputeConfidence buckets evidence. High is checked before medium.
func ComputeConfidence(ev Evidence) Confidence {
	if ev.FeedHits >= 2 || ev.RecentReports >= 3 || ev.InstitutionalEvents > 0 {
		return ConfidenceHigh
	}
	if ev.FeedHits >= 1 || ev.HighIntentChecks >= 3 {
		return ConfidenceMedium
	}
	return ConfidenceLow
}
