package features

// Signal is one piece of human-readable evidence. Weight is the trust-score
// penalty it carries; zero or negative weights are informational only.
type Signal struct {
	Source      string  `json:"source"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
}
