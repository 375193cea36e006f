package resolver

// Result is the outcome of resolving a free-text reference against a bounded
// candidate set. Position is 1-based within the set the resolution ran
// against; it is zero when unresolved.
type Result struct {
	Resolved          bool
	Position          int
	ArticleID         string
	Confidence        float64
	Reason            string
	NeedsConfirmation bool
}

type oracleResponse struct {
	Resolved   bool     `json:"resolved"`
	Position   *int     `json:"position"`
	Confidence *float64 `json:"confidence"`
	Reason     string   `json:"reason"`
}

func (r oracleResponse) confidence() float64 {
	if r.Confidence == nil || *r.Confidence < 0 || *r.Confidence > 1 {
		return 0
	}
	return *r.Confidence
}
