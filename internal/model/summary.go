package model

type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// PRSummary is the normalized output of the AI summarization handler.
// Persisted on the originating pull-request event and rendered into the
// Discord notification.
type PRSummary struct {
	Summary         string     `json:"summary"`
	KeyChanges      []string   `json:"keyChanges"`
	Risks           []string   `json:"risks"`
	Recommendations []string   `json:"recommendations"`
	Complexity      Complexity `json:"complexity"`
}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// IssueTriage is the normalized output of issue categorization.
type IssueTriage struct {
	Category string   `json:"category"` // bug, enhancement, documentation, question, infrastructure
	Severity Severity `json:"severity"`
}
