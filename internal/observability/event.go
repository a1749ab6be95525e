// Package observability derives dashboard data from the chat transcript log.
// It normalizes heterogeneous historical record shapes into canonical events,
// buckets them into time windows, and computes the aggregate statistics the
// console dashboard charts consume.
package observability

import "time"

// Route labels which optional assistance contributed to an answer.
type Route string

const (
	RouteLLMOnly     Route = "LLM_ONLY"
	RouteLLMDocs     Route = "LLM_DOCS"
	RouteLLMRisk     Route = "LLM_RISK"
	RouteLLMDocsRisk Route = "LLM_DOCS_RISK"
)

// DocType is the document kind inferred from a citation's filename suffix.
type DocType string

const (
	DocTypePDF DocType = "pdf"
	DocTypeCSV DocType = "csv"
	DocTypeDoc DocType = "doc"
	DocTypeTxt DocType = "txt"
)

// HelpUsed records which helpers participated in an interaction.
type HelpUsed struct {
	RAG  bool `json:"rag"`
	Risk bool `json:"risk"`
}

// Citation is one document reference attached to an answer.
type Citation struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Type  DocType `json:"type"`
}

// Event is the canonical form of one transcript record. It is immutable once
// built; optional numeric fields are nil when the source record carried no
// usable value, never NaN.
type Event struct {
	ID        string
	TS        time.Time
	Route     Route
	Query     string
	Latency   *float64 // seconds
	TokensIn  *float64
	TokensOut *float64
	CostUSD   *float64
	Model     string
	Citations []Citation
	HelpUsed  HelpUsed

	DocIDs        []string
	RiskSignature string
	PlannerConf   *float64
	RAGConf       *float64
	Disclosure    string
}

// RouteFor maps helper usage to the categorical route label.
func RouteFor(h HelpUsed) Route {
	switch {
	case h.RAG && h.Risk:
		return RouteLLMDocsRisk
	case h.RAG:
		return RouteLLMDocs
	case h.Risk:
		return RouteLLMRisk
	default:
		return RouteLLMOnly
	}
}

// TokenSum returns tokensIn+tokensOut and whether the event carried at least
// one token count.
func (e *Event) TokenSum() (float64, bool) {
	if e.TokensIn == nil && e.TokensOut == nil {
		return 0, false
	}
	var sum float64
	if e.TokensIn != nil {
		sum += *e.TokensIn
	}
	if e.TokensOut != nil {
		sum += *e.TokensOut
	}
	return sum, true
}
