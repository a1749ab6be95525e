package observability

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/samber/lo"
)

// Kpi is a named summary statistic with a short trailing sparkline.
type Kpi struct {
	Label    string    `json:"label"`
	Value    float64   `json:"value"`
	DeltaPct *float64  `json:"deltaPct,omitempty"`
	Spark    []float64 `json:"spark"`
	Helper   string    `json:"helper,omitempty"`
}

// ModelStat is the per-model rollup shown in the models table.
type ModelStat struct {
	Model     string  `json:"model"`
	Runs      int     `json:"runs"`
	P50       float64 `json:"p50"`
	P95       float64 `json:"p95"`
	AvgTokens float64 `json:"avgTokens"`
	DocsShare float64 `json:"docsShare"`
	RiskShare float64 `json:"riskShare"`
	FirstSeen string  `json:"firstSeen"`
	LastSeen  string  `json:"lastSeen"`
}

// CitationDoc counts how often a document was cited across the sample.
type CitationDoc struct {
	Title    string  `json:"title"`
	Type     DocType `json:"type"`
	Count    int     `json:"count"`
	LastUsed string  `json:"lastUsed,omitempty"`
}

// RunDetail is one flattened row in the recent-runs table. The transcript
// stores requests and telemetry, not response bodies, so Answer is a fixed
// placeholder.
type RunDetail struct {
	ID            string  `json:"id"`
	TS            string  `json:"ts"`
	Route         Route   `json:"route"`
	Model         string  `json:"model"`
	Query         string  `json:"query"`
	Latency       float64 `json:"latency"`
	Tokens        float64 `json:"tokens"`
	Citations     int     `json:"citations"`
	RiskSignature string  `json:"riskSignature,omitempty"`
	Answer        string  `json:"answer"`
}

const (
	sparkPoints      = 12
	topDocumentCount = 12
	recentRunCount   = 20

	answerPlaceholder = "Response text is not captured in the transcript export."
)

// BuildKpis computes the stat-card metrics over the filtered event set. A
// metric whose underlying sample is empty is omitted entirely rather than
// reported as zero.
func BuildKpis(events []Event) []Kpi {
	kpis := make([]Kpi, 0, 6)
	total := len(events)
	if total == 0 {
		return kpis
	}

	counts := make([]float64, total)
	for i := range counts {
		counts[i] = float64(i + 1)
	}
	kpis = append(kpis, Kpi{
		Label: "Interactions",
		Value: float64(total),
		Spark: sparkTail(counts),
	})

	latencies := collect(events, func(e Event) *float64 { return e.Latency })
	if p95 := Percentile(latencies, 0.95); p95 != nil {
		k := Kpi{
			Label:    "Latency p95",
			Value:    *p95,
			DeltaPct: deltaPct(latencies),
			Spark:    sparkTail(latencies),
		}
		if avg := Average(latencies); avg != nil {
			k.Helper = fmt.Sprintf("avg %.2fs", *avg)
		}
		kpis = append(kpis, k)
	}

	var tokenSums []float64
	for i := range events {
		if sum, ok := events[i].TokenSum(); ok {
			tokenSums = append(tokenSums, sum)
		}
	}
	if avg := Average(tokenSums); avg != nil {
		kpis = append(kpis, Kpi{
			Label:    "Avg tokens",
			Value:    *avg,
			DeltaPct: deltaPct(tokenSums),
			Spark:    sparkTail(tokenSums),
		})
	}

	planner := collect(events, func(e Event) *float64 { return e.PlannerConf })
	scores := lo.Map(planner, func(v float64, _ int) float64 { return v * 100 })
	if avg := Average(scores); avg != nil {
		kpis = append(kpis, Kpi{
			Label:    "Planner score",
			Value:    *avg,
			DeltaPct: deltaPct(scores),
			Spark:    sparkTail(scores),
		})
	}

	kpis = append(kpis, shareKpi("Docs helper share", events, func(e Event) bool { return e.HelpUsed.RAG }))
	kpis = append(kpis, shareKpi("Risk helper share", events, func(e Event) bool { return e.HelpUsed.Risk }))
	return kpis
}

func shareKpi(label string, events []Event, used func(Event) bool) Kpi {
	flags := lo.Map(events, func(e Event, _ int) float64 {
		if used(e) {
			return 100
		}
		return 0
	})
	count := lo.CountBy(events, used)
	return Kpi{
		Label:  label,
		Value:  float64(count) / float64(len(events)) * 100,
		Spark:  sparkTail(flags),
		Helper: fmt.Sprintf("of %d interactions", len(events)),
	}
}

// BuildModelStats groups events by normalized model id. First/last-seen are
// running min/max over the timestamps observed for the model.
func BuildModelStats(events []Event) []ModelStat {
	groups := lo.GroupBy(events, func(e Event) string { return e.Model })

	stats := make([]ModelStat, 0, len(groups))
	for model, group := range groups {
		latencies := collect(group, func(e Event) *float64 { return e.Latency })
		var tokenSums []float64
		first, last := group[0].TS, group[0].TS
		docs, risk := 0, 0
		for i := range group {
			if sum, ok := group[i].TokenSum(); ok {
				tokenSums = append(tokenSums, sum)
			}
			if group[i].TS.Before(first) {
				first = group[i].TS
			}
			if group[i].TS.After(last) {
				last = group[i].TS
			}
			if group[i].HelpUsed.RAG {
				docs++
			}
			if group[i].HelpUsed.Risk {
				risk++
			}
		}

		st := ModelStat{
			Model:     model,
			Runs:      len(group),
			DocsShare: float64(docs) / float64(len(group)) * 100,
			RiskShare: float64(risk) / float64(len(group)) * 100,
			FirstSeen: first.UTC().Format(time.RFC3339),
			LastSeen:  last.UTC().Format(time.RFC3339),
		}
		if p50 := Percentile(latencies, 0.5); p50 != nil {
			st.P50 = *p50
		}
		if p95 := Percentile(latencies, 0.95); p95 != nil {
			st.P95 = *p95
		}
		if avg := Average(tokenSums); avg != nil {
			st.AvgTokens = *avg
		}
		stats = append(stats, st)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Runs != stats[j].Runs {
			return stats[i].Runs > stats[j].Runs
		}
		return stats[i].Model < stats[j].Model
	})
	return stats
}

// BuildDocuments counts citation occurrences by resolved document title and
// returns the top entries by descending count, ties kept in first-seen order.
func BuildDocuments(events []Event) []CitationDoc {
	index := make(map[string]int)
	var docs []CitationDoc
	for i := range events {
		ts := events[i].TS.UTC().Format(time.RFC3339)
		for _, c := range events[i].Citations {
			at, seen := index[c.Title]
			if !seen {
				index[c.Title] = len(docs)
				docs = append(docs, CitationDoc{Title: c.Title, Type: c.Type})
				at = index[c.Title]
			}
			docs[at].Count++
			if ts > docs[at].LastUsed {
				docs[at].LastUsed = ts
			}
		}
	}

	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Count > docs[j].Count })
	if len(docs) > topDocumentCount {
		docs = docs[:topDocumentCount]
	}
	return docs
}

// BuildRuns maps the most recent events, newest first, into flat table rows.
func BuildRuns(events []Event, limit int) []RunDetail {
	if limit <= 0 {
		limit = recentRunCount
	}

	// Reverse before the stable sort so same-timestamp events keep
	// latest-line-first order.
	ordered := make([]Event, len(events))
	for i := range events {
		ordered[len(events)-1-i] = events[i]
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].TS.After(ordered[j].TS) })
	if len(ordered) > limit {
		ordered = ordered[:limit]
	}

	runs := make([]RunDetail, 0, len(ordered))
	for i := range ordered {
		e := &ordered[i]
		run := RunDetail{
			ID:            e.ID,
			TS:            e.TS.UTC().Format(time.RFC3339),
			Route:         e.Route,
			Model:         e.Model,
			Query:         e.Query,
			Citations:     len(e.Citations),
			RiskSignature: e.RiskSignature,
			Answer:        answerPlaceholder,
		}
		if e.Latency != nil {
			run.Latency = math.Round(*e.Latency*100) / 100
		}
		if sum, ok := e.TokenSum(); ok {
			run.Tokens = sum
		}
		runs = append(runs, run)
	}
	return runs
}

func collect(events []Event, pick func(Event) *float64) []float64 {
	var out []float64
	for i := range events {
		if v := pick(events[i]); v != nil {
			out = append(out, *v)
		}
	}
	return out
}

func sparkTail(values []float64) []float64 {
	if len(values) > sparkPoints {
		values = values[len(values)-sparkPoints:]
	}
	return append([]float64(nil), values...)
}

// deltaPct compares the first-half and second-half averages of the sample.
// Samples under 4 points carry no trend.
func deltaPct(values []float64) *float64 {
	if len(values) < 4 {
		return nil
	}
	half := len(values) / 2
	first := Average(values[:half])
	second := Average(values[half:])
	if first == nil || second == nil || *first == 0 {
		return nil
	}
	pct := (*second - *first) / *first * 100
	return &pct
}
