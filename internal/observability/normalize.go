package observability

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// The transcript log spans several schema revisions, so every logical
// attribute is resolved through an ordered list of (path, scale) attempts
// against the raw record, stopping at the first usable value.
type numberLookup struct {
	path  string
	scale float64
}

var (
	latencyLookups = []numberLookup{
		{path: "metrics.latency_ms", scale: 1.0 / 1000},
		{path: "telemetry.latency_ms", scale: 1.0 / 1000},
		{path: "timings.total_s", scale: 1},
	}
	tokensInLookups = []numberLookup{
		{path: "metrics.tokens_in", scale: 1},
		{path: "telemetry.tokens_in", scale: 1},
		{path: "usage.prompt_tokens", scale: 1},
	}
	tokensOutLookups = []numberLookup{
		{path: "metrics.tokens_out", scale: 1},
		{path: "telemetry.tokens_out", scale: 1},
		{path: "usage.completion_tokens", scale: 1},
	}
	costLookups = []numberLookup{
		{path: "metrics.cost_usd", scale: 1},
		{path: "telemetry.cost_usd", scale: 1},
	}
	plannerConfLookups = []numberLookup{
		{path: "telemetry.planner_conf", scale: 1},
		{path: "telemetry.plannerConf", scale: 1},
	}
	ragConfLookups = []numberLookup{
		{path: "telemetry.rag_conf", scale: 1},
		{path: "telemetry.ragConf", scale: 1},
	}

	timestampPaths = []string{"ts", "timestamp"}
	modelPaths     = []string{"metrics.model", "telemetry.model", "model"}
	queryPaths     = []string{"query", "prompt", "message"}
	routePaths     = []string{"route", "mode"}

	citationTitlePaths = []string{"metadata.title", "metadata.file_name", "metadata.filename", "source", "doc_id"}
	citationIDPaths    = []string{"doc_id", "id", "source"}
)

const (
	unknownModel     = "unknown"
	unknownDocument  = "Unknown document"
	missingQueryText = "(query unavailable)"
)

// ParseLines normalizes raw transcript lines into events. Lines that are not
// valid JSON objects are dropped and counted, never aborting the batch. ref
// is substituted for missing or unparseable timestamps so repeated builds
// over the same file stay deterministic.
func ParseLines(lines []string, ref time.Time) ([]Event, int) {
	events := make([]Event, 0, len(lines))
	dropped := 0
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !gjson.Valid(trimmed) {
			dropped++
			continue
		}
		raw := gjson.Parse(trimmed)
		if !raw.IsObject() {
			dropped++
			continue
		}
		events = append(events, NormalizeRecord(raw, i, ref))
	}
	return events, dropped
}

// NormalizeRecord converts one parsed transcript record into an Event. It
// never fails: wrong-typed fields are treated as absent and resolved to the
// canonical absence value for the attribute.
func NormalizeRecord(raw gjson.Result, pos int, ref time.Time) Event {
	ev := Event{
		ID:    fmt.Sprintf("run-%d", pos),
		TS:    ref,
		Query: missingQueryText,
		Model: unknownModel,
	}

	for _, path := range timestampPaths {
		if ts, ok := parseTimestamp(raw.Get(path)); ok {
			ev.TS = ts
			break
		}
	}

	if q := firstString(raw, queryPaths); q != "" {
		ev.Query = q
	}
	if m := firstString(raw, modelPaths); m != "" {
		ev.Model = m
	}

	ev.Latency = firstNumber(raw, latencyLookups)
	ev.TokensIn = firstNumber(raw, tokensInLookups)
	ev.TokensOut = firstNumber(raw, tokensOutLookups)
	if ev.TokensIn == nil && ev.TokensOut == nil {
		// Oldest schema revision only recorded a combined count.
		ev.TokensIn = firstNumber(raw, []numberLookup{{path: "usage.total_tokens", scale: 1}})
	}
	ev.CostUSD = nonNegative(firstNumber(raw, costLookups))
	ev.TokensIn = nonNegative(ev.TokensIn)
	ev.TokensOut = nonNegative(ev.TokensOut)

	ev.HelpUsed = resolveHelpUsed(raw)
	ev.Route = RouteFor(ev.HelpUsed)

	ev.Citations = parseCitations(raw.Get("citations"))

	ev.DocIDs = stringList(raw.Get("telemetry.doc_ids"))
	if len(ev.DocIDs) == 0 {
		for _, c := range ev.Citations {
			if c.ID != "" {
				ev.DocIDs = append(ev.DocIDs, c.ID)
			}
		}
	}
	ev.RiskSignature = firstString(raw, []string{"telemetry.risk_signature", "telemetry.riskSignature"})
	ev.PlannerConf = firstNumber(raw, plannerConfLookups)
	ev.RAGConf = firstNumber(raw, ragConfLookups)
	ev.Disclosure = firstString(raw, []string{"telemetry.disclosure"})

	return ev
}

func resolveHelpUsed(raw gjson.Result) HelpUsed {
	if help := raw.Get("telemetry.helpUsed"); help.IsObject() {
		return HelpUsed{
			RAG:  help.Get("rag").Type == gjson.True,
			Risk: help.Get("risk").Type == gjson.True,
		}
	}

	label := strings.ToUpper(firstString(raw, routePaths))
	return HelpUsed{
		RAG:  strings.Contains(label, "DOCS") || strings.Contains(label, "RAG"),
		Risk: strings.Contains(label, "RISK"),
	}
}

func parseCitations(arr gjson.Result) []Citation {
	if !arr.IsArray() {
		return nil
	}
	var out []Citation
	arr.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		title := firstString(item, citationTitlePaths)
		if title == "" {
			title = unknownDocument
		}
		out = append(out, Citation{
			ID:    firstString(item, citationIDPaths),
			Title: title,
			Type:  docTypeFor(title),
		})
		return true
	})
	return out
}

func docTypeFor(name string) DocType {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return DocTypePDF
	case strings.HasSuffix(lower, ".csv"):
		return DocTypeCSV
	case strings.HasSuffix(lower, ".doc"), strings.HasSuffix(lower, ".docx"):
		return DocTypeDoc
	default:
		return DocTypeTxt
	}
}

// firstNumber resolves the first lookup whose value coerces to a finite
// number. Both native numbers and numeric strings are accepted.
func firstNumber(raw gjson.Result, lookups []numberLookup) *float64 {
	for _, l := range lookups {
		if v := coerceNumber(raw.Get(l.path)); v != nil {
			scaled := *v * l.scale
			return &scaled
		}
	}
	return nil
}

func coerceNumber(v gjson.Result) *float64 {
	switch v.Type {
	case gjson.Number:
		f := v.Num
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return &f
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return &f
	default:
		return nil
	}
}

func nonNegative(v *float64) *float64 {
	if v == nil || *v < 0 {
		return nil
	}
	return v
}

func firstString(raw gjson.Result, paths []string) string {
	for _, path := range paths {
		if v := raw.Get(path); v.Type == gjson.String {
			if s := strings.TrimSpace(v.Str); s != "" {
				return s
			}
		}
	}
	return ""
}

func stringList(arr gjson.Result) []string {
	if !arr.IsArray() {
		return nil
	}
	var out []string
	arr.ForEach(func(_, item gjson.Result) bool {
		if item.Type == gjson.String && strings.TrimSpace(item.Str) != "" {
			out = append(out, item.Str)
		}
		return true
	})
	return out
}

func parseTimestamp(v gjson.Result) (time.Time, bool) {
	switch v.Type {
	case gjson.Number:
		// Unix seconds, same plausibility window ParseTimeParam accepts.
		sec := int64(v.Num)
		if sec > 1000000000 && sec < 9999999999 {
			return time.Unix(sec, 0).UTC(), true
		}
		return time.Time{}, false
	case gjson.String:
		s := strings.TrimSpace(v.Str)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range []string{
			time.RFC3339Nano,
			time.RFC3339,
			"2006-01-02T15:04:05.000Z",
			"2006-01-02T15:04:05Z",
			"2006-01-02 15:04:05",
		} {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}
