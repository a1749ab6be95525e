package observability

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const maxScanLines = 500

// Query selects the event window for one snapshot build. Tenant is echoed
// back but does not partition the transcript; the log is written unpartitioned
// by the chat proxy.
type Query struct {
	Tenant        string
	From          time.Time
	To            time.Time
	BucketMinutes int
	Limit         int
}

func (q *Query) applyDefaults(now time.Time) {
	if q.To.IsZero() {
		q.To = now
	}
	if q.From.IsZero() {
		q.From = q.To.Add(-24 * time.Hour)
	}
	if q.BucketMinutes <= 0 {
		q.BucketMinutes = 5
	}
	if q.Limit <= 0 {
		q.Limit = 1000
	}
}

// CacheKey identifies a query for the snapshot cache.
func (q Query) CacheKey() string {
	return strings.Join([]string{
		q.Tenant,
		q.From.UTC().Format(time.RFC3339Nano),
		q.To.UTC().Format(time.RFC3339Nano),
		strconv.Itoa(q.BucketMinutes),
		strconv.Itoa(q.Limit),
	}, "|")
}

// Snapshot is the full dashboard payload. Collections are always present,
// empty rather than absent when there is no data.
type Snapshot struct {
	GeneratedAt       string        `json:"generatedAt"`
	Tenant            string        `json:"tenant"`
	From              string        `json:"from"`
	To                string        `json:"to"`
	BucketMinutes     int           `json:"bucket"`
	TotalInteractions int           `json:"totalInteractions"`
	DroppedLines      int           `json:"droppedLines"`
	Kpis              []Kpi         `json:"kpis"`
	Buckets           []TimeBucket  `json:"buckets"`
	Models            []ModelStat   `json:"models"`
	Documents         []CitationDoc `json:"documents"`
	Runs              []RunDetail   `json:"runs"`
}

// TailReader supplies the most recent transcript lines.
type TailReader interface {
	ReadTail(n int) ([]string, error)
}

// Builder derives snapshots from the transcript log. It holds no aggregate
// state; every Build re-reads and re-derives everything.
type Builder struct {
	tail TailReader
}

func NewBuilder(tail TailReader) *Builder {
	return &Builder{tail: tail}
}

// Build runs the full pipeline: tail scan, normalize, time filter, bucket,
// aggregate. Only the transcript read can fail; everything downstream is
// best-effort per record.
func (b *Builder) Build(q Query, now time.Time) (*Snapshot, error) {
	q.applyDefaults(now)

	scan := q.Limit
	if scan > maxScanLines {
		scan = maxScanLines
	}
	lines, err := b.tail.ReadTail(scan)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	// Records without a parseable timestamp resolve to the window's upper
	// bound, keeping rebuilds over an unchanged file deterministic.
	events, dropped := ParseLines(lines, q.To)

	filtered := make([]Event, 0, len(events))
	for i := range events {
		if events[i].TS.Before(q.From) || events[i].TS.After(q.To) {
			continue
		}
		filtered = append(filtered, events[i])
	}

	return &Snapshot{
		GeneratedAt:       now.UTC().Format(time.RFC3339),
		Tenant:            q.Tenant,
		From:              q.From.UTC().Format(time.RFC3339),
		To:                q.To.UTC().Format(time.RFC3339),
		BucketMinutes:     q.BucketMinutes,
		TotalInteractions: len(filtered),
		DroppedLines:      dropped,
		Kpis:              BuildKpis(filtered),
		Buckets:           BuildBuckets(filtered, q.BucketMinutes),
		Models:            ensureSlice(BuildModelStats(filtered)),
		Documents:         ensureSlice(BuildDocuments(filtered)),
		Runs:              ensureSlice(BuildRuns(filtered, recentRunCount)),
	}, nil
}

func ensureSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// ParseTimeParam converts a query-string time value to time.Time. It accepts
// Unix seconds or the common ISO-8601 layouts and returns the zero time when
// nothing matches, letting the caller fall back to defaults.
func ParseTimeParam(param string) time.Time {
	param = strings.TrimSpace(param)
	if param == "" {
		return time.Time{}
	}

	if ts, err := strconv.ParseInt(param, 10, 64); err == nil && ts > 1000000000 && ts < 9999999999 {
		return time.Unix(ts, 0)
	}

	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05Z",
	} {
		if t, err := time.Parse(layout, param); err == nil {
			return t
		}
	}
	return time.Time{}
}
