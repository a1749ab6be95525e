package observability

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubTail struct {
	lines []string
	err   error
	asked int
}

func (s *stubTail) ReadTail(n int) ([]string, error) {
	s.asked = n
	if s.err != nil {
		return nil, s.err
	}
	return s.lines, nil
}

func TestBuild_MixedTranscript(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	tail := &stubTail{lines: []string{
		`this line is not json`,
		`{"mode":"RAG","timings":{"total_s":2.1}}`,
		`{"telemetry":{"helpUsed":{"rag":false,"risk":true}},"usage":{"total_tokens":500}}`,
	}}

	snap, err := NewBuilder(tail).Build(Query{Tenant: "acme"}, now)
	require.NoError(t, err)

	require.Equal(t, 2, snap.TotalInteractions)
	require.Equal(t, 1, snap.DroppedLines)
	require.Equal(t, "acme", snap.Tenant)

	docs, ok := kpiByLabel(snap.Kpis, "Docs helper share")
	require.True(t, ok)
	require.Equal(t, float64(50), docs.Value)
	risk, ok := kpiByLabel(snap.Kpis, "Risk helper share")
	require.True(t, ok)
	require.Equal(t, float64(50), risk.Value)

	tokens, ok := kpiByLabel(snap.Kpis, "Avg tokens")
	require.True(t, ok)
	require.Equal(t, float64(500), tokens.Value)

	latency, ok := kpiByLabel(snap.Kpis, "Latency p95")
	require.True(t, ok)
	require.InDelta(t, 2.1, latency.Value, 1e-9)
}

func TestBuild_IdempotentOverUnchangedTranscript(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	tail := &stubTail{lines: []string{
		`{"ts":"2026-08-01T11:30:00Z","metrics":{"latency_ms":1200,"tokens_in":80}}`,
		`{"mode":"DOCS"}`,
		`broken`,
	}}
	builder := NewBuilder(tail)
	q := Query{Tenant: "acme"}

	first, err := builder.Build(q, now)
	require.NoError(t, err)
	second, err := builder.Build(q, now)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	require.Equal(t, string(a), string(b))
}

func TestBuild_InclusiveWindowBounds(t *testing.T) {
	from := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 1, 11, 0, 0, 0, time.UTC)
	tail := &stubTail{lines: []string{
		`{"ts":"2026-08-01T09:59:59Z"}`,
		`{"ts":"2026-08-01T10:00:00Z"}`,
		`{"ts":"2026-08-01T11:00:00Z"}`,
		`{"ts":"2026-08-01T11:00:01Z"}`,
	}}

	snap, err := NewBuilder(tail).Build(Query{From: from, To: to}, to)
	require.NoError(t, err)
	require.Equal(t, 2, snap.TotalInteractions, "both boundary records are in range")
}

func TestBuild_MissingTimestampLandsOnUpperBound(t *testing.T) {
	from := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 1, 11, 0, 0, 0, time.UTC)
	tail := &stubTail{lines: []string{`{"metrics":{"latency_ms":100}}`}}

	snap, err := NewBuilder(tail).Build(Query{From: from, To: to}, to.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, snap.TotalInteractions)
	require.Equal(t, to.Format(time.RFC3339), snap.Runs[0].TS)
}

func TestBuild_EmptyTranscript(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	snap, err := NewBuilder(&stubTail{}).Build(Query{}, now)
	require.NoError(t, err)

	require.Zero(t, snap.TotalInteractions)
	require.NotNil(t, snap.Kpis)
	require.NotNil(t, snap.Buckets)
	require.NotNil(t, snap.Models)
	require.NotNil(t, snap.Documents)
	require.NotNil(t, snap.Runs)

	payload, err := json.Marshal(snap)
	require.NoError(t, err)
	require.Contains(t, string(payload), `"runs":[]`)
	require.NotContains(t, string(payload), "null")
}

func TestBuild_ScanCappedAtMax(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	tail := &stubTail{}

	_, err := NewBuilder(tail).Build(Query{Limit: 10000}, now)
	require.NoError(t, err)
	require.Equal(t, maxScanLines, tail.asked)

	_, err = NewBuilder(tail).Build(Query{Limit: 50}, now)
	require.NoError(t, err)
	require.Equal(t, 50, tail.asked)
}

func TestBuild_ReadErrorWrapped(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	readErr := errors.New("disk gone")
	_, err := NewBuilder(&stubTail{err: readErr}).Build(Query{}, now)
	require.ErrorIs(t, err, readErr)
	require.Contains(t, err.Error(), "read transcript")
}

func TestQueryDefaults(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	q := Query{}
	q.applyDefaults(now)

	require.Equal(t, now, q.To)
	require.Equal(t, now.Add(-24*time.Hour), q.From)
	require.Equal(t, 5, q.BucketMinutes)
	require.Equal(t, 1000, q.Limit)
}

func TestQueryCacheKey(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	a := Query{Tenant: "t", To: now, From: now.Add(-time.Hour), BucketMinutes: 5, Limit: 100}
	b := a
	require.Equal(t, a.CacheKey(), b.CacheKey())

	b.BucketMinutes = 10
	require.NotEqual(t, a.CacheKey(), b.CacheKey())
}

func TestParseTimeParam(t *testing.T) {
	require.True(t, ParseTimeParam("").IsZero())
	require.True(t, ParseTimeParam("not-a-time").IsZero())

	got := ParseTimeParam("2026-08-01T10:00:00Z")
	require.Equal(t, time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC), got)

	got = ParseTimeParam("1754042400")
	require.Equal(t, int64(1754042400), got.Unix())
}
