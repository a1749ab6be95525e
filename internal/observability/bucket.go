package observability

import (
	"sort"
	"time"

	"github.com/samber/lo"
)

// TimeBucket is one (time-window, route, model) aggregate. P50/P95 are always
// numeric so charts never see gaps: p95 falls back to p50, and both fall back
// to 0 when the group carried no latencies.
type TimeBucket struct {
	T       string   `json:"t"`
	Route   Route    `json:"route"`
	Model   string   `json:"model"`
	P50     float64  `json:"p50"`
	P95     float64  `json:"p95"`
	P99     *float64 `json:"p99,omitempty"`
	Tokens  float64  `json:"tokens"`
	Errors  int      `json:"errors"`
	Retries int      `json:"retries"`
}

type bucketKey struct {
	start int64
	route Route
	model string
}

// BuildBuckets groups events into fixed-width windows keyed by (route, model).
// Output is ordered ascending by window start, then route, then model, so two
// builds over the same events are identical.
func BuildBuckets(events []Event, bucketMinutes int) []TimeBucket {
	if bucketMinutes <= 0 {
		bucketMinutes = 5
	}
	bucketMs := int64(bucketMinutes) * 60 * 1000

	groups := lo.GroupBy(events, func(e Event) bucketKey {
		return bucketKey{
			start: e.TS.UnixMilli() / bucketMs * bucketMs,
			route: e.Route,
			model: e.Model,
		}
	})

	buckets := make([]TimeBucket, 0, len(groups))
	for key, group := range groups {
		var latencies []float64
		var tokenSums []float64
		for i := range group {
			if group[i].Latency != nil {
				latencies = append(latencies, *group[i].Latency)
			}
			if sum, ok := group[i].TokenSum(); ok {
				tokenSums = append(tokenSums, sum)
			}
		}

		b := TimeBucket{
			T:     time.UnixMilli(key.start).UTC().Format(time.RFC3339),
			Route: key.route,
			Model: key.model,
			P99:   Percentile(latencies, 0.99),
		}
		if p50 := Percentile(latencies, 0.5); p50 != nil {
			b.P50 = *p50
		}
		if p95 := Percentile(latencies, 0.95); p95 != nil {
			b.P95 = *p95
		} else {
			b.P95 = b.P50
		}
		if avg := Average(tokenSums); avg != nil {
			b.Tokens = *avg
		}
		buckets = append(buckets, b)
	}

	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].T != buckets[j].T {
			return buckets[i].T < buckets[j].T
		}
		if buckets[i].Route != buckets[j].Route {
			return buckets[i].Route < buckets[j].Route
		}
		return buckets[i].Model < buckets[j].Model
	})
	return buckets
}
