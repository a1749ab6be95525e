package observability

import "sort"

// Percentile returns the order statistic at ratio (in [0,1]) with linear
// interpolation between the two bracketing ranks. Empty input yields nil; a
// single value is returned as-is. Callers filter out non-finite values.
func Percentile(values []float64, ratio float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	if len(values) == 1 {
		v := values[0]
		return &v
	}
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	pos := float64(len(sorted)-1) * ratio
	lo := int(pos)
	hi := lo + 1
	if hi >= len(sorted) {
		v := sorted[lo]
		return &v
	}
	frac := pos - float64(lo)
	v := sorted[lo] + (sorted[hi]-sorted[lo])*frac
	return &v
}

// Average returns the arithmetic mean, nil for empty input.
func Average(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	return &mean
}
