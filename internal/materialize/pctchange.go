package materialize

import (
	"sort"
	"time"
)

// Observation is one close price of a series.
type Observation struct {
	Series string
	Date   time.Time
	Close  float64
}

// PctChange returns the close-to-close percent change of every observation,
// by input position. Observations are grouped by series and folded in date
// order. The first observation of a series has no change unless seeds
// holds the previous close of that series; a previous close of zero also
// yields no change.
func PctChange(obs []Observation, seeds map[string]float64) []*float64 {
	out := make([]*float64, len(obs))

	groups := make(map[string][]int)
	for i, o := range obs {
		groups[o.Series] = append(groups[o.Series], i)
	}

	for series, idx := range groups {
		sort.SliceStable(idx, func(a, b int) bool {
			return obs[idx[a]].Date.Before(obs[idx[b]].Date)
		})

		prev, ok := seeds[series]
		for _, i := range idx {
			if ok && prev != 0 {
				change := (obs[i].Close - prev) / prev * 100
				out[i] = &change
			}
			prev, ok = obs[i].Close, true
		}
	}
	return out
}
