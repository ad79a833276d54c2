package search

import (
	"fmt"
	"math"
	"sort"

	"github.com/Fl0k3n/kfe/internal/model"
)

const defaultRRFConstant = 60

// WeightedSum fuses result lists by summing score*weight per file ID
// across lists, then sorting descending. len(lists) must equal
// len(weights), and weights must sum to ~1 (the caller is expected to
// have validated this via config.SearchConfig.Validate).
func WeightedSum(lists [][]model.SearchResult, weights []float64) []model.SearchResult {
	if len(lists) != len(weights) {
		panic(fmt.Sprintf("search: %d result lists but %d weights", len(lists), len(weights)))
	}
	totals := make(map[model.FileID]float64)
	for i, list := range lists {
		w := weights[i]
		for _, r := range list {
			totals[r.FileID] += r.Score * w
		}
	}
	return toSortedResults(totals)
}

// ReciprocalRankFusion fuses result lists by rank rather than raw score:
// each list's items are ranked from 1, and each contributes
// weight/(k+rank) to its file ID's total. Lists with no matching weight
// entry (weights shorter than lists) default to weight 1.
func ReciprocalRankFusion(lists [][]model.SearchResult, weights []float64, k int) []model.SearchResult {
	if k <= 0 {
		k = defaultRRFConstant
	}
	totals := make(map[model.FileID]float64)
	for i, list := range lists {
		w := 1.0
		if i < len(weights) {
			w = weights[i]
		}
		for rank, r := range list {
			totals[r.FileID] += w / float64(k+rank+1)
		}
	}
	return toSortedResults(totals)
}

func toSortedResults(totals map[model.FileID]float64) []model.SearchResult {
	out := make([]model.SearchResult, 0, len(totals))
	for id, score := range totals {
		out = append(out, model.SearchResult{FileID: id, Score: score})
	}
	sort.Sort(model.ByScoreDesc(out))
	return out
}

// validateWeights panics if weights don't sum to ~1; used for the two
// weighted-sum fusions the spec requires to assert on this invariant.
func validateWeights(weights []float64) {
	var sum float64
	for _, w := range weights {
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-6 {
		panic(fmt.Sprintf("search: fusion weights must sum to 1, got %v", weights))
	}
}
