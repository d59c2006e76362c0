package models

import (
	"sort"
	"strings"
)

// MaxSuggestions caps the "did you mean" list.
const MaxSuggestions = 5

// Suggest ranks candidate names by their best token containment score against query.
// A token pair scores min(len)/max(len) when one contains the other, else 0.
// Candidates scoring 0 are dropped. Ties keep candidate order.
func Suggest(query string, candidates []string) []string {
	queryTokens := strings.Fields(strings.ToLower(query))
	if len(queryTokens) == 0 {
		return nil
	}

	type scored struct {
		name  string
		score float64
	}
	var ranked []scored
	for _, name := range candidates {
		best := 0.0
		for _, nt := range strings.Fields(strings.ToLower(name)) {
			for _, qt := range queryTokens {
				if s := containment(qt, nt); s > best {
					best = s
				}
			}
		}
		if best > 0 {
			ranked = append(ranked, scored{name: name, score: best})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > MaxSuggestions {
		ranked = ranked[:MaxSuggestions]
	}
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.name
	}
	return out
}

func containment(a, b string) float64 {
	if !strings.Contains(a, b) && !strings.Contains(b, a) {
		return 0
	}
	short, long := len(a), len(b)
	if short > long {
		short, long = long, short
	}
	return float64(short) / float64(long)
}
