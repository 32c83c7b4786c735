// Package pipeline implements the classification-and-aggregation pipeline:
// per-company fetch, dedup, batched LLM classification with deterministic
// fallback, keyword override, persistence, and talking-point synthesis.
package pipeline

import (
	"github.com/sells-group/ir-radar/internal/model"
)

// Dedup returns the fetched articles whose URLs are not already known.
// Duplicate URLs within the fetched slice itself are also collapsed, keeping
// the first occurrence. Pure function, no side effects.
func Dedup(fetched []model.Article, known map[string]struct{}) []model.Article {
	var fresh []model.Article
	seen := make(map[string]struct{}, len(fetched))
	for _, a := range fetched {
		if _, ok := known[a.URL]; ok {
			continue
		}
		if _, ok := seen[a.URL]; ok {
			continue
		}
		seen[a.URL] = struct{}{}
		fresh = append(fresh, a)
	}
	return fresh
}
