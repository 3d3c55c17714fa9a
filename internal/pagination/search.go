package pagination

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"genstudio/internal/api"
)

// SearchPrompts ranks the cached prompts against query by fuzzy match over
// title, content, category and tags. Closer matches come first; ties keep
// list order. An empty query returns the cached list unchanged.
func (c *Cache) SearchPrompts(query string) []api.Prompt {
	prompts := c.store.Snapshot().Prompts.List
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return prompts
	}

	labels := make([]string, len(prompts))
	for i, p := range prompts {
		labels[i] = strings.Join(append([]string{p.Title, p.Content, p.Category}, p.Tags...), " ")
	}
	ranks := fuzzy.RankFindNormalizedFold(trimmed, labels)
	sort.SliceStable(ranks, func(i, j int) bool {
		if ranks[i].Distance != ranks[j].Distance {
			return ranks[i].Distance < ranks[j].Distance
		}
		return ranks[i].OriginalIndex < ranks[j].OriginalIndex
	})

	out := make([]api.Prompt, 0, len(ranks))
	for _, rank := range ranks {
		if rank.OriginalIndex >= 0 && rank.OriginalIndex < len(prompts) {
			out = append(out, prompts[rank.OriginalIndex])
		}
	}
	return out
}
